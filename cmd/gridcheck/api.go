package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kuitang/gridcheck/internal/api"
	"github.com/kuitang/gridcheck/internal/config"
	"github.com/kuitang/gridcheck/internal/flows"
)

var (
	apiDocumentID   string
	apiDocumentName string
	apiPortal       string
	apiSubDocs      int
	apiPageDelay    time.Duration
	apiReadOnly     bool
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Replay the review workflow over the REST API",
	Long: "Logs in, reads the listing and the document, fetches a translated file,\n" +
		"edits content and scores, reviews every file and publishes the document.",
	RunE: runAPI,
}

func init() {
	apiCmd.Flags().StringVar(&apiDocumentID, "document-id", "", "document id (wins over --document)")
	apiCmd.Flags().StringVar(&apiDocumentName, "document", "", "document name to look up in the listing (default: the test data document)")
	apiCmd.Flags().StringVar(&apiPortal, "portal", "translation", "reviewer portal: translation or english")
	apiCmd.Flags().IntVar(&apiSubDocs, "expect-files", 0, "expected number of files in the document (0 skips the check)")
	apiCmd.Flags().DurationVar(&apiPageDelay, "page-delay", 0, "pause between file reviews")
	apiCmd.Flags().BoolVar(&apiReadOnly, "read-only", false, "stop after the content check")
}

func portalCredentials(env config.Environment, portal string) (config.Credentials, error) {
	switch portal {
	case "translation":
		return env.Translation, nil
	case "english":
		if env.English.Email == "" {
			return config.Credentials{}, fmt.Errorf("no english portal credentials for %s", env.Name)
		}
		return env.English, nil
	}
	return config.Credentials{}, fmt.Errorf("unknown portal %q", portal)
}

func workflowFromFlags() (api.ReviewWorkflow, error) {
	creds, err := portalCredentials(settings.Env, apiPortal)
	if err != nil {
		return api.ReviewWorkflow{}, err
	}
	name := apiDocumentName
	if name == "" && apiDocumentID == "" {
		variant := flows.TranslationReview
		if apiPortal == "english" {
			variant = flows.EnglishReview
		}
		name = config.DefaultTestData().SearchTerms.DocName + variant.Suffix
	}
	return api.ReviewWorkflow{
		Email:           creds.Email,
		Password:        creds.Password,
		DocumentID:      apiDocumentID,
		DocumentName:    name,
		ExpectedSubDocs: apiSubDocs,
		PageDelay:       apiPageDelay,
		ReadOnly:        apiReadOnly,
	}, nil
}

func runAPI(cmd *cobra.Command, args []string) error {
	wf, err := workflowFromFlags()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	client := api.New(settings.Env.APIBaseURL, api.Options{
		RequestsPerSecond: settings.APIRequestsPerSecond,
		Burst:             settings.APIBurst,
	})
	st, err := wf.Run(ctx, client)
	if err != nil {
		return err
	}
	if st.Document != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): %s, version %d\n", st.Document.Name, st.DocumentID, st.Document.Status, st.Document.Version)
	}
	return nil
}
