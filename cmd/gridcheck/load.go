package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kuitang/gridcheck/internal/api"
	"github.com/kuitang/gridcheck/internal/loadgen"
)

var (
	loadVUs        int
	loadIterations int
	loadThinkTime  time.Duration
	loadWrites     bool
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Replay the review workflow from many virtual users",
	Long: "Each virtual user logs in, reads the listing and the document and fetches a\n" +
		"translated file, for the given number of iterations. Timings are summarized\n" +
		"per step. --writes adds the edit and publish steps, which only one user can\n" +
		"complete per document.",
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().IntVar(&loadVUs, "vus", 0, "virtual users (default $LOAD_VUS)")
	loadCmd.Flags().IntVar(&loadIterations, "iterations", 0, "iterations per user (default $LOAD_ITERATIONS)")
	loadCmd.Flags().DurationVar(&loadThinkTime, "think-time", -1, "pause between steps (default $LOAD_THINK_TIME)")
	loadCmd.Flags().BoolVar(&loadWrites, "writes", false, "include edit and publish steps")
	loadCmd.Flags().StringVar(&apiDocumentName, "document", "", "document name (default: the test data document)")
	loadCmd.Flags().StringVar(&apiPortal, "portal", "translation", "reviewer portal: translation or english")
}

func runLoad(cmd *cobra.Command, args []string) error {
	cfg := loadgen.Config{
		VUs:               settings.LoadVUs,
		Iterations:        settings.LoadIterations,
		ThinkTime:         settings.LoadThinkTime,
		RequestsPerSecond: settings.APIRequestsPerSecond,
		Burst:             settings.APIBurst,
	}
	if loadVUs > 0 {
		cfg.VUs = loadVUs
	}
	if loadIterations > 0 {
		cfg.Iterations = loadIterations
	}
	if loadThinkTime >= 0 {
		cfg.ThinkTime = loadThinkTime
	}

	apiReadOnly = !loadWrites
	wf, err := workflowFromFlags()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	base := settings.Env.APIBaseURL
	summary, err := loadgen.Run(ctx, cfg, wf, func(opts api.Options) *api.Client {
		return api.New(base, opts)
	})
	fmt.Fprint(cmd.OutOrStdout(), summary.String())
	for _, e := range summary.Errors {
		fmt.Fprintln(cmd.OutOrStdout(), "  error:", e)
	}
	if err != nil {
		return err
	}
	if !summary.OK() {
		return fmt.Errorf("%d of %d iterations failed", summary.Failed, summary.Iterations)
	}
	return nil
}
