package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	auditBucket string
	auditPrefix string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Check that every markdown export folder holds its XML manifest",
	Long: "Lists the folders directly under the prefix and checks each one for\n" +
		"<folder>/<folder>.xml. Exits non-zero when any is missing.",
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().StringVar(&auditBucket, "bucket", "", "bucket to audit (default $AUDIT_BUCKET)")
	auditCmd.Flags().StringVar(&auditPrefix, "prefix", "", "parent folder (default $AUDIT_PREFIX)")
}

func runAudit(cmd *cobra.Command, args []string) error {
	bucket := firstNonEmpty(auditBucket, settings.AuditBucket)
	prefix := firstNonEmpty(auditPrefix, settings.AuditPrefix)
	if bucket == "" {
		return fmt.Errorf("no bucket: pass --bucket or set AUDIT_BUCKET")
	}
	ctx, cancel := signalContext()
	defer cancel()

	store, err := openStore(ctx, bucket)
	if err != nil {
		return err
	}
	report, err := store.AuditMarkdownFolders(ctx, prefix)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(report.Folders) == 0 {
		fmt.Fprintf(out, "no folders found inside %q\n", report.Prefix)
		return fmt.Errorf("nothing to audit under s3://%s/%s", bucket, report.Prefix)
	}
	for _, f := range report.Folders {
		switch {
		case f.Err != nil:
			fmt.Fprintf(out, "ERROR   %s: %v\n", f.XMLKey, f.Err)
		case f.Found:
			fmt.Fprintf(out, "FOUND   %s\n", f.XMLKey)
		default:
			fmt.Fprintf(out, "MISSING %s\n", f.XMLKey)
		}
	}
	if missing := report.Missing(); len(missing) > 0 {
		return fmt.Errorf("%d of %d folders lack their XML file", len(missing), len(report.Folders))
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
