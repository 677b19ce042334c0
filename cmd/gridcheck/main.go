// Command gridcheck runs the review application checks: browser flows, the
// REST workflow, the markdown export audit and load replays. It can also
// serve the bundled review application locally.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kuitang/gridcheck/internal/config"
	"github.com/kuitang/gridcheck/internal/obs"
	"github.com/kuitang/gridcheck/internal/s3store"
)

var (
	envName  string
	logLevel string
	settings *config.Settings
)

var rootCmd = &cobra.Command{
	Use:           "gridcheck",
	Short:         "End-to-end checks for the document review portals",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := parseLevel(logLevel)
		if err != nil {
			return err
		}
		obs.InitWithLevel(os.Stderr, level)
		if cmd.Annotations["config"] == "none" {
			return nil
		}
		settings, err = config.Load(envName)
		if err != nil {
			return err
		}
		obs.Pkg("main").Info("settings loaded", "summary", settings.Summary())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&envName, "env", "e", "", "target environment: "+strings.Join(config.EnvironmentNames(), ", ")+" (default $ENV or dev)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	rootCmd.AddCommand(runCmd, apiCmd, auditCmd, loadCmd, fixtureCmd)
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid --log-level %q", s)
	}
	return level, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func openStore(ctx context.Context, bucket string) (*s3store.Store, error) {
	return s3store.New(ctx, s3store.Config{
		Endpoint:        settings.AWSEndpointS3,
		Region:          settings.AWSRegion,
		AccessKeyID:     settings.AWSAccessKeyID,
		SecretAccessKey: settings.AWSSecretAccessKey,
		SessionToken:    settings.AWSSessionToken,
		Bucket:          bucket,
		UsePathStyle:    settings.AWSEndpointS3 != "",
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
