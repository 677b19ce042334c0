package main

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/kuitang/gridcheck/internal/config"
	"github.com/kuitang/gridcheck/internal/flows"
	"github.com/kuitang/gridcheck/internal/obs"
	"github.com/kuitang/gridcheck/internal/scenario"
	"github.com/kuitang/gridcheck/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run [flow...]",
	Short: "Run browser flows against the target environment",
	Long: "Runs the named browser flows (all of them when none are named) in a fresh\n" +
		"Chromium page each. Failed steps upload a screenshot when ARTIFACT_BUCKET is set.",
	ValidArgs: flows.Names(),
	RunE:      runFlows,
}

func runFlows(cmd *cobra.Command, args []string) error {
	names := args
	if len(names) == 0 {
		names = flows.Names()
	}
	for _, n := range names {
		if !slices.Contains(flows.Names(), n) {
			return fmt.Errorf("unknown flow %q (known: %v)", n, flows.Names())
		}
	}

	data := config.DefaultTestData()
	if settings.TestDataPath != "" {
		var err error
		data, err = config.LoadTestData(settings.TestDataPath)
		if err != nil {
			return err
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	summary := &scenario.Summary{}
	for _, name := range names {
		if err := runFlow(ctx, name, data, summary); err != nil {
			return err
		}
	}
	if err := summary.Write(os.Stdout); err != nil {
		return err
	}
	if _, failed, _ := summary.Counts(); failed > 0 {
		return fmt.Errorf("%d step(s) failed", failed)
	}
	return nil
}

func runFlow(ctx context.Context, name string, data *config.TestData, summary *scenario.Summary) error {
	session, err := ui.Launch(ui.LaunchOptions{
		Headless:       settings.Headless,
		ViewportWidth:  settings.ViewportWidth,
		ViewportHeight: settings.ViewportHeight,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			obs.Pkg("main").Warn("browser shutdown", "error", err)
		}
	}()

	opts := []scenario.Option{scenario.WithSink(summary)}
	if settings.ArtifactsEnabled() {
		store, err := openStore(ctx, settings.ArtifactBucket)
		if err != nil {
			return err
		}
		opts = append(opts, scenario.WithFailureScreenshots(session.Surface, store, settings.ArtifactPrefix))
	}
	r := scenario.NewRunner(name, scenario.NewContext(settings.Env, data), opts...)
	obs.Pkg("main").Info("flow started", "flow", name, "run_id", r.RunID())
	return flows.Run(ctx, name, r, session.Surface)
}
