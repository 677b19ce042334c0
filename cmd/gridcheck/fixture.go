package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/kuitang/gridcheck/internal/obs"
	"github.com/kuitang/gridcheck/internal/reviewapp"
)

var fixtureAddr string

var fixtureCmd = &cobra.Command{
	Use:   "fixture",
	Short: "Serve the bundled review application",
	Long: "Serves the seeded review application used by the tests. The dev\n" +
		"environment credentials log in to it.",
	Annotations: map[string]string{"config": "none"},
	RunE:        runFixture,
}

func init() {
	fixtureCmd.Flags().StringVar(&fixtureAddr, "addr", "127.0.0.1:8080", "listen address")
}

func runFixture(cmd *cobra.Command, args []string) error {
	app, err := reviewapp.New(reviewapp.Options{})
	if err != nil {
		return err
	}
	defer app.Close()

	ln, err := net.Listen("tcp", fixtureAddr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signalContext()
	defer cancel()

	logger := obs.Pkg("main")
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	logger.Info("review app listening", "addr", ln.Addr().String())
	fmt.Fprintf(cmd.OutOrStdout(), "review app on http://%s\n", ln.Addr())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	return srv.Shutdown(shutdownCtx)
}
