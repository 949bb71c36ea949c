package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/nodeflow"
	"github.com/aretw0/nodeflow/internal/presentation/tui"
	httpAdapter "github.com/aretw0/nodeflow/pkg/adapters/http"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the graph over HTTP: actions, node queries, runs, a Mermaid
rendering, Server-Sent Events for every change and Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, cfg, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		if cmd.Flags().Changed("addr") {
			cfg.HTTP.Addr, _ = cmd.Flags().GetString("addr")
		}
		refresh, _ := cmd.Flags().GetDuration("refresh")

		tui.PrintBanner(cmd.ErrOrStderr(), nodeflow.Version)

		handler := httpAdapter.NewHandler(rt.Engine,
			httpAdapter.WithLogger(rt.Logger),
			httpAdapter.WithMetricsHandler(rt.Metrics.Handler()),
		)
		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx := cmd.Context()
		if refresh > 0 && rt.Store != nil {
			go refreshLoop(ctx, rt.Engine, refresh)
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			rt.Logger.Info("Starting nodeflow server", "addr", srv.Addr, "graph", cfg.GraphID, "store", cfg.Store.Backend)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case <-ctx.Done():
			rt.Logger.Info("Start shutdown")

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				rt.Logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("could not stop server: %w", err)
				}
			}
			rt.Logger.Info("nodeflow server stopped gracefully")
			return nil
		}
	},
}

// refreshLoop adopts snapshots written by other processes sharing the store.
func refreshLoop(ctx context.Context, engine *nodeflow.Engine, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			engine.Refresh(ctx)
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().Duration("refresh", 0, "Poll the store for changes made by other processes (0 disables)")
}
