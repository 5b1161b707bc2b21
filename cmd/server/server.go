// Package server implements the API server command.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/coxswain-cd/coxswain/app"
	"github.com/coxswain-cd/coxswain/web/routes"
)

func NewCmdServer() *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Start the Coxswain API server",
		Long: `Start the HTTP API server and the provider event poller.

The server exposes deployment orchestration operations (deploy, undeploy,
scale, status, instance information, operation execution) as a JSON API and
continuously ingests provider events into the event store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	config := app.GetConfig()
	router := routes.NewRouter(app.GetEngine(), app.GetRecords())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := app.GetPoller().Start(ctx); err != nil {
			slog.Error("Event poller stopped", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:    config.ListenAddr(),
		Handler: router,
	}

	errs := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", config.ListenAddr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
