package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"compliancehub/internal/app"
	"compliancehub/internal/platform/config"
	"compliancehub/internal/platform/httpserver"
	"compliancehub/internal/platform/tracing"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and background workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, log, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "Apply schema migrations before serving")
	return cmd
}

// serve runs the HTTP server, the audit outbox relay and the policy watcher
// until a signal arrives or one of them fails.
func serve(parent context.Context, cfg config.Config, log *slog.Logger, migrate bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	a, err := app.Build(ctx, cfg, log, app.Options{Migrate: migrate})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("closing resources failed", "error", err)
		}
	}()

	if a.Backend.Driver == config.DriverMemory {
		created, err := a.Identity.Seed(ctx)
		if err != nil {
			return err
		}
		log.Info("seeded memory backend", "created", created)
	}

	srv := httpserver.New(cfg.Server, a.Handler, log)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting compliancehub", "addr", cfg.Server.Addr, "database", a.Backend.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if a.Relay != nil {
		g.Go(func() error { return a.Relay.Run(gctx) })
	}
	if a.Watcher != nil {
		g.Go(func() error { return a.Watcher.Run(gctx) })
	}

	return g.Wait()
}
