package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"checkin/internal/platform/config"
	"checkin/internal/platform/httpserver"
	"checkin/internal/platform/logger"
	"checkin/internal/platform/metrics"
)

const shutdownTimeout = 10 * time.Second

// main wires dependencies, serves HTTP and drains background work on
// SIGINT or SIGTERM. Business logic lives in internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("checkin server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	app, err := buildApp(ctx, cfg, log, reg)
	if err != nil {
		return err
	}
	defer app.close(log)

	srv := httpserver.New(cfg.Server, app.router)

	// The publisher outlives the HTTP server so in-flight visits still get
	// their events queued; it stops once the server has drained.
	publisherCtx, stopPublisher := context.WithCancel(context.WithoutCancel(ctx))
	defer stopPublisher()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.events.Run(publisherCtx)
	})
	g.Go(func() error {
		log.Info("starting checkin server",
			"addr", cfg.Server.Addr,
			"store", app.storeKind,
			"events", cfg.Events.Driver,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down checkin server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		stopPublisher()
		return err
	})
	return g.Wait()
}
