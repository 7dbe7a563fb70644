// Package server is the collector: it accepts normalized events over HTTP,
// assigns identity, persists them to the day-partitioned store and fans
// them out to live subscribers.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cagehq/cage/internal/config"
	"github.com/cagehq/cage/internal/store"
	"github.com/cagehq/cage/internal/stream"
)

// Run serves the collector until SIGINT/SIGTERM, then shuts down
// gracefully. It is the foreground body of `cage server`; the lifecycle
// manager spawns it detached.
func Run(loader *config.Loader) error {
	cfg := loader.Config()

	st := store.New(cfg.Storage.EventsDir)
	caster := stream.NewBroadcaster()
	handler := New(st, caster, loader)

	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("config watcher unavailable (rule hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	srv := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     handler,
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: /stream connections are long-lived.
		IdleTimeout: 120 * time.Second,
	}

	errC := make(chan error, 1)
	go func() {
		slog.Info("collector starting", "addr", cfg.Addr(), "events_dir", cfg.Storage.EventsDir)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errC <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errC:
		return err
	case sig := <-quit:
		slog.Info("shutting down", "signal", sig.String())
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
