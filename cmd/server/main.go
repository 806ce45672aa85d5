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

	"github.com/pauljones0/gapfinder/internal/app"
	"github.com/pauljones0/gapfinder/internal/config"
	"github.com/pauljones0/gapfinder/internal/connectivity"
	"github.com/pauljones0/gapfinder/internal/processor"
	"github.com/pauljones0/gapfinder/internal/server"
)

func main() {
	slog.Info("Starting gapfinder server...")
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	ctx := context.Background()
	a, err := app.New(ctx, cfg, true)
	if err != nil {
		slog.Error("Critical error initializing components", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Warn("Closing cache storage", "error", err)
		}
	}()

	a.Refresher.Warm(ctx)

	poller := processor.NewPoller(a.Refresher, a.Cache, cfg.RefreshInterval)
	poller.Start()
	monitor := connectivity.New(cfg.ConnectivityCheckURL, cfg.ConnectivityInterval, a.Cache)
	monitor.Start()

	srv := server.New(a.Engine, a.Cache, a.Refresher, server.Options{TrackSearches: cfg.TrackSearches})
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh
		slog.Info("Received signal, shutting down gracefully...", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
		monitor.Stop()
		poller.Stop()

		if a.Cache.Online() {
			res, err := a.Cache.Flush(shutdownCtx)
			if err != nil {
				slog.Warn("Final flush interrupted", "error", err)
			}
			slog.Info("Final flush", "delivered", res.Delivered, "remaining", res.Remaining)
		}
	}()

	slog.Info("Listening on port", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Failed to listen and serve", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("Server stopped.")
}
