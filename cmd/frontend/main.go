// Command frontend is Cobblepod's HTTP process: it accepts uploads,
// reports queue status, and serves finished artifacts. It never touches a
// media file itself — that's the worker's job, coordinated purely through
// the shared filesystem tree under ROOT.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"cobblepod/internal/config"
	"cobblepod/internal/httpapi"
	"cobblepod/internal/jobstore"
	"cobblepod/internal/session"
)

func main() {
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(jsonHandler))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	store := jobstore.New(cfg)
	if err := store.EnsureDirs(); err != nil {
		slog.Error("failed to prepare data directories", "error", err)
		os.Exit(1)
	}

	sessions := session.NewManager(cfg.StorageSecret, 365*24*time.Hour)
	srv := httpapi.New(cfg, store, sessions)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server failed to start", "error", err)
			cancel()
		}
	}()

	slog.Info("Cobblepod frontend started", "port", cfg.Port, "root", cfg.Root)

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	} else {
		slog.Info("server exited gracefully")
	}
}
