// Command worker is Cobblepod's single transcription process. Exactly one
// instance may run against a given ROOT at a time, enforced by an
// exclusive flock on worker/.lock; it scans the inbox, claims the oldest
// eligible file, and runs it through normalization, transcription,
// diarization, and artifact generation before picking up the next one.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"log/slog"

	"cobblepod/internal/config"
	"cobblepod/internal/janitor"
	"cobblepod/internal/jobstore"
	"cobblepod/internal/transcribe"
	"cobblepod/internal/worker"
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

	lock, err := worker.Acquire(filepath.Join(cfg.WorkerDir(), ".lock"))
	if err != nil {
		slog.Error("failed to acquire worker lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	client := transcribe.New(cfg.TranscribeURL, cfg.DiarizeURL)
	pipeline := worker.New(cfg, store, client)
	sweeper := janitor.New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	go sweeper.Run(ctx)

	slog.Info("Cobblepod worker started", "root", cfg.Root, "device", cfg.Device, "online", cfg.Online)
	pipeline.Run(ctx)
	slog.Info("worker shut down")
}
