// Package janitor periodically removes per-user directories that have had
// no activity for a configurable number of days, freeing disk space for
// uploads and transcripts nobody has come back for.
package janitor

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cobblepod/internal/config"
	"cobblepod/internal/worker"
)

// Janitor sweeps the four managed directories for inactive users.
type Janitor struct {
	cfg *config.Config
}

// New builds a Janitor for the given configuration.
func New(cfg *config.Config) *Janitor {
	return &Janitor{cfg: cfg}
}

// Run sweeps once per JANITOR_INTERVAL_HOURS until ctx is cancelled. The
// first sweep is delayed by a minute after startup to avoid competing with
// the worker for disk I/O right as the process comes up.
func (j *Janitor) Run(ctx context.Context) {
	t := time.NewTimer(time.Minute)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			j.Sweep()
			t.Reset(time.Duration(j.cfg.JanitorIntervalHours) * time.Hour)
		}
	}
}

// Sweep removes every user directory, across all four managed trees, whose
// most recent file modification time is older than the idle threshold.
func (j *Janitor) Sweep() {
	slog.Info("starting inactive directory sweep", "threshold_days", j.cfg.JanitorIdleDays)

	threshold := time.Now().Add(-time.Duration(j.cfg.JanitorIdleDays) * 24 * time.Hour)
	dirs := j.cfg.Dirs()

	seen := map[string]bool{}
	removed := 0

	for _, base := range dirs {
		entries, err := os.ReadDir(base)
		if err != nil {
			continue
		}
		for _, e := range entries {
			userID := e.Name()
			if seen[userID] || userID == "local" || !e.IsDir() {
				continue
			}
			seen[userID] = true

			latest := userActivity(dirs, userID)
			if !latest.Before(threshold) {
				continue
			}

			// Double-check idleness under a per-user advisory lock before
			// deleting anything: a worker claiming this user's job or a
			// frontend request accepting their upload between the scan
			// above and the removal below would otherwise race a sweep
			// out from under it.
			lockDir := filepath.Join(j.cfg.InDir(), userID)
			if err := os.MkdirAll(lockDir, 0o755); err != nil {
				slog.Error("failed to prepare lock directory", "user", userID, "error", err)
				continue
			}
			lockPath := filepath.Join(lockDir, ".lock")
			lock, err := worker.Acquire(lockPath)
			if err != nil {
				slog.Warn("user directory busy, skipping sweep", "user", userID, "error", err)
				continue
			}

			latest = userActivity(dirs, userID)
			if latest.Before(threshold) {
				for _, d := range dirs {
					userPath := filepath.Join(d, userID)
					if _, err := os.Stat(userPath); err == nil {
						if err := os.RemoveAll(userPath); err != nil {
							slog.Error("failed to remove inactive user directory", "path", userPath, "error", err)
							continue
						}
						slog.Info("removed inactive user directory", "path", userPath, "last_activity", latest)
					}
				}
				removed++
			}
			lock.Release()
		}
	}

	slog.Info("sweep complete", "removed_users", removed)
}

// userActivity returns the most recent activity for userID across every
// managed tree.
func userActivity(dirs []string, userID string) time.Time {
	var latest time.Time
	for _, d := range dirs {
		if t := latestActivity(filepath.Join(d, userID)); t.After(latest) {
			latest = t
		}
	}
	return latest
}

// latestActivity returns the most recent modification time of any file
// under dir (the sweep's own .lock file excluded), falling back to the
// directory's own mtime if it holds no such file.
func latestActivity(dir string) time.Time {
	var latest time.Time
	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() || info.Name() == ".lock" {
			return nil
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		return nil
	})
	if latest.IsZero() {
		if info, err := os.Stat(dir); err == nil {
			return info.ModTime()
		}
	}
	return latest
}
