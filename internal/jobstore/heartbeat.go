package jobstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Heartbeat is the progress signal the worker leaves behind while it works
// a job: a file named "<estimate_seconds>_<start_unix>_<original_filename>"
// in the user's worker directory. Its existence and the fields encoded in
// its name are the only progress information available — there is no IPC
// between worker and frontend.
type Heartbeat struct {
	EstimateSeconds int
	StartedAt       time.Time
	Filename        string
}

// Elapsed returns how long the job has been running.
func (h *Heartbeat) Elapsed() time.Duration {
	return time.Since(h.StartedAt)
}

// Remaining estimates time left, floored at zero once the estimate is
// exceeded (the job is still running, just later than predicted).
func (h *Heartbeat) Remaining() time.Duration {
	total := time.Duration(h.EstimateSeconds) * time.Second
	left := total - h.Elapsed()
	if left < 0 {
		return 0
	}
	return left
}

// heartbeatFor returns the live heartbeat for a user's job, if any.
func (s *Store) heartbeatFor(userID, filename string) *Heartbeat {
	dir := filepath.Join(s.cfg.WorkerDir(), userID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	for _, e := range entries {
		hb, ok := parseHeartbeatName(e.Name())
		if ok && hb.Filename == filename {
			return hb
		}
	}
	return nil
}

// parseHeartbeatName decodes a heartbeat file's name into its three
// underscore-delimited fields. The original filename may itself contain
// underscores, so only the first two fields are split off.
func parseHeartbeatName(name string) (*Heartbeat, bool) {
	parts := strings.SplitN(name, "_", 3)
	if len(parts) != 3 {
		return nil, false
	}
	estimate, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, false
	}
	startUnix, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, false
	}
	return &Heartbeat{
		EstimateSeconds: estimate,
		StartedAt:       time.Unix(startUnix, 0),
		Filename:        parts[2],
	}, true
}

// WriteHeartbeat creates (or overwrites) the heartbeat file for a job the
// worker is about to start processing.
func (s *Store) WriteHeartbeat(job *Job, estimateSeconds int) (string, error) {
	dir := filepath.Join(s.cfg.WorkerDir(), job.UserID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create worker dir: %w", err)
	}
	name := fmt.Sprintf("%d_%d_%s", estimateSeconds, time.Now().Unix(), job.Filename)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return "", fmt.Errorf("write heartbeat: %w", err)
	}
	return path, nil
}

// ClearHeartbeat removes a heartbeat file once its job finishes, errors, or
// is cancelled.
func (s *Store) ClearHeartbeat(path string) {
	if path == "" {
		return
	}
	os.Remove(path)
}
