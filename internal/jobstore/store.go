package jobstore

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"cobblepod/internal/config"
)

// ErrUserIDRequired mirrors the guard the original queue used on every
// per-user listing call.
var ErrUserIDRequired = errors.New("user ID is required")

// processingSuffix marks a file as currently claimed by the worker. The
// marker's contents are the Unix timestamp the claim was made, which is how
// a stuck job is later detected.
const processingSuffix = ".processing"

// Store scans the filesystem tree under a configured root to answer queue
// questions. It holds no state of its own.
type Store struct {
	cfg *config.Config
}

// New returns a Store rooted at cfg.Root.
func New(cfg *config.Config) *Store {
	return &Store{cfg: cfg}
}

// EnsureDirs creates the four top-level directories Cobblepod manages, if
// they don't already exist.
func (s *Store) EnsureDirs() error {
	for _, dir := range s.cfg.Dirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Next returns the oldest eligible job across every user's inbox, or nil if
// the queue is empty. Eligibility excludes per-user config files, files
// already claimed by a live `.processing` marker, and files already
// delivered to the output directory. A marker found past the stuck
// threshold is promoted to error here, since Next is the only caller
// allowed to perform that worker-only write.
func (s *Store) Next() (*Job, error) {
	candidates, err := s.oldestFirst()
	if err != nil {
		return nil, err
	}
	for _, job := range candidates {
		eligible, stuck, err := s.checkEligible(job)
		if err != nil {
			slog.Error("error checking job eligibility", "path", job.Path, "error", err)
			continue
		}
		if stuck {
			slog.Warn("job stuck in processing past threshold, failing", "path", job.Path)
			if err := s.Fail(job, "processing stuck or crashed"); err != nil {
				slog.Error("failed to fail stuck job", "path", job.Path, "error", err)
			}
			continue
		}
		if eligible {
			return job, nil
		}
	}
	return nil, nil
}

// oldestFirst walks every user directory under the inbox and returns every
// regular file found, sorted by modification time ascending (global FIFO
// order, ties broken lexicographically by path).
func (s *Store) oldestFirst() ([]*Job, error) {
	var jobs []*Job

	userDirs, err := os.ReadDir(s.cfg.InDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read inbox: %w", err)
	}

	for _, ud := range userDirs {
		if !ud.IsDir() {
			continue
		}
		userID := ud.Name()
		userDir := filepath.Join(s.cfg.InDir(), userID)

		entries, err := os.ReadDir(userDir)
		if err != nil {
			slog.Error("error reading user inbox", "user", userID, "error", err)
			continue
		}
		for _, e := range entries {
			if e.IsDir() || strings.HasSuffix(e.Name(), processingSuffix) {
				continue
			}
			if configFiles[e.Name()] {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			jobs = append(jobs, &Job{
				UserID:    userID,
				Filename:  e.Name(),
				Path:      filepath.Join(userDir, e.Name()),
				CreatedAt: info.ModTime(),
				IsZip:     strings.EqualFold(filepath.Ext(e.Name()), ".zip"),
			})
		}
	}

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].Path < jobs[j].Path
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})

	return jobs, nil
}

// checkEligible reports whether a job is still waiting to run: not already
// delivered, and not claimed by a live `.processing` marker. It is a
// read-only filesystem check — safe to call from the frontend's queue and
// progress views — and never itself mutates anything. When a marker is
// found past the stuck threshold it reports stuck=true instead of acting
// on it; only Next (the worker's scan) is allowed to promote a stuck job
// to error, since that write belongs to the worker alone.
func (s *Store) checkEligible(job *Job) (eligible, stuck bool, err error) {
	outViewer := filepath.Join(s.cfg.OutDir(), job.UserID, job.Filename+".html")
	if _, statErr := os.Stat(outViewer); statErr == nil {
		return false, false, nil
	}

	marker := job.Path + processingSuffix
	data, readErr := os.ReadFile(marker)
	if errors.Is(readErr, os.ErrNotExist) {
		return true, false, nil
	}
	if readErr != nil {
		return false, false, readErr
	}

	started, parseErr := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if parseErr != nil {
		slog.Warn("invalid processing marker, ignoring", "path", marker)
		return true, false, nil
	}

	age := time.Since(time.Unix(started, 0))
	threshold := time.Duration(s.cfg.StuckThresholdSeconds) * time.Second
	if age > threshold {
		return false, true, nil
	}
	return false, false, nil
}

// shouldProcess is the read-only eligibility check used by the frontend's
// queue views (DescribeQueue, ListQueued). It never fails a stuck job —
// that promotion is the worker's job alone, done once per scan in Next.
func (s *Store) shouldProcess(job *Job) (bool, error) {
	eligible, _, err := s.checkEligible(job)
	return eligible, err
}

// Claim stamps a job with a `.processing` marker recording the claim time,
// the filesystem equivalent of a mutex acquire. It is not itself atomic
// against a concurrent worker (Cobblepod relies on a single worker process
// enforced by worker.Lock), but it is crash-safe: a leftover marker from a
// killed worker is detected and aged out by Next.
func (s *Store) Claim(job *Job) error {
	return os.WriteFile(job.Path+processingSuffix, []byte(strconv.FormatInt(time.Now().Unix(), 10)), 0o644)
}

// Release removes a job's processing marker after it either completes or
// moves to error.
func (s *Store) Release(job *Job) {
	if err := os.Remove(job.Path + processingSuffix); err != nil && !os.IsNotExist(err) {
		slog.Error("failed to remove processing marker", "path", job.Path, "error", err)
	}
}

// Exists reports whether a job's source file is still present, used to
// detect a user cancelling an upload mid-processing by deleting it.
func (s *Store) Exists(job *Job) bool {
	_, err := os.Stat(job.Path)
	return err == nil
}

// Fail moves a job's source file into the error directory and writes a
// sidecar `.txt` describing why, mirroring the original worker's
// report_error: the text file is written first since the move/copy is more
// likely to fail on a misconfigured filesystem.
func (s *Store) Fail(job *Job, reason string) error {
	slog.Error("job failed", "user", job.UserID, "file", job.Filename, "reason", reason)

	errDir := filepath.Join(s.cfg.ErrorDir(), job.UserID)
	if err := os.MkdirAll(errDir, 0o755); err != nil {
		return fmt.Errorf("create error dir: %w", err)
	}

	dest := filepath.Join(errDir, job.Filename)
	if err := os.WriteFile(dest+".txt", []byte(reason), 0o644); err != nil {
		slog.Error("failed to write error reason", "path", dest+".txt", "error", err)
	}

	if err := os.Rename(job.Path, dest); err != nil {
		if copyErr := copyThenRemove(job.Path, dest); copyErr != nil {
			slog.Error("failed to move job to error directory", "error", copyErr)
		}
	}

	s.Release(job)
	return nil
}

// copyThenRemove falls back to a copy-and-delete when os.Rename fails
// because source and destination live on different filesystems.
func copyThenRemove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := out.ReadFrom(in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// HotwordsFor returns the per-user hotword list, if the user has uploaded
// one via hotwords.txt in their inbox.
func (s *Store) HotwordsFor(userID string) []string {
	data, err := os.ReadFile(filepath.Join(s.cfg.InDir(), userID, "hotwords.txt"))
	if err != nil {
		return nil
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

// LanguageFor returns the per-user transcription language, defaulting to
// "de" to match the reference deployment's primary audience.
func (s *Store) LanguageFor(userID string) string {
	data, err := os.ReadFile(filepath.Join(s.cfg.InDir(), userID, "language.txt"))
	if err != nil {
		return "de"
	}
	lang := strings.TrimSpace(string(data))
	if lang == "" {
		return "de"
	}
	return lang
}

// ListQueued returns every job currently eligible to run for a user, in
// FIFO order, for display on the status page.
func (s *Store) ListQueued(userID string) ([]*Job, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	all, err := s.oldestFirst()
	if err != nil {
		return nil, err
	}
	var mine []*Job
	for _, j := range all {
		if j.UserID != userID {
			continue
		}
		ok, err := s.shouldProcess(j)
		if err != nil || !ok {
			continue
		}
		mine = append(mine, j)
	}
	return mine, nil
}

// State reports the externally-visible state of a job given its user and
// filename, computed from what's currently on disk.
func (s *Store) State(userID, filename string) State {
	state, _, _ := s.describe(userID, filename)
	return state
}

// Progress reports a job's state along with its numeric progress fraction
// (clamped to [0, 0.975], per the heartbeat progress formula) and the
// estimated seconds remaining. Only meaningful while state is processing
// or post-processing; both are zero otherwise.
func (s *Store) Progress(userID, filename string) (state State, progress float64, remainingSeconds int) {
	return s.describe(userID, filename)
}

// describe is the single place job lifecycle state and progress are
// derived from the filesystem, so State and Progress can never disagree.
func (s *Store) describe(userID, filename string) (state State, progress float64, remainingSeconds int) {
	outViewer := filepath.Join(s.cfg.OutDir(), userID, filename+".html")
	if _, err := os.Stat(outViewer); err == nil {
		return StateDone, 0, 0
	}

	errFile := filepath.Join(s.cfg.ErrorDir(), userID, filename)
	if _, err := os.Stat(errFile); err == nil {
		return StateErrored, 0, 0
	}

	marker := filepath.Join(s.cfg.InDir(), userID, filename+processingSuffix)
	if data, err := os.ReadFile(marker); err == nil {
		started, parseErr := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
		if parseErr == nil {
			age := time.Since(time.Unix(started, 0))
			threshold := time.Duration(s.cfg.StuckThresholdSeconds) * time.Second
			if age > threshold {
				return StateStuck, 0, 0
			}
		}
		hb := s.heartbeatFor(userID, filename)
		if hb == nil {
			return StateAcquiring, 0, 0
		}

		frac, remaining := progressFraction(hb)
		if frac > 0.95 {
			return StatePostProcessing, frac, remaining
		}
		return StateProcessing, frac, remaining
	}

	if _, err := os.Stat(filepath.Join(s.cfg.InDir(), userID, filename)); err == nil {
		return StateQueued, 0, 0
	}

	return StateErrored, 0, 0
}

// progressFraction implements the heartbeat progress formula: elapsed time
// over the estimate, clamped so a job in flight never visually reports
// "done" before its artifacts actually exist. remainingSeconds is rounded
// and floored at one second so a near-complete job never reads zero.
func progressFraction(hb *Heartbeat) (progress float64, remainingSeconds int) {
	estimate := float64(hb.EstimateSeconds)
	if estimate < 1 {
		estimate = 1
	}
	frac := hb.Elapsed().Seconds() / estimate
	switch {
	case frac < 0:
		frac = 0
	case frac > 0.975:
		frac = 0.975
	}

	remaining := estimate - hb.Elapsed().Seconds()
	if remaining < 1 {
		remaining = 1
	}
	return frac, int(math.Round(remaining))
}
