package jobstore

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"cobblepod/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) (*Store, *config.Config) {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{
		Root:                  root,
		StuckThresholdSeconds: 600,
	}
	s := New(cfg)
	require.NoError(t, s.EnsureDirs())
	return s, cfg
}

func writeFile(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestNextReturnsOldestAcrossUsers(t *testing.T) {
	s, cfg := testStore(t)

	now := time.Now()
	writeFile(t, filepath.Join(cfg.InDir(), "alice", "b.mp3"), now.Add(-1*time.Minute))
	writeFile(t, filepath.Join(cfg.InDir(), "bob", "a.mp3"), now.Add(-5*time.Minute))

	job, err := s.Next()
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "bob", job.UserID)
	assert.Equal(t, "a.mp3", job.Filename)
}

func TestNextSkipsConfigFiles(t *testing.T) {
	s, cfg := testStore(t)
	now := time.Now()
	writeFile(t, filepath.Join(cfg.InDir(), "alice", "hotwords.txt"), now.Add(-10*time.Minute))
	writeFile(t, filepath.Join(cfg.InDir(), "alice", "language.txt"), now.Add(-9*time.Minute))
	writeFile(t, filepath.Join(cfg.InDir(), "alice", "talk.mp3"), now.Add(-1*time.Minute))

	job, err := s.Next()
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "talk.mp3", job.Filename)
}

func TestNextSkipsAlreadyDelivered(t *testing.T) {
	s, cfg := testStore(t)
	now := time.Now()
	writeFile(t, filepath.Join(cfg.InDir(), "alice", "talk.mp3"), now)
	writeFile(t, filepath.Join(cfg.OutDir(), "alice", "talk.mp3.html"), now)

	job, err := s.Next()
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestClaimAndRelease(t *testing.T) {
	s, cfg := testStore(t)
	now := time.Now()
	writeFile(t, filepath.Join(cfg.InDir(), "alice", "talk.mp3"), now)

	job, err := s.Next()
	require.NoError(t, err)
	require.NotNil(t, job)

	require.NoError(t, s.Claim(job))

	// Claimed job should no longer be returned while marker is live.
	next, err := s.Next()
	require.NoError(t, err)
	assert.Nil(t, next)

	s.Release(job)
	next, err = s.Next()
	require.NoError(t, err)
	require.NotNil(t, next)
}

func TestNextFailsStuckJob(t *testing.T) {
	s, cfg := testStore(t)
	cfg.StuckThresholdSeconds = 1
	now := time.Now()
	writeFile(t, filepath.Join(cfg.InDir(), "alice", "talk.mp3"), now)

	job, err := s.Next()
	require.NoError(t, err)
	require.NotNil(t, job)
	require.NoError(t, s.Claim(job))

	// Backdate the marker past the stuck threshold.
	marker := job.Path + processingSuffix
	old := time.Now().Add(-time.Hour).Unix()
	require.NoError(t, os.WriteFile(marker, []byte(strconv.FormatInt(old, 10)), 0o644))

	next, err := s.Next()
	require.NoError(t, err)
	assert.Nil(t, next)

	errFile := filepath.Join(cfg.ErrorDir(), "alice", "talk.mp3")
	_, statErr := os.Stat(errFile)
	assert.NoError(t, statErr)
}

// ListQueued backs the frontend's queue view; it must never itself
// promote a stuck job to error — that write belongs to the worker's Next
// scan alone, or two concurrent frontend requests could race each other
// moving the same file.
func TestListQueuedNeverFailsStuckJob(t *testing.T) {
	s, cfg := testStore(t)
	cfg.StuckThresholdSeconds = 1
	now := time.Now()
	writeFile(t, filepath.Join(cfg.InDir(), "alice", "talk.mp3"), now)

	job, err := s.Next()
	require.NoError(t, err)
	require.NoError(t, s.Claim(job))

	old := time.Now().Add(-time.Hour).Unix()
	require.NoError(t, os.WriteFile(job.Path+processingSuffix, []byte(strconv.FormatInt(old, 10)), 0o644))

	queued, err := s.ListQueued("alice")
	require.NoError(t, err)
	assert.Empty(t, queued)

	errFile := filepath.Join(cfg.ErrorDir(), "alice", "talk.mp3")
	_, statErr := os.Stat(errFile)
	assert.True(t, os.IsNotExist(statErr), "ListQueued must not promote a stuck job to error")

	_, statErr = os.Stat(job.Path)
	assert.NoError(t, statErr, "stuck job's source file should remain untouched by a read-only scan")
}

func TestProgressReportsProcessingThenPostProcessing(t *testing.T) {
	s, cfg := testStore(t)
	now := time.Now()
	writeFile(t, filepath.Join(cfg.InDir(), "alice", "talk.mp3"), now)

	job, err := s.Next()
	require.NoError(t, err)
	require.NoError(t, s.Claim(job))

	// Heartbeat estimates 100s and started 40s ago: 40% through.
	hbName := "100_" + strconv.FormatInt(now.Add(-40*time.Second).Unix(), 10) + "_talk.mp3"
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.WorkerDir(), "alice"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.WorkerDir(), "alice", hbName), nil, 0o644))

	state, progress, remaining := s.Progress("alice", "talk.mp3")
	assert.Equal(t, StateProcessing, state)
	assert.InDelta(t, 0.4, progress, 0.01)
	assert.InDelta(t, 60, remaining, 1)

	// Backdate the heartbeat past 95% so it reports post-processing and
	// the progress fraction stays clamped below 1.
	os.Remove(filepath.Join(cfg.WorkerDir(), "alice", hbName))
	hbName = "100_" + strconv.FormatInt(now.Add(-99*time.Second).Unix(), 10) + "_talk.mp3"
	require.NoError(t, os.WriteFile(filepath.Join(cfg.WorkerDir(), "alice", hbName), nil, 0o644))

	state, progress, _ = s.Progress("alice", "talk.mp3")
	assert.Equal(t, StatePostProcessing, state)
	assert.LessOrEqual(t, progress, 0.975)
}
