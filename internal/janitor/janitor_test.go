package janitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"cobblepod/internal/config"
	"cobblepod/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJanitor(t *testing.T) (*Janitor, *config.Config) {
	t.Helper()
	cfg := &config.Config{
		Root:                  t.TempDir(),
		JanitorIdleDays:       1,
		JanitorIntervalHours:  24,
		StuckThresholdSeconds: 600,
	}
	for _, dir := range cfg.Dirs() {
		require.NoError(t, os.MkdirAll(dir, 0o755))
	}
	return New(cfg), cfg
}

func writeAged(t *testing.T, path string, age time.Duration) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	mtime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestSweepRemovesIdleUser(t *testing.T) {
	j, cfg := testJanitor(t)
	writeAged(t, filepath.Join(cfg.InDir(), "alice", "talk.mp3"), 48*time.Hour)

	j.Sweep()

	_, err := os.Stat(filepath.Join(cfg.InDir(), "alice"))
	assert.True(t, os.IsNotExist(err))
}

func TestSweepSkipsUserHeldByAdvisoryLock(t *testing.T) {
	j, cfg := testJanitor(t)
	writeAged(t, filepath.Join(cfg.InDir(), "alice", "talk.mp3"), 48*time.Hour)

	lockPath := filepath.Join(cfg.InDir(), "alice", ".lock")
	require.NoError(t, os.MkdirAll(filepath.Dir(lockPath), 0o755))
	lock, err := worker.Acquire(lockPath)
	require.NoError(t, err)
	defer lock.Release()

	j.Sweep()

	_, statErr := os.Stat(filepath.Join(cfg.InDir(), "alice", "talk.mp3"))
	assert.NoError(t, statErr, "a directory held by another lock holder must survive the sweep")
}

func TestSweepKeepsActiveUser(t *testing.T) {
	j, cfg := testJanitor(t)
	writeAged(t, filepath.Join(cfg.InDir(), "alice", "talk.mp3"), time.Minute)

	j.Sweep()

	_, err := os.Stat(filepath.Join(cfg.InDir(), "alice", "talk.mp3"))
	assert.NoError(t, err)
}
