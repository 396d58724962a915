package jobstore

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WaitForChange blocks until either a filesystem event fires under the
// user's worker directory, ctx is cancelled, or one second passes,
// whichever comes first. fsnotify is used purely as a latency
// optimization so a progress listener wakes up promptly when the worker
// writes or removes a heartbeat file; the one-second fallback is what
// actually guarantees correctness; this call must never block forever
// just because a watch failed to set up (e.g. the directory not existing
// yet), so setup errors are treated the same as "no event, fall through
// to the poll".
func (s *Store) WaitForChange(ctx context.Context, userID string) {
	timer := time.NewTimer(time.Second)
	defer timer.Stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		<-timer.C
		return
	}
	defer watcher.Close()

	dir := filepath.Join(s.cfg.WorkerDir(), userID)
	_ = watcher.Add(dir) // directory may not exist yet; that's fine, we still fall back to the poll

	select {
	case <-ctx.Done():
	case <-watcher.Events:
	case <-watcher.Errors:
	case <-timer.C:
	}
}
