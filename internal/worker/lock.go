package worker

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Lock is an exclusive, advisory file lock. The worker process holds one
// on worker/.lock for its entire run, guaranteeing only one worker
// process runs against a ROOT at a time (two workers racing the inbox
// would double-claim jobs). The janitor acquires the same kind of lock
// scoped per user (in/<user>/.lock) as a narrower, short-lived
// idleness double-check before deleting that user's directories.
type Lock struct {
	file *os.File
}

// Acquire opens (creating if necessary) the lock file and takes an
// exclusive, non-blocking flock on it. It returns an error immediately if
// another process already holds the lock instead of blocking, since a
// second worker instance should fail fast rather than queue up silently.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("another worker already holds %s: %w", path, err)
	}

	return &Lock{file: f}, nil
}

// Release drops the flock and closes the underlying file.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		return fmt.Errorf("unlock: %w", err)
	}
	return l.file.Close()
}
