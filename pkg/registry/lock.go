package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// dirLock is an advisory exclusive lock held over a single file inside the
// registry directory for the duration of a write. Readers (Discover) never
// take this lock; only single-record writers contend on it, and only for
// as long as it takes to rename the new file into place.
type dirLock struct {
	f *os.File
}

// lockFor acquires the directory-level advisory lock used to serialize
// writers. One lock file covers the whole registry directory: the spec
// requires only a single writer per record, and a directory-wide lock is
// simpler to reason about than per-worker locks while writes are this
// infrequent (heartbeats, not data-plane traffic).
func lockFor(dir string) (*dirLock, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	lockPath := filepath.Join(dir, "registry", ".lock")
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("registry: open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("registry: flock: %w", err)
	}
	return &dirLock{f: f}, nil
}

func (l *dirLock) unlock() {
	syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	l.f.Close()
}
