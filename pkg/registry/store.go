package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
)

// Store is the file-backed registry rooted at a state directory. The zero
// value is not usable; construct with Open.
type Store struct {
	dir string
}

// Open returns a Store rooted at stateDir, creating <stateDir>/registry if
// it does not already exist.
func Open(stateDir string) (*Store, error) {
	if err := ensureDir(stateDir); err != nil {
		return nil, fmt.Errorf("registry: open: %w", err)
	}
	return &Store{dir: stateDir}, nil
}

func (s *Store) writeEntry(e *Entry) error {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("registry: marshal entry: %w", err)
	}
	pf, err := renameio.NewPendingFile(path(s.dir, e.Worker))
	if err != nil {
		return fmt.Errorf("registry: create pending file: %w", err)
	}
	defer pf.Cleanup()

	if _, err := pf.Write(data); err != nil {
		return fmt.Errorf("registry: write pending file: %w", err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("registry: atomic replace: %w", err)
	}
	return nil
}

// Register creates or replaces a worker's registry entry under the
// directory lock, so a concurrent Register/Heartbeat/Unregister for a
// different worker cannot interleave a half-written file. Replacing an
// existing entry preserves its generation unless the caller's is higher,
// so a stale restart racing a newer one can never regress the counter.
func (s *Store) Register(e *Entry) error {
	l, err := lockFor(s.dir)
	if err != nil {
		return err
	}
	defer l.unlock()

	if existing, err := s.readLocked(e.Worker); err == nil && existing.Generation > e.Generation {
		e.Generation = existing.Generation
	}

	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}
	if e.HeartbeatAt.IsZero() {
		e.HeartbeatAt = e.StartedAt
	}
	if e.Status == "" {
		e.Status = StatusStarting
	}
	return s.writeEntry(e)
}

// Heartbeat updates HeartbeatAt (and optionally Status) for an existing
// entry. It is idempotent: calling it with the same timestamp twice leaves
// the entry unchanged other than the write itself.
func (s *Store) Heartbeat(worker string, at time.Time, status Status) error {
	l, err := lockFor(s.dir)
	if err != nil {
		return err
	}
	defer l.unlock()

	e, err := s.readLocked(worker)
	if err != nil {
		return err
	}
	e.HeartbeatAt = at
	if status != "" {
		e.Status = status
	}
	return s.writeEntry(e)
}

// MarkCrashed flips an entry's status to crashed and leaves it in place for
// the Process Manager to observe and restart.
func (s *Store) MarkCrashed(worker string) error {
	l, err := lockFor(s.dir)
	if err != nil {
		return err
	}
	defer l.unlock()

	e, err := s.readLocked(worker)
	if err != nil {
		return err
	}
	e.Status = StatusCrashed
	return s.writeEntry(e)
}

// Unregister removes a worker's entry entirely. Called on a clean
// stopped-and-terminal exit; a crashed worker is left for the supervisor
// and never reaches this path on its own.
func (s *Store) Unregister(worker string) error {
	l, err := lockFor(s.dir)
	if err != nil {
		return err
	}
	defer l.unlock()

	if err := os.Remove(path(s.dir, worker)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("registry: unregister %q: %w", worker, err)
	}
	return nil
}

// Get returns a single worker's entry without taking the write lock;
// readers never block writers.
func (s *Store) Get(worker string) (*Entry, error) {
	data, err := os.ReadFile(path(s.dir, worker))
	if os.IsNotExist(err) {
		return nil, &NotFoundError{Worker: worker}
	}
	if err != nil {
		return nil, fmt.Errorf("registry: read %q: %w", worker, err)
	}
	return decodeEntry(data)
}

// Discover lists every worker entry in the directory. When includeStale is
// false, entries whose heartbeat exceeds 3x interval are omitted.
func (s *Store) Discover(interval time.Duration, includeStale bool) ([]*Entry, error) {
	dir := filepath.Join(s.dir, "registry")
	files, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("registry: readdir: %w", err)
	}

	now := time.Now()
	var out []*Entry
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			// A writer may be mid-rename; skip and pick it up next poll.
			continue
		}
		e, err := decodeEntry(data)
		if err != nil {
			continue
		}
		if !includeStale && e.IsStale(interval, now) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) readLocked(worker string) (*Entry, error) {
	data, err := os.ReadFile(path(s.dir, worker))
	if os.IsNotExist(err) {
		return nil, &NotFoundError{Worker: worker}
	}
	if err != nil {
		return nil, fmt.Errorf("registry: read %q: %w", worker, err)
	}
	return decodeEntry(data)
}
