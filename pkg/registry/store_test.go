package registry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegisterHeartbeatDiscover(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, s.Register(&Entry{
		Worker:      "example-worker",
		InstanceID:  "inst-1",
		Generation:  1,
		PID:         1234,
		StartedAt:   now,
		HeartbeatAt: now,
		Status:      StatusRunning,
	}))

	entries, err := s.Discover(time.Second, false)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "example-worker", entries[0].Worker)

	require.NoError(t, s.Heartbeat("example-worker", now.Add(500*time.Millisecond), ""))
	got, err := s.Get("example-worker")
	require.NoError(t, err)
	require.Equal(t, StatusRunning, got.Status)
}

func TestDiscoverExcludesStaleByDefault(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	stale := time.Now().Add(-10 * time.Second)
	require.NoError(t, s.Register(&Entry{
		Worker:      "stale-worker",
		InstanceID:  "inst-1",
		StartedAt:   stale,
		HeartbeatAt: stale,
		Status:      StatusRunning,
	}))

	entries, err := s.Discover(time.Second, false)
	require.NoError(t, err)
	require.Empty(t, entries)

	entries, err = s.Discover(time.Second, true)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestRegisterPreservesHigherGenerationOnReplacement(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, s.Register(&Entry{
		Worker:      "w",
		InstanceID:  "inst-1",
		Generation:  5,
		StartedAt:   now,
		HeartbeatAt: now,
		Status:      StatusRunning,
	}))

	// A replacement with a lower generation (e.g. a stale restart racing a
	// newer one) must not regress the stored generation.
	require.NoError(t, s.Register(&Entry{
		Worker:      "w",
		InstanceID:  "inst-2",
		Generation:  2,
		StartedAt:   now,
		HeartbeatAt: now,
		Status:      StatusStarting,
	}))
	got, err := s.Get("w")
	require.NoError(t, err)
	require.Equal(t, uint64(5), got.Generation)

	// A replacement with a higher generation still advances it.
	require.NoError(t, s.Register(&Entry{
		Worker:      "w",
		InstanceID:  "inst-3",
		Generation:  9,
		StartedAt:   now,
		HeartbeatAt: now,
		Status:      StatusStarting,
	}))
	got, err = s.Get("w")
	require.NoError(t, err)
	require.Equal(t, uint64(9), got.Generation)
}

func TestMarkCrashedAndUnregister(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, s.Register(&Entry{Worker: "w", InstanceID: "i1", Status: StatusRunning}))
	require.NoError(t, s.MarkCrashed("w"))

	got, err := s.Get("w")
	require.NoError(t, err)
	require.Equal(t, StatusCrashed, got.Status)

	require.NoError(t, s.Unregister("w"))
	_, err = s.Get("w")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

// Concurrent writers across many workers must never leave a torn (partially
// written or unparseable) entry behind.
func TestConcurrentWritersNoTornState(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	const workers = 8
	const rounds = 20

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("worker-%d", i)
			for r := 0; r < rounds; r++ {
				now := time.Now()
				err := s.Register(&Entry{
					Worker:      name,
					InstanceID:  fmt.Sprintf("inst-%d", r),
					Generation:  uint64(r),
					StartedAt:   now,
					HeartbeatAt: now,
					Status:      StatusRunning,
				})
				require.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	entries, err := s.Discover(time.Hour, true)
	require.NoError(t, err)
	require.Len(t, entries, workers)
	for _, e := range entries {
		require.NotEmpty(t, e.Worker)
		require.NotEmpty(t, e.InstanceID)
	}
}
