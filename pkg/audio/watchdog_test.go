package audio

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatchdogRestartsUntilMaxThenCrashes(t *testing.T) {
	var restarts, crashed int32
	w := newWatchdog(time.Second, 3, func() {
		atomic.AddInt32(&restarts, 1)
	}, func() {
		atomic.AddInt32(&crashed, 1)
	})

	// checkSilence touches lastBlockNanos on the restart path (to avoid
	// re-firing every tick while a restart is in flight), so back-date it
	// before each simulated tick to represent capture staying silent.
	backdate := func() {
		atomic.StoreInt64(&w.lastBlockNanos, time.Now().Add(-time.Hour).UnixNano())
	}

	backdate()
	w.checkSilence() // fails=1
	backdate()
	w.checkSilence() // fails=2
	backdate()
	w.checkSilence() // fails=3, reaches maxRestarts -> crashed, not restarted again

	require.Equal(t, int32(2), atomic.LoadInt32(&restarts))
	require.Equal(t, int32(1), atomic.LoadInt32(&crashed))
}

func TestWatchdogResetFailuresClearsCounter(t *testing.T) {
	w := newWatchdog(time.Second, 3, func() {}, func() {})
	w.mu.Lock()
	w.consecutiveFails = 2
	w.mu.Unlock()

	w.resetFailures()

	w.mu.Lock()
	defer w.mu.Unlock()
	require.Equal(t, 0, w.consecutiveFails)
}
