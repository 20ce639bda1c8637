package audio

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/abossard/vjbus/pkg/log"
)

// watchdog monitors the capture thread's last-block timestamp on a ticker,
// restarting capture after a silence timeout and declaring the analyzer
// crashed after too many consecutive restarts. The ticker-driven
// monitor/cancel shape mirrors how the process corpus's own health monitor
// periodically re-syncs and tears down per-target watchers.
type watchdog struct {
	lastBlockNanos int64 // atomic

	silenceTimeout time.Duration
	maxRestarts    int

	mu               sync.Mutex
	consecutiveFails int
	stopCh           chan struct{}
	stopOnce         sync.Once

	onRestart func()
	onCrashed func()
}

func newWatchdog(silenceTimeout time.Duration, maxRestarts int, onRestart, onCrashed func()) *watchdog {
	w := &watchdog{
		silenceTimeout: silenceTimeout,
		maxRestarts:    maxRestarts,
		stopCh:         make(chan struct{}),
		onRestart:      onRestart,
		onCrashed:      onCrashed,
	}
	w.touch()
	return w
}

// touch records that a block was just delivered; call this from the
// capture callback on every block.
func (w *watchdog) touch() {
	atomic.StoreInt64(&w.lastBlockNanos, time.Now().UnixNano())
}

// resetFailures clears the consecutive-restart counter; call after a
// capture restart has reopened the source successfully.
func (w *watchdog) resetFailures() {
	w.mu.Lock()
	w.consecutiveFails = 0
	w.mu.Unlock()
}

// Run blocks, polling for silence every quarter of the timeout, until Stop
// is called. Intended to run in its own goroutine.
func (w *watchdog) Run() {
	interval := w.silenceTimeout / 4
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.checkSilence()
		case <-w.stopCh:
			return
		}
	}
}

func (w *watchdog) checkSilence() {
	last := time.Unix(0, atomic.LoadInt64(&w.lastBlockNanos))
	if time.Since(last) < w.silenceTimeout {
		return
	}

	w.mu.Lock()
	w.consecutiveFails++
	fails := w.consecutiveFails
	w.mu.Unlock()

	log.Logger.Warn().Int("consecutive_failures", fails).Msg("audio: capture silence detected")

	if fails >= w.maxRestarts {
		if w.onCrashed != nil {
			w.onCrashed()
		}
		return
	}
	w.touch() // avoid re-firing every tick while the restart is in flight
	if w.onRestart != nil {
		w.onRestart()
	}
}

// Stop ends the monitor loop.
func (w *watchdog) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}
