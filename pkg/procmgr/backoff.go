package procmgr

import "time"

const (
	backoffInitial    = time.Second
	backoffCap        = 30 * time.Second
	cleanRunThreshold = 60 * time.Second
	maxConsecutiveFailures = 5
)

// backoffState tracks one worker's restart backoff. Reading and writing it
// is the supervisor goroutine's job only; it is not safe for concurrent use
// by multiple goroutines.
type backoffState struct {
	delay               time.Duration
	consecutiveFailures int
	lastStart           time.Time
}

func newBackoffState() *backoffState {
	return &backoffState{delay: backoffInitial}
}

// recordCrash advances the backoff after a child exits unexpectedly. If the
// prior run lasted at least cleanRunThreshold, the backoff and failure
// count reset, treating the crash as an isolated incident rather than a
// crash loop. The first crash of a run waits backoffInitial; each further
// consecutive crash doubles the delay, up to backoffCap.
func (b *backoffState) recordCrash(now time.Time) {
	if !b.lastStart.IsZero() && now.Sub(b.lastStart) >= cleanRunThreshold {
		b.delay = backoffInitial
		b.consecutiveFailures = 0
	}
	b.consecutiveFailures++
	if b.consecutiveFailures > 1 && b.delay < backoffCap {
		b.delay *= 2
		if b.delay > backoffCap {
			b.delay = backoffCap
		}
	}
}

// failed reports whether the worker has exceeded the consecutive failure
// budget and should stop being auto-restarted.
func (b *backoffState) failed() bool {
	return b.consecutiveFailures >= maxConsecutiveFailures
}

// nextDelay is the backoff to wait before the next restart attempt.
func (b *backoffState) nextDelay() time.Duration {
	return b.delay
}

func (b *backoffState) markStarted(now time.Time) {
	b.lastStart = now
}
