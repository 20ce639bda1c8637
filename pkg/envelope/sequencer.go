package envelope

import "sync/atomic"

// Sequencer assigns strictly monotonic sequence numbers for one worker
// instance. Zero is never issued; the first call returns 1. A Worker
// Runtime owns exactly one Sequencer per active instance_id.
type Sequencer struct {
	counter uint64
}

// NewSequencer returns a Sequencer starting fresh for a new instance.
func NewSequencer() *Sequencer {
	return &Sequencer{}
}

// Next returns the next sequence number. Safe for concurrent use by the
// command, event, and telemetry senders of the same instance.
func (s *Sequencer) Next() uint64 {
	return atomic.AddUint64(&s.counter, 1)
}

// Stamp assigns the next sequence number to e and returns it for
// convenience.
func (s *Sequencer) Stamp(e *Envelope) *Envelope {
	e.Sequence = s.Next()
	return e
}
