package audio

import "math"

// beatTracker is an onset detector feeding a simple tempo tracker. It keeps
// an exponential beat-energy envelope (fast attack, slow decay) and fires a
// beat whenever the current onset strength exceeds a rolling threshold by a
// margin, then derives BPM from the interval between fired beats.
type beatTracker struct {
	attack float32
	decay  float32

	envelope   float32
	prevEnergy float32
	threshold  float32

	lastBeatBlocks int // blocks elapsed since the last beat
	blockDuration  float64
	bpm            float32
	confidence     float32
	started        bool

	intervalHistory []float64
}

func newBeatTracker(blockDuration float64) *beatTracker {
	return &beatTracker{
		attack:         0.6,
		decay:          0.05,
		blockDuration:  blockDuration,
		lastBeatBlocks: 1 << 30,
	}
}

// Update feeds the current block's broadband energy and returns whether a
// beat fired this block, along with the updated beat-energy envelope.
func (b *beatTracker) Update(energy float32) (beat bool, beatEnergy float32) {
	if !b.started {
		b.started = true
		b.prevEnergy = energy
		return false, 0
	}

	onset := energy - b.prevEnergy
	if onset < 0 {
		onset = 0
	}
	b.prevEnergy = energy

	if onset > b.envelope {
		b.envelope += (onset - b.envelope) * b.attack
	} else {
		b.envelope -= b.envelope * b.decay
	}

	// Adaptive threshold: a fraction above the running envelope average,
	// floored so near-silence never "beats" on noise.
	b.threshold = b.threshold*0.95 + b.envelope*0.05
	minGapBlocks := 5 // refractory period, avoids double-triggering one transient

	b.lastBeatBlocks++
	if onset > b.threshold*1.4+0.02 && b.lastBeatBlocks >= minGapBlocks {
		beat = true
		b.recordBeat()
		b.lastBeatBlocks = 0
	}
	return beat, clamp01(b.envelope)
}

func (b *beatTracker) recordBeat() {
	if b.lastBeatBlocks >= 1<<30 {
		// First beat: there is no previous beat to measure an interval from.
		return
	}
	intervalSeconds := float64(b.lastBeatBlocks) * b.blockDuration
	if intervalSeconds <= 0 {
		return
	}
	b.intervalHistory = append(b.intervalHistory, intervalSeconds)
	if len(b.intervalHistory) > 8 {
		b.intervalHistory = b.intervalHistory[1:]
	}

	mean, variance := meanAndVariance(b.intervalHistory)
	if mean <= 0 {
		return
	}
	b.bpm = float32(60.0 / mean)

	// Confidence drops as the interval history gets noisier relative to its
	// mean; a single sample is reported with low confidence.
	if len(b.intervalHistory) < 2 {
		b.confidence = 0.2
		return
	}
	cv := math.Sqrt(variance) / mean // coefficient of variation
	b.confidence = clamp01(float32(1 - cv))
}

// BPM returns the current smoothed tempo estimate and its confidence.
func (b *beatTracker) BPM() (bpm, confidence float32) {
	return b.bpm, b.confidence
}

func meanAndVariance(xs []float64) (mean, variance float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs))
	return mean, variance
}
