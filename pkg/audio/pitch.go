package audio

import "math"

// pitchDetector estimates the dominant fundamental frequency via
// normalized autocorrelation over the time-domain block, the standard
// lightweight pitch-tracking approach used when no native feature library
// (e.g. Essentia) is available. It is intentionally simple: the degraded
// mode falls back to omitting pitch entirely rather than trying to match a
// library-grade algorithm.
type pitchDetector struct {
	sampleRate int
	minHz      float64
	maxHz      float64
}

func newPitchDetector(sampleRate int) *pitchDetector {
	return &pitchDetector{sampleRate: sampleRate, minHz: 50, maxHz: 1000}
}

// Detect returns the estimated fundamental frequency in Hz and a confidence
// in [0,1] derived from the normalized autocorrelation peak strength.
func (p *pitchDetector) Detect(samples []float32) (hz, confidence float32) {
	minLag := int(float64(p.sampleRate) / p.maxHz)
	maxLag := int(float64(p.sampleRate) / p.minHz)
	if maxLag >= len(samples) {
		maxLag = len(samples) - 1
	}
	if minLag < 1 || maxLag <= minLag {
		return 0, 0
	}

	var energy float64
	for _, s := range samples {
		energy += float64(s) * float64(s)
	}
	if energy <= 1e-9 {
		return 0, 0
	}

	bestLag := -1
	var bestCorr float64
	for lag := minLag; lag <= maxLag; lag++ {
		var corr float64
		for i := 0; i+lag < len(samples); i++ {
			corr += float64(samples[i]) * float64(samples[i+lag])
		}
		if corr > bestCorr {
			bestCorr = corr
			bestLag = lag
		}
	}
	if bestLag <= 0 {
		return 0, 0
	}

	normalized := bestCorr / energy
	hz = float32(float64(p.sampleRate) / float64(bestLag))
	confidence = clamp01(float32(math.Max(0, normalized)))
	return hz, confidence
}
