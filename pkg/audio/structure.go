package audio

import "math"

// structureDetector tracks a sliding window of broadband energy to flag
// buildups (a sustained rising trend) and drops (a sudden flux spike
// followed by high steady energy), plus a continuous trend scalar and a
// short-window dynamic-complexity measure.
type structureDetector struct {
	window    []float32
	windowCap int

	dropArmedAt int // window position where a high-flux spike was observed
	blocksSeen  int
}

func newStructureDetector(windowBlocks int) *structureDetector {
	return &structureDetector{windowCap: windowBlocks, dropArmedAt: -1}
}

// Update feeds the current block's broadband level and spectral flux and
// returns the structure features for this block.
func (s *structureDetector) Update(level, flux float32) (buildup, drop bool, trend, dynamicComplexity float32) {
	s.window = append(s.window, level)
	if len(s.window) > s.windowCap {
		s.window = s.window[1:]
	}
	s.blocksSeen++

	trend = windowTrend(s.window)
	buildup = trend > 0.15 && len(s.window) == s.windowCap

	const fluxSpikeThreshold = 0.35
	if flux > fluxSpikeThreshold {
		s.dropArmedAt = s.blocksSeen
	}
	if s.dropArmedAt >= 0 && s.blocksSeen-s.dropArmedAt <= 4 && s.blocksSeen-s.dropArmedAt > 0 {
		if level > 0.5 && flux < fluxSpikeThreshold {
			drop = true
			s.dropArmedAt = -1
		}
	}

	dynamicComplexity = clamp01(windowStdDev(s.window))
	return buildup, drop, clampFloat32(trend, -1, 1), dynamicComplexity
}

// windowTrend fits a simple least-squares slope across the window and
// normalizes it to roughly [-1,1] by the window's own amplitude range.
func windowTrend(window []float32) float32 {
	n := len(window)
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range window {
		x := float64(i)
		sumX += x
		sumY += float64(y)
		sumXY += x * float64(y)
		sumX2 += x * x
	}
	nf := float64(n)
	denom := nf*sumX2 - sumX*sumX
	if denom == 0 {
		return 0
	}
	slope := (nf*sumXY - sumX*sumY) / denom

	minV, maxV := window[0], window[0]
	for _, y := range window {
		if y < minV {
			minV = y
		}
		if y > maxV {
			maxV = y
		}
	}
	spread := float64(maxV - minV)
	if spread == 0 {
		return 0
	}
	normalized := slope * nf / spread
	return float32(clampFloat64(normalized, -1, 1))
}

func windowStdDev(window []float32) float32 {
	if len(window) == 0 {
		return 0
	}
	var mean float64
	for _, v := range window {
		mean += float64(v)
	}
	mean /= float64(len(window))
	var variance float64
	for _, v := range window {
		d := float64(v) - mean
		variance += d * d
	}
	variance /= float64(len(window))
	return float32(math.Sqrt(variance))
}

func clampFloat32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
