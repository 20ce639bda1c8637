package audio

import "math"

// bandEdgesHz are the upper edges of the eight perceptual bands: sub-bass,
// bass, low-mid, mid, high-mid, presence, air, and the implicit "overall"
// aggregate that is computed separately.
var bandEdgesHz = [7]float64{60, 250, 500, 2000, 4000, 6000, 20000}

// bandEnergies buckets a linear magnitude spectrum into the eight
// perceptual bands (seven frequency bands plus an overall level taken as
// the mean magnitude of all bins), each scaled to roughly [0,1] for
// UI/visual consumption.
func bandEnergies(magnitude []float32, sampleRate, fftSize int) [8]float32 {
	var bands [8]float32
	var counts [7]int
	binHz := float64(sampleRate) / float64(fftSize)

	for i, mag := range magnitude {
		freq := float64(i) * binHz
		band := bandIndex(freq)
		bands[band] += mag
		counts[band]++
	}
	for i := 0; i < 7; i++ {
		if counts[i] > 0 {
			bands[i] = clamp01(bands[i] / float32(counts[i]))
		}
	}

	var sum float32
	for _, mag := range magnitude {
		sum += mag
	}
	if len(magnitude) > 0 {
		bands[7] = clamp01(sum / float32(len(magnitude)))
	}
	return bands
}

func bandIndex(freq float64) int {
	for i, edge := range bandEdgesHz {
		if freq < edge {
			return i
		}
	}
	return 6
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// linearSpectrum32 downsamples (or pads) an arbitrary-length magnitude
// spectrum into exactly 32 bins, normalized to [0,1] by the loudest bin in
// the current frame, for the legacy UI bar display.
func linearSpectrum32(magnitude []float32) [32]float32 {
	var out [32]float32
	if len(magnitude) == 0 {
		return out
	}

	binsPerBucket := float64(len(magnitude)) / 32
	var maxVal float32
	for b := 0; b < 32; b++ {
		start := int(float64(b) * binsPerBucket)
		end := int(float64(b+1) * binsPerBucket)
		if end <= start {
			end = start + 1
		}
		if end > len(magnitude) {
			end = len(magnitude)
		}
		var sum float32
		var n int
		for i := start; i < end; i++ {
			sum += magnitude[i]
			n++
		}
		if n > 0 {
			out[b] = sum / float32(n)
		}
		if out[b] > maxVal {
			maxVal = out[b]
		}
	}
	if maxVal > 0 {
		for b := range out {
			out[b] = clamp01(out[b] / maxVal)
		}
	}
	return out
}

// spectralDescriptors computes centroid (normalized to [0,1] of Nyquist),
// rolloff frequency (the frequency below which 85% of spectral energy is
// contained), and flux (L2 distance from the previous frame's magnitudes).
func spectralDescriptors(magnitude, prevMagnitude []float32, sampleRate, fftSize int) (centroid, rolloffHz, flux float32) {
	binHz := float64(sampleRate) / float64(fftSize)

	var weightedSum, totalEnergy float64
	for i, mag := range magnitude {
		freq := float64(i) * binHz
		weightedSum += freq * float64(mag)
		totalEnergy += float64(mag)
	}
	if totalEnergy > 0 {
		nyquist := float64(sampleRate) / 2
		centroid = float32(clampFloat64((weightedSum/totalEnergy)/nyquist, 0, 1))
	}

	threshold := totalEnergy * 0.85
	var cumulative float64
	for i, mag := range magnitude {
		cumulative += float64(mag)
		if cumulative >= threshold {
			rolloffHz = float32(float64(i) * binHz)
			break
		}
	}

	if prevMagnitude != nil {
		var sumSq float64
		n := len(magnitude)
		if len(prevMagnitude) < n {
			n = len(prevMagnitude)
		}
		for i := 0; i < n; i++ {
			d := float64(magnitude[i]) - float64(prevMagnitude[i])
			sumSq += d * d
		}
		flux = float32(math.Sqrt(sumSq))
	}
	return centroid, rolloffHz, flux
}

func clampFloat64(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// rmsAndPeak computes the RMS and absolute peak of a mono block, both scaled to
// [0,1] assuming samples already lie in [-1,1].
func rmsAndPeak(samples []float32) (rms, peak float32) {
	if len(samples) == 0 {
		return 0, 0
	}
	var sumSq float64
	for _, s := range samples {
		v := float64(s)
		sumSq += v * v
		if a := float32(math.Abs(v)); a > peak {
			peak = a
		}
	}
	rms = clamp01(float32(math.Sqrt(sumSq / float64(len(samples)))))
	peak = clamp01(peak)
	return rms, peak
}
