package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHannWindowEndpointsAreZero(t *testing.T) {
	w := hannWindow(8)
	require.InDelta(t, 0, w[0], 1e-6)
	require.InDelta(t, 0, w[len(w)-1], 1e-6)
}

func TestFFTMagnitudeFindsDominantBin(t *testing.T) {
	const n = 64
	const sampleRate = 64.0
	const toneHz = 8.0 // exact bin for a clean peak

	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(math.Sin(2 * math.Pi * toneHz * float64(i) / sampleRate))
	}

	plan := newFFTPlan(n)
	out := make([]float32, n/2)
	plan.Magnitude(samples, out)

	maxIdx := 0
	for i, v := range out {
		if v > out[maxIdx] {
			maxIdx = i
		}
	}
	require.Equal(t, int(toneHz), maxIdx)
}

func TestFFTInPlaceHandlesDCSignal(t *testing.T) {
	real := []float64{1, 1, 1, 1}
	imag := make([]float64, 4)
	fftInPlace(real, imag)
	// All energy in the DC bin for a constant signal.
	require.InDelta(t, 4, real[0], 1e-9)
	for i := 1; i < 4; i++ {
		require.InDelta(t, 0, real[i], 1e-9)
		require.InDelta(t, 0, imag[i], 1e-9)
	}
}

func TestNextPow2(t *testing.T) {
	require.Equal(t, 512, nextPow2(512))
	require.Equal(t, 512, nextPow2(500))
	require.Equal(t, 1, nextPow2(1))
}
