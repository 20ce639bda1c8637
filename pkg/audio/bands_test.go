package audio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBandEnergiesClampedToUnitRange(t *testing.T) {
	magnitude := make([]float32, 256)
	for i := range magnitude {
		magnitude[i] = 5.0 // deliberately out of [0,1] range pre-clamp
	}
	bands := bandEnergies(magnitude, 44100, 512)
	for _, b := range bands {
		require.GreaterOrEqual(t, b, float32(0))
		require.LessOrEqual(t, b, float32(1))
	}
}

func TestLinearSpectrum32NormalizesToLoudestBin(t *testing.T) {
	magnitude := make([]float32, 256)
	magnitude[10] = 10
	out := linearSpectrum32(magnitude)
	require.Len(t, out, 32)

	var maxVal float32
	for _, v := range out {
		if v > maxVal {
			maxVal = v
		}
	}
	require.InDelta(t, 1.0, maxVal, 1e-6)
}

func TestSpectralDescriptorsZeroFluxOnIdenticalFrames(t *testing.T) {
	magnitude := []float32{1, 2, 3, 4}
	_, _, flux := spectralDescriptors(magnitude, magnitude, 44100, 512)
	require.InDelta(t, 0, flux, 1e-6)
}

func TestSpectralDescriptorsNonZeroFluxOnChange(t *testing.T) {
	a := []float32{1, 1, 1, 1}
	b := []float32{5, 5, 5, 5}
	_, _, flux := spectralDescriptors(b, a, 44100, 512)
	require.Greater(t, flux, float32(0))
}

func TestRMSAndPeakOfSilence(t *testing.T) {
	samples := make([]float32, 512)
	rms, peak := rmsAndPeak(samples)
	require.Equal(t, float32(0), rms)
	require.Equal(t, float32(0), peak)
}

func TestRMSAndPeakOfFullScaleSquareWave(t *testing.T) {
	samples := make([]float32, 4)
	samples[0], samples[1], samples[2], samples[3] = 1, -1, 1, -1
	rms, peak := rmsAndPeak(samples)
	require.InDelta(t, 1.0, rms, 1e-6)
	require.InDelta(t, 1.0, peak, 1e-6)
}
