package audio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBeatTrackerFiresOnSharpTransient(t *testing.T) {
	bt := newBeatTracker(512.0 / 44100.0)

	var firedAt = -1
	energies := make([]float32, 40)
	for i := range energies {
		energies[i] = 0.01
	}
	energies[20] = 0.9 // sharp transient against a quiet floor

	for i, e := range energies {
		beat, _ := bt.Update(e)
		if beat && firedAt == -1 {
			firedAt = i
		}
	}
	require.Equal(t, 20, firedAt)
}

func TestBeatTrackerStaysQuietOnSteadyEnergy(t *testing.T) {
	bt := newBeatTracker(512.0 / 44100.0)
	for i := 0; i < 30; i++ {
		beat, _ := bt.Update(0.3)
		require.False(t, beat, "steady energy should not trigger a beat at block %d", i)
	}
}

func TestBeatTrackerEstimatesBPMFromRegularTransients(t *testing.T) {
	bt := newBeatTracker(512.0 / 44100.0)

	// Inject a transient every 10 blocks, several times, so interval history
	// converges on a stable period.
	for round := 0; round < 6; round++ {
		for i := 0; i < 10; i++ {
			energy := float32(0.01)
			if i == 0 {
				energy = 0.9
			}
			bt.Update(energy)
		}
	}

	bpm, confidence := bt.BPM()
	require.Greater(t, bpm, float32(0))
	require.Greater(t, confidence, float32(0))
}
