package procmgr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoffDoublesUpToCap(t *testing.T) {
	b := newBackoffState()
	require.Equal(t, backoffInitial, b.nextDelay())

	now := time.Now()
	for i := 0; i < 10; i++ {
		b.recordCrash(now)
	}
	require.Equal(t, backoffCap, b.nextDelay())
}

func TestBackoffFailsAfterFiveConsecutive(t *testing.T) {
	b := newBackoffState()
	now := time.Now()
	for i := 0; i < maxConsecutiveFailures-1; i++ {
		b.recordCrash(now)
		require.False(t, b.failed())
	}
	b.recordCrash(now)
	require.True(t, b.failed())
}

func TestBackoffResetsAfterCleanRun(t *testing.T) {
	b := newBackoffState()
	start := time.Now()
	b.markStarted(start)
	b.recordCrash(start)
	b.recordCrash(start)
	require.Greater(t, b.nextDelay(), backoffInitial)

	b.markStarted(start)
	clean := start.Add(2 * cleanRunThreshold)
	b.recordCrash(clean)
	require.Equal(t, 1, b.consecutiveFailures)
	require.Equal(t, backoffInitial, b.nextDelay())
}
