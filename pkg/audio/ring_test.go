package audio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingBufferPushPopFIFO(t *testing.T) {
	r := newRingBuffer(4, 2)

	r.Push([]float32{1, 1})
	r.Push([]float32{2, 2})

	block, ok := r.Pop()
	require.True(t, ok)
	require.Equal(t, []float32{1, 1}, block)

	block, ok = r.Pop()
	require.True(t, ok)
	require.Equal(t, []float32{2, 2}, block)

	_, ok = r.Pop()
	require.False(t, ok)
}

func TestRingBufferDropsOldestOnOverrun(t *testing.T) {
	r := newRingBuffer(2, 1) // rounds up to capacity 2

	r.Push([]float32{1})
	r.Push([]float32{2})
	r.Push([]float32{3}) // buffer full -> drops block "1"

	require.Equal(t, uint64(1), r.Overruns())

	block, ok := r.Pop()
	require.True(t, ok)
	require.Equal(t, []float32{2}, block)

	block, ok = r.Pop()
	require.True(t, ok)
	require.Equal(t, []float32{3}, block)
}

func TestRingBufferCapacityRoundsUpToPowerOfTwo(t *testing.T) {
	r := newRingBuffer(5, 1)
	require.Equal(t, 8, len(r.slots))
}
