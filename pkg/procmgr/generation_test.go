package procmgr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerationMonotonicAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	gs1, err := OpenGenerationStore(dir)
	require.NoError(t, err)
	g1, err := gs1.Next("example-worker")
	require.NoError(t, err)
	require.Equal(t, uint64(1), g1)
	g2, err := gs1.Next("example-worker")
	require.NoError(t, err)
	require.Equal(t, uint64(2), g2)

	gs2, err := OpenGenerationStore(dir)
	require.NoError(t, err)
	require.Equal(t, uint64(2), gs2.Current("example-worker"))

	g3, err := gs2.Next("example-worker")
	require.NoError(t, err)
	require.Equal(t, uint64(3), g3)
}

func TestGenerationIndependentPerWorker(t *testing.T) {
	dir := t.TempDir()
	gs, err := OpenGenerationStore(dir)
	require.NoError(t, err)

	a, err := gs.Next("worker-a")
	require.NoError(t, err)
	b, err := gs.Next("worker-b")
	require.NoError(t, err)
	require.Equal(t, uint64(1), a)
	require.Equal(t, uint64(1), b)
}
