package procmgr

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
workers:
  - name: example-worker
    executable: /bin/true
    auto_restart: true
  - name: audio-analyzer
    executable: /bin/true
    command_addr: 127.0.0.1:0
`), 0o644))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	require.Len(t, m.Workers, 2)
	require.Equal(t, "example-worker", m.Workers[0].Name)
	require.True(t, m.Workers[0].AutoRestart)
}

func TestLoadManifestRejectsMissingExecutable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
workers:
  - name: broken
`), 0o644))

	_, err := LoadManifest(path)
	require.Error(t, err)
}
