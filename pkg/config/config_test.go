package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWhenNoFileOrEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("VJ_STATE_DIR", filepath.Join(dir, "state"))
	t.Setenv("VJ_LOG_DIR", filepath.Join(dir, "log"))

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, time.Second, cfg.HeartbeatInterval)
	require.Equal(t, "info", cfg.LogLevel)

	_, err = os.Stat(cfg.StateDir)
	require.NoError(t, err)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vjbus.yaml"), []byte("log_level: debug\n"), 0o644))
	t.Setenv("VJ_STATE_DIR", filepath.Join(dir, "state"))
	t.Setenv("VJ_LOG_DIR", filepath.Join(dir, "log"))
	t.Setenv("VJ_LOG_LEVEL", "error")

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "error", cfg.LogLevel)
}

func TestWorkerConfigReadsPerWorkerEnvVar(t *testing.T) {
	t.Setenv("VJ_AUDIO_ANALYZER_CONFIG", "/etc/vjbus/audio-analyzer.yaml")
	require.Equal(t, "/etc/vjbus/audio-analyzer.yaml", WorkerConfig("audio-analyzer"))
	require.Equal(t, "", WorkerConfig("unset-worker"))
}
