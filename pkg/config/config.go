// Package config loads the fleet-wide settings shared by every VJ Bus
// process (state directory, log directory, default heartbeat interval)
// plus each worker's own config block, following the same viper
// file-then-env precedence the transcode worker uses for its own config.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the process-wide settings every worker, the Process
// Manager, and the CLI need at startup.
type Config struct {
	StateDir          string        `mapstructure:"state_dir"`
	LogDir            string        `mapstructure:"log_dir"`
	ManifestPath      string        `mapstructure:"manifest_path"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	LogLevel          string        `mapstructure:"log_level"`
}

// Load reads configuration from a YAML file (if present at path or in the
// current/./config directories) and then environment variables, which take
// precedence. Env vars use the VJ_ prefix: VJ_STATE_DIR, VJ_LOG_DIR,
// VJ_MANIFEST_PATH, VJ_HEARTBEAT_INTERVAL, VJ_LOG_LEVEL.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("state_dir", defaultStateDir())
	v.SetDefault("log_dir", defaultLogDir())
	v.SetDefault("manifest_path", "/etc/vjbus/manifest.yaml")
	v.SetDefault("heartbeat_interval", "1s")
	v.SetDefault("log_level", "info")

	v.SetConfigName("vjbus")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	v.SetEnvPrefix("VJ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode into struct: %w", err)
	}

	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		return nil, fmt.Errorf("config: create state_dir %s: %w", cfg.StateDir, err)
	}
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("config: create log_dir %s: %w", cfg.LogDir, err)
	}

	return &cfg, nil
}

func defaultStateDir() string {
	if dir := os.Getenv("VJ_STATE_DIR"); dir != "" {
		return dir
	}
	return "/var/lib/vjbus"
}

func defaultLogDir() string {
	if dir := os.Getenv("VJ_LOG_DIR"); dir != "" {
		return dir
	}
	return "/var/log/vjbus"
}

// WorkerConfig reads a per-worker override block from the environment
// variable VJ_<WORKER>_CONFIG (worker name upper-cased, each
// non-alphanumeric character replaced by an underscore) and returns its
// value, expected to be a path to that worker's
// own YAML config file. An empty string means the worker has no override
// and should use its built-in defaults.
func WorkerConfig(worker string) string {
	key := "VJ_" + envSafe(worker) + "_CONFIG"
	return os.Getenv(key)
}

func envSafe(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}
