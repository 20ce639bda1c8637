// Package procmgr is the Process Manager: it supervises worker processes
// from a static manifest, assigns each launch a fresh instance_id and a
// generation number that is monotonic across Process Manager restarts, and
// restarts crashed children with exponential backoff.
package procmgr

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WorkerManifest describes one worker the Process Manager is responsible
// for launching and supervising.
type WorkerManifest struct {
	Name             string   `yaml:"name"`
	Executable       string   `yaml:"executable"`
	Args             []string `yaml:"args,omitempty"`
	Env              []string `yaml:"env,omitempty"`
	CommandAddr      string   `yaml:"command_addr"`
	EventAddr        string   `yaml:"event_addr"`
	TelemetryAddr    string   `yaml:"telemetry_addr"`
	AutoRestart      bool     `yaml:"auto_restart"`
	WorkingDirectory string   `yaml:"working_directory,omitempty"`
}

// Manifest is the full static manifest of workers the Process Manager
// starts and supervises.
type Manifest struct {
	Workers []WorkerManifest `yaml:"workers"`
}

// LoadManifest reads and parses a YAML manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("procmgr: read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("procmgr: parse manifest: %w", err)
	}
	for i := range m.Workers {
		if m.Workers[i].Name == "" {
			return nil, fmt.Errorf("procmgr: manifest entry %d missing name", i)
		}
		if m.Workers[i].Executable == "" {
			return nil, fmt.Errorf("procmgr: worker %q missing executable", m.Workers[i].Name)
		}
	}
	return &m, nil
}
