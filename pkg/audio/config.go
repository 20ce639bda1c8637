package audio

import "time"

// Config mirrors the tunables the legacy Python analyzer exposed on its
// command line (sample rate, block size, feature toggles, OSC target) so an
// operator migrating a manifest only has to rename fields, not relearn them.
type Config struct {
	// DeviceIndex selects an explicit input device; -1 means "no preference".
	DeviceIndex int
	// PreferredName matches a substring of a device name (e.g. a loopback
	// device) when DeviceIndex is unset.
	PreferredName string

	SampleRate int
	BlockSize  int
	Channels   int

	EnablePitch     bool
	EnableStructure bool

	OSCHost string
	OSCPort int

	// SilenceTimeout is how long the watchdog waits for a fresh block before
	// restarting the capture thread.
	SilenceTimeout time.Duration
	// MaxConsecutiveRestarts is the number of consecutive silence timeouts
	// at which the worker transitions to crashed; each earlier timeout
	// restarts the capture thread.
	MaxConsecutiveRestarts int
}

// DefaultConfig matches the pipeline defaults named in the analyzer's
// real-time latency budget: 512 samples at 44.1kHz is ~11.6ms per block.
func DefaultConfig() Config {
	return Config{
		DeviceIndex:            -1,
		SampleRate:             44100,
		BlockSize:              512,
		Channels:               1,
		EnablePitch:            true,
		EnableStructure:        true,
		OSCHost:                "127.0.0.1",
		OSCPort:                9000,
		SilenceTimeout:         2 * time.Second,
		MaxConsecutiveRestarts: 3,
	}
}
