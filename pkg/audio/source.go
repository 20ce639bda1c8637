package audio

import (
	"fmt"
	"strings"
)

// DeviceInfo describes one enumerated input device, matching the
// index/name/channels/sample_rate tuple the legacy device picker printed.
type DeviceInfo struct {
	Index      int
	Name       string
	Channels   int
	SampleRate int
	IsDefault  bool
}

// Source is the capture backend abstraction. The real implementation wraps
// a system audio API; tests and the example pipeline use a synthetic
// generator so the analyzer's DSP path never needs a real sound card.
type Source interface {
	// ListDevices enumerates available input devices.
	ListDevices() ([]DeviceInfo, error)
	// Open starts capturing from the given device index at the configured
	// sample rate/block size/channel count. deliver is called once per
	// captured block with mono float32 samples of length cfg.BlockSize;
	// the slice is only valid for the duration of the call.
	Open(deviceIndex int, cfg Config, deliver func(samples []float32)) error
	// Close stops capture and releases the device.
	Close() error
}

// NotFoundError reports that no input device satisfies a selection request.
type NotFoundError struct {
	Query string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("audio: no input device matches %q", e.Query)
}

// SelectDevice implements the three-tier selection policy: explicit index,
// then preferred-name substring match, then the device the backend reports
// as the system default.
func SelectDevice(devices []DeviceInfo, cfg Config) (DeviceInfo, error) {
	if cfg.DeviceIndex >= 0 {
		for _, d := range devices {
			if d.Index == cfg.DeviceIndex {
				return d, nil
			}
		}
		return DeviceInfo{}, &NotFoundError{Query: fmt.Sprintf("index %d", cfg.DeviceIndex)}
	}

	if cfg.PreferredName != "" {
		needle := strings.ToLower(cfg.PreferredName)
		for _, d := range devices {
			if strings.Contains(strings.ToLower(d.Name), needle) {
				return d, nil
			}
		}
		return DeviceInfo{}, &NotFoundError{Query: cfg.PreferredName}
	}

	for _, d := range devices {
		if d.IsDefault {
			return d, nil
		}
	}
	if len(devices) > 0 {
		return devices[0], nil
	}
	return DeviceInfo{}, &NotFoundError{Query: "any input device"}
}
