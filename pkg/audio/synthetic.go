package audio

import (
	"context"
	"math"
	"sync"
	"time"
)

// SyntheticSource is a deterministic, hardware-free capture backend used by
// tests and the bundled example pipeline. It generates a sine tone with an
// optional sharp transient injected at a caller-chosen block, which is what
// the beat-latency test uses to measure capture-to-publish delay without a
// real sound card.
type SyntheticSource struct {
	mu        sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	toneHz    float64
	transient int // block index at which to inject a transient, -1 = none
}

// NewSyntheticSource builds a generator tone at toneHz; a transient (a
// single loud impulse) is injected into block number transientBlock unless
// transientBlock is negative.
func NewSyntheticSource(toneHz float64, transientBlock int) *SyntheticSource {
	return &SyntheticSource{toneHz: toneHz, transient: transientBlock}
}

func (s *SyntheticSource) ListDevices() ([]DeviceInfo, error) {
	return []DeviceInfo{{Index: 0, Name: "synthetic", Channels: 1, SampleRate: 44100, IsDefault: true}}, nil
}

func (s *SyntheticSource) Open(_ int, cfg Config, deliver func(samples []float32)) error {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	blockDuration := time.Duration(float64(cfg.BlockSize) / float64(cfg.SampleRate) * float64(time.Second))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(blockDuration)
		defer ticker.Stop()

		var blockIndex int
		var phase float64
		phaseStep := 2 * math.Pi * s.toneHz / float64(cfg.SampleRate)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				samples := make([]float32, cfg.BlockSize)
				for i := range samples {
					samples[i] = float32(0.2 * math.Sin(phase))
					phase += phaseStep
				}
				if blockIndex == s.transient {
					samples[0] = 1.0
					samples[1] = -1.0
				}
				deliver(samples)
				blockIndex++
			}
		}
	}()
	return nil
}

func (s *SyntheticSource) Close() error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	return nil
}
