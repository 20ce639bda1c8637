package audio

import (
	"context"
	"sync"
	"time"

	"github.com/abossard/vjbus/pkg/envelope"
	"github.com/abossard/vjbus/pkg/log"
	"github.com/abossard/vjbus/pkg/osc"
	"github.com/abossard/vjbus/pkg/workerrt"
)

const ringCapacityBlocks = 4

// Analyzer runs the capture/analysis/publish pipeline described for the
// audio worker: one capture thread filling a lock-free ring buffer, one
// analysis goroutine draining it and computing features, and a publish
// step that fans each block's features out to both the envelope telemetry
// stream and the legacy OSC bridge.
type Analyzer struct {
	cfg    Config
	source Source
	rt     *workerrt.Runtime
	oscOut *osc.Client

	ring *ringBuffer

	fftSize int
	window  []float32
	plan    *fftPlan

	beats     *beatTracker
	structure *structureDetector
	pitch     *pitchDetector

	prevMagnitude []float32
	degraded      bool
	degradedOnce  sync.Once

	dog *watchdog

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	deviceMu      sync.Mutex
	currentDevice DeviceInfo
}

// NewAnalyzer wires a Source, the Worker Runtime used to publish telemetry
// and events, and an OSC client for the legacy bridge into a ready-to-run
// Analyzer. Call Start to begin capture.
func NewAnalyzer(cfg Config, source Source, rt *workerrt.Runtime, oscOut *osc.Client) *Analyzer {
	fftSize := nextPow2(cfg.BlockSize)
	a := &Analyzer{
		cfg:       cfg,
		source:    source,
		rt:        rt,
		oscOut:    oscOut,
		ring:      newRingBuffer(ringCapacityBlocks, cfg.BlockSize),
		fftSize:   fftSize,
		window:    hannWindow(cfg.BlockSize),
		plan:      newFFTPlan(fftSize),
		beats:     newBeatTracker(float64(cfg.BlockSize) / float64(cfg.SampleRate)),
		structure: newStructureDetector(32),
		pitch:     newPitchDetector(cfg.SampleRate),
		stopCh:    make(chan struct{}),
	}
	return a
}

// Start selects a device, begins capture, and launches the analysis and
// watchdog goroutines. It returns once the device is selected and capture
// has been asked to start; analysis continues in the background until
// Stop is called.
func (a *Analyzer) Start(ctx context.Context) error {
	devices, err := a.source.ListDevices()
	if err != nil {
		return err
	}
	device, err := SelectDevice(devices, a.cfg)
	if err != nil {
		return err
	}
	a.deviceMu.Lock()
	a.currentDevice = device
	a.deviceMu.Unlock()

	a.rt.PublishEvent(envelope.LevelInfo, "device_selected", map[string]interface{}{
		"index": device.Index,
		"name":  device.Name,
	})

	a.dog = newWatchdog(a.cfg.SilenceTimeout, a.cfg.MaxConsecutiveRestarts, a.restartCapture, a.crashed)

	if err := a.source.Open(device.Index, a.cfg, a.onBlock); err != nil {
		return err
	}

	a.wg.Add(2)
	go a.analysisLoop(ctx)
	go func() {
		defer a.wg.Done()
		a.dog.Run()
	}()

	return nil
}

// onBlock is the capture callback: it touches the watchdog and pushes the
// block onto the ring buffer. It must not allocate or block.
func (a *Analyzer) onBlock(samples []float32) {
	a.dog.touch()
	a.ring.Push(samples)
}

func (a *Analyzer) restartCapture() {
	log.Logger.Warn().Msg("audio: restarting capture after silence")
	_ = a.source.Close()

	a.deviceMu.Lock()
	idx := a.currentDevice.Index
	a.deviceMu.Unlock()

	if err := a.source.Open(idx, a.cfg, a.onBlock); err != nil {
		a.deviceFallback()
		return
	}
	a.dog.resetFailures()
}

// deviceFallback is invoked when the previously selected device vanished;
// it retries against the system default and emits the compatibility event.
func (a *Analyzer) deviceFallback() {
	devices, err := a.source.ListDevices()
	if err != nil {
		return
	}
	fallbackCfg := a.cfg
	fallbackCfg.DeviceIndex = -1
	fallbackCfg.PreferredName = ""
	device, err := SelectDevice(devices, fallbackCfg)
	if err != nil {
		return
	}

	a.deviceMu.Lock()
	a.currentDevice = device
	a.deviceMu.Unlock()

	a.rt.PublishEvent(envelope.LevelWarning, "device_changed", map[string]interface{}{
		"index": device.Index,
		"name":  device.Name,
	})
	if err := a.source.Open(device.Index, a.cfg, a.onBlock); err == nil {
		a.dog.resetFailures()
	}
}

func (a *Analyzer) crashed() {
	a.rt.PublishEvent(envelope.LevelError, "audio_stalled", nil)
	_ = a.rt.MarkCrashed()
}

// analysisLoop drains the ring buffer and runs the full feature pipeline
// once per block. It is the single consumer side of the SPSC ring buffer.
func (a *Analyzer) analysisLoop(ctx context.Context) {
	defer a.wg.Done()
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	magnitude := make([]float32, a.fftSize/2)
	windowed := make([]float32, a.fftSize)

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stopCh:
			return
		case <-ticker.C:
			for {
				block, ok := a.ring.Pop()
				if !ok {
					break
				}
				a.processBlock(block, windowed, magnitude)
			}
		}
	}
}

func (a *Analyzer) processBlock(block, windowed, magnitude []float32) {
	defer func() {
		if r := recover(); r != nil {
			log.Logger.Warn().Interface("panic", r).Msg("audio: feature extraction failed, skipping frame")
		}
	}()

	for i := range windowed {
		if i < len(block) && i < len(a.window) {
			windowed[i] = block[i] * a.window[i]
		} else {
			windowed[i] = 0
		}
	}
	a.plan.Magnitude(windowed, magnitude)

	rms, peak := rmsAndPeak(block)
	bands := bandEnergies(magnitude, a.cfg.SampleRate, a.fftSize)
	spectrum := linearSpectrum32(magnitude)
	centroid, rolloffHz, flux := spectralDescriptors(magnitude, a.prevMagnitude, a.cfg.SampleRate, a.fftSize)

	if a.prevMagnitude == nil {
		a.prevMagnitude = make([]float32, len(magnitude))
	}
	copy(a.prevMagnitude, magnitude)

	beatFlag, beatEnergy := a.beats.Update(bands[7])
	bpm, bpmConfidence := a.beats.BPM()

	var buildup, drop bool
	var trend, dynamicComplexity float32
	if a.cfg.EnableStructure {
		buildup, drop, trend, dynamicComplexity = a.structure.Update(bands[7], flux)
	}

	var pitchHz, pitchConfidence float32
	if a.cfg.EnablePitch {
		pitchHz, pitchConfidence = a.pitch.Detect(block)
	} else {
		a.noteDegradedOnce()
	}

	features := osc.Features{
		Levels:            bands,
		Spectrum:          spectrum,
		BeatFlag:          beatFlag,
		BeatEnergy:        beatEnergy,
		BassBeat:          bands[1] * beatEnergy,
		MidBeat:           bands[3] * beatEnergy,
		HighBeat:          bands[5] * beatEnergy,
		BPM:               bpm,
		BPMConfidence:     bpmConfidence,
		PitchHz:           pitchHz,
		PitchConfidence:   pitchConfidence,
		SpectralCentroid:  centroid,
		RolloffHz:         rolloffHz,
		Flux:              flux,
		Buildup:           buildup,
		Drop:              drop,
		Trend:             trend,
		Brightness:        centroid,
		Noisiness:         clamp01(flux / 10),
		DynamicComplexity: dynamicComplexity,
	}

	if a.oscOut != nil {
		osc.Publish(a.oscOut, features)
	}

	a.rt.PublishTelemetry("features", map[string]interface{}{
		"rms":                rms,
		"peak":               peak,
		"levels":             bands,
		"spectrum":           spectrum,
		"beat":               beatFlag,
		"beat_energy":        beatEnergy,
		"bpm":                bpm,
		"bpm_confidence":     bpmConfidence,
		"pitch_hz":           pitchHz,
		"pitch_confidence":   pitchConfidence,
		"centroid":           centroid,
		"rolloff_hz":         rolloffHz,
		"flux":               flux,
		"buildup":            buildup,
		"drop":               drop,
		"trend":              trend,
		"dynamic_complexity": dynamicComplexity,
		"overruns":           a.ring.Overruns(),
	})
}

func (a *Analyzer) noteDegradedOnce() {
	a.degradedOnce.Do(func() {
		a.degraded = true
		a.rt.PublishEvent(envelope.LevelWarning, "degraded_mode", nil)
	})
}

// Stop halts the analysis loop, watchdog, and capture source.
func (a *Analyzer) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopCh)
		if a.dog != nil {
			a.dog.Stop()
		}
		_ = a.source.Close()
	})
	a.wg.Wait()
}
