// Package workerrt is the Worker Runtime: the command, event, and telemetry
// channels every VJ Bus worker binds, plus the lifecycle state machine and
// heartbeat loop shared by all of them.
package workerrt

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abossard/vjbus/pkg/envelope"
	"github.com/abossard/vjbus/pkg/log"
	"github.com/abossard/vjbus/pkg/registry"
)

// Config configures a Runtime at construction.
type Config struct {
	Worker            string
	StateDir          string
	CommandAddr       string // e.g. "127.0.0.1:0"
	EventAddr         string // e.g. "127.0.0.1:0"
	TelemetryAddr     string // e.g. "127.0.0.1:0", UDP
	HeartbeatInterval time.Duration
	InitialConfig     map[string]interface{}
	RestartRequired   map[string]bool // config keys that require a restart to apply
}

// Runtime ties together one worker instance's lifecycle, registry entry,
// command server, event broker, and telemetry publisher. Exactly one
// Runtime exists per running worker process.
type Runtime struct {
	worker      string
	instanceID  string
	generation  uint64
	startedAt   time.Time
	seq         *envelope.Sequencer
	lifecycle   *Lifecycle
	events      *EventBroker
	telemetry   *TelemetryPublisher
	reg         *registry.Store
	cmdServer   *CommandServer
	cmdListener net.Listener
	evtServer   *EventServer

	heartbeatInterval time.Duration
	restartRequired   map[string]bool

	mu            sync.RWMutex
	config        map[string]interface{}
	configVersion string
	degraded      bool

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New constructs a Runtime for worker cfg.Worker with a freshly generated
// instance_id. generation must come from the caller (the Process Manager
// owns the generation counter persisted across restarts); a standalone
// worker not launched by the manager may pass 1.
func New(cfg Config, generation uint64) (*Runtime, error) {
	if cfg.Worker == "" {
		return nil, fmt.Errorf("workerrt: worker name required")
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = registry.DefaultHeartbeatInterval
	}

	reg, err := registry.Open(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("workerrt: open registry: %w", err)
	}

	rt := &Runtime{
		worker:            cfg.Worker,
		instanceID:        uuid.NewString(),
		generation:        generation,
		startedAt:         time.Now(),
		seq:               envelope.NewSequencer(),
		events:            NewEventBroker(128),
		reg:               reg,
		heartbeatInterval: cfg.HeartbeatInterval,
		restartRequired:   cfg.RestartRequired,
		config:            cfg.InitialConfig,
		stopCh:            make(chan struct{}),
	}
	rt.lifecycle = NewLifecycle(rt.onLifecycleChange)

	tel, err := NewTelemetryPublisher(cfg.TelemetryAddr)
	if err != nil {
		return nil, fmt.Errorf("workerrt: telemetry publisher: %w", err)
	}
	rt.telemetry = tel

	return rt, nil
}

// Worker returns the worker name.
func (rt *Runtime) Worker() string { return rt.worker }

// InstanceID returns this process's instance_id.
func (rt *Runtime) InstanceID() string { return rt.instanceID }

// Generation returns this process's generation number.
func (rt *Runtime) Generation() uint64 { return rt.generation }

// Lifecycle exposes the runtime's state machine.
func (rt *Runtime) Lifecycle() *Lifecycle { return rt.lifecycle }

// Events exposes the event broker for in-process subscribers (e.g. an SSE
// handler or the audio analyzer's own watchdog).
func (rt *Runtime) Events() *EventBroker { return rt.events }

// Telemetry exposes the UDP telemetry publisher.
func (rt *Runtime) Telemetry() *TelemetryPublisher { return rt.telemetry }

// BindCommandServer attaches domain command handlers and starts listening
// on addr (e.g. "127.0.0.1:0" to let the OS assign a port). It returns the
// bound address so the caller can register it in the Registry. Call once
// during startup, after New.
func (rt *Runtime) BindCommandServer(addr string, domainHandlers map[string]Handler) (string, error) {
	rt.cmdServer = NewCommandServer(rt, domainHandlers)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("workerrt: listen command channel: %w", err)
	}
	rt.cmdListener = ln

	httpSrv := &http.Server{
		Handler:      rt.cmdServer.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.WithInstance(rt.worker, rt.instanceID).Error().
				Str("err", err.Error()).Msg("command server stopped")
		}
	}()
	return ln.Addr().String(), nil
}

// BindEventServer starts the SSE event channel on addr and returns the
// bound address.
func (rt *Runtime) BindEventServer(addr string) (string, error) {
	rt.evtServer = NewEventServer(rt)
	return rt.evtServer.ListenAndServe(addr)
}

// Register writes this instance's registry entry as starting, then
// transitions the lifecycle to running. Call after all channels are bound
// so CommandEndpoint/EventEndpoint/TelemetryEndpoint are accurate.
func (rt *Runtime) Register(pid int, commandEndpoint, eventEndpoint, telemetryEndpoint string) error {
	entry := &registry.Entry{
		Worker:            rt.worker,
		InstanceID:        rt.instanceID,
		Generation:        rt.generation,
		PID:               pid,
		CommandEndpoint:   commandEndpoint,
		EventEndpoint:     eventEndpoint,
		TelemetryEndpoint: telemetryEndpoint,
		StartedAt:         rt.startedAt,
		HeartbeatAt:       rt.startedAt,
		Status:            registry.StatusStarting,
	}
	if err := rt.reg.Register(entry); err != nil {
		return fmt.Errorf("workerrt: register: %w", err)
	}
	return rt.lifecycle.Transition(StateRunning)
}

// RunHeartbeat blocks, sending a heartbeat envelope and refreshing the
// registry entry every heartbeatInterval, until ctx is cancelled or Stop is
// called. Intended to run in its own goroutine.
func (rt *Runtime) RunHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(rt.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rt.beat()
		case <-ctx.Done():
			return
		case <-rt.stopCh:
			return
		}
	}
}

func (rt *Runtime) beat() {
	status := registry.StatusRunning
	if rt.lifecycle.Current() == StateDraining {
		status = registry.StatusRunning
	}
	if err := rt.reg.Heartbeat(rt.worker, time.Now(), status); err != nil {
		log.Error("heartbeat: registry update failed: " + err.Error())
	}

	hb := envelope.HeartbeatPayload{
		UptimeSec: time.Since(rt.startedAt).Seconds(),
		Metrics:   rt.systemMetrics(),
	}
	env, err := envelope.New(envelope.TypeHeartbeat, rt.worker, rt.instanceID, rt.generation, hb)
	if err != nil {
		return
	}
	rt.seq.Stamp(env)
	rt.telemetry.PublishEnvelope(env)
}

// Config returns a snapshot of the current config map, as last set by
// InitialConfig or a set_config command. Domain code polls this to pick up
// hot-reloadable settings without a restart.
func (rt *Runtime) Config() map[string]interface{} {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return cloneMap(rt.config)
}

// PublishEvent builds and broadcasts an event envelope.
func (rt *Runtime) PublishEvent(level envelope.EventLevel, message string, data map[string]interface{}) {
	env, err := envelope.New(envelope.TypeEvent, rt.worker, rt.instanceID, rt.generation, envelope.EventPayload{
		Level:   level,
		Message: message,
		Data:    data,
	})
	if err != nil {
		return
	}
	rt.seq.Stamp(env)
	rt.events.Publish(env)
}

// PublishTelemetry builds and sends a telemetry envelope over UDP.
func (rt *Runtime) PublishTelemetry(stream string, data map[string]interface{}) {
	env, err := envelope.New(envelope.TypeTelemetry, rt.worker, rt.instanceID, rt.generation, envelope.TelemetryPayload{
		Stream: stream,
		Data:   data,
	})
	if err != nil {
		return
	}
	rt.seq.Stamp(env)
	rt.telemetry.PublishEnvelope(env)
}

// Drain transitions to draining, intended before a graceful shutdown so
// in-flight commands finish.
func (rt *Runtime) Drain() error {
	return rt.lifecycle.Transition(StateDraining)
}

// Stop transitions to stopped, unregisters from the registry, and signals
// all runtime loops to exit. Only call on a clean, voluntary exit; a crash
// should call MarkCrashed instead and let the process manager restart it.
func (rt *Runtime) Stop() error {
	var err error
	rt.stopOnce.Do(func() {
		close(rt.stopCh)
		if tErr := rt.lifecycle.Transition(StateStopped); tErr != nil {
			err = tErr
			return
		}
		err = rt.reg.Unregister(rt.worker)
		rt.events.Close()
		rt.telemetry.Close()
	})
	return err
}

// MarkCrashed transitions to crashed and leaves the registry entry in place
// for the process manager to find.
func (rt *Runtime) MarkCrashed() error {
	if err := rt.lifecycle.Transition(StateCrashed); err != nil {
		return err
	}
	return rt.reg.MarkCrashed(rt.worker)
}

func (rt *Runtime) onLifecycleChange(from, to State) {
	log.WithInstance(rt.worker, rt.instanceID).Info().
		Str("from", string(from)).Str("to", string(to)).Msg("lifecycle transition")
	rt.PublishEvent(envelope.LevelInfo, "lifecycle transition", map[string]interface{}{
		"from": string(from),
		"to":   string(to),
	})
}
