package procmgr

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abossard/vjbus/pkg/envelope"
	"github.com/abossard/vjbus/pkg/log"
	"github.com/abossard/vjbus/pkg/registry"
	"github.com/abossard/vjbus/pkg/workerrt"
)

// childState tracks one supervised worker process.
type childState struct {
	manifest   WorkerManifest
	cmd        *exec.Cmd
	adoptedPID int // set instead of cmd for a worker adopted by PID, no local handle
	instanceID string
	generation uint64
	backoff    *backoffState
	failed     bool
	stoppedBy  string // "manager" when stop was voluntary, empty otherwise
}

// Manager supervises every worker named in a Manifest: it spawns fresh
// instance_ids and generations, polls exit status and heartbeat staleness,
// restarts crashed children with exponential backoff, and publishes
// worker_started/worker_crashed/worker_restarted/worker_failed events.
type Manager struct {
	stateDir string
	logDir   string
	manifest *Manifest
	gens     *GenerationStore
	reg      *registry.Store
	rt       *workerrt.Runtime

	mu       sync.Mutex
	children map[string]*childState

	stopCh chan struct{}
}

// Config configures the Process Manager.
type Config struct {
	StateDir     string
	LogDir       string
	ManifestPath string
}

// New loads the manifest, opens the generation store and registry, and
// builds a Process Manager. It also stands up its own Worker Runtime so
// list_workers/start_worker/stop_worker/restart_worker are reachable over
// the same command channel every other worker uses.
func New(cfg Config) (*Manager, error) {
	manifest, err := LoadManifest(cfg.ManifestPath)
	if err != nil {
		return nil, err
	}
	gens, err := OpenGenerationStore(cfg.StateDir)
	if err != nil {
		return nil, err
	}
	reg, err := registry.Open(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("procmgr: open registry: %w", err)
	}

	rt, err := workerrt.New(workerrt.Config{
		Worker:        "process-manager",
		StateDir:      cfg.StateDir,
		TelemetryAddr: "127.0.0.1:0",
	}, 1)
	if err != nil {
		return nil, fmt.Errorf("procmgr: worker runtime: %w", err)
	}

	return &Manager{
		stateDir: cfg.StateDir,
		logDir:   cfg.LogDir,
		manifest: manifest,
		gens:     gens,
		reg:      reg,
		rt:       rt,
		children: make(map[string]*childState),
		stopCh:   make(chan struct{}),
	}, nil
}

// Runtime exposes the Process Manager's own Worker Runtime so cmd/vjbusd
// can bind its command server with the list/start/stop/restart verbs.
func (m *Manager) Runtime() *workerrt.Runtime { return m.rt }

// Registry exposes the shared registry store so cmd/vjbusd can feed it to
// a metrics collector.
func (m *Manager) Registry() *registry.Store { return m.reg }

// CommandHandlers returns the Process Manager's domain verbs for
// NewCommandServer.
func (m *Manager) CommandHandlers() map[string]workerrt.Handler {
	return map[string]workerrt.Handler{
		"list_workers":   m.handleListWorkers,
		"start_worker":   m.handleStartWorker,
		"stop_worker":    m.handleStopWorker,
		"restart_worker": m.handleRestartWorker,
	}
}

// StartAll launches every manifest entry and begins supervising it. On a
// fresh Process Manager start this adopts nothing; see Adopt for restart
// recovery.
func (m *Manager) StartAll(ctx context.Context) error {
	for _, wm := range m.manifest.Workers {
		if err := m.startWorker(ctx, wm); err != nil {
			log.Error("procmgr: start " + wm.Name + " failed: " + err.Error())
		}
	}
	go m.superviseLoop(ctx)
	return nil
}

// Adopt re-reads the registry on Process Manager startup and, for any
// worker whose registered PID is still alive, adopts it by PID instead of
// spawning a duplicate. Call before StartAll.
func (m *Manager) Adopt() error {
	entries, err := m.reg.Discover(registry.DefaultHeartbeatInterval, true)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		if !processAlive(e.PID) {
			continue
		}
		wm := m.manifestEntry(e.Worker)
		wm.Name = e.Worker
		m.children[e.Worker] = &childState{
			manifest:   wm,
			adoptedPID: e.PID,
			instanceID: e.InstanceID,
			generation: e.Generation,
			backoff:    newBackoffState(),
		}
		log.Info("procmgr: adopted " + e.Worker + " at pid " + fmt.Sprint(e.PID))
	}
	return nil
}

// manifestEntry returns the static manifest entry for name, or a name-only
// stub if the worker isn't listed (e.g. it was removed from the manifest
// since the Process Manager last ran).
func (m *Manager) manifestEntry(name string) WorkerManifest {
	for _, wm := range m.manifest.Workers {
		if wm.Name == name {
			return wm
		}
	}
	return WorkerManifest{Name: name}
}

func (m *Manager) startWorker(ctx context.Context, wm WorkerManifest) error {
	m.mu.Lock()
	backoff := newBackoffState()
	if existing, ok := m.children[wm.Name]; ok {
		spawnedAlive := existing.cmd != nil && existing.cmd.Process != nil && existing.cmd.ProcessState == nil
		adoptedAlive := existing.adoptedPID != 0 && processAlive(existing.adoptedPID)
		if spawnedAlive || adoptedAlive {
			m.mu.Unlock()
			return fmt.Errorf("procmgr: %s already running", wm.Name)
		}
		// Keep the crash history across restarts so consecutive failures add up.
		backoff = existing.backoff
	}
	m.mu.Unlock()

	gen, err := m.gens.Next(wm.Name)
	if err != nil {
		return err
	}
	instanceID := uuid.NewString()

	cmd := exec.CommandContext(ctx, wm.Executable, wm.Args...)
	cmd.Env = append(os.Environ(), wm.Env...)
	cmd.Env = append(cmd.Env,
		"VJ_WORKER_NAME="+wm.Name,
		"VJ_INSTANCE_ID="+instanceID,
		"VJ_GENERATION="+fmt.Sprint(gen),
		"VJ_STATE_DIR="+m.stateDir,
	)
	if wm.WorkingDirectory != "" {
		cmd.Dir = wm.WorkingDirectory
	}
	if m.logDir != "" {
		logFile, err := os.OpenFile(logPath(m.logDir, wm.Name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			cmd.Stdout = logFile
			cmd.Stderr = logFile
		}
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("procmgr: spawn %s: %w", wm.Name, err)
	}

	cs := &childState{manifest: wm, cmd: cmd, instanceID: instanceID, generation: gen, backoff: backoff}
	cs.backoff.markStarted(time.Now())

	m.mu.Lock()
	m.children[wm.Name] = cs
	m.mu.Unlock()

	m.rt.PublishEvent(envelope.LevelInfo, "worker_started", map[string]interface{}{
		"worker":      wm.Name,
		"instance_id": instanceID,
		"generation":  gen,
		"pid":         cmd.Process.Pid,
	})

	go m.waitChild(wm.Name, cmd)
	return nil
}

func (m *Manager) waitChild(name string, cmd *exec.Cmd) {
	err := cmd.Wait()

	m.mu.Lock()
	cs, ok := m.children[name]
	if !ok {
		m.mu.Unlock()
		return
	}
	voluntary := cs.stoppedBy == "manager"
	m.mu.Unlock()

	if voluntary {
		return
	}

	exitMsg := "exited"
	if err != nil {
		exitMsg = err.Error()
	}
	m.handleCrash(name, exitMsg)
}

// handleCrash runs the shared crash path for a worker that stopped
// unexpectedly, whether detected by waitChild's cmd.Wait() returning or by
// checkStaleness finding a wedged process with a stale heartbeat: record the
// crash against its backoff state, mark the registry entry crashed, publish
// worker_crashed, and either give up (publishing worker_failed) or restart
// after the backoff delay.
func (m *Manager) handleCrash(name, reason string) {
	m.mu.Lock()
	cs, ok := m.children[name]
	if !ok {
		m.mu.Unlock()
		return
	}
	cs.backoff.recordCrash(time.Now())
	failed := cs.backoff.failed()
	cs.failed = failed
	delay := cs.backoff.nextDelay()
	manifest := cs.manifest
	m.mu.Unlock()

	_ = m.reg.MarkCrashed(name)

	m.rt.PublishEvent(envelope.LevelError, "worker_crashed", map[string]interface{}{
		"worker": name,
		"reason": reason,
	})

	if failed {
		m.rt.PublishEvent(envelope.LevelError, "worker_failed", map[string]interface{}{
			"worker":               name,
			"consecutive_failures": maxConsecutiveFailures,
		})
		return
	}

	if !manifest.AutoRestart {
		return
	}

	time.Sleep(delay)
	if err := m.startWorker(context.Background(), manifest); err != nil {
		log.Error("procmgr: restart " + name + " failed: " + err.Error())
		return
	}
	m.rt.PublishEvent(envelope.LevelInfo, "worker_restarted", map[string]interface{}{"worker": name})
}

// superviseLoop cross-checks heartbeat staleness for children whose process
// is still running but whose registry heartbeat has gone stale, which
// catches a worker wedged in a way that never hits cmd.Wait.
func (m *Manager) superviseLoop(ctx context.Context) {
	ticker := time.NewTicker(registry.DefaultHeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.checkStaleness()
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		}
	}
}

// checkStaleness finds Running registry entries whose heartbeat has gone
// stale despite the process never exiting (the wedged case), kills the
// underlying OS process, and drives it through the same crash/backoff/
// restart path a real exit takes in waitChild.
func (m *Manager) checkStaleness() {
	entries, err := m.reg.Discover(registry.DefaultHeartbeatInterval, true)
	if err != nil {
		return
	}
	now := time.Now()
	for _, e := range entries {
		if e.Status != registry.StatusRunning {
			continue
		}
		if !e.IsStale(registry.DefaultHeartbeatInterval, now) {
			continue
		}
		log.Warn("procmgr: " + e.Worker + " heartbeat stale, killing and restarting")

		m.mu.Lock()
		cs, ok := m.children[e.Worker]
		m.mu.Unlock()
		if !ok {
			// Not a child this Process Manager is supervising; nothing to
			// kill or restart, so just reflect the state in the registry.
			_ = m.reg.MarkCrashed(e.Worker)
			continue
		}

		switch {
		case cs.cmd != nil && cs.cmd.Process != nil:
			// waitChild is already blocked on cmd.Wait() for this child; once
			// killed it unblocks on its own and runs handleCrash, so leave it
			// to that goroutine rather than calling handleCrash twice.
			if err := cs.cmd.Process.Kill(); err != nil {
				log.Error("procmgr: kill " + e.Worker + " failed: " + err.Error())
			}
		case cs.adoptedPID != 0:
			// No local *exec.Cmd and so no waitChild goroutine watching this
			// PID; kill it directly and run the crash path ourselves.
			if err := killByPID(cs.adoptedPID); err != nil {
				log.Error("procmgr: kill " + e.Worker + " (pid " + fmt.Sprint(cs.adoptedPID) + ") failed: " + err.Error())
			}
			m.handleCrash(e.Worker, "heartbeat stale (wedged)")
		default:
			_ = m.reg.MarkCrashed(e.Worker)
		}
	}
}

// Stop kills every child this Manager spawned and stops the supervisor
// loop. Adopted children (no local process handle) are left running.
func (m *Manager) Stop() {
	close(m.stopCh)
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, cs := range m.children {
		if cs.cmd == nil || cs.cmd.Process == nil {
			continue
		}
		cs.stoppedBy = "manager"
		_ = cs.cmd.Process.Kill()
		delete(m.children, name)
	}
}

func logPath(logDir, worker string) string {
	return logDir + "/" + worker + ".log"
}

// WorkerStatus summarizes one supervised or manifest-only worker for the
// --list and --monitor CLI surfaces.
type WorkerStatus struct {
	Worker      string
	Executable  string
	AutoRestart bool
	Running     bool
	PID         int
	InstanceID  string
	Generation  uint64
	Failed      bool
}

// ManifestWorkers returns every worker entry named in the static manifest,
// regardless of whether it is currently running.
func (m *Manager) ManifestWorkers() []WorkerManifest {
	return m.manifest.Workers
}

// Status reports the current supervision state of every manifest worker,
// merging live childState with manifest metadata.
func (m *Manager) Status() []WorkerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]WorkerStatus, 0, len(m.manifest.Workers))
	for _, wm := range m.manifest.Workers {
		st := WorkerStatus{Worker: wm.Name, Executable: wm.Executable, AutoRestart: wm.AutoRestart}
		if cs, ok := m.children[wm.Name]; ok {
			st.InstanceID = cs.instanceID
			st.Generation = cs.generation
			st.Failed = cs.failed
			if cs.cmd != nil && cs.cmd.Process != nil {
				st.Running = true
				st.PID = cs.cmd.Process.Pid
			}
		}
		out = append(out, st)
	}
	return out
}
