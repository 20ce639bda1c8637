package procmgr

import (
	"context"

	"github.com/abossard/vjbus/pkg/envelope"
)

func (m *Manager) handleListWorkers(_ envelope.CommandPayload) (envelope.AckPayload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	workers := make([]map[string]interface{}, 0, len(m.children))
	for name, cs := range m.children {
		entry := map[string]interface{}{
			"worker":      name,
			"instance_id": cs.instanceID,
			"generation":  cs.generation,
			"failed":      cs.failed,
		}
		if cs.cmd != nil && cs.cmd.Process != nil {
			entry["pid"] = cs.cmd.Process.Pid
		}
		workers = append(workers, entry)
	}
	return envelope.AckPayload{Status: envelope.AckOK, Result: map[string]interface{}{"workers": workers}}, nil
}

func (m *Manager) handleStartWorker(cmd envelope.CommandPayload) (envelope.AckPayload, error) {
	name, _ := cmd.Data["worker"].(string)
	wm, ok := m.findManifest(name)
	if !ok {
		return envelope.AckPayload{Status: envelope.AckError, Message: "unknown worker: " + name}, nil
	}
	if err := m.startWorker(context.Background(), wm); err != nil {
		return envelope.AckPayload{Status: envelope.AckError, Message: err.Error()}, nil
	}
	return envelope.AckPayload{Status: envelope.AckOK}, nil
}

func (m *Manager) handleStopWorker(cmd envelope.CommandPayload) (envelope.AckPayload, error) {
	name, _ := cmd.Data["worker"].(string)
	m.mu.Lock()
	cs, ok := m.children[name]
	if !ok || cs.cmd == nil || cs.cmd.Process == nil {
		m.mu.Unlock()
		return envelope.AckPayload{Status: envelope.AckError, Message: "worker not running: " + name}, nil
	}
	cs.stoppedBy = "manager"
	err := cs.cmd.Process.Kill()
	delete(m.children, name)
	m.mu.Unlock()

	if err != nil {
		return envelope.AckPayload{Status: envelope.AckError, Message: err.Error()}, nil
	}
	return envelope.AckPayload{Status: envelope.AckOK}, nil
}

func (m *Manager) handleRestartWorker(cmd envelope.CommandPayload) (envelope.AckPayload, error) {
	// Ignore the stop outcome: a worker that was not running yet is fine to
	// start fresh below.
	_, _ = m.handleStopWorker(cmd)

	name, _ := cmd.Data["worker"].(string)
	wm, ok := m.findManifest(name)
	if !ok {
		return envelope.AckPayload{Status: envelope.AckError, Message: "unknown worker: " + name}, nil
	}
	if err := m.startWorker(context.Background(), wm); err != nil {
		return envelope.AckPayload{Status: envelope.AckError, Message: err.Error()}, nil
	}
	return envelope.AckPayload{Status: envelope.AckOK}, nil
}

func (m *Manager) findManifest(name string) (WorkerManifest, bool) {
	for _, wm := range m.manifest.Workers {
		if wm.Name == name {
			return wm, true
		}
	}
	return WorkerManifest{}, false
}
