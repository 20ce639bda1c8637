package workerrt

import (
	"github.com/abossard/vjbus/pkg/envelope"
)

func (rt *Runtime) handleHealthCheck(_ envelope.CommandPayload) (envelope.AckPayload, error) {
	return envelope.AckPayload{
		Status: envelope.AckOK,
		Result: map[string]interface{}{
			"state":       string(rt.lifecycle.Current()),
			"instance_id": rt.instanceID,
			"generation":  rt.generation,
		},
	}, nil
}

func (rt *Runtime) handleGetState(_ envelope.CommandPayload) (envelope.AckPayload, error) {
	rt.mu.RLock()
	cfg := cloneMap(rt.config)
	version := rt.configVersion
	rt.mu.RUnlock()

	return envelope.AckPayload{
		Status: envelope.AckOK,
		Result: map[string]interface{}{
			"state":          string(rt.lifecycle.Current()),
			"config":         cfg,
			"config_version": version,
		},
	}, nil
}

// handleSetConfig merges cmd.Data into the current config. Any key listed
// in restartRequired flags the ack so the caller knows the change needs a
// restart to take effect.
func (rt *Runtime) handleSetConfig(cmd envelope.CommandPayload) (envelope.AckPayload, error) {
	rt.mu.Lock()
	if rt.config == nil {
		rt.config = make(map[string]interface{})
	}
	restartRequired := false
	for k, v := range cmd.Data {
		rt.config[k] = v
		if rt.restartRequired != nil && rt.restartRequired[k] {
			restartRequired = true
		}
	}
	rt.configVersion = cmd.ConfigVersion
	version := rt.configVersion
	rt.mu.Unlock()

	result := map[string]interface{}{
		"restart_required": restartRequired,
	}
	return envelope.AckPayload{
		Status:               envelope.AckOK,
		AppliedConfigVersion: version,
		Result:               result,
	}, nil
}

// handleRegisterTelemetryTarget adds the caller's UDP address to this
// worker's telemetry fan-out list, the command-channel counterpart to
// busclient.SubscribeTelemetry's local listener.
func (rt *Runtime) handleRegisterTelemetryTarget(cmd envelope.CommandPayload) (envelope.AckPayload, error) {
	addr, _ := cmd.Data["addr"].(string)
	if addr == "" {
		return envelope.AckPayload{Status: envelope.AckError, Message: "missing addr"}, nil
	}
	if err := rt.telemetry.AddTarget(addr); err != nil {
		return envelope.AckPayload{Status: envelope.AckError, Message: err.Error()}, nil
	}
	return envelope.AckPayload{Status: envelope.AckOK}, nil
}

func (rt *Runtime) handleRestart(_ envelope.CommandPayload) (envelope.AckPayload, error) {
	go func() {
		rt.PublishEvent(envelope.LevelInfo, "restart requested via command", nil)
		_ = rt.Drain()
		_ = rt.Stop()
	}()
	return envelope.AckPayload{Status: envelope.AckOK, Message: "restarting"}, nil
}

func (rt *Runtime) handleShutdown(_ envelope.CommandPayload) (envelope.AckPayload, error) {
	go func() {
		_ = rt.Drain()
		_ = rt.Stop()
	}()
	return envelope.AckPayload{Status: envelope.AckOK, Message: "shutting down"}, nil
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
