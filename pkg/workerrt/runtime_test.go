package workerrt

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/abossard/vjbus/pkg/envelope"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	rt, err := New(Config{
		Worker:        "example-worker",
		StateDir:      t.TempDir(),
		TelemetryAddr: "127.0.0.1:0",
	}, 1)
	require.NoError(t, err)
	t.Cleanup(func() { rt.telemetry.Close() })
	return rt
}

func sendCommand(t *testing.T, cs *CommandServer, worker, verb string, data map[string]interface{}) envelope.AckPayload {
	t.Helper()
	cmdEnv, err := envelope.New(envelope.TypeCommand, worker, "client-1", 1, envelope.CommandPayload{
		Verb: verb,
		Data: data,
	})
	require.NoError(t, err)
	envelope.NewSequencer().Stamp(cmdEnv)
	wire, err := envelope.Encode(cmdEnv)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/command", bytes.NewReader(wire))
	rec := httptest.NewRecorder()
	cs.Router().ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)

	decoded, err := envelope.Decode(rec.Body.Bytes(), 0)
	require.NoError(t, err)
	ack, err := decoded.Ack()
	require.NoError(t, err)
	return ack
}

func TestCommandServerHealthCheck(t *testing.T) {
	rt := newTestRuntime(t)
	cs := NewCommandServer(rt, nil)

	ack := sendCommand(t, cs, rt.worker, "health_check", nil)
	require.Equal(t, envelope.AckOK, ack.Status)
	require.Equal(t, string(StateStarting), ack.Result["state"])
}

func TestCommandServerSetConfigAndGetStateRoundTrip(t *testing.T) {
	rt := newTestRuntime(t)
	rt.restartRequired = map[string]bool{"publish_interval_ms": false, "device": true}
	cs := NewCommandServer(rt, nil)

	ack := sendCommand(t, cs, rt.worker, "set_config", map[string]interface{}{
		"publish_interval_ms": float64(100),
	})
	require.Equal(t, envelope.AckOK, ack.Status)
	require.Equal(t, false, ack.Result["restart_required"])

	ack = sendCommand(t, cs, rt.worker, "set_config", map[string]interface{}{
		"device": "hw:1",
	})
	require.Equal(t, true, ack.Result["restart_required"])

	ack = sendCommand(t, cs, rt.worker, "get_state", nil)
	require.Equal(t, envelope.AckOK, ack.Status)
	cfg, ok := ack.Result["config"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, float64(100), cfg["publish_interval_ms"])
	require.Equal(t, "hw:1", cfg["device"])
}

func TestCommandServerUnknownVerb(t *testing.T) {
	rt := newTestRuntime(t)
	cs := NewCommandServer(rt, nil)

	ack := sendCommand(t, cs, rt.worker, "no_such_verb", nil)
	require.Equal(t, envelope.AckError, ack.Status)
}

func TestCommandServerDomainHandlerOverridesStandardVerb(t *testing.T) {
	rt := newTestRuntime(t)
	custom := map[string]Handler{
		"health_check": func(envelope.CommandPayload) (envelope.AckPayload, error) {
			return envelope.AckPayload{Status: envelope.AckOK, Message: "custom"}, nil
		},
	}
	cs := NewCommandServer(rt, custom)

	ack := sendCommand(t, cs, rt.worker, "health_check", nil)
	require.Equal(t, "custom", ack.Message)
}

func TestRuntimeRegisterTransitionsToRunning(t *testing.T) {
	rt := newTestRuntime(t)
	require.NoError(t, rt.Register(1234, "127.0.0.1:9001", "127.0.0.1:9002", "127.0.0.1:9003"))
	require.Equal(t, StateRunning, rt.lifecycle.Current())

	entry, err := rt.reg.Get(rt.worker)
	require.NoError(t, err)
	require.Equal(t, rt.instanceID, entry.InstanceID)
}

func TestPublishEventReachesSubscriber(t *testing.T) {
	rt := newTestRuntime(t)
	sub := rt.Events().Subscribe()
	defer sub.Close()

	rt.PublishEvent(envelope.LevelWarning, "device disappeared", map[string]interface{}{"device": "hw:0"})

	e := <-sub.C
	ev, err := e.Event()
	require.NoError(t, err)
	require.Equal(t, envelope.LevelWarning, ev.Level)
	require.Equal(t, "device disappeared", ev.Message)
}
