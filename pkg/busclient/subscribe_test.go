package busclient

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/abossard/vjbus/pkg/envelope"
	"github.com/abossard/vjbus/pkg/workerrt"
)

func TestSubscribeEventsReceivesPublishedEvents(t *testing.T) {
	dir := t.TempDir()
	rt, err := workerrt.New(workerrt.Config{
		Worker:        "example-worker",
		StateDir:      dir,
		TelemetryAddr: "127.0.0.1:0",
	}, 1)
	require.NoError(t, err)
	t.Cleanup(func() { rt.Telemetry().Close() })

	es := workerrt.NewEventServer(rt)
	srv := httptest.NewServer(es.Router())
	t.Cleanup(srv.Close)

	require.NoError(t, rt.Register(1, "127.0.0.1:0", srv.Listener.Addr().String(), "127.0.0.1:0"))

	c, err := New(dir)
	require.NoError(t, err)

	received := make(chan *envelope.Envelope, 4)
	stop := c.SubscribeEvents("example-worker", func(e *envelope.Envelope) {
		received <- e
	})
	defer stop()

	// Give the subscriber goroutine time to connect before publishing.
	time.Sleep(100 * time.Millisecond)
	rt.PublishEvent(envelope.LevelInfo, "device selected", map[string]interface{}{"device": "hw:0"})

	select {
	case e := <-received:
		ev, err := e.Event()
		require.NoError(t, err)
		require.Equal(t, "device selected", ev.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSubscribeTelemetryReceivesDatagrams(t *testing.T) {
	dir := t.TempDir()
	rt, err := workerrt.New(workerrt.Config{
		Worker:        "example-worker",
		StateDir:      dir,
		TelemetryAddr: "127.0.0.1:0",
	}, 1)
	require.NoError(t, err)
	t.Cleanup(func() { rt.Telemetry().Close() })

	cmdAddr, err := rt.BindCommandServer("127.0.0.1:0", nil)
	require.NoError(t, err)

	require.NoError(t, rt.Register(1, cmdAddr, "127.0.0.1:0", rt.Telemetry().LocalAddr()))

	c, err := New(dir)
	require.NoError(t, err)

	received := make(chan *envelope.Envelope, 4)
	_, stop, err := c.SubscribeTelemetry("example-worker", "127.0.0.1:0", func(e *envelope.Envelope) {
		received <- e
	})
	require.NoError(t, err)
	defer stop()

	rt.PublishTelemetry("features", map[string]interface{}{"rms": 0.5})

	select {
	case e := <-received:
		tel, err := e.Telemetry()
		require.NoError(t, err)
		require.Equal(t, "features", tel.Stream)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for telemetry datagram")
	}
}
