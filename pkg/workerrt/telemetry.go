package workerrt

import (
	"net"
	"sync"

	"github.com/abossard/vjbus/pkg/envelope"
	"github.com/abossard/vjbus/pkg/log"
)

// TelemetryPublisher is the publish-only, best-effort telemetry channel.
// It is a bare UDP datagram socket: no retransmission, no per-subscriber
// buffering, no delivery guarantee. Subscribers bind their own listener and
// register it with the register_telemetry_target command (the Client
// Runtime's SubscribeTelemetry does this).
type TelemetryPublisher struct {
	mu      sync.RWMutex
	conn    *net.UDPConn
	targets map[string]*net.UDPAddr
}

// NewTelemetryPublisher opens a UDP socket on addr (e.g. "127.0.0.1:0").
func NewTelemetryPublisher(addr string) (*TelemetryPublisher, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}
	return &TelemetryPublisher{conn: conn, targets: make(map[string]*net.UDPAddr)}, nil
}

// LocalAddr returns the bound UDP address.
func (t *TelemetryPublisher) LocalAddr() string {
	return t.conn.LocalAddr().String()
}

// AddTarget registers a subscriber address to receive future datagrams.
func (t *TelemetryPublisher) AddTarget(addr string) error {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.targets[addr] = raddr
	t.mu.Unlock()
	return nil
}

// RemoveTarget deregisters a subscriber address.
func (t *TelemetryPublisher) RemoveTarget(addr string) {
	t.mu.Lock()
	delete(t.targets, addr)
	t.mu.Unlock()
}

// PublishEnvelope encodes e and fires it at every registered target. Send
// failures are logged and otherwise ignored: telemetry is best-effort by
// definition, and one bad subscriber must never affect another.
func (t *TelemetryPublisher) PublishEnvelope(e *envelope.Envelope) {
	wire, err := envelope.Encode(e)
	if err != nil {
		return
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, addr := range t.targets {
		if _, err := t.conn.WriteToUDP(wire, addr); err != nil {
			log.Debug("telemetry: write to " + addr.String() + " failed: " + err.Error())
		}
	}
}

// Close shuts down the UDP socket.
func (t *TelemetryPublisher) Close() {
	_ = t.conn.Close()
}
