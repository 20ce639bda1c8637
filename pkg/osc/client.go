package osc

import (
	"fmt"
	"net"

	"github.com/abossard/vjbus/pkg/log"
)

// Client sends OSC messages and bundles over UDP to a single destination.
// It is intentionally fire-and-forget: the legacy bridge has no ack channel
// and a dropped datagram just means one stale visual frame.
type Client struct {
	conn *net.UDPConn
	addr *net.UDPAddr
}

// Dial resolves host:port and opens the UDP socket used for every send.
func Dial(host string, port int) (*Client, error) {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, fmt.Errorf("osc: resolve %s:%d: %w", host, port, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("osc: dial %s:%d: %w", host, port, err)
	}
	return &Client{conn: conn, addr: addr}, nil
}

// Send encodes and fires a single message. Failures are logged, not
// returned as fatal, matching the best-effort nature of the telemetry path.
func (c *Client) Send(address string, args ...float32) {
	data, err := Message{Address: address, Args: args}.Encode()
	if err != nil {
		log.Logger.Warn().Err(err).Str("address", address).Msg("osc: encode failed")
		return
	}
	if _, err := c.conn.Write(data); err != nil {
		log.Logger.Warn().Err(err).Str("address", address).Msg("osc: send failed")
	}
}

// SendBundle encodes and fires a bundle as a single datagram.
func (c *Client) SendBundle(messages ...Message) {
	data, err := Bundle{Messages: messages}.Encode()
	if err != nil {
		log.Logger.Warn().Err(err).Msg("osc: bundle encode failed")
		return
	}
	if _, err := c.conn.Write(data); err != nil {
		log.Logger.Warn().Err(err).Msg("osc: bundle send failed")
	}
}

// Close releases the underlying socket.
func (c *Client) Close() error {
	return c.conn.Close()
}
