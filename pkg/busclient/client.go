// Package busclient is the Client Runtime: worker discovery, command
// send/ack with bounded retry, and event/telemetry subscriptions that
// survive a worker restart.
package busclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/abossard/vjbus/pkg/envelope"
	"github.com/abossard/vjbus/pkg/registry"
)

// ErrTimeout is returned when a command's timeout elapses before an ack
// arrives. A zero timeout returns this immediately without sending.
var ErrTimeout = errors.New("busclient: timeout")

// NotFoundError means the named worker has no live registry entry.
type NotFoundError struct{ Worker string }

func (e *NotFoundError) Error() string { return fmt.Sprintf("busclient: worker %q not found", e.Worker) }

// TransportError wraps a transport-level failure after retries were
// exhausted.
type TransportError struct{ Cause error }

func (e *TransportError) Error() string { return fmt.Sprintf("busclient: transport error: %v", e.Cause) }
func (e *TransportError) Unwrap() error { return e.Cause }

// Client is the Client Runtime. One Client may talk to many workers. It
// tracks its event subscriptions; each one reconnects on its own when its
// event stream ends or fails (see SubscribeEvents).
type Client struct {
	reg        *registry.Store
	httpClient *retryablehttp.Client
	instanceID string
	seq        *envelope.Sequencer

	mu   sync.Mutex
	subs []*eventSubscription
}

// New builds a Client Runtime reading worker registrations from stateDir.
// Retries apply only to transient TransportError conditions: 3 retries,
// 100ms base backoff, capped at 400ms, matching the bus-wide retry budget.
func New(stateDir string) (*Client, error) {
	reg, err := registry.Open(stateDir)
	if err != nil {
		return nil, fmt.Errorf("busclient: open registry: %w", err)
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 400 * time.Millisecond
	rc.Logger = nil

	return &Client{
		reg:        reg,
		httpClient: rc,
		instanceID: uuid.NewString(),
		seq:        envelope.NewSequencer(),
	}, nil
}

// DiscoverWorkers lists every live (non-stale) worker entry.
func (c *Client) DiscoverWorkers(heartbeatInterval time.Duration) ([]*registry.Entry, error) {
	return c.reg.Discover(heartbeatInterval, false)
}

// SendCommand sends verb to worker with data, waiting up to timeout for an
// ack. timeout == 0 returns ErrTimeout immediately without contacting the
// worker, per the zero-timeout contract. Transient transport failures are
// retried by the underlying retryablehttp client within its own budget;
// callers only see the final outcome.
func (c *Client) SendCommand(ctx context.Context, worker, verb string, data map[string]interface{}, configVersion string, timeout time.Duration) (envelope.AckPayload, error) {
	if timeout <= 0 {
		return envelope.AckPayload{}, ErrTimeout
	}

	entry, err := c.reg.Get(worker)
	if err != nil {
		var nf *registry.NotFoundError
		if errors.As(err, &nf) {
			return envelope.AckPayload{}, &NotFoundError{Worker: worker}
		}
		return envelope.AckPayload{}, &TransportError{Cause: err}
	}

	cmdEnv, err := envelope.New(envelope.TypeCommand, worker, c.instanceID, 1, envelope.CommandPayload{
		Verb:          verb,
		ConfigVersion: configVersion,
		Data:          data,
	})
	if err != nil {
		return envelope.AckPayload{}, fmt.Errorf("busclient: build command: %w", err)
	}
	c.seq.Stamp(cmdEnv)
	wire, err := envelope.Encode(cmdEnv)
	if err != nil {
		return envelope.AckPayload{}, fmt.Errorf("busclient: encode command: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := "http://" + entry.CommandEndpoint + "/command"
	req, err := retryablehttp.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(wire))
	if err != nil {
		return envelope.AckPayload{}, fmt.Errorf("busclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return envelope.AckPayload{}, ErrTimeout
		}
		return envelope.AckPayload{}, &TransportError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return envelope.AckPayload{}, &TransportError{Cause: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return envelope.AckPayload{}, &TransportError{Cause: err}
	}

	ackEnv, err := envelope.Decode(body, 0)
	if err != nil {
		return envelope.AckPayload{}, fmt.Errorf("busclient: decode ack: %w", err)
	}
	return ackEnv.Ack()
}

// Stop joins every subscription's receiver goroutine and releases
// resources. Safe to call once after all subscription work is done.
func (c *Client) Stop() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
}
