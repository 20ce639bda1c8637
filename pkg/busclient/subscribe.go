package busclient

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/abossard/vjbus/pkg/envelope"
	"github.com/abossard/vjbus/pkg/registry"
)

// EventHandler receives one decoded event envelope at a time, in FIFO order
// for its (worker, instance_id) stream. No ordering is guaranteed across
// different workers or across an instance restart.
type EventHandler func(*envelope.Envelope)

type eventSubscription struct {
	worker string
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *eventSubscription) stop() {
	s.cancel()
	<-s.done
}

// SubscribeEvents connects to worker's event channel and invokes handler
// for every event envelope received. If the connection drops (the worker
// restarted, or the process died), it re-reads the worker's registry entry
// every 200ms and reconnects to whatever event endpoint that entry names;
// it does not compare instance_ids, and a stream that stays open but
// silent is not detected. handler is told nothing about
// the reconnect, but the (worker, instance_id) pair embedded in each
// envelope lets a caller detect the rollover itself.
func (c *Client) SubscribeEvents(worker string, handler EventHandler) func() {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &eventSubscription{worker: worker, cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()

	go c.runEventSubscription(ctx, sub, handler)

	return func() { sub.stop() }
}

func (c *Client) runEventSubscription(ctx context.Context, sub *eventSubscription, handler EventHandler) {
	defer close(sub.done)

	backoff := 200 * time.Millisecond
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		entry, err := c.reg.Get(sub.worker)
		if err != nil {
			if !sleepOrDone(ctx, backoff) {
				return
			}
			continue
		}

		err = c.streamEvents(ctx, entry, handler)
		if err != nil {
			if !sleepOrDone(ctx, backoff) {
				return
			}
		}
	}
}

func (c *Client) streamEvents(ctx context.Context, entry *registry.Entry, handler EventHandler) error {
	url := "http://" + entry.EventEndpoint + "/events"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var watermark uint64
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		env, err := envelope.Decode([]byte(payload), watermark)
		if err != nil {
			if schemaErr, ok := err.(*envelope.SchemaError); ok {
				envelope.WarnOnce(schemaErr)
			}
			continue
		}
		watermark = env.Sequence
		handler(env)
	}
	return scanner.Err()
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// TelemetryHandler receives each telemetry datagram decoded into an
// envelope; datagrams that fail to decode are dropped. Delivery is
// best-effort UDP: no ordering or delivery guarantee applies.
type TelemetryHandler func(*envelope.Envelope)

// telemetryRegisterTimeout bounds the register_telemetry_target command
// SubscribeTelemetry issues before it starts reading.
const telemetryRegisterTimeout = 2 * time.Second

// SubscribeTelemetry binds a UDP listener, registers it with worker's
// telemetry publisher via the command channel (register_telemetry_target),
// and invokes handler for every received datagram until the returned stop
// function is called.
func (c *Client) SubscribeTelemetry(worker, listenAddr string, handler TelemetryHandler) (string, func(), error) {
	var wg sync.WaitGroup
	sock, err := newUDPListener(listenAddr)
	if err != nil {
		return "", nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), telemetryRegisterTimeout)
	ack, err := c.SendCommand(ctx, worker, "register_telemetry_target", map[string]interface{}{"addr": sock.LocalAddr()}, "", telemetryRegisterTimeout)
	cancel()
	if err != nil {
		sock.Close()
		return "", nil, fmt.Errorf("busclient: register telemetry target: %w", err)
	}
	if ack.Status != envelope.AckOK {
		sock.Close()
		return "", nil, fmt.Errorf("busclient: register telemetry target: %s", ack.Message)
	}

	stopCh := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		buf := make([]byte, 65536)
		for {
			n, err := sock.Read(buf)
			if err != nil {
				select {
				case <-stopCh:
					return
				default:
					continue
				}
			}
			env, err := envelope.Decode(buf[:n], 0)
			if err != nil {
				if schemaErr, ok := err.(*envelope.SchemaError); ok {
					envelope.WarnOnce(schemaErr)
				}
				continue
			}
			handler(env)
		}
	}()

	stop := func() {
		close(stopCh)
		sock.Close()
		wg.Wait()
	}
	return sock.LocalAddr(), stop, nil
}
