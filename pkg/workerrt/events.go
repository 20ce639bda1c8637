package workerrt

import (
	"sync"

	"github.com/abossard/vjbus/pkg/envelope"
)

// eventSubscriber is a bounded channel of event envelopes. When the
// subscriber's buffer is full, Publish drops the oldest queued event rather
// than blocking the publisher or the other subscribers.
type eventSubscriber struct {
	ch chan *envelope.Envelope
}

// EventBroker fans out event envelopes to any number of subscribers. It
// never blocks on a slow subscriber: each subscriber has its own
// high-watermark buffer, and once full the oldest queued event is dropped
// to make room for the new one.
type EventBroker struct {
	mu          sync.RWMutex
	subscribers map[*eventSubscriber]struct{}
	watermark   int
}

// NewEventBroker returns a broker whose subscriber buffers hold at most
// watermark envelopes before the oldest is discarded.
func NewEventBroker(watermark int) *EventBroker {
	if watermark <= 0 {
		watermark = 64
	}
	return &EventBroker{
		subscribers: make(map[*eventSubscriber]struct{}),
		watermark:   watermark,
	}
}

// Subscription is a live handle returned by Subscribe. Callers range over
// C until Close is called or the broker shuts down.
type Subscription struct {
	C      <-chan *envelope.Envelope
	broker *EventBroker
	sub    *eventSubscriber
}

// Close unregisters the subscription and stops further delivery.
func (s *Subscription) Close() {
	s.broker.unsubscribe(s.sub)
}

// Subscribe registers a new subscriber and returns its handle.
func (b *EventBroker) Subscribe() *Subscription {
	sub := &eventSubscriber{ch: make(chan *envelope.Envelope, b.watermark)}
	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()
	return &Subscription{C: sub.ch, broker: b, sub: sub}
}

func (b *EventBroker) unsubscribe(sub *eventSubscriber) {
	b.mu.Lock()
	_, ok := b.subscribers[sub]
	delete(b.subscribers, sub)
	b.mu.Unlock()
	if ok {
		close(sub.ch)
	}
}

// Publish broadcasts e to every current subscriber, dropping the oldest
// buffered envelope for any subscriber whose buffer is full.
func (b *EventBroker) Publish(e *envelope.Envelope) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subscribers {
		select {
		case sub.ch <- e:
		default:
			// Buffer full: drop the oldest to make room, never block the
			// publisher on a slow subscriber.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- e:
			default:
			}
		}
	}
}

// SubscriberCount reports the number of live subscribers.
func (b *EventBroker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes every subscriber channel. The broker is not usable after
// Close.
func (b *EventBroker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subscribers {
		close(sub.ch)
	}
	b.subscribers = make(map[*eventSubscriber]struct{})
}
