package workerrt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/abossard/vjbus/pkg/envelope"
)

func mustEvent(t *testing.T, worker string, seq *envelope.Sequencer, msg string) *envelope.Envelope {
	t.Helper()
	e, err := envelope.New(envelope.TypeEvent, worker, "inst-1", 1, envelope.EventPayload{
		Level:   envelope.LevelInfo,
		Message: msg,
	})
	require.NoError(t, err)
	seq.Stamp(e)
	return e
}

func TestEventBrokerFanOut(t *testing.T) {
	b := NewEventBroker(4)
	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	defer sub1.Close()
	defer sub2.Close()

	require.Equal(t, 2, b.SubscriberCount())

	seq := envelope.NewSequencer()
	b.Publish(mustEvent(t, "w", seq, "hello"))

	e1 := <-sub1.C
	e2 := <-sub2.C
	require.Equal(t, e1.Sequence, e2.Sequence)
}

func TestEventBrokerDropsOldestOnSlowSubscriber(t *testing.T) {
	b := NewEventBroker(2)
	sub := b.Subscribe()
	defer sub.Close()

	seq := envelope.NewSequencer()
	first := mustEvent(t, "w", seq, "1")
	second := mustEvent(t, "w", seq, "2")
	third := mustEvent(t, "w", seq, "3")

	b.Publish(first)
	b.Publish(second)
	b.Publish(third) // buffer holds 2; oldest (first) must be dropped

	got1 := <-sub.C
	got2 := <-sub.C
	require.Equal(t, second.Sequence, got1.Sequence)
	require.Equal(t, third.Sequence, got2.Sequence)
}

func TestEventBrokerUnsubscribeClosesChannel(t *testing.T) {
	b := NewEventBroker(4)
	sub := b.Subscribe()
	sub.Close()
	_, ok := <-sub.C
	require.False(t, ok)
	require.Equal(t, 0, b.SubscriberCount())
}
