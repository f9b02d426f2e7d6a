package synth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerReplaysHistory(t *testing.T) {
	b := newBroker()
	b.open("t1")
	b.publish(Event{TaskID: "t1", Kind: EventQueued})
	b.publish(Event{TaskID: "t1", Kind: EventStarted, Total: 2})

	ch, cancel, ok := b.subscribe("t1")
	require.True(t, ok)
	defer cancel()

	b.publish(Event{TaskID: "t1", Kind: EventProgress, Completed: 1, Total: 2})
	b.publish(Event{TaskID: "t1", Kind: EventCompleted, Completed: 2, Total: 2})
	b.publish(Event{TaskID: "t1", Kind: EventProgress, Completed: 2, Total: 2})

	events := collect(t, ch)
	require.Len(t, events, 4)
	assert.Equal(t, []EventKind{EventQueued, EventStarted, EventProgress, EventCompleted}, kinds(events))
	for i, ev := range events {
		assert.Equal(t, i+1, ev.Seq)
		assert.False(t, ev.Time.IsZero())
	}
}

func TestBrokerLateSubscriber(t *testing.T) {
	b := newBroker()
	b.open("t1")
	b.publish(Event{TaskID: "t1", Kind: EventQueued})
	b.publish(Event{TaskID: "t1", Kind: EventCancelled})

	ch, cancel, ok := b.subscribe("t1")
	require.True(t, ok)
	defer cancel()
	assert.Equal(t, []EventKind{EventQueued, EventCancelled}, kinds(collect(t, ch)))

	_, _, ok = b.subscribe("unknown")
	assert.False(t, ok)
}

func TestBrokerCancelClosesStream(t *testing.T) {
	b := newBroker()
	b.open("t1")
	ch, cancel, ok := b.subscribe("t1")
	require.True(t, ok)
	cancel()
	cancel()

	select {
	case _, open := <-ch:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("stream not closed after cancel")
	}

	// publishing after the subscriber left must not block
	b.publish(Event{TaskID: "t1", Kind: EventQueued})
	b.remove("t1")
	b.publish(Event{TaskID: "t1", Kind: EventStarted})
}

func TestBackoff(t *testing.T) {
	d := Backoff(0)
	assert.GreaterOrEqual(t, d, RetryBaseDelay)
	assert.Less(t, d, RetryBaseDelay+RetryBaseDelay/2)

	d = Backoff(2)
	assert.GreaterOrEqual(t, d, 4*RetryBaseDelay)

	d = Backoff(20)
	assert.GreaterOrEqual(t, d, RetryMaxDelay)
	assert.Less(t, d, RetryMaxDelay+RetryMaxDelay/2)
}
