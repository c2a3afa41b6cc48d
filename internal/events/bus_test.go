package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubscribe_ReceivesEmittedEvent(t *testing.T) {
	bus := New()
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	bus.Emit(Event{Kind: KindScanStarted, Data: "hello"})

	select {
	case ev := <-ch:
		assert.Equal(t, KindScanStarted, ev.Kind)
		assert.Equal(t, "hello", ev.Data)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestEmit_DropsForFullSubscriberRatherThanBlocking(t *testing.T) {
	bus := New()
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer+10; i++ {
			bus.Emit(Event{Kind: KindScanProgress, Data: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("emit blocked on a full subscriber instead of dropping")
	}

	// Drain whatever made it through; the channel must not have deadlocked
	// the sender, and it must hold at most its buffer capacity.
	drained := 0
	for {
		select {
		case <-ch:
			drained++
		default:
			assert.LessOrEqual(t, drained, subscriberBuffer)
			return
		}
	}
}

func TestUnsubscribe_RemovesSubscriberAndClosesChannel(t *testing.T) {
	bus := New()
	ch, unsubscribe := bus.Subscribe()
	assert.Equal(t, 1, bus.SubscriberCount())

	unsubscribe()
	assert.Equal(t, 0, bus.SubscriberCount())

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")
}
