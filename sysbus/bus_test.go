package sysbus

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/sngo/actorkit/actorid"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	bus := New(0)
	aID := actorid.New()

	received := make(chan Event, 1)
	bus.Subscribe("crash", aID, func(e Event) { received <- e })

	bus.Publish("crash", Event{Topic: "crash", Payload: "boom"})

	select {
	case e := <-received:
		if e.Payload != "boom" {
			t.Fatalf("expected boom, got %v", e.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSenderChainPreventsSelfEcho(t *testing.T) {
	bus := New(0)
	aID := actorid.New()

	var calls int32
	done := make(chan struct{})

	// A naively re-publishes every "ping" it receives, simulating a
	// relay actor. Without the sender-chain check this would recurse
	// forever; with it, the chain already contains aID by the second
	// hop so the republish is not redelivered to A.
	bus.Subscribe("ping", aID, func(e Event) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			bus.Publish("ping", e)
		}
		if n == 1 {
			time.AfterFunc(50*time.Millisecond, func() { close(done) })
		}
	})

	bus.Publish("ping", Event{Topic: "ping"})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected exactly one delivery (loop-free), got %d", calls)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := New(0)
	id := actorid.New()

	var calls int
	sub := bus.Subscribe("topic", id, func(Event) { calls++ })
	bus.Unsubscribe("topic", sub)

	bus.Publish("topic", Event{Topic: "topic"})
	time.Sleep(20 * time.Millisecond)

	if calls != 0 {
		t.Fatalf("expected no delivery after unsubscribe, got %d calls", calls)
	}
}
