// Package sysbus implements the System Bus (C8): a single process-wide
// event fanout every actor can publish to and subscribe from, used for
// cross-cutting notifications (message-dropped, actor-crashed, config
// reloaded) that don't belong to any one actor's topic table. Grounded
// on cluster.clusterManager.publishEvent's non-blocking-channel-plus-
// listener-fanout shape and bootstrap.DefaultLifecycleManager's
// broadcastEvent (per-listener goroutine with panic recovery), merged
// with the loop-free sender-chain rule of DN-4.
package sysbus

import (
	"sync"

	"github.com/sngo/actorkit/actorid"
)

// Event is one System Bus notification. SenderChain records every
// actor.ID the event has already been forwarded through; a listener
// already present in the chain is skipped on the next hop, the
// mechanism DN-4 uses to guarantee the fanout can never loop forever
// even if actors mutually re-publish.
type Event struct {
	Topic       string
	Payload     interface{}
	SenderChain []actorid.ActorID
}

func (e Event) seen(id actorid.ActorID) bool {
	for _, s := range e.SenderChain {
		if s == id {
			return true
		}
	}
	return false
}

func (e Event) chainedThrough(id actorid.ActorID) Event {
	chain := make([]actorid.ActorID, len(e.SenderChain), len(e.SenderChain)+1)
	copy(chain, e.SenderChain)
	chain = append(chain, id)
	e.SenderChain = chain
	return e
}

// Listener receives events published on a topic it subscribed to. The
// listener's own actor id is given separately to Subscribe, so the bus
// can apply the sender-chain loop check on its behalf.
type Listener func(Event)

// Subscription identifies a registered listener so it can later be
// removed with Unsubscribe.
type Subscription uint64

type subscriber struct {
	id actorid.ActorID
	fn Listener
}

// Bus is the system-wide event fanout.
type Bus struct {
	mu      sync.RWMutex
	nextSub Subscription
	subs    map[string]map[Subscription]subscriber

	overflow chan Event
}

// New creates an empty Bus. overflowSize bounds the optional inspection
// channel drained by Events(); pass 0 to skip buffering entirely (only
// direct listener fanout is used).
func New(overflowSize int) *Bus {
	b := &Bus{subs: make(map[string]map[Subscription]subscriber)}
	if overflowSize > 0 {
		b.overflow = make(chan Event, overflowSize)
	}
	return b
}

// Subscribe registers fn to receive events published on topic as if
// sent by listenerID, enabling the sender-chain loop check.
func (b *Bus) Subscribe(topic string, listenerID actorid.ActorID, fn Listener) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSub++
	sub := b.nextSub
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[Subscription]subscriber)
	}
	b.subs[topic][sub] = subscriber{id: listenerID, fn: fn}
	return sub
}

// Unsubscribe removes a previously registered listener.
func (b *Bus) Unsubscribe(topic string, sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[topic], sub)
}

// Publish fans event out to every subscriber of topic whose id is not
// already in the event's sender chain. Each delivered copy has the
// receiving listener's id appended to its own chain, so if that
// listener forwards the event onward (by calling Publish again) the
// loop check carries forward.
func (b *Bus) Publish(topic string, event Event) {
	b.mu.RLock()
	targets := make([]subscriber, 0, len(b.subs[topic]))
	for _, s := range b.subs[topic] {
		if !event.seen(s.id) {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		go func(s subscriber) {
			defer func() { recover() }()
			s.fn(event.chainedThrough(s.id))
		}(s)
	}

	if b.overflow != nil {
		select {
		case b.overflow <- event:
		default:
		}
	}
}

// Events returns the overflow channel passed events are also copied
// onto, for a central observer (e.g. the System's own logger) that
// wants every event regardless of topic subscriptions. Returns nil if
// New was called with overflowSize 0.
func (b *Bus) Events() <-chan Event { return b.overflow }
