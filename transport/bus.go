// Package transport implements the Transport Bus (C2): a uniform
// send/receive interface laid over four physically different channels
// (in-process, forked child stdio, TCP, worker goroutine). None of the
// code built on top of Bus branches on which implementation it holds.
package transport

import (
	"sync"

	"github.com/sngo/actorkit/protocol"
)

// EventMessage and EventExit are the two events every Bus emits. A frame
// is delivered on EventMessage; EventExit fires (with a zero Frame) when
// the peer or channel closes, the signal forked/remote endpoints use to
// detect a crash.
const (
	EventMessage = "message"
	EventExit    = "exit"
)

// Subscription identifies a registered handler so it can later be
// removed with Off. Go closures are not comparable, so Bus exposes a
// handle instead of the teacher-free-form `off(event, fn)` JS idiom.
type Subscription uint64

// Bus is the narrow transport contract of spec §4.2.
type Bus interface {
	// Send enqueues or immediately writes frame; cb is invoked once the
	// frame has been handed to the OS (or failed to be).
	Send(frame protocol.Frame, cb func(error))

	// On registers fn for every occurrence of event.
	On(event string, fn func(protocol.Frame)) Subscription

	// Once registers fn to fire at most once.
	Once(event string, fn func(protocol.Frame)) Subscription

	// Off removes a previously registered handler.
	Off(event string, sub Subscription)

	// Close tears down the underlying channel, triggering EventExit for
	// any remaining listeners exactly once.
	Close() error
}

// emitter is the shared on/once/off/emit bookkeeping reused by every Bus
// implementation, grounded on the listener-fanout shape of
// cluster.clusterManager.publishEvent and
// bootstrap.DefaultLifecycleManager.broadcastEvent: each listener runs in
// its own goroutine so a slow or panicking handler cannot stall delivery
// to its peers.
type emitter struct {
	mu       sync.Mutex
	nextSub  Subscription
	handlers map[string]map[Subscription]func(protocol.Frame)
	once     map[Subscription]bool
}

func newEmitter() *emitter {
	return &emitter{
		handlers: make(map[string]map[Subscription]func(protocol.Frame)),
		once:     make(map[Subscription]bool),
	}
}

func (e *emitter) on(event string, fn func(protocol.Frame), runOnce bool) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextSub++
	sub := e.nextSub
	if e.handlers[event] == nil {
		e.handlers[event] = make(map[Subscription]func(protocol.Frame))
	}
	e.handlers[event][sub] = fn
	if runOnce {
		e.once[sub] = true
	}
	return sub
}

func (e *emitter) off(event string, sub Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.handlers[event], sub)
	delete(e.once, sub)
}

func (e *emitter) emit(event string, frame protocol.Frame) {
	e.mu.Lock()
	fired := make([]func(protocol.Frame), 0, len(e.handlers[event]))
	for sub, fn := range e.handlers[event] {
		fired = append(fired, fn)
		if e.once[sub] {
			delete(e.handlers[event], sub)
			delete(e.once, sub)
		}
	}
	e.mu.Unlock()

	for _, fn := range fired {
		go func(fn func(protocol.Frame)) {
			defer func() { recover() }()
			fn(frame)
		}(fn)
	}
}
