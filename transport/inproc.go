package transport

import (
	"fmt"
	"sync"

	"github.com/sngo/actorkit/protocol"
)

// inProcBus is the in-process Transport Bus variant (§4.2 item 4): no
// framing, just a direct handoff to the peer's emitter. It backs both
// the in-memory endpoint's parent/child link and the worker-thread
// variant below, which differs only in the idiom it is presented under.
type inProcBus struct {
	*emitter

	mu     sync.Mutex
	peer   *inProcBus
	closed bool
}

// NewInProcBus returns a connected pair of buses with no framing
// overhead, suitable for an in-memory endpoint talking to its logical
// parent within the same process.
func NewInProcBus() (Bus, Bus) {
	a := &inProcBus{emitter: newEmitter()}
	b := &inProcBus{emitter: newEmitter()}
	a.peer = b
	b.peer = a
	return a, b
}

func (b *inProcBus) Send(frame protocol.Frame, cb func(error)) {
	b.mu.Lock()
	closed := b.closed
	peer := b.peer
	b.mu.Unlock()

	if closed || peer == nil {
		if cb != nil {
			cb(fmt.Errorf("transport: bus is closed"))
		}
		return
	}

	peer.emit(EventMessage, frame)
	if cb != nil {
		cb(nil)
	}
}

func (b *inProcBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	peer := b.peer
	b.mu.Unlock()

	if peer != nil {
		peer.emit(EventExit, protocol.Frame{})
	}
	b.emit(EventExit, protocol.Frame{})
	return nil
}
