package endpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sngo/actorkit/actor"
	"github.com/sngo/actorkit/protocol"
	"github.com/sngo/actorkit/transport"
)

// wireBacked dispatches over a protocol.Frame/transport.Bus pair: it
// is the shared implementation behind the forked-child, remote-host,
// and threaded Dispatch Endpoint variants (spec C5), which differ only
// in how their Bus was constructed. Correlation of actor-message to
// actor-response frames mirrors core/advanced_router.go's
// SessionManager, and the periodic parent-ping liveness check mirrors
// cluster.clusterManager's heartbeat/failure-detection loop.
type wireBacked struct {
	id  actor.ID
	bus transport.Bus
	cfg actor.Config

	seq     uint32
	pending sync.Map // uint32 -> chan protocol.Frame

	onCrash  func()
	crashed  sync.Once
	done     chan struct{}
	lastBeat int64 // unix nano, atomic

	msgSub  transport.Subscription
	exitSub transport.Subscription

	processed uint64
}

func newWireBacked(id actor.ID, cfg actor.Config, bus transport.Bus, onCrash func()) *wireBacked {
	w := &wireBacked{
		id:      id,
		bus:     bus,
		cfg:     normalizedPingTimeout(cfg),
		onCrash: onCrash,
		done:    make(chan struct{}),
	}
	atomic.StoreInt64(&w.lastBeat, time.Now().UnixNano())

	w.msgSub = bus.On(transport.EventMessage, w.handleFrame)
	w.exitSub = bus.On(transport.EventExit, func(protocol.Frame) { w.triggerCrash() })

	if w.cfg.PingTimeout > 0 {
		go w.pingLoop()
	}
	return w
}

// NewForked builds the parent-side endpoint for a forked child actor
// over a process-backed Bus.
func NewForked(id actor.ID, cfg actor.Config, bus transport.Bus, onCrash func()) (actor.Endpoint, error) {
	return newWireBacked(id, cfg, bus, onCrash), nil
}

// NewRemoteHost builds the endpoint for an actor hosted on a remote
// machine, over a TCP-backed Bus.
func NewRemoteHost(id actor.ID, cfg actor.Config, bus transport.Bus, onCrash func()) (actor.Endpoint, error) {
	return newWireBacked(id, cfg, bus, onCrash), nil
}

// NewThreaded builds the endpoint for an actor running on a dedicated
// goroutine worker, over a thread-backed Bus (transport.NewThreadBus).
func NewThreaded(id actor.ID, cfg actor.Config, bus transport.Bus, onCrash func()) (actor.Endpoint, error) {
	return newWireBacked(id, cfg, bus, onCrash), nil
}

func (w *wireBacked) ID() actor.ID { return w.id }

func (w *wireBacked) nextID() uint32 { return atomic.AddUint32(&w.seq, 1) }

func (w *wireBacked) touch() { atomic.StoreInt64(&w.lastBeat, time.Now().UnixNano()) }

func (w *wireBacked) handleFrame(frame protocol.Frame) {
	w.touch()
	switch frame.Type {
	case protocol.FrameActorResponse:
		if ch, ok := w.pending.LoadAndDelete(frame.ID); ok {
			ch.(chan protocol.Frame) <- frame
		}
	case protocol.FrameParentPing:
		// an echoed liveness reply; touch() above already recorded it.
	}
}

func (w *wireBacked) pingLoop() {
	interval := w.cfg.PingTimeout / 3
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			frame, err := protocol.Frame{Type: protocol.FrameParentPing, ID: w.nextID(), ActorID: w.id}.WithBody(struct{}{})
			if err == nil {
				w.bus.Send(frame, func(err error) {
					if err != nil {
						w.triggerCrash()
					}
				})
			}
			if time.Since(time.Unix(0, atomic.LoadInt64(&w.lastBeat))) > w.cfg.PingTimeout {
				w.triggerCrash()
				return
			}
		case <-w.done:
			return
		}
	}
}

func (w *wireBacked) triggerCrash() {
	w.crashed.Do(func() {
		close(w.done)
		if w.onCrash != nil {
			w.onCrash()
		}
	})
}

func (w *wireBacked) Send0(topic string, args json.RawMessage, cb func(error)) {
	atomic.AddUint64(&w.processed, 1)
	frame, err := protocol.Frame{Type: protocol.FrameActorMessage, ID: w.nextID(), ActorID: w.id}.
		WithBody(protocol.ActorMessageBody{Topic: topic, Message: args, Receive: false})
	if err != nil {
		if cb != nil {
			cb(fmt.Errorf("endpoint %s: %w: %v", w.id, actor.ErrSerialization, err))
		}
		return
	}
	w.bus.Send(frame, cb)
}

func (w *wireBacked) SendAndReceive0(ctx context.Context, topic string, args json.RawMessage) (json.RawMessage, error) {
	atomic.AddUint64(&w.processed, 1)

	id := w.nextID()
	respCh := make(chan protocol.Frame, 1)
	w.pending.Store(id, respCh)
	defer w.pending.Delete(id)

	frame, err := protocol.Frame{Type: protocol.FrameActorMessage, ID: id, ActorID: w.id}.
		WithBody(protocol.ActorMessageBody{Topic: topic, Message: args, Receive: true})
	if err != nil {
		return nil, fmt.Errorf("endpoint %s: %w: %v", w.id, actor.ErrSerialization, err)
	}

	errCh := make(chan error, 1)
	w.bus.Send(frame, func(err error) {
		if err != nil {
			errCh <- err
		}
	})

	select {
	case resp := <-respCh:
		var body protocol.ActorResponseBody
		if err := resp.DecodeBody(&body); err != nil {
			return nil, fmt.Errorf("endpoint %s: %w: %v", w.id, actor.ErrSerialization, err)
		}
		if body.Error != "" {
			return nil, fmt.Errorf("endpoint %s: %s: %w", w.id, body.Error, actor.ErrRemoteError)
		}
		return body.Response, nil
	case err := <-errCh:
		return nil, fmt.Errorf("endpoint %s: %w: %v", w.id, actor.ErrTransport, err)
	case <-w.done:
		return nil, fmt.Errorf("endpoint %s: %w", w.id, actor.ErrLivenessTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (w *wireBacked) Destroy0() error {
	w.crashed.Do(func() { close(w.done) })
	w.bus.Off(transport.EventMessage, w.msgSub)
	w.bus.Off(transport.EventExit, w.exitSub)
	frame, err := protocol.Frame{Type: protocol.FrameDestroyActor, ID: w.nextID(), ActorID: w.id}.WithBody(struct{}{})
	if err == nil {
		w.bus.Send(frame, nil)
	}
	return w.bus.Close()
}

func (w *wireBacked) Metrics0() map[string]interface{} {
	return map[string]interface{}{
		"mode":      string(w.cfg.Mode),
		"processed": atomic.LoadUint64(&w.processed),
	}
}

func normalizedPingTimeout(cfg actor.Config) actor.Config {
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = actor.DefaultPingTimeout
	}
	return cfg
}
