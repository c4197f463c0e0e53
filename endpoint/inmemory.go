// Package endpoint implements the four Dispatch Endpoint variants (spec
// C5): InMemory for same-process actors, and a shared wire-backed
// implementation used by the forked-child, remote-host, and threaded
// variants, each differing only in which transport.Bus constructor
// built their connection. Grounded throughout on core/actor.go's
// mailbox/processMessage loop and core/advanced_router.go's
// SessionManager.
package endpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sngo/actorkit/actor"
)

// InMemory dispatches directly to a local Behavior via a single-worker
// mailbox loop, the same shape as the teacher's actor.messageLoop /
// actor.processMessage, generalized from one fixed handler to a
// topic-keyed Behavior lookup.
type InMemory struct {
	id       actor.ID
	behavior actor.Behavior

	mailbox chan *envelope
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	processed uint64
}

type envelope struct {
	ctx    context.Context
	topic  string
	args   json.RawMessage
	respCh chan envelopeResult // nil for a fire-and-forget send
}

type envelopeResult struct {
	value interface{}
	err   error
}

const defaultMailboxSize = 256

// NewInMemory builds an in-process endpoint backed by behavior. It
// matches the actor.EndpointFactory signature so it can be passed
// directly to actor.ClientProxy.CreateChild/CreateChildren.
func NewInMemory(id actor.ID, cfg actor.Config, behavior actor.Behavior) (actor.Endpoint, error) {
	ctx, cancel := context.WithCancel(context.Background())
	ep := &InMemory{
		id:       id,
		behavior: behavior,
		mailbox:  make(chan *envelope, defaultMailboxSize),
		ctx:      ctx,
		cancel:   cancel,
	}
	ep.wg.Add(1)
	go ep.loop()
	return ep, nil
}

func (e *InMemory) ID() actor.ID { return e.id }

func (e *InMemory) loop() {
	defer e.wg.Done()
	for {
		select {
		case env := <-e.mailbox:
			e.process(env)
		case <-e.ctx.Done():
			return
		}
	}
}

func (e *InMemory) process(env *envelope) {
	atomic.AddUint64(&e.processed, 1)

	handler, ok := e.behavior.Handler(env.topic)
	if !ok {
		if env.respCh != nil {
			env.respCh <- envelopeResult{err: fmt.Errorf("endpoint %s: topic %q: %w", e.id, env.topic, actor.ErrNoHandler)}
		}
		return
	}

	value, err := handler(env.ctx, env.args)
	if env.respCh != nil {
		env.respCh <- envelopeResult{value: value, err: err}
	}
}

// Send0 enqueues a fire-and-forget call. cb, if non-nil, reports
// whether the mailbox accepted the message — not whether the handler
// has run yet, matching spec §4.4.2's async send semantics.
func (e *InMemory) Send0(topic string, args json.RawMessage, cb func(error)) {
	env := &envelope{ctx: context.Background(), topic: topic, args: args}
	select {
	case e.mailbox <- env:
		if cb != nil {
			cb(nil)
		}
	default:
		if cb != nil {
			cb(fmt.Errorf("endpoint %s: %w", e.id, actor.ErrOverloaded))
		}
	}
}

// SendAndReceive0 enqueues a call and blocks for its result.
func (e *InMemory) SendAndReceive0(ctx context.Context, topic string, args json.RawMessage) (json.RawMessage, error) {
	respCh := make(chan envelopeResult, 1)
	env := &envelope{ctx: ctx, topic: topic, args: args, respCh: respCh}

	select {
	case e.mailbox <- env:
	default:
		return nil, fmt.Errorf("endpoint %s: %w", e.id, actor.ErrOverloaded)
	}

	select {
	case res := <-respCh:
		if res.err != nil {
			return nil, res.err
		}
		if res.value == nil {
			return nil, nil
		}
		raw, err := json.Marshal(res.value)
		if err != nil {
			return nil, fmt.Errorf("endpoint %s: %w: %v", e.id, actor.ErrSerialization, err)
		}
		return raw, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.ctx.Done():
		return nil, fmt.Errorf("endpoint %s: %w", e.id, actor.ErrTransport)
	}
}

func (e *InMemory) Destroy0() error {
	e.cancel()
	e.wg.Wait()
	return nil
}

func (e *InMemory) Metrics0() map[string]interface{} {
	return map[string]interface{}{
		"mode":         string(actor.ModeInMemory),
		"processed":    atomic.LoadUint64(&e.processed),
		"mailboxDepth": len(e.mailbox),
	}
}
