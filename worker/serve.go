package worker

import (
	"context"
	"fmt"

	"github.com/sngo/actorkit/actor"
	"github.com/sngo/actorkit/protocol"
	"github.com/sngo/actorkit/transport"
)

// Resolver looks up the actor.Behavior registered under definition, the
// name carried in CreateActorBody.Name. A forked child and its parent
// share the same binary (spec §9), so both sides resolve the same name
// against the same statically-registered table.
type Resolver func(definition string) (actor.Behavior, error)

// Serve blocks on parentBus for the single create-actor frame that
// bootstraps this process, builds the named actor, replies
// actor-created (or a carried error), and then runs the actor's
// dispatch loop until the bus reports the parent exited.
func Serve(ctx context.Context, parentBus transport.Bus, resolve Resolver) error {
	createCh := make(chan protocol.Frame, 1)
	parentBus.Once(transport.EventMessage, func(f protocol.Frame) { createCh <- f })

	exitCh := make(chan struct{})
	parentBus.Once(transport.EventExit, func(protocol.Frame) { close(exitCh) })

	var frame protocol.Frame
	select {
	case frame = <-createCh:
	case <-exitCh:
		return fmt.Errorf("worker: parent exited before create-actor")
	case <-ctx.Done():
		return ctx.Err()
	}

	if frame.Type != protocol.FrameCreateActor {
		return fmt.Errorf("worker: expected create-actor frame, got %s", frame.Type)
	}

	var body protocol.CreateActorBody
	if err := frame.DecodeBody(&body); err != nil {
		return fmt.Errorf("worker: decoding create-actor body: %w: %v", actor.ErrSerialization, err)
	}

	behavior, err := resolve(body.Name)
	if err != nil {
		failFrame := protocol.Frame{Type: protocol.FrameActorCreated, ID: frame.ID, ActorID: body.ID, Error: err.Error()}
		parentBus.Send(failFrame, nil)
		return fmt.Errorf("worker: resolving definition %q: %w", body.Name, err)
	}

	cfg := FromWireConfig(body.Config)

	if _, err := RunActorLoop(ctx, parentBus, body.ID, body.Parent.ID, cfg, behavior); err != nil {
		failFrame := protocol.Frame{Type: protocol.FrameActorCreated, ID: frame.ID, ActorID: body.ID, Error: err.Error()}
		parentBus.Send(failFrame, nil)
		return fmt.Errorf("worker: starting actor loop: %w", err)
	}

	created, err := protocol.Frame{Type: protocol.FrameActorCreated, ID: frame.ID, ActorID: body.ID}.WithBody(protocol.ActorCreatedBody{ID: body.ID})
	if err != nil {
		return fmt.Errorf("worker: encoding actor-created: %w", err)
	}
	parentBus.Send(created, nil)

	<-exitCh
	return nil
}
