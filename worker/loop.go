package worker

import (
	"context"
	"encoding/json"

	"github.com/sngo/actorkit/actor"
	"github.com/sngo/actorkit/endpoint"
	"github.com/sngo/actorkit/protocol"
	"github.com/sngo/actorkit/transport"
)

// RunActorLoop builds a local, in-memory-backed actor for id/cfg/behavior
// and wires bus so every actor-message, destroy-actor, parent-ping, and
// child-config-change frame received on it drives that actor, replying
// over the same bus. It is the piece cmd/sngoworker's process entry and
// system's threaded endpoint factory both share: the only difference
// between a forked worker and a threaded one is what bus they're handed.
func RunActorLoop(ctx context.Context, bus transport.Bus, id actor.ID, parentID actor.ID, cfg actor.Config, behavior actor.Behavior) (*actor.ClientProxy, error) {
	ep, err := endpoint.NewInMemory(id, cfg, behavior)
	if err != nil {
		return nil, err
	}

	var parent *actor.ClientProxy
	if !parentID.IsNil() {
		parentEP := endpoint.NewParentProxy(parentID, bus)
		parentCore := actor.NewCore(parentID, "parent", nil, actor.Config{}, actor.Map{}, parentEP)
		parent = actor.NewClientProxy(parentCore, nil)
		parent.MarkReady()
	}

	core := actor.NewCore(id, id.String(), parent, cfg, behavior, ep)
	proxy := actor.NewClientProxy(core, nil)
	if err := proxy.Bootstrap(ctx); err != nil {
		return nil, err
	}

	bus.On(transport.EventMessage, func(frame protocol.Frame) {
		switch frame.Type {
		case protocol.FrameActorMessage:
			handleActorMessage(ctx, bus, id, proxy, frame)
		case protocol.FrameParentPing:
			pong, err := protocol.Frame{Type: protocol.FrameParentPing, ID: frame.ID, ActorID: id}.WithBody(struct{}{})
			if err == nil {
				bus.Send(pong, nil)
			}
		case protocol.FrameDestroyActor:
			go func() {
				proxy.Destroy(ctx)
				done, err := protocol.Frame{Type: protocol.FrameActorDestroyed, ID: frame.ID, ActorID: id}.WithBody(struct{}{})
				if err == nil {
					bus.Send(done, nil)
				}
				bus.Close()
			}()
		case protocol.FrameChildConfigChange:
			var body protocol.ChildConfigChangeBody
			if err := frame.DecodeBody(&body); err == nil {
				proxy.ChangeConfiguration(ctx, FromWireConfig(body.Config))
			}
		}
	})

	return proxy, nil
}

func handleActorMessage(ctx context.Context, bus transport.Bus, id actor.ID, proxy *actor.ClientProxy, frame protocol.Frame) {
	var body protocol.ActorMessageBody
	if err := frame.DecodeBody(&body); err != nil {
		return
	}
	if !body.Receive {
		proxy.Send(body.Topic, json.RawMessage(body.Message), nil)
		return
	}

	go func() {
		var raw json.RawMessage
		callErr := proxy.SendAndReceive(ctx, body.Topic, json.RawMessage(body.Message), &raw)
		respBody := protocol.ActorResponseBody{Response: raw}
		if callErr != nil {
			respBody.Error = callErr.Error()
		}
		resp, err := protocol.Frame{Type: protocol.FrameActorResponse, ID: frame.ID, ActorID: id}.WithBody(respBody)
		if err == nil {
			bus.Send(resp, nil)
		}
	}()
}
