package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sngo/actorkit/actor"
	"github.com/sngo/actorkit/actorid"
	"github.com/sngo/actorkit/protocol"
	"github.com/sngo/actorkit/transport"
)

func echoBehavior() actor.Behavior {
	return actor.Map{
		"echo": func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var s string
			if err := json.Unmarshal(args, &s); err != nil {
				return nil, err
			}
			return s, nil
		},
	}
}

func TestRunActorLoopRoundTripsActorMessage(t *testing.T) {
	parentBus, childBus := transport.NewInProcBus()
	defer parentBus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id := actorid.New()
	if _, err := RunActorLoop(ctx, childBus, id, actorid.Nil, actor.Config{}, echoBehavior()); err != nil {
		t.Fatalf("RunActorLoop: %v", err)
	}

	msg, _ := json.Marshal("hello")
	frame, err := protocol.Frame{Type: protocol.FrameActorMessage, ID: 1, ActorID: id}.WithBody(protocol.ActorMessageBody{
		Topic: "echo", Message: msg, Receive: true,
	})
	if err != nil {
		t.Fatalf("WithBody: %v", err)
	}

	respCh := make(chan protocol.Frame, 1)
	parentBus.On(transport.EventMessage, func(f protocol.Frame) {
		if f.Type == protocol.FrameActorResponse {
			respCh <- f
		}
	})
	parentBus.Send(frame, nil)

	select {
	case resp := <-respCh:
		var body protocol.ActorResponseBody
		if err := resp.DecodeBody(&body); err != nil {
			t.Fatalf("DecodeBody: %v", err)
		}
		if body.Error != "" {
			t.Fatalf("unexpected error in response: %s", body.Error)
		}
		var got string
		if err := json.Unmarshal(body.Response, &got); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
		if got != "hello" {
			t.Fatalf("expected %q, got %q", "hello", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for actor-response")
	}
}

func TestRunActorLoopRepliesToDestroyActor(t *testing.T) {
	parentBus, childBus := transport.NewInProcBus()
	defer parentBus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id := actorid.New()
	if _, err := RunActorLoop(ctx, childBus, id, actorid.Nil, actor.Config{}, actor.Map{}); err != nil {
		t.Fatalf("RunActorLoop: %v", err)
	}

	destroyedCh := make(chan struct{}, 1)
	parentBus.On(transport.EventMessage, func(f protocol.Frame) {
		if f.Type == protocol.FrameActorDestroyed {
			destroyedCh <- struct{}{}
		}
	})

	frame, _ := protocol.Frame{Type: protocol.FrameDestroyActor, ID: 2, ActorID: id}.WithBody(struct{}{})
	parentBus.Send(frame, nil)

	select {
	case <-destroyedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for actor-destroyed")
	}
}
