package endpoint

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

// fakeChild simulates a worker replying on its end of an in-process bus
// pair: it echoes every actor-message frame with Receive=true back as
// an actor-response, and ignores fire-and-forget sends.
func fakeChild(childBus transport.Bus) {
	childBus.On(transport.EventMessage, func(frame protocol.Frame) {
		if frame.Type != protocol.FrameActorMessage {
			return
		}
		var body protocol.ActorMessageBody
		if err := frame.DecodeBody(&body); err != nil {
			return
		}
		if !body.Receive {
			return
		}
		resp, _ := protocol.Frame{Type: protocol.FrameActorResponse, ID: frame.ID, ActorID: frame.ActorID}.
			WithBody(protocol.ActorResponseBody{Response: body.Message})
		childBus.Send(resp, nil)
	})
}

func TestWireBackedSendAndReceiveRoundTrips(t *testing.T) {
	parentBus, childBus := transport.NewInProcBus()
	fakeChild(childBus)

	id := actorid.New()
	crashed := false
	ep, err := NewForked(id, actor.Config{PingTimeout: time.Hour}, parentBus, func() { crashed = true })
	if err != nil {
		t.Fatalf("NewForked: %v", err)
	}
	defer ep.Destroy0()

	raw, _ := json.Marshal("hello")
	resp, err := ep.SendAndReceive0(context.Background(), "echo", raw)
	if err != nil {
		t.Fatalf("SendAndReceive0: %v", err)
	}

	var got string
	if err := json.Unmarshal(resp, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != "hello" {
		t.Fatalf("expected hello, got %q", got)
	}
	if crashed {
		t.Fatal("did not expect crash callback to fire")
	}
}

func TestWireBackedExitTriggersCrash(t *testing.T) {
	parentBus, childBus := transport.NewInProcBus()

	id := actorid.New()
	crashCh := make(chan struct{})
	ep, err := NewForked(id, actor.Config{PingTimeout: time.Hour}, parentBus, func() { close(crashCh) })
	if err != nil {
		t.Fatalf("NewForked: %v", err)
	}

	childBus.Close()

	select {
	case <-crashCh:
	case <-time.After(2 * time.Second):
		t.Fatal("expected crash callback after peer close")
	}

	_ = ep
}
