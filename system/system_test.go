package system

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sngo/actorkit/actor"
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

func TestCreateActorInMemoryDispatches(t *testing.T) {
	sys, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	proxy, err := sys.CreateActor(ctx, "echoer", echoBehavior(), actor.Config{Mode: actor.ModeInMemory})
	if err != nil {
		t.Fatalf("CreateActor: %v", err)
	}

	var got string
	if err := proxy.SendAndReceive(ctx, "echo", "hi", &got); err != nil {
		t.Fatalf("SendAndReceive: %v", err)
	}
	if got != "hi" {
		t.Fatalf("expected %q, got %q", "hi", got)
	}

	if err := sys.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestCreateActorRejectsWhenOverloaded(t *testing.T) {
	sys, err := New(Options{BusyLagLimit: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	release, err := sys.enter()
	if err != nil {
		t.Fatalf("enter: %v", err)
	}
	defer release()

	if !sys.IsOverloaded() {
		t.Fatal("expected system to report overloaded with inflight == BusyLagLimit")
	}

	_, err = sys.CreateActor(context.Background(), "late", echoBehavior(), actor.Config{})
	if err == nil {
		t.Fatal("expected CreateActor to reject while overloaded")
	}
}

func TestShutdownDestroysCreatedActors(t *testing.T) {
	sys, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	proxy, err := sys.CreateActor(ctx, "worker", echoBehavior(), actor.Config{})
	if err != nil {
		t.Fatalf("CreateActor: %v", err)
	}

	if err := sys.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if proxy.State() != actor.StateDestroyed {
		t.Fatalf("expected actor to be destroyed after Shutdown, got %v", proxy.State())
	}
}
