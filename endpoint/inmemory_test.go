package endpoint

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sngo/actorkit/actor"
	"github.com/sngo/actorkit/actorid"
)

func TestInMemorySendAndReceiveDispatchesToBehavior(t *testing.T) {
	behavior := actor.Map{
		"double": func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var n int
			if err := json.Unmarshal(args, &n); err != nil {
				return nil, err
			}
			return n * 2, nil
		},
	}

	ep, err := NewInMemory(actorid.New(), actor.Config{}, behavior)
	if err != nil {
		t.Fatalf("NewInMemory: %v", err)
	}
	defer ep.Destroy0()

	raw, _ := json.Marshal(21)
	resp, err := ep.SendAndReceive0(context.Background(), "double", raw)
	if err != nil {
		t.Fatalf("SendAndReceive0: %v", err)
	}

	var got int
	if err := json.Unmarshal(resp, &got); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestInMemorySendAndReceiveNoHandler(t *testing.T) {
	ep, err := NewInMemory(actorid.New(), actor.Config{}, actor.Map{})
	if err != nil {
		t.Fatalf("NewInMemory: %v", err)
	}
	defer ep.Destroy0()

	_, err = ep.SendAndReceive0(context.Background(), "missing", nil)
	if err == nil {
		t.Fatal("expected error for missing handler")
	}
}

func TestInMemoryMetricsTracksProcessedCount(t *testing.T) {
	behavior := actor.Map{
		"noop": func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			return nil, nil
		},
	}
	ep, err := NewInMemory(actorid.New(), actor.Config{}, behavior)
	if err != nil {
		t.Fatalf("NewInMemory: %v", err)
	}
	defer ep.Destroy0()

	if _, err := ep.SendAndReceive0(context.Background(), "noop", nil); err != nil {
		t.Fatalf("SendAndReceive0: %v", err)
	}

	metrics := ep.Metrics0()
	if metrics["processed"].(uint64) != 1 {
		t.Fatalf("expected processed=1, got %v", metrics["processed"])
	}
}
