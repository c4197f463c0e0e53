package actor

import (
	"context"
	"encoding/json"
	"testing"
)

type counterBehavior struct {
	count int
}

func (c *counterBehavior) Increment(ctx context.Context, args json.RawMessage) (interface{}, error) {
	c.count++
	return c.count, nil
}

func (c *counterBehavior) Initialize(ctx context.Context) error {
	c.count = 100
	return nil
}

func (c *counterBehavior) Metrics() map[string]interface{} {
	return map[string]interface{}{"count": c.count}
}

func TestMapBehaviorDispatch(t *testing.T) {
	called := false
	m := Map{
		"ping": func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			called = true
			return "pong", nil
		},
	}

	h, ok := m.Handler("ping")
	if !ok {
		t.Fatal("expected ping handler to be found")
	}
	result, err := h(context.Background(), nil)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called || result != "pong" {
		t.Fatalf("unexpected dispatch result: called=%v result=%v", called, result)
	}

	if _, ok := m.Handler("missing"); ok {
		t.Fatal("expected missing handler to be absent")
	}
}

func TestWithHooksOverridesUnderlyingBehavior(t *testing.T) {
	base := Map{}
	initCalled := false
	wrapped := WithHooks{
		Behavior: base,
		OnInitialize: func(ctx context.Context) error {
			initCalled = true
			return nil
		},
	}

	if err := wrapped.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !initCalled {
		t.Fatal("expected OnInitialize hook to run")
	}
}

func TestFromStructDispatchesByMethodName(t *testing.T) {
	cb := &counterBehavior{}
	behavior := FromStruct(cb)

	if err := behavior.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	h, ok := behavior.Handler("Increment")
	if !ok {
		t.Fatal("expected Increment handler to be found via reflection")
	}
	result, err := h(context.Background(), nil)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result != 101 {
		t.Fatalf("expected 101, got %v", result)
	}

	metrics := behavior.Metrics()
	if metrics["count"] != 101 {
		t.Fatalf("expected metrics count 101, got %v", metrics["count"])
	}
}
