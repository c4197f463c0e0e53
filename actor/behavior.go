package actor

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
)

// Handler processes one "send" or "sendAndReceive" call addressed to a
// topic the behavior owns. args is the request payload as raw JSON,
// left for the handler to decode (or nil for a no-argument send); the
// returned value, if any,
// becomes the sendAndReceive response.
type Handler func(ctx context.Context, args json.RawMessage) (interface{}, error)

// Behavior is the user-supplied topic→handler mapping plus optional
// lifecycle hooks (spec §3, DN-2). It is satisfied either by a literal
// Map or by wrapping a Go struct's exported methods with FromStruct,
// mirroring the teacher's single MessageHandler.HandleMessage dispatch
// generalized to per-topic handlers.
type Behavior interface {
	// Handler looks up the handler for topic, if the behavior defines
	// one.
	Handler(topic string) (Handler, bool)

	// Initialize runs once before the actor transitions to ready.
	Initialize(ctx context.Context) error

	// Destroy runs once during destruction, after all children have
	// been destroyed.
	Destroy(ctx context.Context) error

	// Metrics returns user-defined metrics merged into metrics()
	// rollups (spec §4.4.1).
	Metrics() map[string]interface{}
}

// Map is the simplest Behavior: a literal topic→Handler mapping with no
// lifecycle hooks.
type Map map[string]Handler

func (m Map) Handler(topic string) (Handler, bool) {
	h, ok := m[topic]
	return h, ok
}

func (m Map) Initialize(ctx context.Context) error { return nil }
func (m Map) Destroy(ctx context.Context) error    { return nil }
func (m Map) Metrics() map[string]interface{}      { return nil }

// WithHooks decorates a Map (or any Behavior) with Initialize/Destroy/
// Metrics hooks, for the common case of a literal topic map plus a
// setup/teardown pair.
type WithHooks struct {
	Behavior
	OnInitialize func(ctx context.Context) error
	OnDestroy    func(ctx context.Context) error
	OnMetrics    func() map[string]interface{}
}

func (w WithHooks) Initialize(ctx context.Context) error {
	if w.OnInitialize != nil {
		return w.OnInitialize(ctx)
	}
	return w.Behavior.Initialize(ctx)
}

func (w WithHooks) Destroy(ctx context.Context) error {
	if w.OnDestroy != nil {
		return w.OnDestroy(ctx)
	}
	return w.Behavior.Destroy(ctx)
}

func (w WithHooks) Metrics() map[string]interface{} {
	if w.OnMetrics != nil {
		return w.OnMetrics()
	}
	return w.Behavior.Metrics()
}

// structBehavior adapts an arbitrary Go value's exported methods into a
// Behavior by name, the "instance carrying methods as handlers" half of
// DN-2. A method matches a topic if its name equals the topic
// (case-sensitively) and its signature is
// func(context.Context, json.RawMessage) (interface{}, error).
// Initialize/Destroy/Metrics hooks are picked up the same way if
// present.
type structBehavior struct {
	value reflect.Value
}

// FromStruct wraps v (typically a pointer to a struct) as a Behavior,
// dispatching topic calls to identically-named exported methods.
func FromStruct(v interface{}) Behavior {
	return structBehavior{value: reflect.ValueOf(v)}
}

func (s structBehavior) Handler(topic string) (Handler, bool) {
	method := s.value.MethodByName(topic)
	if !method.IsValid() {
		return nil, false
	}
	fn, ok := method.Interface().(func(context.Context, json.RawMessage) (interface{}, error))
	if !ok {
		return nil, false
	}
	return fn, true
}

func (s structBehavior) Initialize(ctx context.Context) error {
	return s.callHook("Initialize", ctx)
}

func (s structBehavior) Destroy(ctx context.Context) error {
	return s.callHook("Destroy", ctx)
}

func (s structBehavior) callHook(name string, ctx context.Context) error {
	method := s.value.MethodByName(name)
	if !method.IsValid() {
		return nil
	}
	fn, ok := method.Interface().(func(context.Context) error)
	if !ok {
		return fmt.Errorf("actor: %s hook has wrong signature", name)
	}
	return fn(ctx)
}

func (s structBehavior) Metrics() map[string]interface{} {
	method := s.value.MethodByName("Metrics")
	if !method.IsValid() {
		return nil
	}
	fn, ok := method.Interface().(func() map[string]interface{})
	if !ok {
		return nil
	}
	return fn()
}
