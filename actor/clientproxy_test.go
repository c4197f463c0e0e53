package actor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sngo/actorkit/actorid"
)

// fakeEndpoint is an in-process stand-in for a real dispatch endpoint,
// just enough to exercise ClientProxy's dispatch and forwarding logic
// without depending on package endpoint.
type fakeEndpoint struct {
	id        ID
	sendCount int
	destroyed bool
}

func (f *fakeEndpoint) ID() ID { return f.id }

func (f *fakeEndpoint) Send0(topic string, args json.RawMessage, cb func(error)) {
	f.sendCount++
	if cb != nil {
		cb(nil)
	}
}

func (f *fakeEndpoint) SendAndReceive0(ctx context.Context, topic string, args json.RawMessage) (json.RawMessage, error) {
	switch topic {
	case "echo":
		return args, nil
	case "boom":
		return nil, errors.New("remote boom")
	default:
		return nil, ErrNoHandler
	}
}

func (f *fakeEndpoint) Destroy0() error {
	f.destroyed = true
	return nil
}

func (f *fakeEndpoint) Metrics0() map[string]interface{} {
	return map[string]interface{}{"sendCount": f.sendCount}
}

func newTestProxy(t *testing.T, name string) (*ClientProxy, *fakeEndpoint) {
	t.Helper()
	id := actorid.New()
	ep := &fakeEndpoint{id: id}
	core := NewCore(id, name, nil, Config{}, Map{}, ep)
	proxy := NewClientProxy(core, nil)
	if err := core.initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	proxy.MarkReady()
	return proxy, ep
}

func TestSendRejectsWhenNotReady(t *testing.T) {
	id := actorid.New()
	ep := &fakeEndpoint{id: id}
	core := NewCore(id, "pending", nil, Config{}, Map{}, ep)
	proxy := NewClientProxy(core, nil)

	var gotErr error
	proxy.Send("hello", nil, func(err error) { gotErr = err })

	if !errors.Is(gotErr, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", gotErr)
	}
}

func TestSendAndReceiveEchoesArgs(t *testing.T) {
	proxy, _ := newTestProxy(t, "echoer")

	var out string
	err := proxy.SendAndReceive(context.Background(), "echo", "hi", &out)
	if err != nil {
		t.Fatalf("SendAndReceive: %v", err)
	}
	if out != "hi" {
		t.Fatalf("expected %q, got %q", "hi", out)
	}
}

func TestSendAndReceivePropagatesRemoteError(t *testing.T) {
	proxy, _ := newTestProxy(t, "boomer")

	err := proxy.SendAndReceive(context.Background(), "boom", nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestForwardToParentRedirectsDispatch(t *testing.T) {
	parent, parentEP := newTestProxy(t, "parent")
	child, _ := newTestProxy(t, "child")
	parent.AddChild("child", child)

	if err := child.ForwardToParent("ping"); err != nil {
		t.Fatalf("ForwardToParent: %v", err)
	}

	var sent bool
	child.Send("ping", nil, func(err error) {
		sent = true
		if err != nil {
			t.Fatalf("unexpected send error: %v", err)
		}
	})

	if !sent {
		t.Fatal("send callback never fired")
	}
	if parentEP.sendCount != 1 {
		t.Fatalf("expected parent endpoint to receive forwarded send, sendCount=%d", parentEP.sendCount)
	}
}

func TestForwardAllUnknownCatchesUnregisteredTopics(t *testing.T) {
	parent, parentEP := newTestProxy(t, "catcher")
	child, _ := newTestProxy(t, "kid")
	parent.AddChild("kid", child)
	child.ForwardAllUnknown(parent)

	child.Send("anything", nil, func(error) {})

	if parentEP.sendCount != 1 {
		t.Fatalf("expected forwardAllUnknown to route to parent, sendCount=%d", parentEP.sendCount)
	}
}

func TestChangeConfigurationNoopPreservesEndpoint(t *testing.T) {
	proxy, ep := newTestProxy(t, "cfgd")
	before := proxy.Core()

	cfg := proxy.Core().Config()
	cfg.CustomParameters = map[string]interface{}{"k": "v"}
	if err := proxy.ChangeConfiguration(context.Background(), cfg); err != nil {
		t.Fatalf("ChangeConfiguration: %v", err)
	}

	if proxy.Core() != before {
		t.Fatal("no-op reconfiguration should not replace the Core")
	}
	if ep.destroyed {
		t.Fatal("no-op reconfiguration should not destroy the endpoint")
	}
	if got := proxy.Core().Config().CustomParameters["k"]; got != "v" {
		t.Fatalf("expected CustomParameters to be applied, got %v", got)
	}
}

func TestChangeConfigurationRebuildsOnShapeChange(t *testing.T) {
	proxy, ep := newTestProxy(t, "shapechanger")
	before := proxy.Core()

	var rebuildCalled bool
	proxy.rebuild = func(old *Core, newConfig Config) (*Core, error) {
		rebuildCalled = true
		newID := actorid.New()
		newEP := &fakeEndpoint{id: newID}
		return NewCore(newID, old.name, old.Parent(), newConfig, old.behavior, newEP), nil
	}

	newCfg := proxy.Core().Config()
	newCfg.Mode = ModeForked
	if err := proxy.ChangeConfiguration(context.Background(), newCfg); err != nil {
		t.Fatalf("ChangeConfiguration: %v", err)
	}

	if !rebuildCalled {
		t.Fatal("expected rebuild to be invoked for shape change")
	}
	if proxy.Core() == before {
		t.Fatal("expected Core to be swapped")
	}
	if !ep.destroyed {
		t.Fatal("expected old endpoint to be destroyed after swap")
	}
}

func TestDestroyTearsDownChildAndParent(t *testing.T) {
	parent, parentEP := newTestProxy(t, "root")
	child, childEP := newTestProxy(t, "leaf")
	parent.AddChild("leaf", child)

	if err := parent.Destroy(context.Background()); err != nil {
		t.Fatalf("Destroy: %v", err)
	}

	if !childEP.destroyed {
		t.Fatal("expected child endpoint to be destroyed")
	}
	if !parentEP.destroyed {
		t.Fatal("expected parent endpoint to be destroyed")
	}
	if parent.State() != StateDestroyed {
		t.Fatalf("expected StateDestroyed, got %v", parent.State())
	}
	if len(parent.Children()) != 0 {
		t.Fatal("expected child to be detached after destroy")
	}
}

func TestCreateChildrenSpawnsAllReady(t *testing.T) {
	parent, _ := newTestProxy(t, "farm")

	behaviors := map[string]Behavior{
		"a": Map{},
		"b": Map{},
		"c": Map{},
	}

	factory := func(id ID, cfg Config, behavior Behavior) (Endpoint, error) {
		return &fakeEndpoint{id: id}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	children, err := parent.CreateChildren(ctx, behaviors, Config{}, factory, nil)
	if err != nil {
		t.Fatalf("CreateChildren: %v", err)
	}
	if len(children) != 3 {
		t.Fatalf("expected 3 children, got %d", len(children))
	}
	for name, child := range children {
		if child.State() != StateReady {
			t.Fatalf("child %q not ready: %v", name, child.State())
		}
	}
	if len(parent.Children()) != 3 {
		t.Fatalf("expected parent to track 3 children, got %d", len(parent.Children()))
	}
}

func TestTreeAndMetricsRollup(t *testing.T) {
	parent, _ := newTestProxy(t, "top")
	child, _ := newTestProxy(t, "bottom")
	parent.AddChild("bottom", child)

	tree := parent.Tree()
	if tree.Name != "top" {
		t.Fatalf("expected root name top, got %s", tree.Name)
	}
	if _, ok := tree.Children["bottom"]; !ok {
		t.Fatal("expected bottom in tree children")
	}

	metrics := parent.Metrics()
	children, ok := metrics["children"].(map[string]interface{})
	if !ok {
		t.Fatal("expected children key in metrics rollup")
	}
	if _, ok := children["bottom"]; !ok {
		t.Fatal("expected bottom in metrics children")
	}
}
