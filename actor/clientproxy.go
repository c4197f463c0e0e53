package actor

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Rebuilder constructs a replacement Core for a hot reconfiguration that
// changes more than CustomParameters (spec §4.4.4 step 2): typically it
// tears down the old endpoint and spins up a new one matching the new
// Config's Mode/Host/Cluster. The System supplies this, since only it
// knows how to build endpoints; actor itself stays endpoint-agnostic.
type Rebuilder func(old *Core, newConfig Config) (*Core, error)

// ClientProxy is the stable handle user code and siblings hold for an
// actor. Its identity survives hot reconfiguration: internally it swaps
// the *Core pointer it wraps rather than ever being replaced itself,
// matching spec §4.4.4's "preserves Client Proxy identity" requirement.
// Grounded on core/actor.go's actor struct combined with
// core/advanced_router.go's SessionManager for the request/response
// half of SendAndReceive.
type ClientProxy struct {
	core    atomic.Pointer[Core]
	rebuild Rebuilder

	mu sync.Mutex // serializes reconfiguration and destroy against each other
}

// NewClientProxy wraps core in a new proxy. rebuild may be nil if this
// proxy's configuration is never expected to change shape (e.g. a
// worker's root actor).
func NewClientProxy(core *Core, rebuild Rebuilder) *ClientProxy {
	p := &ClientProxy{rebuild: rebuild}
	p.core.Store(core)
	return p
}

func (p *ClientProxy) Core() *Core { return p.core.Load() }

func (p *ClientProxy) ID() ID      { return p.Core().id }
func (p *ClientProxy) Name() string { return p.Core().name }
func (p *ClientProxy) State() State { return p.Core().State() }

// MarkReady transitions new -> ready once initialize has succeeded.
func (p *ClientProxy) MarkReady() { p.Core().setState(StateReady) }

// Bootstrap runs this actor's behavior initialize hook and, on success,
// transitions it to ready. CreateChild/CreateChildren call this
// automatically; use it directly for a proxy built straight from
// NewClientProxy, such as a System's root actor or a balancer's own
// multiplexing endpoint.
func (p *ClientProxy) Bootstrap(ctx context.Context) error {
	c := p.Core()
	if err := c.initialize(ctx); err != nil {
		c.setState(StateCrashed)
		return err
	}
	p.MarkReady()
	return nil
}

// MarkCrashed records that the endpoint observed the underlying process
// or connection die. Supervision (respawn-or-stop) is the System's
// responsibility, driven by reading Core().Config().OnCrash after this.
func (p *ClientProxy) MarkCrashed() { p.Core().setState(StateCrashed) }

// Send is the fire-and-forget half of dispatch (spec §4.4.2). cb, if
// non-nil, is invoked once the underlying endpoint has attempted
// delivery; it never carries a response value, only a delivery error.
func (p *ClientProxy) Send(topic string, args interface{}, cb func(error)) {
	c := p.Core()
	if !c.ready() {
		if cb != nil {
			cb(fmt.Errorf("actor %s: %w", c.id, ErrNotReady))
		}
		return
	}
	if target, ok := c.forwardTarget(topic); ok {
		target.Send(topic, args, cb)
		return
	}
	raw, err := marshalArgs(args)
	if err != nil {
		if cb != nil {
			cb(fmt.Errorf("actor %s: %w: %v", c.id, ErrSerialization, err))
		}
		return
	}
	c.endpoint.Send0(topic, raw, cb)
}

// SendAndReceive is the request/response half of dispatch (spec
// §4.4.2): it blocks until a response frame arrives, the endpoint
// reports a transport failure, or ctx is cancelled.
func (p *ClientProxy) SendAndReceive(ctx context.Context, topic string, args interface{}, out interface{}) error {
	c := p.Core()
	if !c.ready() {
		return fmt.Errorf("actor %s: %w", c.id, ErrNotReady)
	}
	if target, ok := c.forwardTarget(topic); ok {
		return target.SendAndReceive(ctx, topic, args, out)
	}
	raw, err := marshalArgs(args)
	if err != nil {
		return fmt.Errorf("actor %s: %w: %v", c.id, ErrSerialization, err)
	}
	resp, err := c.endpoint.SendAndReceive0(ctx, topic, raw)
	if err != nil {
		return err
	}
	if out == nil || len(resp) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp, out); err != nil {
		return fmt.Errorf("actor %s: %w: %v", c.id, ErrSerialization, err)
	}
	return nil
}

// Broadcast fans topic out to every member of a clustered actor (spec
// §4.4.1/§4.6); a non-clustered actor's endpoint just receives the one
// send. cb, if non-nil, receives one error per cluster member (a
// single-element slice for a non-clustered actor).
func (p *ClientProxy) Broadcast(topic string, args interface{}, cb func([]error)) {
	c := p.Core()
	if !c.ready() {
		if cb != nil {
			cb([]error{fmt.Errorf("actor %s: %w", c.id, ErrNotReady)})
		}
		return
	}
	if target, ok := c.forwardTarget(topic); ok {
		target.Broadcast(topic, args, cb)
		return
	}
	raw, err := marshalArgs(args)
	if err != nil {
		if cb != nil {
			cb([]error{fmt.Errorf("actor %s: %w: %v", c.id, ErrSerialization, err)})
		}
		return
	}
	if b, ok := c.endpoint.(Broadcaster); ok {
		errs := b.Broadcast0(topic, raw)
		if cb != nil {
			cb(errs)
		}
		return
	}
	c.endpoint.Send0(topic, raw, func(err error) {
		if cb != nil {
			cb([]error{err})
		}
	})
}

// BroadcastAndReceive fans topic out to every cluster member and
// unmarshals the collected responses into out, which must be a pointer
// to a slice. A non-clustered actor uniformly reports a one-element
// array (OQ-2) rather than a bare value.
func (p *ClientProxy) BroadcastAndReceive(ctx context.Context, topic string, args interface{}, out interface{}) error {
	c := p.Core()
	if !c.ready() {
		return fmt.Errorf("actor %s: %w", c.id, ErrNotReady)
	}
	if target, ok := c.forwardTarget(topic); ok {
		return target.BroadcastAndReceive(ctx, topic, args, out)
	}
	raw, err := marshalArgs(args)
	if err != nil {
		return fmt.Errorf("actor %s: %w: %v", c.id, ErrSerialization, err)
	}

	var responses []json.RawMessage
	if b, ok := c.endpoint.(Broadcaster); ok {
		resp, errs := b.BroadcastAndReceive0(ctx, topic, raw)
		if err := firstError(errs); err != nil {
			return err
		}
		responses = resp
	} else {
		resp, err := c.endpoint.SendAndReceive0(ctx, topic, raw)
		if err != nil {
			return err
		}
		responses = []json.RawMessage{resp}
	}

	if out == nil {
		return nil
	}
	packed, err := json.Marshal(responses)
	if err != nil {
		return fmt.Errorf("actor %s: %w: %v", c.id, ErrSerialization, err)
	}
	if err := json.Unmarshal(packed, out); err != nil {
		return fmt.Errorf("actor %s: %w: %v", c.id, ErrSerialization, err)
	}
	return nil
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func marshalArgs(args interface{}) (json.RawMessage, error) {
	if args == nil {
		return nil, nil
	}
	if raw, ok := args.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(args)
}

// AddChild registers child under name and sets its parent pointer to
// p, matching spec §3's child-ownership attribute (DN-3: "a child's
// lifetime is bound to its parent's").
func (p *ClientProxy) AddChild(name string, child *ClientProxy) {
	p.Core().addChild(name, child)
	child.Core().mu.Lock()
	child.Core().parent = p
	child.Core().mu.Unlock()
}

func (p *ClientProxy) Child(name string) (*ClientProxy, bool) {
	c, ok := p.Core().Children()[name]
	return c, ok
}

func (p *ClientProxy) Children() map[string]*ClientProxy { return p.Core().Children() }

// FindDescendant searches p and its descendants depth-first for the
// actor addressed by id, for supervision code that only has an id to go
// on (e.g. an endpoint's onCrash callback locating the balancer replica
// that just went down).
func (p *ClientProxy) FindDescendant(id ID) (*ClientProxy, bool) {
	if p.ID() == id {
		return p, true
	}
	for _, child := range p.Children() {
		if found, ok := child.FindDescendant(id); ok {
			return found, true
		}
	}
	return nil, false
}

// ForwardToParent routes topic, matched literally, to this actor's
// parent instead of handling it locally (spec §4.4.2's forwarding
// table). Use ForwardToParentPattern for a regular-expression match.
func (p *ClientProxy) ForwardToParent(topic string) error {
	parent := p.Core().Parent()
	if parent == nil {
		return fmt.Errorf("actor %s: %w: no parent", p.ID(), ErrNotAChild)
	}
	p.Core().setForwardLiteral(topic, parent)
	return nil
}

// ForwardToParentPattern routes every topic matching pattern to this
// actor's parent (spec §4.4.3's "regular expression, anchored by the
// user" form).
func (p *ClientProxy) ForwardToParentPattern(pattern *regexp.Regexp) error {
	parent := p.Core().Parent()
	if parent == nil {
		return fmt.Errorf("actor %s: %w: no parent", p.ID(), ErrNotAChild)
	}
	p.Core().setForwardPattern(pattern, parent)
	return nil
}

// ForwardToChild routes topic, matched literally, to the named child.
// Use ForwardToChildPattern for a regular-expression match.
func (p *ClientProxy) ForwardToChild(topic, childName string) error {
	child, ok := p.Child(childName)
	if !ok {
		return fmt.Errorf("actor %s: %w: %s", p.ID(), ErrNotAChild, childName)
	}
	p.Core().setForwardLiteral(topic, child)
	return nil
}

// ForwardToChildPattern routes every topic matching pattern to the
// named child.
func (p *ClientProxy) ForwardToChildPattern(pattern *regexp.Regexp, childName string) error {
	child, ok := p.Child(childName)
	if !ok {
		return fmt.Errorf("actor %s: %w: %s", p.ID(), ErrNotAChild, childName)
	}
	p.Core().setForwardPattern(pattern, child)
	return nil
}

// ForwardAllUnknown makes every topic without its own handler or
// forward entry fall through to target (spec §3's forwardAllUnknown
// attribute). It never overrides a topic the local behavior itself
// handles.
func (p *ClientProxy) ForwardAllUnknown(target *ClientProxy) {
	p.Core().setForwardAllUnknown(target)
}

// ClearForward removes a single literal topic's forwarding entry.
func (p *ClientProxy) ClearForward(topic string) {
	p.Core().clearForwardLiteral(topic)
}

// ClearForwardPattern removes a previously registered regular-expression
// forwarding entry.
func (p *ClientProxy) ClearForwardPattern(pattern *regexp.Regexp) {
	p.Core().clearForwardPattern(pattern)
}

// ChangeConfiguration applies newConfig to this actor (spec §4.4.4). If
// only CustomParameters differs, the change is applied in place with no
// disruption (step 1). Otherwise the rebuilder constructs a new
// endpoint, the behavior's initialize hook runs on it (if that fails
// the old endpoint stays in place and the error is returned), and the
// old endpoint is torn down, preserving parent/children/forward state
// across the swap while the ClientProxy's own identity is untouched.
func (p *ClientProxy) ChangeConfiguration(ctx context.Context, newConfig Config) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	old := p.Core()
	newConfig = newConfig.normalized()

	if old.Config().equalModuloCustomParameters(newConfig) {
		old.mu.Lock()
		old.config.CustomParameters = newConfig.CustomParameters
		old.mu.Unlock()
		return nil
	}

	// Balancer carve-out (spec §4.4.4): a pure clusterSize change is
	// handled in place by the endpoint itself (Grow/Shrink), without
	// disturbing the rest of the subtree the general rebuild path would
	// touch.
	if resizer, ok := old.Endpoint().(ClusterResizer); ok && old.Config().equalModuloClusterSizeAndCustomParameters(newConfig) {
		if err := resizer.ResizeCluster(ctx, newConfig.ClusterSize); err != nil {
			return fmt.Errorf("actor %s: resizing cluster: %w", old.id, err)
		}
		old.mu.Lock()
		old.config = newConfig
		old.mu.Unlock()
		return nil
	}

	if p.rebuild == nil {
		return fmt.Errorf("actor %s: reconfiguration requires endpoint rebuild but none is configured", old.id)
	}

	replacement, err := p.rebuild(old, newConfig)
	if err != nil {
		return fmt.Errorf("actor %s: rebuild failed: %w", old.id, err)
	}

	old.mu.RLock()
	replacement.parent = old.parent
	replacement.children = old.children
	replacement.forwardList = old.forwardList
	replacement.forwardAllUnknown = old.forwardAllUnknown
	old.mu.RUnlock()

	if err := replacement.initialize(ctx); err != nil {
		replacement.setState(StateCrashed)
		return fmt.Errorf("actor %s: reconfigure initialize: %w", old.id, err)
	}
	replacement.setState(StateReady)
	p.core.Store(replacement)

	if old.endpoint != nil {
		_ = old.endpoint.Destroy0()
	}
	return nil
}

// Restart forcibly rebuilds the endpoint with the current configuration
// even though nothing about it changed, the respawn half of spec
// §4.4.5's onCrash=respawn policy. Unlike ChangeConfiguration it never
// takes the no-op path, since the whole point is to replace a dead
// endpoint with a fresh one of the same shape.
func (p *ClientProxy) Restart(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	old := p.Core()
	if p.rebuild == nil {
		return fmt.Errorf("actor %s: restart requires endpoint rebuild but none is configured", old.id)
	}

	replacement, err := p.rebuild(old, old.Config())
	if err != nil {
		return fmt.Errorf("actor %s: restart failed: %w", old.id, err)
	}

	old.mu.RLock()
	replacement.parent = old.parent
	replacement.children = old.children
	replacement.forwardList = old.forwardList
	replacement.forwardAllUnknown = old.forwardAllUnknown
	old.mu.RUnlock()

	if err := replacement.initialize(ctx); err != nil {
		replacement.setState(StateCrashed)
		return fmt.Errorf("actor %s: restart initialize: %w", old.id, err)
	}
	replacement.setState(StateReady)
	p.core.Store(replacement)

	if old.endpoint != nil {
		_ = old.endpoint.Destroy0()
	}
	return nil
}

// ChangeGlobalConfiguration applies configs to this actor's subtree
// (spec §4.4.1's `changeGlobalConfiguration(map)`): each actor looks up
// its own config by its Name() and applies it if present, then recurses
// the same map into every child regardless of whether that child's own
// name appears in it. Descent fans out with errgroup the way Destroy
// fans out child destruction.
func (p *ClientProxy) ChangeGlobalConfiguration(ctx context.Context, configs map[string]Config) error {
	if cfg, ok := configs[p.Name()]; ok {
		if err := p.ChangeConfiguration(ctx, cfg); err != nil {
			return err
		}
	}
	children := p.Children()
	g, gctx := errgroup.WithContext(ctx)
	for _, child := range children {
		child := child
		g.Go(func() error {
			return child.ChangeGlobalConfiguration(gctx, configs)
		})
	}
	return g.Wait()
}

// Destroy tears this actor down: state moves to destroying, all
// children are destroyed first (spec §5's child-before-parent
// ordering), then the behavior's teardown hook and finally the
// endpoint itself. If p has a parent, it is detached from the parent's
// child registry on success.
func (p *ClientProxy) Destroy(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := p.Core()
	if c.State() == StateDestroyed || c.State() == StateDestroying {
		return nil
	}
	c.setState(StateDestroying)

	children := c.Children()
	g, gctx := errgroup.WithContext(ctx)
	for name, child := range children {
		name, child := name, child
		g.Go(func() error {
			if err := child.Destroy(gctx); err != nil {
				return err
			}
			c.removeChild(name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.setState(StateCrashed)
		return fmt.Errorf("actor %s: destroying children: %w", c.id, err)
	}

	if err := c.destroy(ctx); err != nil {
		c.setState(StateCrashed)
		return fmt.Errorf("actor %s: %w", c.id, err)
	}

	if c.endpoint != nil {
		if err := c.endpoint.Destroy0(); err != nil {
			c.setState(StateCrashed)
			return fmt.Errorf("actor %s: %w: %v", c.id, ErrTransport, err)
		}
	}

	c.setState(StateDestroyed)

	if parent := c.Parent(); parent != nil {
		for name, child := range parent.Children() {
			if child == p {
				parent.Core().removeChild(name)
				break
			}
		}
	}
	return nil
}

// TreeNode is one level of the recursive actor-tree snapshot returned
// by Tree (spec §6.1's actor-tree frame body).
type TreeNode struct {
	ID       ID                  `json:"id"`
	Name     string              `json:"name"`
	State    string              `json:"state"`
	Children map[string]TreeNode `json:"children,omitempty"`
}

// Tree recursively snapshots this actor and its descendants.
func (p *ClientProxy) Tree() TreeNode {
	c := p.Core()
	node := TreeNode{ID: c.id, Name: c.name, State: c.State().String()}
	children := c.Children()
	if len(children) > 0 {
		node.Children = make(map[string]TreeNode, len(children))
		for name, child := range children {
			node.Children[name] = child.Tree()
		}
	}
	return node
}

// Metrics recursively rolls up this actor's own metrics() with every
// descendant's, under a "children" key (spec §6.1's actor-metrics frame
// body).
func (p *ClientProxy) Metrics() map[string]interface{} {
	c := p.Core()
	out := c.metrics()
	children := c.Children()
	if len(children) > 0 {
		sub := make(map[string]interface{}, len(children))
		for name, child := range children {
			sub[name] = child.Metrics()
		}
		out["children"] = sub
	}
	return out
}
