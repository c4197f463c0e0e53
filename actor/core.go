package actor

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
)

// forwardEntry is one row of a Core's forwarding table: either a literal
// topic (exact match) or a regular expression, anchored however the
// caller supplied it (spec §4.4.3). Entries are scanned in the order
// they were added; the first match wins.
type forwardEntry struct {
	literal string
	pattern *regexp.Regexp
	target  *ClientProxy
}

func (e forwardEntry) matches(topic string) bool {
	if e.pattern != nil {
		return e.pattern.MatchString(topic)
	}
	return e.literal == topic
}

// Core is the actor's private state: identity, position in the
// supervision tree, forwarding table, and the endpoint/behavior pair
// that gives it physical shape. It is grounded on the teacher's actor
// struct in core/actor.go (mailbox + atomic state + pendingCalls), with
// the mailbox itself delegated to Endpoint since each dispatch variant
// owns its own delivery mechanism.
//
// A Core is created fresh by every changeConfiguration call that
// rebuilds the endpoint, and by Restart (spec §4.4.4); a
// CustomParameters-only change or an in-place balancer cluster resize
// keeps the current one. ClientProxy holds a swappable pointer to the
// current Core so identity seen by callers never changes.
type Core struct {
	id   ID
	name string

	state int32 // atomic, one of State*

	mu       sync.RWMutex
	parent   *ClientProxy
	children map[string]*ClientProxy

	forwardList       []forwardEntry // ordered topic/pattern -> target table
	forwardAllUnknown *ClientProxy   // non-nil enables catch-all forwarding

	config   Config
	behavior Behavior
	endpoint Endpoint

	metricsExtra map[string]interface{}
}

// NewCore constructs a Core in StateNew. The caller (CreateChild, or a
// ChangeConfiguration/Restart rebuild) is responsible for running
// initialize and then moving the Core to StateReady.
func NewCore(id ID, name string, parent *ClientProxy, cfg Config, behavior Behavior, endpoint Endpoint) *Core {
	return &Core{
		id:       id,
		name:     name,
		state:    int32(StateNew),
		parent:   parent,
		children: make(map[string]*ClientProxy),
		config:   cfg.normalized(),
		behavior: behavior,
		endpoint: endpoint,
	}
}

func (c *Core) State() State { return State(atomic.LoadInt32(&c.state)) }

func (c *Core) ID() ID { return c.id }

func (c *Core) Name() string { return c.name }

func (c *Core) setState(s State) { atomic.StoreInt32(&c.state, int32(s)) }

// ready reports whether the core accepts sends (spec §4.4.2 step 1 and
// DN-1's strict queueing rule: new/crashed/destroying/destroyed all
// reject).
func (c *Core) ready() bool { return c.State() == StateReady }

// Endpoint returns the dispatch endpoint backing this actor, for
// callers (such as package balancer) that need to type-assert down to
// a concrete endpoint type to reconfigure it directly.
func (c *Core) Endpoint() Endpoint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.endpoint
}

func (c *Core) Config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}

func (c *Core) Parent() *ClientProxy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.parent
}

// Children returns a snapshot of the current child proxies keyed by the
// name they were created with.
func (c *Core) Children() map[string]*ClientProxy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]*ClientProxy, len(c.children))
	for k, v := range c.children {
		out[k] = v
	}
	return out
}

func (c *Core) addChild(name string, child *ClientProxy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.children[name] = child
}

func (c *Core) removeChild(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.children, name)
}

func (c *Core) childByID(id ID) (*ClientProxy, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, child := range c.children {
		if child.ID() == id {
			return child, true
		}
	}
	return nil, false
}

// setForwardLiteral appends an exact-match forwarding entry to the end
// of the table (spec §3's forwardList attribute, §4.4.3's insertion
// order).
func (c *Core) setForwardLiteral(topic string, target *ClientProxy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forwardList = append(c.forwardList, forwardEntry{literal: topic, target: target})
}

// setForwardPattern appends a regular-expression forwarding entry,
// anchored however the caller compiled it.
func (c *Core) setForwardPattern(pattern *regexp.Regexp, target *ClientProxy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forwardList = append(c.forwardList, forwardEntry{pattern: pattern, target: target})
}

// clearForwardLiteral removes every exact-match entry for topic.
func (c *Core) clearForwardLiteral(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.forwardList[:0]
	for _, e := range c.forwardList {
		if e.pattern == nil && e.literal == topic {
			continue
		}
		out = append(out, e)
	}
	c.forwardList = out
}

// clearForwardPattern removes every entry whose pattern has the same
// source as pattern.
func (c *Core) clearForwardPattern(pattern *regexp.Regexp) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.forwardList[:0]
	for _, e := range c.forwardList {
		if e.pattern != nil && e.pattern.String() == pattern.String() {
			continue
		}
		out = append(out, e)
	}
	c.forwardList = out
}

// forwardTarget scans the forwarding table in insertion order for the
// first entry matching topic (spec §4.4.3). Absent a match, the
// catch-all forwardAllUnknown target applies only when topic is not
// handled by the local behavior.
func (c *Core) forwardTarget(topic string) (*ClientProxy, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.forwardList {
		if e.matches(topic) {
			return e.target, true
		}
	}
	if c.forwardAllUnknown == nil {
		return nil, false
	}
	if c.behavior != nil {
		if _, ok := c.behavior.Handler(topic); ok {
			return nil, false
		}
	}
	return c.forwardAllUnknown, true
}

func (c *Core) setForwardAllUnknown(target *ClientProxy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forwardAllUnknown = target
}

// initialize runs the behavior's setup hook, matching the order
// described in spec §4.4.3 ("forked/remote" create-actor exchange):
// the endpoint is already live by the time this runs, state is still
// new.
func (c *Core) initialize(ctx context.Context) error {
	if c.behavior == nil {
		return nil
	}
	if err := c.behavior.Initialize(ctx); err != nil {
		return fmt.Errorf("actor %s: %w: %v", c.id, ErrInit, err)
	}
	return nil
}

// destroy runs the behavior's teardown hook. Children must already have
// been destroyed by the caller (ClientProxy.Destroy) before this runs,
// per spec §5's child-before-parent ordering.
func (c *Core) destroy(ctx context.Context) error {
	if c.behavior == nil {
		return nil
	}
	return c.behavior.Destroy(ctx)
}

// metrics assembles this core's own metrics() contribution: endpoint
// stats merged with whatever the behavior reports (spec §4.4.1).
func (c *Core) metrics() map[string]interface{} {
	out := map[string]interface{}{
		"id":    c.id.String(),
		"name":  c.name,
		"state": c.State().String(),
	}
	if c.endpoint != nil {
		for k, v := range c.endpoint.Metrics0() {
			out[k] = v
		}
	}
	if c.behavior != nil {
		for k, v := range c.behavior.Metrics() {
			out[k] = v
		}
	}
	c.mu.RLock()
	for k, v := range c.metricsExtra {
		out[k] = v
	}
	c.mu.RUnlock()
	return out
}
