package balancer

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sngo/actorkit/actor"
)

// Endpoint is the Balancer Actor's dispatch endpoint (spec C6): it
// holds no behavior of its own and instead multiplexes every send and
// sendAndReceive onto one of its replica children, chosen by strategy.
// The replicas themselves are ordinary children of the balancer's own
// Core, so their lifecycle (destroy ordering, metrics rollup, tree
// listing) falls out of actor.ClientProxy for free.
type Endpoint struct {
	id       actor.ID
	strategy Strategy

	mu        sync.RWMutex
	replicas  []*actor.ClientProxy
	lastReady []*actor.ClientProxy

	// proxy/behaviorFactory/replicaFactory are recorded by New/Grow so
	// ResizeCluster (the spec §4.4.4 clusterSize carve-out) can spawn
	// additional replicas without its caller supplying the factories a
	// second time.
	proxy           *actor.ClientProxy
	behaviorFactory BehaviorFactory
	replicaFactory  actor.EndpointFactory
}

// NewEndpoint builds a balancer endpoint with no replicas yet; callers
// fill it in with SetReplicas/AddReplica once the corresponding
// children exist (see New, which does this for the common case).
func NewEndpoint(id actor.ID, strategy Strategy) *Endpoint {
	return &Endpoint{id: id, strategy: strategy}
}

func (e *Endpoint) ID() actor.ID { return e.id }

// setSpawner records how to create another replica, so a later
// ResizeCluster call can grow the cluster without its caller repeating
// the behavior/endpoint factories.
func (e *Endpoint) setSpawner(proxy *actor.ClientProxy, behaviorFactory BehaviorFactory, replicaFactory actor.EndpointFactory) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.proxy = proxy
	e.behaviorFactory = behaviorFactory
	e.replicaFactory = replicaFactory
}

// SetReplicas replaces the full replica set, preserving the given
// order (round-robin selection depends on it for deterministic
// distribution).
func (e *Endpoint) SetReplicas(replicas []*actor.ClientProxy) {
	e.mu.Lock()
	e.replicas = append([]*actor.ClientProxy(nil), replicas...)
	e.mu.Unlock()
	e.notifyClusterChanged()
}

// AddReplica appends one replica, for elastic growth (spec §4.6's
// elastic scale-up).
func (e *Endpoint) AddReplica(p *actor.ClientProxy) {
	e.mu.Lock()
	e.replicas = append(e.replicas, p)
	e.mu.Unlock()
	e.notifyClusterChanged()
}

// RemoveReplica drops p from the replica set; the caller is
// responsible for destroying p itself.
func (e *Endpoint) RemoveReplica(p *actor.ClientProxy) {
	e.mu.Lock()
	for i, r := range e.replicas {
		if r == p {
			e.replicas = append(e.replicas[:i], e.replicas[i+1:]...)
			break
		}
	}
	e.mu.Unlock()
	e.notifyClusterChanged()
}

func (e *Endpoint) Replicas() []*actor.ClientProxy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*actor.ClientProxy(nil), e.replicas...)
}

func (e *Endpoint) readyReplicas() []*actor.ClientProxy {
	e.mu.RLock()
	replicas := e.replicas
	out := make([]*actor.ClientProxy, 0, len(replicas))
	for _, r := range replicas {
		if r.State() == actor.StateReady {
			out = append(out, r)
		}
	}
	e.mu.RUnlock()
	return out
}

// notifyClusterChanged informs the strategy's ClusterChanged hook if
// the ready replica set differs from the last one reported (spec
// §4.6's custom strategy hook). It runs only from SetReplicas,
// AddReplica and RemoveReplica.
func (e *Endpoint) notifyClusterChanged() {
	ready := e.readyReplicas()
	e.mu.Lock()
	changed := !sameReplicas(e.lastReady, ready)
	if changed {
		e.lastReady = ready
	}
	e.mu.Unlock()
	if changed {
		e.strategy.ClusterChanged(ready)
	}
}

func sameReplicas(a, b []*actor.ClientProxy) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (e *Endpoint) Send0(topic string, args json.RawMessage, cb func(error)) {
	ready := e.readyReplicas()
	if len(ready) == 0 {
		if cb != nil {
			cb(fmt.Errorf("balancer %s: %w", e.id, actor.ErrNoChild))
		}
		return
	}
	target := e.strategy.Select(ready)
	target.Send(topic, args, cb)
}

func (e *Endpoint) SendAndReceive0(ctx context.Context, topic string, args json.RawMessage) (json.RawMessage, error) {
	ready := e.readyReplicas()
	if len(ready) == 0 {
		return nil, fmt.Errorf("balancer %s: %w", e.id, actor.ErrNoChild)
	}
	target := e.strategy.Select(ready)
	var out json.RawMessage
	if err := target.SendAndReceive(ctx, topic, args, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Broadcast0 implements actor.Broadcaster by fanning topic out to every
// ready replica concurrently (spec §4.6).
func (e *Endpoint) Broadcast0(topic string, args json.RawMessage) []error {
	ready := e.readyReplicas()
	if len(ready) == 0 {
		return []error{fmt.Errorf("balancer %s: %w", e.id, actor.ErrNoChild)}
	}
	errs := make([]error, len(ready))
	var g errgroup.Group
	for i, r := range ready {
		i, r := i, r
		g.Go(func() error {
			done := make(chan error, 1)
			r.Send(topic, args, func(err error) { done <- err })
			errs[i] = <-done
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// BroadcastAndReceive0 implements actor.Broadcaster by fanning topic out
// to every ready replica and collecting one response per replica.
func (e *Endpoint) BroadcastAndReceive0(ctx context.Context, topic string, args json.RawMessage) ([]json.RawMessage, []error) {
	ready := e.readyReplicas()
	if len(ready) == 0 {
		return nil, []error{fmt.Errorf("balancer %s: %w", e.id, actor.ErrNoChild)}
	}
	resp := make([]json.RawMessage, len(ready))
	errs := make([]error, len(ready))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range ready {
		i, r := i, r
		g.Go(func() error {
			var out json.RawMessage
			errs[i] = r.SendAndReceive(gctx, topic, args, &out)
			resp[i] = out
			return nil
		})
	}
	_ = g.Wait()
	return resp, errs
}

// ResizeCluster implements actor.ClusterResizer: the spec §4.4.4
// balancer carve-out for a pure clusterSize change, grown or shrunk in
// place rather than via a full endpoint rebuild.
func (e *Endpoint) ResizeCluster(ctx context.Context, size int) error {
	if size < 1 {
		size = 1
	}
	current := len(e.Replicas())
	switch {
	case size > current:
		return e.growBy(ctx, size-current)
	case size < current:
		return e.shrinkBy(ctx, current-size)
	default:
		return nil
	}
}

func (e *Endpoint) growBy(ctx context.Context, n int) error {
	e.mu.RLock()
	proxy, behaviorFactory, replicaFactory := e.proxy, e.behaviorFactory, e.replicaFactory
	e.mu.RUnlock()
	if proxy == nil || behaviorFactory == nil || replicaFactory == nil {
		return fmt.Errorf("balancer %s: cannot grow cluster: no replica spawner recorded", e.id)
	}
	existing := e.Replicas()
	for i := 0; i < n; i++ {
		childName := fmt.Sprintf("replica-%d", len(existing)+i)
		child, err := proxy.CreateChild(ctx, childName, behaviorFactory(), proxy.Core().Config(), replicaFactory, nil)
		if err != nil {
			return fmt.Errorf("balancer %s: growing: %w", e.id, err)
		}
		e.AddReplica(child)
	}
	return nil
}

// shrinkBy destroys the leading n replicas (spec §4.4.4: "scale down by
// destroying the leading N children").
func (e *Endpoint) shrinkBy(ctx context.Context, n int) error {
	replicas := e.Replicas()
	if n > len(replicas) {
		n = len(replicas)
	}
	for i := 0; i < n; i++ {
		victim := replicas[i]
		e.RemoveReplica(victim)
		if err := victim.Destroy(ctx); err != nil {
			return fmt.Errorf("balancer %s: shrinking: %w", e.id, err)
		}
	}
	return nil
}

// Destroy0 is a no-op: replicas are ordinary children of the
// balancer's Core, so actor.ClientProxy.Destroy already tears them down
// before calling this.
func (e *Endpoint) Destroy0() error { return nil }

// Metrics0 reports per-child metrics keyed by index plus a summary
// whose numeric fields are element-wise sums across every replica
// (spec §4.6).
func (e *Endpoint) Metrics0() map[string]interface{} {
	replicas := e.Replicas()
	out := make(map[string]interface{}, len(replicas)+1)
	summary := make(map[string]float64)
	for i, r := range replicas {
		m := r.Metrics()
		out[strconv.Itoa(i)] = m
		for k, v := range m {
			n, ok := numericValue(v)
			if !ok {
				continue
			}
			summary[k] += n
		}
	}
	summaryOut := make(map[string]interface{}, len(summary))
	for k, v := range summary {
		summaryOut[k] = v
	}
	out["summary"] = summaryOut
	return out
}

func numericValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
