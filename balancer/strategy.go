// Package balancer implements the Balancer Actor (C6): a single
// actor.ClientProxy that multiplexes sends across N replica children
// using a pluggable selection strategy, and supports elastic growth of
// the replica set at runtime. Selection strategies are grounded on
// core/service_discovery.go's loadBalancer.selectRoundRobin and
// selectRandom, reparameterized from []*ServiceInfo to
// []*actor.ClientProxy.
package balancer

import (
	"math/rand"
	"sync"

	"github.com/sngo/actorkit/actor"
)

// Strategy picks one of replicas to receive the next call. replicas is
// always non-empty when Select is called; Balancer filters out
// not-ready children before calling in.
type Strategy interface {
	Select(replicas []*actor.ClientProxy) *actor.ClientProxy

	// ClusterChanged is invoked after SetReplicas, AddReplica or
	// RemoveReplica whenever the resulting ready replica set differs
	// from the last one reported, letting a custom strategy track state
	// of its own (spec §4.6). A replica changing state on its own (for
	// example crashing) does not trigger it.
	ClusterChanged(readyChildren []*actor.ClientProxy)
}

// RoundRobin cycles through replicas in order, matching
// loadBalancer.selectRoundRobin's lb.roundRobinIndex%len(services).
type RoundRobin struct {
	mu    sync.Mutex
	index int
}

func (r *RoundRobin) Select(replicas []*actor.ClientProxy) *actor.ClientProxy {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := replicas[r.index%len(replicas)]
	r.index++
	return p
}

// ClusterChanged is a no-op: round-robin only needs the replica list
// Select already receives.
func (r *RoundRobin) ClusterChanged(readyChildren []*actor.ClientProxy) {}

// Random picks a uniformly random replica, matching
// loadBalancer.selectRandom.
type Random struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandom builds a Random strategy seeded from seed. Tests should
// pass a fixed seed for determinism; production callers can seed from
// a single process-wide source.
func NewRandom(seed int64) *Random {
	return &Random{rnd: rand.New(rand.NewSource(seed))}
}

func (r *Random) Select(replicas []*actor.ClientProxy) *actor.ClientProxy {
	r.mu.Lock()
	defer r.mu.Unlock()
	return replicas[r.rnd.Intn(len(replicas))]
}

// ClusterChanged is a no-op: random selection needs no state beyond
// the replica list Select already receives.
func (r *Random) ClusterChanged(readyChildren []*actor.ClientProxy) {}

// Func adapts plain functions into a Strategy, the escape hatch for a
// user-supplied custom strategy (spec §4.6's "round-robin/random/
// custom"). OnClusterChanged may be left nil for a custom strategy that
// doesn't need the hook.
type Func struct {
	SelectFunc       func(replicas []*actor.ClientProxy) *actor.ClientProxy
	OnClusterChanged func(readyChildren []*actor.ClientProxy)
}

func (f Func) Select(replicas []*actor.ClientProxy) *actor.ClientProxy {
	return f.SelectFunc(replicas)
}

func (f Func) ClusterChanged(readyChildren []*actor.ClientProxy) {
	if f.OnClusterChanged != nil {
		f.OnClusterChanged(readyChildren)
	}
}

// ByName resolves one of the two built-in named strategies, matching
// the "balancer" reserved config key (spec §6.5). An empty or unknown
// name defaults to round-robin.
func ByName(name string) Strategy {
	switch name {
	case "random":
		return NewRandom(1)
	case "round-robin", "":
		return &RoundRobin{}
	default:
		return &RoundRobin{}
	}
}
