package balancer

import (
	"context"
	"fmt"

	"github.com/sngo/actorkit/actor"
	"github.com/sngo/actorkit/actorid"
)

// BehaviorFactory builds a fresh Behavior instance for one replica;
// it is called once per replica so stateful behaviors don't share
// state across the cluster.
type BehaviorFactory func() actor.Behavior

// New spawns a Balancer Actor: a balancer.Endpoint-backed
// actor.ClientProxy with cfg.ClusterSize replica children (at least
// one), named replica-0..replica-(N-1) in selection order. If parent
// is non-nil the new proxy is attached as one of its children.
func New(ctx context.Context, parent *actor.ClientProxy, name string, cfg actor.Config, strategy Strategy, replicaBehavior BehaviorFactory, replicaEndpoint actor.EndpointFactory) (*actor.ClientProxy, error) {
	id := actorid.New()
	bep := NewEndpoint(id, strategy)

	core := actor.NewCore(id, name, parent, cfg, actor.Map{}, bep)
	proxy := actor.NewClientProxy(core, nil)
	bep.setSpawner(proxy, replicaBehavior, replicaEndpoint)

	size := cfg.ClusterSize
	if size <= 0 {
		size = 1
	}

	replicas := make([]*actor.ClientProxy, 0, size)
	for i := 0; i < size; i++ {
		childName := fmt.Sprintf("replica-%d", i)
		child, err := proxy.CreateChild(ctx, childName, replicaBehavior(), cfg, replicaEndpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("balancer %s: spawning %s: %w", id, childName, err)
		}
		replicas = append(replicas, child)
	}
	bep.SetReplicas(replicas)

	if err := proxy.Bootstrap(ctx); err != nil {
		return nil, fmt.Errorf("balancer %s: %w", id, err)
	}

	if parent != nil {
		parent.AddChild(name, proxy)
	}
	return proxy, nil
}

// Grow adds n more replicas to an existing balancer proxy, for elastic
// scale-up (spec §4.6). The proxy's endpoint must be a *Endpoint,
// i.e. it must have been built by New.
func Grow(ctx context.Context, proxy *actor.ClientProxy, n int, replicaBehavior BehaviorFactory, replicaEndpoint actor.EndpointFactory) error {
	bep, ok := proxy.Core().Endpoint().(*Endpoint)
	if !ok {
		return fmt.Errorf("balancer: proxy %s is not a balancer endpoint", proxy.ID())
	}
	bep.setSpawner(proxy, replicaBehavior, replicaEndpoint)
	return bep.growBy(ctx, n)
}

// Shrink destroys the leading n replicas (spec §4.4.4) and removes
// them from rotation.
func Shrink(ctx context.Context, proxy *actor.ClientProxy, n int) error {
	bep, ok := proxy.Core().Endpoint().(*Endpoint)
	if !ok {
		return fmt.Errorf("balancer: proxy %s is not a balancer endpoint", proxy.ID())
	}
	return bep.shrinkBy(ctx, n)
}
