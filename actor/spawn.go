package actor

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sngo/actorkit/actorid"
)

// EndpointFactory builds the dispatch endpoint backing a newly created
// actor. The System supplies the concrete implementation (package
// endpoint); actor itself only needs the resulting Endpoint.
type EndpointFactory func(id ID, cfg Config, behavior Behavior) (Endpoint, error)

// CreateChild spawns a single child actor under p: it allocates an id,
// builds the endpoint via newEndpoint, runs the behavior's initialize
// hook, and attaches the result as a child named name (spec §4.4.1's
// createChild operation).
func (p *ClientProxy) CreateChild(ctx context.Context, name string, behavior Behavior, cfg Config, newEndpoint EndpointFactory, rebuild Rebuilder) (*ClientProxy, error) {
	id := actorid.New()

	ep, err := newEndpoint(id, cfg, behavior)
	if err != nil {
		return nil, fmt.Errorf("actor: creating child %q: %w: %v", name, ErrInit, err)
	}

	core := NewCore(id, name, p, cfg, behavior, ep)
	child := NewClientProxy(core, rebuild)

	if err := core.initialize(ctx); err != nil {
		core.setState(StateCrashed)
		return nil, err
	}

	child.MarkReady()
	p.AddChild(name, child)
	return child, nil
}

// CreateChildren spawns one child per entry of behaviors concurrently,
// the Go-native rendering of "a directory of behavior modules" (spec
// §4.4.1): each map entry stands in for one module, and errgroup fans
// the parallel initialize calls out the way balancer.broadcast does.
func (p *ClientProxy) CreateChildren(ctx context.Context, behaviors map[string]Behavior, cfg Config, newEndpoint EndpointFactory, rebuild Rebuilder) (map[string]*ClientProxy, error) {
	var mu sync.Mutex
	result := make(map[string]*ClientProxy, len(behaviors))

	g, gctx := errgroup.WithContext(ctx)
	for name, behavior := range behaviors {
		name, behavior := name, behavior
		g.Go(func() error {
			child, err := p.CreateChild(gctx, name, behavior, cfg, newEndpoint, rebuild)
			if err != nil {
				return err
			}
			mu.Lock()
			result[name] = child
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}
