package worker

import (
	"fmt"
	"sync"

	"github.com/sngo/actorkit/actor"
)

var (
	registryMu sync.RWMutex
	registry   = map[string]func() actor.Behavior{}
)

// RegisterBehavior makes a named behavior factory available to Resolve.
// A forked or remote actor crosses a process boundary that cannot carry
// an arbitrary Go value, so both the parent (naming the definition it
// wants created) and the worker process (building it from that name)
// consult this same table; it only works because they're built from the
// same binary (spec §9's self-contained worker entry point). Call it
// from an init() in whatever package defines the application's
// behaviors.
func RegisterBehavior(name string, factory func() actor.Behavior) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Resolve looks up a previously registered behavior factory by name. It
// is a Resolver and is what cmd/sngoworker passes to Serve.
func Resolve(name string) (actor.Behavior, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("worker: no behavior registered under %q", name)
	}
	return factory(), nil
}

// Named is implemented by a behavior that knows what name it was
// registered under, so system.System can recover that name when
// cfg.Mode requires crossing a process or host boundary.
type Named interface {
	actor.Behavior
	Definition() string
}

type named struct {
	actor.Behavior
	name string
}

func (n named) Definition() string { return n.name }

// WithName decorates behavior so it satisfies Named, carrying the name
// it was registered under via RegisterBehavior alongside it.
func WithName(name string, behavior actor.Behavior) Named {
	return named{Behavior: behavior, name: name}
}
