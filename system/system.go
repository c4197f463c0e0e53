// Package system implements the Actor System (C7): the factory that
// creates actors in any of the four dispatch modes, the registries
// shared across them (type marshallers, reference marshalling, the
// system bus), and admission control. Grounded on core/system.go's
// system struct (router + serviceDiscovery + shutdown context +
// sync.WaitGroup). The shared-resource registry spec §5 calls out
// lives one layer up, in package bootstrap's dependency injection
// Container, since System itself has no need of a generic DI lookup.
package system

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sngo/actorkit/actor"
	"github.com/sngo/actorkit/balancer"
	"github.com/sngo/actorkit/config"
	"github.com/sngo/actorkit/endpoint"
	"github.com/sngo/actorkit/refmarshal"
	"github.com/sngo/actorkit/sysbus"
	"github.com/sngo/actorkit/typemarshal"
)

// Options configures a System at construction (spec §6.5's reserved
// config keys plus the admission-control knob).
type Options struct {
	// Host/Port are the address this System advertises in the
	// descriptors its reference Marshaller produces. Listen takes its
	// own address argument and does not read them.
	Host string
	Port int

	// WorkerPath is the path to the sngoworker binary used to spawn
	// forked-child actors; defaults to the current executable's own
	// path via os.Executable if empty, matching a single self-
	// contained binary that dual-purposes as both parent and worker
	// (spec §9's cmd/sngoworker).
	WorkerPath string

	// BusyLagLimit bounds the number of CreateActor/
	// CreateBalancedActor calls that may be in progress at once before
	// the System reports itself overloaded (spec §7's "overloaded"
	// error); <= 0 disables the check. It is an in-flight gauge, not an
	// event-loop lag measurement. Send and SendAndReceive on an actor
	// are not counted or gated by it, whatever the actor's
	// DropMessagesOnOverload setting.
	BusyLagLimit int64

	Logger *log.Logger

	// ActorsConfigPath/ActorsConfigOverlayPath name the primary and
	// optional secondary actors.json-shaped files the System reads at
	// startup and watches for hot reconfiguration, propagated via
	// ChangeGlobalConfiguration (spec §4.7). Both may be left empty to
	// opt out of file-backed configuration entirely.
	ActorsConfigPath        string
	ActorsConfigOverlayPath string
}

// System is the root of one process's actor tree plus its shared
// registries.
type System struct {
	opts Options
	log  *log.Logger

	root *actor.ClientProxy

	Types    *typemarshal.Registry
	Refs     *refmarshal.Marshaller
	Bus      *sysbus.Bus
	listener *listener

	actors sync.Map // actorid.ActorID -> *actor.ClientProxy, every actor this process has created

	inflight int64 // atomic, admission control gauge

	actorConfigWatcher *config.ActorConfigWatcher
}

// New constructs a System with an empty root actor ready to parent
// top-level actors.
func New(opts Options) (*System, error) {
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "sngo: ", log.LstdFlags)
	}
	if opts.WorkerPath == "" {
		if exe, err := os.Executable(); err == nil {
			opts.WorkerPath = exe
		}
	}

	s := &System{
		opts:  opts,
		log:   opts.Logger,
		Types: typemarshal.NewRegistry(),
		Bus:   sysbus.New(256),
	}

	s.Refs = refmarshal.New(opts.Host, opts.Port, "", s.dial, s.handleImportedCrash)

	rootCfg := actor.Config{Mode: actor.ModeInMemory}
	rootEP, err := endpoint.NewInMemory(rootID(), rootCfg, actor.Map{})
	if err != nil {
		return nil, fmt.Errorf("system: building root endpoint: %w", err)
	}
	rootCore := actor.NewCore(rootID(), "root", nil, rootCfg, actor.Map{}, rootEP)
	s.root = actor.NewClientProxy(rootCore, nil)
	if err := s.root.Bootstrap(context.Background()); err != nil {
		return nil, fmt.Errorf("system: bootstrapping root: %w", err)
	}

	if err := s.loadConfig(context.Background()); err != nil {
		return nil, err
	}
	if err := s.watchConfig(); err != nil {
		return nil, err
	}

	return s, nil
}

// loadConfig reads Options.ActorsConfigPath (overlaid with
// ActorsConfigOverlayPath if set) once and applies it to the System's
// actor tree, the startup half of spec §4.7's configuration rule. It is
// a no-op if ActorsConfigPath is empty.
func (s *System) loadConfig(ctx context.Context) error {
	if s.opts.ActorsConfigPath == "" {
		return nil
	}
	set, err := config.LoadActorConfig(s.opts.ActorsConfigPath, s.opts.ActorsConfigOverlayPath)
	if err != nil {
		return fmt.Errorf("system: loading actor config: %w", err)
	}
	if err := s.root.ChangeGlobalConfiguration(ctx, set.ToActorConfigs()); err != nil {
		return fmt.Errorf("system: applying actor config: %w", err)
	}
	return nil
}

// watchConfig starts watching Options.ActorsConfigPath/
// ActorsConfigOverlayPath for changes, propagating every reload via
// ChangeGlobalConfiguration (spec §4.7's hot-reload half). A no-op if
// ActorsConfigPath is empty.
func (s *System) watchConfig() error {
	if s.opts.ActorsConfigPath == "" {
		return nil
	}
	w, err := config.NewActorConfigWatcher(s.opts.ActorsConfigPath, s.opts.ActorsConfigOverlayPath)
	if err != nil {
		return fmt.Errorf("system: watching actor config: %w", err)
	}
	w.OnChange(func(oldConfig, newConfig config.ActorConfigSet) {
		if err := s.root.ChangeGlobalConfiguration(context.Background(), newConfig.ToActorConfigs()); err != nil {
			s.log.Printf("system: propagating actor config change: %v", err)
		}
	})
	if err := w.Start(); err != nil {
		return fmt.Errorf("system: starting actor config watcher: %w", err)
	}
	s.actorConfigWatcher = w
	return nil
}

// Root returns the System's root actor, the parent of every top-level
// actor created with CreateActor.
func (s *System) Root() *actor.ClientProxy { return s.root }

// IsOverloaded reports whether the number of in-progress
// CreateActor/CreateBalancedActor calls has reached BusyLagLimit, in
// which case new ones are rejected with actor.ErrOverloaded (spec §7's
// overloaded error).
func (s *System) IsOverloaded() bool {
	if s.opts.BusyLagLimit <= 0 {
		return false
	}
	return atomic.LoadInt64(&s.inflight) >= s.opts.BusyLagLimit
}

func (s *System) enter() (release func(), err error) {
	if s.IsOverloaded() {
		return nil, fmt.Errorf("system: %w", actor.ErrOverloaded)
	}
	atomic.AddInt64(&s.inflight, 1)
	return func() { atomic.AddInt64(&s.inflight, -1) }, nil
}

// CreateActor spawns a new top-level actor under the System's root,
// selecting the dispatch endpoint variant named by cfg.Mode (spec
// §4.4.1's create operation / §6.2's create-actor frame).
func (s *System) CreateActor(ctx context.Context, name string, behavior actor.Behavior, cfg actor.Config) (*actor.ClientProxy, error) {
	release, err := s.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	factory, err := s.endpointFactory(cfg)
	if err != nil {
		return nil, err
	}
	proxy, err := s.root.CreateChild(ctx, name, behavior, cfg, factory, s.rebuilder())
	if err != nil {
		return nil, err
	}
	s.actors.Store(proxy.ID(), proxy)
	return proxy, nil
}

// CreateBalancedActor spawns a Balancer Actor (C6) under the System's
// root with cfg.ClusterSize replicas of replicaBehavior.
func (s *System) CreateBalancedActor(ctx context.Context, name string, strategy balancer.Strategy, replicaBehavior balancer.BehaviorFactory, cfg actor.Config) (*actor.ClientProxy, error) {
	release, err := s.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	factory, err := s.endpointFactory(cfg)
	if err != nil {
		return nil, err
	}
	proxy, err := balancer.New(ctx, s.root, name, cfg, strategy, replicaBehavior, factory)
	if err != nil {
		return nil, err
	}
	s.actors.Store(proxy.ID(), proxy)
	return proxy, nil
}

func (s *System) endpointFactory(cfg actor.Config) (actor.EndpointFactory, error) {
	switch cfg.Mode {
	case actor.ModeInMemory, "":
		return endpoint.NewInMemory, nil
	case actor.ModeForked:
		return s.forkedFactory, nil
	case actor.ModeRemote:
		return s.remoteFactory, nil
	case actor.ModeThreaded:
		return s.threadedFactory, nil
	default:
		return nil, fmt.Errorf("system: unknown mode %q", cfg.Mode)
	}
}

// rebuilder constructs the Rebuilder CreateActor hands every proxy, so
// ChangeConfiguration can rebuild the endpoint when a reconfiguration
// changes Mode/Host/Cluster (spec §4.4.4 step 2).
func (s *System) rebuilder() actor.Rebuilder {
	return func(old *actor.Core, newConfig actor.Config) (*actor.Core, error) {
		factory, err := s.endpointFactory(newConfig)
		if err != nil {
			return nil, err
		}
		ep, err := factory(old.ID(), newConfig, actor.Map{})
		if err != nil {
			return nil, err
		}
		return actor.NewCore(old.ID(), old.Name(), old.Parent(), newConfig, actor.Map{}, ep), nil
	}
}

func rootID() actor.ID { return actor.ID{} }

// Shutdown tears down every top-level actor and, if Listen was called,
// stops accepting new connections.
func (s *System) Shutdown(ctx context.Context) error {
	if s.actorConfigWatcher != nil {
		_ = s.actorConfigWatcher.Stop()
	}
	if s.listener != nil {
		s.listener.close()
	}
	return s.root.Destroy(ctx)
}

// busyLagPollInterval is how often a caller might poll IsOverloaded in
// a retry loop; a suggested default that nothing in this package reads.
const busyLagPollInterval = 50 * time.Millisecond
