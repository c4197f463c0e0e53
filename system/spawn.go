package system

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"time"

	"github.com/sngo/actorkit/actor"
	"github.com/sngo/actorkit/actorid"
	"github.com/sngo/actorkit/endpoint"
	"github.com/sngo/actorkit/protocol"
	"github.com/sngo/actorkit/refmarshal"
	"github.com/sngo/actorkit/transport"
	"github.com/sngo/actorkit/worker"
)

// createActorTimeout bounds how long a forked or remote create-actor
// round trip may take before it is treated as a liveness failure.
const createActorTimeout = 10 * time.Second

// workerModeFlag is the argument cmd/sngoworker's main() looks for to
// enter worker mode rather than, say, printing its own usage.
const workerModeFlag = "-worker"

// forkedFactory satisfies actor.EndpointFactory for cfg.Mode ==
// actor.ModeForked: it spawns a copy of the running binary, exchanges a
// create-actor/actor-created handshake with it over its stdio, and
// wraps the result in a Forked endpoint (spec §4.5.2 / §6.2).
func (s *System) forkedFactory(id actor.ID, cfg actor.Config, behavior actor.Behavior) (actor.Endpoint, error) {
	named, ok := behavior.(worker.Named)
	if !ok {
		return nil, fmt.Errorf("system: forked actor requires a worker.WithName-registered behavior, got %T", behavior)
	}

	cmd := exec.Command(s.opts.WorkerPath, workerModeFlag)
	bus, err := transport.NewProcessBus(cmd)
	if err != nil {
		return nil, fmt.Errorf("system: spawning forked worker: %w", err)
	}

	if err := s.handshake(bus, id, named.Definition(), cfg); err != nil {
		bus.Close()
		return nil, err
	}

	return endpoint.NewForked(id, cfg, bus, func() { s.handleCrash(id, cfg) })
}

// remoteFactory satisfies actor.EndpointFactory for cfg.Mode ==
// actor.ModeRemote: it dials cfg.Host[0]:cfg.Port, runs the same
// create-actor handshake over TCP, and wraps the result in a
// RemoteHost endpoint (spec §4.5.3).
func (s *System) remoteFactory(id actor.ID, cfg actor.Config, behavior actor.Behavior) (actor.Endpoint, error) {
	named, ok := behavior.(worker.Named)
	if !ok {
		return nil, fmt.Errorf("system: remote actor requires a worker.WithName-registered behavior, got %T", behavior)
	}
	if len(cfg.Host) == 0 {
		return nil, fmt.Errorf("system: remote actor requires cfg.Host")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host[0], cfg.Port)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("system: dialing remote host %s: %w: %v", addr, actor.ErrTransport, err)
	}
	bus := transport.NewTCPBus(conn)

	if err := s.handshake(bus, id, named.Definition(), cfg); err != nil {
		bus.Close()
		return nil, err
	}

	return endpoint.NewRemoteHost(id, cfg, bus, func() { s.handleCrash(id, cfg) })
}

// threadedFactory satisfies actor.EndpointFactory for cfg.Mode ==
// actor.ModeThreaded: unlike forked/remote it never crosses a process
// boundary, so it runs the worker loop directly against behavior on a
// dedicated goroutine, joined to this process by transport.NewThreadBus
// (spec §4.5.4).
func (s *System) threadedFactory(id actor.ID, cfg actor.Config, behavior actor.Behavior) (actor.Endpoint, error) {
	parentSide, childSide := transport.NewThreadBus()

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := worker.RunActorLoop(ctx, childSide, id, s.root.ID(), cfg, behavior); err != nil {
		cancel()
		childSide.Close()
		return nil, fmt.Errorf("system: starting threaded actor: %w", err)
	}

	return endpoint.NewThreaded(id, cfg, parentSide, func() {
		cancel()
		s.handleCrash(id, cfg)
	})
}

// handshake sends the initial create-actor frame over bus and blocks
// for the corresponding actor-created reply, the exchange spec §6.2
// describes for both forked and remote dispatch.
func (s *System) handshake(bus transport.Bus, id actor.ID, definition string, cfg actor.Config) error {
	frame, err := protocol.Frame{Type: protocol.FrameCreateActor, ID: 1, ActorID: id}.WithBody(protocol.CreateActorBody{
		ID:          id,
		Name:        definition,
		Mode:        string(cfg.Mode),
		Config:      worker.ToWireConfig(cfg),
		Parent:      protocol.ParentRef{ID: s.root.ID()},
		PingTimeout: cfg.PingTimeout.Milliseconds(),
	})
	if err != nil {
		return fmt.Errorf("system: encoding create-actor: %w", err)
	}

	result := make(chan error, 1)
	report := func(err error) {
		select {
		case result <- err:
		default:
		}
	}

	bus.Once(transport.EventMessage, func(reply protocol.Frame) {
		if reply.Type != protocol.FrameActorCreated {
			report(fmt.Errorf("system: expected actor-created, got %s", reply.Type))
			return
		}
		if reply.Error != "" {
			report(fmt.Errorf("system: %s: %w", reply.Error, actor.ErrInit))
			return
		}
		report(nil)
	})
	bus.Send(frame, func(err error) {
		if err != nil {
			report(fmt.Errorf("system: %w: %v", actor.ErrTransport, err))
		}
	})

	select {
	case err := <-result:
		return err
	case <-time.After(createActorTimeout):
		return fmt.Errorf("system: %w: no actor-created reply", actor.ErrLivenessTimeout)
	}
}

// handleCrash applies spec §4.4.5's supervision policy once an
// endpoint's onCrash callback fires: the affected actor (found anywhere
// in the tree, since a balancer's replicas are not in s.actors directly)
// is marked crashed, and respawned in place if its configuration asks
// for it.
func (s *System) handleCrash(id actor.ID, cfg actor.Config) {
	proxy, ok := s.locate(id)
	if !ok {
		return
	}
	proxy.MarkCrashed()
	s.log.Printf("actor %s crashed", id)

	if cfg.OnCrash != actor.OnCrashRespawn {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), createActorTimeout)
		defer cancel()
		if err := proxy.Restart(ctx); err != nil {
			s.log.Printf("actor %s: respawn failed: %v", id, err)
		}
	}()
}

func (s *System) locate(id actor.ID) (*actor.ClientProxy, bool) {
	if v, ok := s.actors.Load(id); ok {
		return v.(*actor.ClientProxy), true
	}
	return s.root.FindDescendant(id)
}

// dial is the refmarshal.DialFunc this System hands to its
// refmarshal.Marshaller: a descriptor with a Path dials the
// inter-process transport, otherwise the inter-host one (spec §4.3).
func (s *System) dial(desc refmarshal.Descriptor) (transport.Bus, error) {
	if desc.Path != "" {
		return refmarshal.DialUnix(desc)
	}
	return refmarshal.DialTCP(desc)
}

// handleImportedCrash is the refmarshal onCrash callback: an imported
// remote proxy's connection died, so the cached entry is forgotten and
// the next Unmarshal of the same id dials fresh.
func (s *System) handleImportedCrash(id actorid.ActorID) {
	s.log.Printf("imported actor %s crashed, forgetting cached proxy", id)
	s.Refs.Forget(id)
}
