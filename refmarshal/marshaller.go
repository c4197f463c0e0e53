// Package refmarshal implements the Reference Marshaller (C3): turning
// a live actor.ClientProxy into a self-describing Descriptor that can
// cross a process or host boundary, and turning a received Descriptor
// back into a usable proxy — dialing out and wrapping the connection
// in a Remote endpoint only the first time a given actorId is seen.
// Grounded on network.connectionManager's id-keyed connection cache
// (network/connection_manager.go), generalized from net.Conn values to
// *actor.ClientProxy values.
package refmarshal

import (
	"fmt"
	"net"
	"sync"

	"github.com/sngo/actorkit/actor"
	"github.com/sngo/actorkit/actorid"
	"github.com/sngo/actorkit/endpoint"
	"github.com/sngo/actorkit/transport"
)

// Descriptor is the wire-safe handle to an actor: enough information
// for a peer to either recognize the actor as one of its own, or dial
// out and attach a Remote endpoint to it (spec §4.3).
type Descriptor struct {
	ActorID actorid.ActorID `json:"actorId"`
	Host    string          `json:"host,omitempty"`
	Port    int             `json:"port,omitempty"`
	Path    string          `json:"path,omitempty"`
}

// DialFunc opens a transport.Bus to the peer identified by desc. The
// two stock implementations below cover inter-process (UNIX domain
// socket path) and inter-host (TCP) transport; callers may
// supply their own for tests.
type DialFunc func(desc Descriptor) (transport.Bus, error)

// DialUnix connects to the UNIX domain socket at desc.Path, the
// inter-process transport. Windows named pipes are not supported.
func DialUnix(desc Descriptor) (transport.Bus, error) {
	conn, err := net.Dial("unix", desc.Path)
	if err != nil {
		return nil, fmt.Errorf("refmarshal: dial unix %s: %w", desc.Path, err)
	}
	return transport.NewTCPBus(conn), nil
}

// DialTCP connects to desc.Host:desc.Port, the inter-host transport.
func DialTCP(desc Descriptor) (transport.Bus, error) {
	addr := fmt.Sprintf("%s:%d", desc.Host, desc.Port)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("refmarshal: dial tcp %s: %w", addr, err)
	}
	return transport.NewTCPBus(conn), nil
}

// Marshaller is both halves of reference marshalling for one process:
// the Reference Target side (exported, tracking which of our own
// actors we've ever handed out a descriptor for) and the Reference
// Source side (imported, caching the proxy built for each distinct
// remote actorId so a second unmarshal of the same id is a cache hit,
// not a second dial).
type Marshaller struct {
	selfHost string
	selfPort int
	selfPath string

	dial    DialFunc
	onCrash func(actorid.ActorID)

	exported sync.Map // actorid.ActorID -> *actor.ClientProxy
	imported sync.Map // actorid.ActorID -> *actor.ClientProxy
}

// New builds a Marshaller. selfHost/selfPort/selfPath describe how
// peers should reach this process's own actors (only the fields
// relevant to dial need be set); dial performs the actual connect for
// an unrecognized descriptor. onCrash, if non-nil, is invoked when an
// imported actor's underlying connection is observed to exit.
func New(selfHost string, selfPort int, selfPath string, dial DialFunc, onCrash func(actorid.ActorID)) *Marshaller {
	return &Marshaller{selfHost: selfHost, selfPort: selfPort, selfPath: selfPath, dial: dial, onCrash: onCrash}
}

// Marshal records proxy as one of our own exported actors and returns
// a Descriptor a peer can use to reach it. Calling Marshal twice for
// the same actor is idempotent: the second call simply overwrites the
// registry entry with the same proxy and returns an identical
// Descriptor.
func (m *Marshaller) Marshal(proxy *actor.ClientProxy) Descriptor {
	m.exported.Store(proxy.ID(), proxy)
	return Descriptor{ActorID: proxy.ID(), Host: m.selfHost, Port: m.selfPort, Path: m.selfPath}
}

// Unmarshal resolves desc to a usable *actor.ClientProxy. If desc
// names one of our own exported actors, the original proxy is returned
// directly with no dial. Otherwise the first unmarshal of a given
// actorId dials out and caches the resulting proxy; every subsequent
// unmarshal of the same actorId returns that cached proxy, matching
// spec §4.3's "idempotent per actorId" requirement.
func (m *Marshaller) Unmarshal(desc Descriptor) (*actor.ClientProxy, error) {
	if local, ok := m.exported.Load(desc.ActorID); ok {
		return local.(*actor.ClientProxy), nil
	}
	if cached, ok := m.imported.Load(desc.ActorID); ok {
		return cached.(*actor.ClientProxy), nil
	}

	bus, err := m.dial(desc)
	if err != nil {
		return nil, fmt.Errorf("refmarshal: %w: %v", actor.ErrTransport, err)
	}

	ep, err := endpoint.NewRemoteHost(desc.ActorID, actor.Config{}, bus, func() {
		if m.onCrash != nil {
			m.onCrash(desc.ActorID)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("refmarshal: %w: %v", actor.ErrInit, err)
	}

	core := actor.NewCore(desc.ActorID, desc.ActorID.String(), nil, actor.Config{}, actor.Map{}, ep)
	proxy := actor.NewClientProxy(core, nil)
	proxy.MarkReady()

	actual, loaded := m.imported.LoadOrStore(desc.ActorID, proxy)
	if loaded {
		_ = ep.Destroy0()
		return actual.(*actor.ClientProxy), nil
	}
	return proxy, nil
}

// Lookup returns one of our own exported actors by id, for a Listen
// loop that needs to route an inbound frame to a local proxy without
// going through the full Unmarshal path.
func (m *Marshaller) Lookup(id actorid.ActorID) (*actor.ClientProxy, bool) {
	v, ok := m.exported.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*actor.ClientProxy), true
}

// Forget drops a cached imported proxy, e.g. once its onCrash callback
// has fired and the caller has decided not to reconnect.
func (m *Marshaller) Forget(id actorid.ActorID) {
	m.imported.Delete(id)
}
