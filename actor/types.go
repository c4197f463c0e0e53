// Package actor implements the Actor Core and Client Proxy (C4): the
// lifecycle state machine, forwarding table, child registry, and
// supervision hooks shared by every dispatch endpoint variant. It is
// grounded throughout on core/actor.go (mailbox/atomic-state shape),
// core/router.go (id-keyed registry), and core/advanced_router.go's
// SessionManager (request/response correlation).
package actor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sngo/actorkit/actorid"
)

// ID is the identifier type actors are addressed by.
type ID = actorid.ActorID

// State is the actor lifecycle state (spec §3).
type State int32

const (
	StateNew State = iota
	StateReady
	StateCrashed
	StateDestroying
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateReady:
		return "ready"
	case StateCrashed:
		return "crashed"
	case StateDestroying:
		return "destroying"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// Mode selects which Dispatch Endpoint variant backs an actor.
type Mode string

const (
	ModeInMemory Mode = "in-memory"
	ModeForked   Mode = "forked"
	ModeRemote   Mode = "remote"
	ModeThreaded Mode = "threaded"
	ModeDisabled Mode = "disabled"
)

// Endpoint is implemented by every dispatch endpoint variant (package
// endpoint) and by the parent proxy used inside a child worker. Core
// holds one and delegates all physical delivery to it, matching spec
// §4.5's "all endpoints share the common core" design.
type Endpoint interface {
	ID() ID
	Send0(topic string, args json.RawMessage, cb func(error))
	SendAndReceive0(ctx context.Context, topic string, args json.RawMessage) (json.RawMessage, error)
	Destroy0() error
	Metrics0() map[string]interface{}
}

// ClusterResizer is implemented by endpoint variants that can grow or
// shrink their own replica set without a full rebuild (spec §4.4.4's
// balancer carve-out: "a pure clusterSize change is handled in
// place"). ChangeConfiguration type-asserts for this before falling
// back to the general rebuild path.
type ClusterResizer interface {
	ResizeCluster(ctx context.Context, size int) error
}

// Broadcaster is implemented by endpoint variants that can fan a
// send/sendAndReceive out to every member of a cluster instead of
// selecting one (spec §4.6's balancer broadcast/broadcastAndReceive).
type Broadcaster interface {
	Broadcast0(topic string, args json.RawMessage) []error
	BroadcastAndReceive0(ctx context.Context, topic string, args json.RawMessage) ([]json.RawMessage, []error)
}
