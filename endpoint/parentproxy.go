package endpoint

import (
	"github.com/sngo/actorkit/actor"
	"github.com/sngo/actorkit/transport"
)

// NewParentProxy builds the endpoint a worker attaches to its root
// actor's Core.parent field: the mirrored proxy (spec C5) standing in
// for the real parent actor on the far end of bus. A forwardToParent
// call on the child side resolves to a ClientProxy backed by this
// endpoint, so it rides the same actor-message/actor-response frames
// any other wire-backed dispatch does, just addressed to parentID
// instead of a child's id.
func NewParentProxy(parentID actor.ID, bus transport.Bus) actor.Endpoint {
	return newWireBacked(parentID, actor.Config{}, bus, nil)
}
