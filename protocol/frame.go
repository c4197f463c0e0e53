// Package protocol defines the on-wire frame exchanged by every transport
// variant and the typed bodies carried for each frame kind. It replaces the
// teacher's sproto-flavored schema registry (which assumed a fixed binary
// message catalogue) with the open, JSON-bodied frame the system actually
// needs, while keeping its Package{Type, Session}-style header/session
// idiom.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/sngo/actorkit/actorid"
)

// FrameType enumerates the frame kinds of the wire protocol.
type FrameType string

const (
	FrameCreateActor       FrameType = "create-actor"
	FrameActorCreated      FrameType = "actor-created"
	FrameActorMessage      FrameType = "actor-message"
	FrameActorResponse     FrameType = "actor-response"
	FrameDestroyActor      FrameType = "destroy-actor"
	FrameActorDestroyed    FrameType = "actor-destroyed"
	FrameActorTree         FrameType = "actor-tree"
	FrameActorMetrics      FrameType = "actor-metrics"
	FrameParentPing        FrameType = "parent-ping"
	FrameChildConfigChange FrameType = "child-config-change"
)

// Frame is the single envelope shape used by all transports: a Message
// Socket delivers exactly one decoded Frame per call to its "message"
// handler.
type Frame struct {
	Type    FrameType       `json:"type"`
	ID      uint32          `json:"id,omitempty"`
	ActorID actorid.ActorID `json:"actorId,omitempty"`
	Body    json.RawMessage `json:"body,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// DecodeBody unmarshals the frame body into v.
func (f *Frame) DecodeBody(v interface{}) error {
	if len(f.Body) == 0 {
		return fmt.Errorf("protocol: frame %s has no body", f.Type)
	}
	return json.Unmarshal(f.Body, v)
}

// WithBody returns a copy of f with its Body set to the JSON encoding of v.
func (f Frame) WithBody(v interface{}) (Frame, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Frame{}, fmt.Errorf("protocol: encode body for %s: %w", f.Type, err)
	}
	f.Body = raw
	return f, nil
}

// CreateActorBody is carried by a create-actor frame (spec §6.2, abridged
// to the fields this implementation exercises).
type CreateActorBody struct {
	ID     actorid.ActorID `json:"id"`
	Name   string          `json:"name"`
	Mode   string          `json:"mode"`
	Config ActorConfigWire `json:"config"`

	Parent      ParentRef `json:"parent"`
	PingTimeout int64     `json:"pingTimeout"` // milliseconds

	// CustomParametersMarshalledTypes carries the key-to-marker map for
	// any handle passed out-of-band alongside CustomParameters (DN-5).
	CustomParametersMarshalledTypes map[string]string `json:"customParametersMarshalledTypes,omitempty"`
}

// ParentRef identifies the creating actor for a spawned worker.
type ParentRef struct {
	ID actorid.ActorID `json:"id"`
}

// ActorConfigWire is the wire representation of actor.Config (kept
// separate from the in-process type so the wire shape can evolve without
// breaking Go callers of actor.Config). Its yaml tags mirror the json
// ones so the same struct doubles as the decode target for an
// actors.json/actors.yaml reserved-key file (spec §6.5, §4.7).
type ActorConfigWire struct {
	Mode                   string                 `json:"mode" yaml:"mode"`
	ClusterSize            int                    `json:"clusterSize,omitempty" yaml:"clusterSize,omitempty"`
	CustomParameters       map[string]interface{} `json:"customParameters,omitempty" yaml:"customParameters,omitempty"`
	OnCrash                string                 `json:"onCrash,omitempty" yaml:"onCrash,omitempty"`
	DropMessagesOnOverload bool                   `json:"dropMessagesOnOverload,omitempty" yaml:"dropMessagesOnOverload,omitempty"`
	Balancer               string                 `json:"balancer,omitempty" yaml:"balancer,omitempty"`
	Host                   []string               `json:"host,omitempty" yaml:"host,omitempty"`
	Cluster                string                 `json:"cluster,omitempty" yaml:"cluster,omitempty"`
	PingTimeoutMillis      int64                  `json:"pingTimeout,omitempty" yaml:"pingTimeout,omitempty"`
}

// ActorCreatedBody is the reply to create-actor.
type ActorCreatedBody struct {
	ID   actorid.ActorID `json:"id"`
	Port int             `json:"port,omitempty"`
}

// ActorMessageBody carries a user-level send/sendAndReceive.
type ActorMessageBody struct {
	Topic          string          `json:"topic"`
	Message        json.RawMessage `json:"message"`
	Receive        bool            `json:"receive"`
	MarshalledType string          `json:"marshalledType,omitempty"`
}

// ActorResponseBody carries a correlated reply to actor-message.
type ActorResponseBody struct {
	Response json.RawMessage `json:"response,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// ChildConfigChangeBody propagates a new configuration down the tree.
type ChildConfigChangeBody struct {
	Config ActorConfigWire `json:"config"`
}
