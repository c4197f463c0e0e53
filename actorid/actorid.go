// Package actorid defines the 96-bit opaque identifier used to address
// every actor in the system, independent of where it actually lives.
package actorid

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Size is the width of an ActorID in bytes (96 bits).
const Size = 12

// ActorID is an opaque, hex-encodable actor identifier. It is immutable
// for the life of a Client Proxy; hot reconfiguration replaces it while
// the proxy that exposes it stays the same object.
type ActorID [Size]byte

// Nil is the zero ActorID, used as a sentinel for "no parent".
var Nil ActorID

// New mints a fresh ActorID from the leading bytes of a random UUID.
func New() ActorID {
	u := uuid.New()
	var id ActorID
	copy(id[:], u[:Size])
	return id
}

// Parse decodes a hex-encoded ActorID previously produced by String.
func Parse(s string) (ActorID, error) {
	var id ActorID
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("actorid: invalid hex %q: %w", s, err)
	}
	if len(raw) != Size {
		return id, fmt.Errorf("actorid: expected %d bytes, got %d", Size, len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// String returns the canonical hex encoding of the id.
func (id ActorID) String() string {
	return hex.EncodeToString(id[:])
}

// IsNil reports whether id is the zero value.
func (id ActorID) IsNil() bool {
	return id == Nil
}

// MarshalText implements encoding.TextMarshaler so ActorID can be used
// directly as a JSON object key or value.
func (id ActorID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ActorID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
