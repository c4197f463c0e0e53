// Package typemarshal implements the Actor System's typeName→marshaller
// map used to convert non-handle message payloads across a transport
// boundary (spec §4.3's "message marshalling" paragraph), grounded on
// the teacher's protocol.SimpleProtocol schema-by-name registry
// (protocol/protocol.go), adapted from schema validation to marshal
// function dispatch.
package typemarshal

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Marshaller converts a value of a single registered type to and from
// its JSON wire representation.
type Marshaller interface {
	Marshal(v interface{}) (json.RawMessage, error)
	Unmarshal(raw json.RawMessage) (interface{}, error)
}

// FuncMarshaller adapts a pair of plain functions into a Marshaller.
type FuncMarshaller struct {
	MarshalFunc   func(interface{}) (json.RawMessage, error)
	UnmarshalFunc func(json.RawMessage) (interface{}, error)
}

func (f FuncMarshaller) Marshal(v interface{}) (json.RawMessage, error) {
	return f.MarshalFunc(v)
}

func (f FuncMarshaller) Unmarshal(raw json.RawMessage) (interface{}, error) {
	return f.UnmarshalFunc(raw)
}

// Registry is the process-wide typeName → Marshaller map; the Actor
// System keeps one and consults it whenever a message payload crosses a
// boundary (spec §4.3, §7's serialization-error).
type Registry struct {
	mu   sync.RWMutex
	byID map[string]Marshaller
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Marshaller)}
}

// Register associates name with m. Registering the same name twice
// replaces the previous entry, matching the Actor System's read-only-
// after-startup contract (spec §5's "Shared resources" paragraph) being
// enforced by callers, not by Registry itself.
func (r *Registry) Register(name string, m Marshaller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[name] = m
}

// Lookup returns the marshaller registered for name, if any.
func (r *Registry) Lookup(name string) (Marshaller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[name]
	return m, ok
}

// MarshalValue marshals v using the marshaller registered under
// typeName. It returns a serialization-error-flavored error if typeName
// is unregistered.
func (r *Registry) MarshalValue(typeName string, v interface{}) (json.RawMessage, error) {
	m, ok := r.Lookup(typeName)
	if !ok {
		return nil, fmt.Errorf("typemarshal: no marshaller registered for %q", typeName)
	}
	return m.Marshal(v)
}

// UnmarshalValue reverses MarshalValue.
func (r *Registry) UnmarshalValue(typeName string, raw json.RawMessage) (interface{}, error) {
	m, ok := r.Lookup(typeName)
	if !ok {
		return nil, fmt.Errorf("typemarshal: no marshaller registered for %q", typeName)
	}
	return m.Unmarshal(raw)
}
