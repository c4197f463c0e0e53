package actor

import "errors"

// Sentinel errors implementing the taxonomy of spec §7. Each is wrapped
// with call-site context via fmt.Errorf("...: %w", Err*), matching the
// teacher's fmt.Errorf/%w convention throughout core/*.go and
// cluster/interfaces.go's ClusterError.
var (
	// ErrNotReady: send attempted while state is new, crashed,
	// destroying, or destroyed.
	ErrNotReady = errors.New("not-ready")

	// ErrNoHandler: local behavior has no entry for the topic.
	ErrNoHandler = errors.New("no-handler")

	// ErrOverloaded: admission gate rejected the send.
	ErrOverloaded = errors.New("overloaded")

	// ErrRemoteError: peer handler threw; message carried verbatim.
	ErrRemoteError = errors.New("remote-error")

	// ErrTransport: bus send failed or exit observed mid-call.
	ErrTransport = errors.New("transport-error")

	// ErrLivenessTimeout: ping or idle threshold exceeded.
	ErrLivenessTimeout = errors.New("liveness-timeout")

	// ErrInit: user initialize hook failed.
	ErrInit = errors.New("init-error")

	// ErrSerialization: a message value lacks a marshaller or produced
	// invalid JSON.
	ErrSerialization = errors.New("serialization-error")

	// ErrNotAChild: forwardToChild's target is not a current child.
	ErrNotAChild = errors.New("not-a-child")

	// ErrNoChild: a balancer strategy found no ready child to select.
	ErrNoChild = errors.New("no-child")
)
