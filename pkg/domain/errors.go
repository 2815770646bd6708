package domain

import "errors"

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionConcluded is returned when an invocation is attempted after a
// terminal transition fired for the session.
var ErrSessionConcluded = errors.New("session concluded")

// ErrArtifactNotAvailable is returned when an artifact exists globally but is
// not bound to the session's current state.
var ErrArtifactNotAvailable = errors.New("artifact not available in current state")

// ErrUnboundOutcome is returned when a Success outcome has no edge in the
// current state. The validator rejects such graphs at build time; hitting this
// at runtime is an internal invariant violation.
var ErrUnboundOutcome = errors.New("no transition bound for outcome")

// ErrUnsupportedOperation is returned for operations the engine rejects by
// design, such as resource template discovery.
var ErrUnsupportedOperation = errors.New("unsupported operation")
