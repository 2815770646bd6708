package automaton

import (
	"errors"
	"fmt"
	"strings"
)

// Definition-time errors accumulated by the Builder. All are fatal at Build:
// a process must not start serving with an invalid automaton.
var (
	// ErrDuplicateState is recorded when a state identifier is defined twice.
	ErrDuplicateState = errors.New("duplicate state")

	// ErrMultipleInitialStates is recorded when a second state claims the
	// initial flag.
	ErrMultipleInitialStates = errors.New("multiple initial states")

	// ErrDuplicateArtifactBinding is recorded when an artifact is bound to a
	// second state (single-state exposure).
	ErrDuplicateArtifactBinding = errors.New("artifact already bound to another state")

	// ErrDuplicateEdge is recorded when a (state, artifact, outcome) key is
	// declared twice.
	ErrDuplicateEdge = errors.New("duplicate edge")

	// ErrBuilderSealed is recorded when a builder scope is used after Build.
	// This is a programmer-error fault, not a silent no-op.
	ErrBuilderSealed = errors.New("builder sealed after Build")
)

// ValidationError aggregates every violation found at Build time: definition
// defects recorded by the builder plus error-severity validator findings.
type ValidationError struct {
	Defects  []error
	Findings []Finding
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("invalid automaton:")
	for _, d := range e.Defects {
		sb.WriteString("\n- ")
		sb.WriteString(d.Error())
	}
	for _, f := range e.Findings {
		if f.Severity != SeverityError {
			continue
		}
		sb.WriteString("\n- ")
		sb.WriteString(f.String())
	}
	return sb.String()
}

// Unwrap exposes the recorded defects so callers can match sentinel errors
// with errors.Is.
func (e *ValidationError) Unwrap() []error {
	return e.Defects
}

func defect(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
