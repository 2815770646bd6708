package domain

import "context"

// Outcome is the result classification of a completed artifact invocation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// Outcomes lists all outcomes in deterministic order.
func Outcomes() []Outcome {
	return []Outcome{OutcomeSuccess, OutcomeError}
}

// TransitionResult describes one committed state change.
type TransitionResult struct {
	SessionID string      `json:"session_id"`
	From      string      `json:"from"`
	To        string      `json:"to"`
	Artifact  ArtifactRef `json:"artifact"`
	Outcome   Outcome     `json:"outcome"`
	// Terminal reports that this transition concluded the session's
	// controlled lifecycle. Subsequent invocations are rejected.
	Terminal bool `json:"terminal"`
}

// EffectFunc is the callback signature for transition side-effects.
// Effects run after the state change commits; failures are reported but never
// roll back the transition.
type EffectFunc func(ctx context.Context, vars *Vars, res TransitionResult) error

// Effect is a named side-effect callback attached to an edge at build time.
// The engine treats effects as opaque callables.
type Effect struct {
	Name string
	Run  EffectFunc
}
