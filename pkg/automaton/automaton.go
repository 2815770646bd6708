package automaton

import (
	"github.com/TobiWan1995/statemcp/pkg/domain"
)

// State is a named node of the graph.
type State struct {
	ID      string
	Initial bool
}

// Edge is one transition rule: from state From, on artifact Artifact with
// result Outcome, move to state To, then run Effects in order.
type Edge struct {
	From     string
	Artifact domain.ArtifactRef
	Outcome  domain.Outcome
	To       string

	// Terminal marks this transition as concluding the session lifecycle.
	Terminal bool

	// Implicit reports an error self-loop materialized at Build time because
	// no explicit error edge was declared for the binding.
	Implicit bool

	Effects []domain.Effect
}

type edgeKey struct {
	state   string
	ref     domain.ArtifactRef
	outcome domain.Outcome
}

// Automaton is the closed, immutable graph shared by all sessions.
// It is safe for unsynchronized concurrent reads.
type Automaton struct {
	initial    string
	states     map[string]State
	stateOrder []string

	bindings map[string][]domain.ArtifactRef // state -> bound artifacts, insertion order
	exposure map[domain.ArtifactRef][]string // artifact -> exposing states

	edges    map[edgeKey]Edge
	edgeList []Edge // discovery order, for deterministic traversal
}

// Initial returns the identifier of the initial state, or "" when the graph
// defines none (a validation failure).
func (a *Automaton) Initial() string {
	return a.initial
}

// StateExists reports whether a state with the given identifier is defined.
func (a *Automaton) StateExists(id string) bool {
	_, ok := a.states[id]
	return ok
}

// States returns all states in definition order.
func (a *Automaton) States() []State {
	out := make([]State, 0, len(a.stateOrder))
	for _, id := range a.stateOrder {
		out = append(out, a.states[id])
	}
	return out
}

// ArtifactsBoundTo returns the artifacts bound to a state, in the order they
// were declared. The result is a copy.
func (a *Automaton) ArtifactsBoundTo(stateID string) []domain.ArtifactRef {
	refs := a.bindings[stateID]
	out := make([]domain.ArtifactRef, len(refs))
	copy(out, refs)
	return out
}

// StatesExposing returns the states that bind the given artifact. The
// reference design allows at most one, but the query reports all for
// validation and inspection.
func (a *Automaton) StatesExposing(ref domain.ArtifactRef) []string {
	ids := a.exposure[ref]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// EdgeFor returns the unique edge for (state, artifact, outcome), if any.
func (a *Automaton) EdgeFor(stateID string, ref domain.ArtifactRef, outcome domain.Outcome) (Edge, bool) {
	e, ok := a.edges[edgeKey{state: stateID, ref: ref, outcome: outcome}]
	return e, ok
}

// Callable reports whether the artifact has at least one outgoing edge from
// the given state, i.e. it is legally invocable there.
func (a *Automaton) Callable(stateID string, ref domain.ArtifactRef) bool {
	for _, outcome := range domain.Outcomes() {
		if _, ok := a.EdgeFor(stateID, ref, outcome); ok {
			return true
		}
	}
	return false
}

// Edges returns every edge in discovery order. The result is a copy.
func (a *Automaton) Edges() []Edge {
	out := make([]Edge, len(a.edgeList))
	copy(out, a.edgeList)
	return out
}
