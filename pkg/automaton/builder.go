package automaton

import (
	"github.com/TobiWan1995/statemcp/pkg/domain"
)

// Builder is the fluent construction API for an Automaton. The natural
// grammar is "define a state, bind an artifact, declare outcomes, close the
// binding, close the state":
//
//	NewBuilder().
//		DefineState("entry", Initial()).
//			OnTool("login").
//				OnSuccess("home", Terminal()).
//				OnError("entry").
//				BuildEdge().
//			BuildState().
//		Build()
//
// Definition errors accumulate; forward references to states defined later in
// the chain are legal. The graph is only required to be well-formed at Build.
type Builder struct {
	sealed bool
	errs   []error

	initial    string
	states     map[string]State
	stateOrder []string

	bindings   map[string][]domain.ArtifactRef
	boundState map[domain.ArtifactRef]string

	edges     map[edgeKey]Edge
	edgeOrder []edgeKey
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		states:     make(map[string]State),
		bindings:   make(map[string][]domain.ArtifactRef),
		boundState: make(map[domain.ArtifactRef]string),
		edges:      make(map[edgeKey]Edge),
	}
}

// StateOption configures a state declaration.
type StateOption func(*State)

// Initial marks the declared state as the automaton's initial state.
// Exactly one state in the graph may carry this flag.
func Initial() StateOption {
	return func(s *State) {
		s.Initial = true
	}
}

// EdgeOption configures an edge declaration.
type EdgeOption func(*Edge)

// Terminal marks the edge as concluding the session's controlled lifecycle.
func Terminal() EdgeOption {
	return func(e *Edge) {
		e.Terminal = true
	}
}

// WithEffects attaches side-effects to the edge, run in declared order after
// the transition commits.
func WithEffects(effects ...domain.Effect) EdgeOption {
	return func(e *Edge) {
		e.Effects = append(e.Effects, effects...)
	}
}

// DefineState declares a state and opens its scope. Redefinition records a
// duplicate-state defect; the existing state keeps its configuration.
func (b *Builder) DefineState(id string, opts ...StateOption) *StateBuilder {
	scope := &StateBuilder{b: b, id: id}
	if b.sealed {
		b.errs = append(b.errs, defect(ErrBuilderSealed, "DefineState(%q)", id))
		return scope
	}

	if _, exists := b.states[id]; exists {
		b.errs = append(b.errs, defect(ErrDuplicateState, "state %q", id))
		return scope
	}

	st := State{ID: id}
	for _, opt := range opts {
		opt(&st)
	}

	if st.Initial {
		if b.initial != "" {
			b.errs = append(b.errs, defect(ErrMultipleInitialStates, "%q and %q", b.initial, id))
			st.Initial = false
		} else {
			b.initial = id
		}
	}

	b.states[id] = st
	b.stateOrder = append(b.stateOrder, id)
	return scope
}

// Build finalizes the graph: implicit error self-loops are materialized,
// the structural validator runs, and the immutable Automaton is returned.
// Any accumulated defect or error-severity finding fails the build with a
// *ValidationError carrying every violation. The builder is sealed afterwards.
func (b *Builder) Build() (*Automaton, error) {
	if b.sealed {
		return nil, &ValidationError{Defects: []error{defect(ErrBuilderSealed, "Build called twice")}}
	}
	b.sealed = true

	b.completeErrorLoops()

	a := b.freeze()
	findings := Validate(a)

	if len(b.errs) > 0 || hasErrors(findings) {
		return nil, &ValidationError{Defects: b.errs, Findings: findings}
	}
	return a, nil
}

// completeErrorLoops materializes the implicit self-loop policy: any binding
// without an explicit Error edge stays in its state on Error. Inserting real
// edges here gives EdgeFor a single lookup path and lets the validator reason
// uniformly over all edges.
func (b *Builder) completeErrorLoops() {
	for _, stateID := range b.stateOrder {
		for _, ref := range b.bindings[stateID] {
			key := edgeKey{state: stateID, ref: ref, outcome: domain.OutcomeError}
			if _, ok := b.edges[key]; ok {
				continue
			}
			b.edges[key] = Edge{
				From:     stateID,
				Artifact: ref,
				Outcome:  domain.OutcomeError,
				To:       stateID,
				Implicit: true,
			}
			b.edgeOrder = append(b.edgeOrder, key)
		}
	}
}

func (b *Builder) freeze() *Automaton {
	a := &Automaton{
		initial:    b.initial,
		states:     make(map[string]State, len(b.states)),
		stateOrder: append([]string(nil), b.stateOrder...),
		bindings:   make(map[string][]domain.ArtifactRef, len(b.bindings)),
		exposure:   make(map[domain.ArtifactRef][]string, len(b.boundState)),
		edges:      make(map[edgeKey]Edge, len(b.edges)),
		edgeList:   make([]Edge, 0, len(b.edgeOrder)),
	}
	for id, st := range b.states {
		a.states[id] = st
	}
	for _, stateID := range b.stateOrder {
		refs := b.bindings[stateID]
		a.bindings[stateID] = append([]domain.ArtifactRef(nil), refs...)
		for _, ref := range refs {
			a.exposure[ref] = append(a.exposure[ref], stateID)
		}
	}
	for _, key := range b.edgeOrder {
		e := b.edges[key]
		a.edges[key] = e
		a.edgeList = append(a.edgeList, e)
	}
	return a
}

func hasErrors(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// StateBuilder is the open scope of one state. Artifact bindings attach here.
type StateBuilder struct {
	b  *Builder
	id string
}

// OnTool binds a tool to the state and opens its edge scope.
func (s *StateBuilder) OnTool(name string) *EdgeBuilder {
	return s.bind(domain.ToolRef(name))
}

// OnResource binds a concrete resource URI to the state and opens its edge scope.
func (s *StateBuilder) OnResource(uri string) *EdgeBuilder {
	return s.bind(domain.ResourceRef(uri))
}

// OnPrompt binds a prompt to the state and opens its edge scope.
func (s *StateBuilder) OnPrompt(name string) *EdgeBuilder {
	return s.bind(domain.PromptRef(name))
}

func (s *StateBuilder) bind(ref domain.ArtifactRef) *EdgeBuilder {
	scope := &EdgeBuilder{b: s.b, state: s.id, ref: ref}
	if s.b.sealed {
		s.b.errs = append(s.b.errs, defect(ErrBuilderSealed, "binding %s in state %q", ref, s.id))
		return scope
	}

	owner, bound := s.b.boundState[ref]
	switch {
	case !bound:
		s.b.boundState[ref] = s.id
		s.b.bindings[s.id] = append(s.b.bindings[s.id], ref)
	case owner != s.id:
		s.b.errs = append(s.b.errs, defect(ErrDuplicateArtifactBinding,
			"%s bound to %q, rebound in %q", ref, owner, s.id))
	}
	// Re-opening the same binding in the same state is legal and continues
	// attaching edges.
	return scope
}

// BuildState closes the state scope and returns to the builder.
func (s *StateBuilder) BuildState() *Builder {
	return s.b
}

// EdgeBuilder is the open scope of one (state, artifact) binding. Outcome
// edges attach here.
type EdgeBuilder struct {
	b     *Builder
	state string
	ref   domain.ArtifactRef
}

// OnSuccess registers the Success edge of the binding. The destination may be
// a state defined later in the chain.
func (e *EdgeBuilder) OnSuccess(to string, opts ...EdgeOption) *EdgeBuilder {
	e.add(domain.OutcomeSuccess, to, opts)
	return e
}

// OnError registers the Error edge of the binding. Without one, Build
// materializes a self-loop for the Error outcome.
func (e *EdgeBuilder) OnError(to string, opts ...EdgeOption) *EdgeBuilder {
	e.add(domain.OutcomeError, to, opts)
	return e
}

func (e *EdgeBuilder) add(outcome domain.Outcome, to string, opts []EdgeOption) {
	if e.b.sealed {
		e.b.errs = append(e.b.errs, defect(ErrBuilderSealed, "edge %s/%s in state %q", e.ref, outcome, e.state))
		return
	}

	key := edgeKey{state: e.state, ref: e.ref, outcome: outcome}
	if _, ok := e.b.edges[key]; ok {
		e.b.errs = append(e.b.errs, defect(ErrDuplicateEdge,
			"(%q, %s, %s)", e.state, e.ref, outcome))
		return
	}

	edge := Edge{
		From:     e.state,
		Artifact: e.ref,
		Outcome:  outcome,
		To:       to,
	}
	for _, opt := range opts {
		opt(&edge)
	}

	e.b.edges[key] = edge
	e.b.edgeOrder = append(e.b.edgeOrder, key)
}

// BuildEdge closes the binding scope and returns to the state scope.
func (e *EdgeBuilder) BuildEdge() *StateBuilder {
	return &StateBuilder{b: e.b, id: e.state}
}
