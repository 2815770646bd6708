/*
Package automaton implements the deterministic finite automaton that controls
artifact availability: states, outcome-keyed edges, and artifact bindings.

The graph is declared through the fluent Builder, checked once by the
structural validator, and frozen into an immutable Automaton shared by all
sessions. Lookups after Build are lock-free; the model carries no per-session
data.

# Construction

	machine, err := automaton.NewBuilder().
		DefineState("entry", automaton.Initial()).
			OnTool("open_door").
				OnSuccess("crossroad").
				BuildEdge().
			BuildState().
		DefineState("crossroad").
			OnTool("leave").
				OnSuccess("entry", automaton.Terminal()).
				BuildEdge().
			BuildState().
		Build()

Definition errors accumulate instead of failing fast; Build returns a
*ValidationError carrying every defect and validator finding at once.
*/
package automaton
