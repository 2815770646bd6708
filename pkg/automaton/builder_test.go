package automaton_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiWan1995/statemcp/pkg/automaton"
	"github.com/TobiWan1995/statemcp/pkg/domain"
)

func buildError(t *testing.T, b *automaton.Builder) *automaton.ValidationError {
	t.Helper()
	_, err := b.Build()
	require.Error(t, err)
	var verr *automaton.ValidationError
	require.ErrorAs(t, err, &verr)
	return verr
}

func TestBuilder_HappyPath(t *testing.T) {
	machine, err := automaton.NewBuilder().
		DefineState("entry", automaton.Initial()).
		OnTool("login").
		OnSuccess("home").
		BuildEdge().
		BuildState().
		DefineState("home").
		OnPrompt("goodbye").
		OnSuccess("done", automaton.Terminal()).
		BuildEdge().
		BuildState().
		DefineState("done").
		BuildState().
		Build()
	require.NoError(t, err)

	assert.Equal(t, "entry", machine.Initial())
	assert.Len(t, machine.States(), 3)

	edge, ok := machine.EdgeFor("entry", domain.ToolRef("login"), domain.OutcomeSuccess)
	require.True(t, ok)
	assert.Equal(t, "home", edge.To)
	assert.False(t, edge.Terminal)

	edge, ok = machine.EdgeFor("home", domain.PromptRef("goodbye"), domain.OutcomeSuccess)
	require.True(t, ok)
	assert.True(t, edge.Terminal)
}

func TestBuilder_MaterializesImplicitErrorLoops(t *testing.T) {
	machine, err := automaton.NewBuilder().
		DefineState("a", automaton.Initial()).
		OnTool("work").
		OnSuccess("b", automaton.Terminal()).
		BuildEdge().
		BuildState().
		DefineState("b").
		BuildState().
		Build()
	require.NoError(t, err)

	edge, ok := machine.EdgeFor("a", domain.ToolRef("work"), domain.OutcomeError)
	require.True(t, ok, "error outcome must resolve without an explicit edge")
	assert.Equal(t, "a", edge.To)
	assert.True(t, edge.Implicit)
}

func TestBuilder_ExplicitErrorEdgeSuppressesLoop(t *testing.T) {
	machine, err := automaton.NewBuilder().
		DefineState("a", automaton.Initial()).
		OnTool("work").
		OnSuccess("b", automaton.Terminal()).
		OnError("recovery").
		BuildEdge().
		BuildState().
		DefineState("recovery").
		OnTool("retry").
		OnSuccess("a").
		BuildEdge().
		BuildState().
		DefineState("b").
		BuildState().
		Build()
	require.NoError(t, err)

	edge, ok := machine.EdgeFor("a", domain.ToolRef("work"), domain.OutcomeError)
	require.True(t, ok)
	assert.Equal(t, "recovery", edge.To)
	assert.False(t, edge.Implicit)
}

func TestBuilder_ForwardReferences(t *testing.T) {
	// Destinations may name states defined later in the chain.
	_, err := automaton.NewBuilder().
		DefineState("first", automaton.Initial()).
		OnTool("advance").
		OnSuccess("second", automaton.Terminal()).
		BuildEdge().
		BuildState().
		DefineState("second").
		BuildState().
		Build()
	assert.NoError(t, err)
}

func TestBuilder_DuplicateState(t *testing.T) {
	b := automaton.NewBuilder()
	b.DefineState("a", automaton.Initial()).
		OnTool("finish").
		OnSuccess("a", automaton.Terminal()).
		BuildEdge().
		BuildState().
		DefineState("a")

	verr := buildError(t, b)
	assert.ErrorIs(t, verr, automaton.ErrDuplicateState)
}

func TestBuilder_MultipleInitialStates(t *testing.T) {
	b := automaton.NewBuilder()
	b.DefineState("a", automaton.Initial()).BuildState().
		DefineState("b", automaton.Initial())

	verr := buildError(t, b)
	assert.ErrorIs(t, verr, automaton.ErrMultipleInitialStates)
}

func TestBuilder_SingleStateExposure(t *testing.T) {
	b := automaton.NewBuilder()
	b.DefineState("a", automaton.Initial()).
		OnTool("shared").
		OnSuccess("b", automaton.Terminal()).
		BuildEdge().
		BuildState().
		DefineState("b").
		OnTool("shared").
		OnSuccess("a").
		BuildEdge().
		BuildState()

	verr := buildError(t, b)
	assert.ErrorIs(t, verr, automaton.ErrDuplicateArtifactBinding)
}

func TestBuilder_SameNameDifferentKindIsLegal(t *testing.T) {
	// A tool and a prompt may share a name; the artifact key is (kind, id).
	_, err := automaton.NewBuilder().
		DefineState("a", automaton.Initial()).
		OnTool("report").
		OnSuccess("b", automaton.Terminal()).
		BuildEdge().
		BuildState().
		DefineState("b").
		OnPrompt("report").
		OnSuccess("b").
		BuildEdge().
		BuildState().
		Build()
	assert.NoError(t, err)
}

func TestBuilder_DuplicateEdge(t *testing.T) {
	b := automaton.NewBuilder()
	b.DefineState("a", automaton.Initial()).
		OnTool("work").
		OnSuccess("b", automaton.Terminal()).
		OnSuccess("a").
		BuildEdge().
		BuildState().
		DefineState("b").
		BuildState()

	verr := buildError(t, b)
	assert.ErrorIs(t, verr, automaton.ErrDuplicateEdge)
}

func TestBuilder_ReopeningBindingAttachesEdges(t *testing.T) {
	// Binding the same artifact twice in the same state continues the scope.
	machine, err := automaton.NewBuilder().
		DefineState("a", automaton.Initial()).
		OnTool("work").
		OnSuccess("b", automaton.Terminal()).
		BuildEdge().
		OnTool("work").
		OnError("a").
		BuildEdge().
		BuildState().
		DefineState("b").
		BuildState().
		Build()
	require.NoError(t, err)

	edge, ok := machine.EdgeFor("a", domain.ToolRef("work"), domain.OutcomeError)
	require.True(t, ok)
	assert.False(t, edge.Implicit)
}

func TestBuilder_SealedAfterBuild(t *testing.T) {
	b := automaton.NewBuilder()
	sb := b.DefineState("a", automaton.Initial()).
		OnTool("finish").
		OnSuccess("b", automaton.Terminal()).
		BuildEdge()
	sb.BuildState().
		DefineState("b").
		BuildState()

	_, err := b.Build()
	require.NoError(t, err)

	b.DefineState("late")
	_, err = b.Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, automaton.ErrBuilderSealed)
}

func TestBuilder_DefectsAccumulate(t *testing.T) {
	b := automaton.NewBuilder()
	b.DefineState("a", automaton.Initial()).BuildState().
		DefineState("a").BuildState().
		DefineState("b", automaton.Initial()).BuildState()

	verr := buildError(t, b)
	assert.ErrorIs(t, verr, automaton.ErrDuplicateState)
	assert.ErrorIs(t, verr, automaton.ErrMultipleInitialStates)
}

func TestBuilder_EffectsAttachInOrder(t *testing.T) {
	first := domain.Effect{Name: "first"}
	second := domain.Effect{Name: "second"}

	machine, err := automaton.NewBuilder().
		DefineState("a", automaton.Initial()).
		OnTool("work").
		OnSuccess("b", automaton.Terminal(), automaton.WithEffects(first, second)).
		BuildEdge().
		BuildState().
		DefineState("b").
		BuildState().
		Build()
	require.NoError(t, err)

	edge, ok := machine.EdgeFor("a", domain.ToolRef("work"), domain.OutcomeSuccess)
	require.True(t, ok)
	require.Len(t, edge.Effects, 2)
	assert.Equal(t, "first", edge.Effects[0].Name)
	assert.Equal(t, "second", edge.Effects[1].Name)
}

func TestAutomaton_Lookups(t *testing.T) {
	machine, err := automaton.NewBuilder().
		DefineState("a", automaton.Initial()).
		OnTool("x").
		OnSuccess("b", automaton.Terminal()).
		BuildEdge().
		OnResource("doc://r").
		OnSuccess("a").
		BuildEdge().
		BuildState().
		DefineState("b").
		BuildState().
		Build()
	require.NoError(t, err)

	refs := machine.ArtifactsBoundTo("a")
	require.Len(t, refs, 2)
	assert.Equal(t, domain.ToolRef("x"), refs[0])
	assert.Equal(t, domain.ResourceRef("doc://r"), refs[1])

	assert.Equal(t, []string{"a"}, machine.StatesExposing(domain.ToolRef("x")))
	assert.Empty(t, machine.ArtifactsBoundTo("b"))

	assert.True(t, machine.Callable("a", domain.ToolRef("x")))
	assert.False(t, machine.Callable("b", domain.ToolRef("x")))
	assert.False(t, machine.Callable("a", domain.ToolRef("unknown")))
}
