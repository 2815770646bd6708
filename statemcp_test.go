package statemcp_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiWan1995/statemcp"
	"github.com/TobiWan1995/statemcp/internal/logging"
	"github.com/TobiWan1995/statemcp/pkg/automaton"
	"github.com/TobiWan1995/statemcp/pkg/domain"
)

// newCrossroadsServer builds the dungeon walkthrough: open the first door,
// look around at the crossroad, take the left path, and open the final door
// with the right key. The wrong key rolls the explorer back to a recovery
// room, from where the crossroad is reachable again.
func newCrossroadsServer(t *testing.T) *statemcp.Server {
	t.Helper()

	srv := statemcp.New("crossroads", statemcp.WithLogger(logging.NewNop()))

	registerTool := func(name string, fn func(args map[string]any) (any, error)) {
		srv.Tools().Register(domain.Tool{Name: name}, func(ctx context.Context, args map[string]any) (any, error) {
			return fn(args)
		})
	}
	registerTool("open_door", func(args map[string]any) (any, error) { return "the door creaks open", nil })
	registerTool("press_button", func(args map[string]any) (any, error) { return "nothing happens", nil })
	registerTool("choose_left_path", func(args map[string]any) (any, error) { return "you walk left", nil })
	registerTool("go_back", func(args map[string]any) (any, error) { return "you retreat", nil })
	registerTool("open_door_with_key", func(args map[string]any) (any, error) {
		if key, _ := args["key"].(string); key == "gold" {
			return "the lock clicks", nil
		}
		return nil, errors.New("the key does not fit")
	})

	srv.Automaton().
		DefineState("entry", automaton.Initial()).
		OnTool("open_door").
		OnSuccess("crossroad").
		BuildEdge().
		BuildState().
		DefineState("crossroad").
		OnTool("press_button").
		OnSuccess("crossroad").
		BuildEdge().
		OnTool("choose_left_path").
		OnSuccess("left_door").
		BuildEdge().
		BuildState().
		DefineState("left_door").
		OnTool("open_door_with_key").
		OnSuccess("treasury", automaton.Terminal()).
		OnError("rollback_left").
		BuildEdge().
		BuildState().
		DefineState("rollback_left").
		OnTool("go_back").
		OnSuccess("crossroad").
		BuildEdge().
		BuildState().
		DefineState("treasury").
		BuildState()

	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(srv.Stop)
	return srv
}

func toolNames(t *testing.T, srv *statemcp.Server, sessionID string) []string {
	t.Helper()
	tools, err := srv.ListTools(context.Background(), sessionID)
	require.NoError(t, err)
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	return names
}

func TestCrossroadsHappyPath(t *testing.T) {
	srv := newCrossroadsServer(t)
	ctx := context.Background()

	assert.Equal(t, []string{"open_door"}, toolNames(t, srv, "s1"))

	_, res, err := srv.CallTool(ctx, "s1", "open_door", nil)
	require.NoError(t, err)
	assert.Equal(t, "crossroad", res.To)
	assert.ElementsMatch(t, []string{"press_button", "choose_left_path"}, toolNames(t, srv, "s1"))

	// The button self-loops: pressing it any number of times changes nothing.
	for i := 0; i < 3; i++ {
		_, res, err = srv.CallTool(ctx, "s1", "press_button", nil)
		require.NoError(t, err)
		assert.Equal(t, "crossroad", res.To)
	}

	_, _, err = srv.CallTool(ctx, "s1", "choose_left_path", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"open_door_with_key"}, toolNames(t, srv, "s1"))

	result, res, err := srv.CallTool(ctx, "s1", "open_door_with_key", map[string]any{"key": "gold"})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.True(t, res.Terminal)
	assert.Equal(t, "treasury", res.To)

	// Concluded: nothing listed, nothing callable.
	assert.Empty(t, toolNames(t, srv, "s1"))
	_, _, err = srv.CallTool(ctx, "s1", "open_door", nil)
	assert.ErrorIs(t, err, domain.ErrSessionConcluded)
}

func TestCrossroadsWrongKeyRollsBack(t *testing.T) {
	srv := newCrossroadsServer(t)
	ctx := context.Background()

	_, _, err := srv.CallTool(ctx, "s1", "open_door", nil)
	require.NoError(t, err)
	_, _, err = srv.CallTool(ctx, "s1", "choose_left_path", nil)
	require.NoError(t, err)

	result, res, err := srv.CallTool(ctx, "s1", "open_door_with_key", map[string]any{"key": "rusty"})
	require.NoError(t, err, "a failing tool is an error outcome, not a failed call")
	assert.True(t, result.IsError)
	assert.Equal(t, domain.OutcomeError, res.Outcome)
	assert.Equal(t, "rollback_left", res.To)
	assert.False(t, res.Terminal)

	assert.Equal(t, []string{"go_back"}, toolNames(t, srv, "s1"))

	// Recovery loop: back to the crossroad, try again with the right key.
	_, _, err = srv.CallTool(ctx, "s1", "go_back", nil)
	require.NoError(t, err)
	_, _, err = srv.CallTool(ctx, "s1", "choose_left_path", nil)
	require.NoError(t, err)
	_, res, err = srv.CallTool(ctx, "s1", "open_door_with_key", map[string]any{"key": "gold"})
	require.NoError(t, err)
	assert.True(t, res.Terminal)
}

func TestCrossroadsGateRejectsOutOfStateTools(t *testing.T) {
	srv := newCrossroadsServer(t)
	ctx := context.Background()

	// Every tool except open_door exists globally but is invisible and
	// uncallable from the entry.
	for _, name := range []string{"press_button", "choose_left_path", "go_back", "open_door_with_key"} {
		_, _, err := srv.CallTool(ctx, "s1", name, nil)
		assert.ErrorIs(t, err, domain.ErrArtifactNotAvailable, name)
	}

	current, err := srv.Tracker().Current(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "entry", current)
}

func TestCrossroadsSessionsWalkIndependently(t *testing.T) {
	srv := newCrossroadsServer(t)
	ctx := context.Background()

	_, _, err := srv.CallTool(ctx, "alice", "open_door", nil)
	require.NoError(t, err)
	_, _, err = srv.CallTool(ctx, "alice", "choose_left_path", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"open_door_with_key"}, toolNames(t, srv, "alice"))
	assert.Equal(t, []string{"open_door"}, toolNames(t, srv, "bob"))
}

func TestServerRejectsUnregisteredBindings(t *testing.T) {
	srv := statemcp.New("broken", statemcp.WithLogger(logging.NewNop()))
	srv.Automaton().
		DefineState("only", automaton.Initial()).
		OnTool("ghost").
		OnSuccess("end", automaton.Terminal()).
		BuildEdge().
		BuildState().
		DefineState("end").
		BuildState()

	err := srv.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog does not serve")
}

func TestServerRejectsInvalidAutomaton(t *testing.T) {
	srv := statemcp.New("no-terminal", statemcp.WithLogger(logging.NewNop()))
	srv.Tools().Register(domain.Tool{Name: "spin"}, func(ctx context.Context, args map[string]any) (any, error) {
		return nil, nil
	})
	srv.Automaton().
		DefineState("loop", automaton.Initial()).
		OnTool("spin").
		OnSuccess("loop").
		BuildEdge().
		BuildState()

	err := srv.Start(context.Background())
	require.Error(t, err)

	var verr *automaton.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestServerEffectNotifiesOnTransition(t *testing.T) {
	srv := statemcp.New("effects", statemcp.WithLogger(logging.NewNop()))
	srv.Tools().Register(domain.Tool{Name: "advance"}, func(ctx context.Context, args map[string]any) (any, error) {
		return "ok", nil
	})

	var seen []string
	remember := domain.Effect{
		Name: "remember",
		Run: func(ctx context.Context, vars *domain.Vars, res domain.TransitionResult) error {
			seen = append(seen, res.To)
			return nil
		},
	}

	srv.Automaton().
		DefineState("a", automaton.Initial()).
		OnTool("advance").
		OnSuccess("b", automaton.Terminal(), automaton.WithEffects(remember, srv.ArtifactsChanged())).
		BuildEdge().
		BuildState().
		DefineState("b").
		BuildState()

	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(srv.Stop)

	_, res, err := srv.CallTool(context.Background(), "s1", "advance", nil)
	require.NoError(t, err)
	assert.True(t, res.Terminal)
	assert.Equal(t, []string{"b"}, seen)
}
