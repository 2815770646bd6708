package graph_test

import (
	"strings"
	"testing"

	"github.com/TobiWan1995/statemcp/internal/presentation/graph"
	"github.com/TobiWan1995/statemcp/pkg/automaton"
)

func buildAutomaton(t *testing.T, define func(b *automaton.Builder)) *automaton.Automaton {
	t.Helper()
	b := automaton.NewBuilder()
	define(b)
	a, err := b.Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	return a
}

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		define   func(b *automaton.Builder)
		overlay  *graph.Overlay
		contains []string
		excludes []string
	}{
		{
			name: "Initial State Shape",
			define: func(b *automaton.Builder) {
				b.DefineState("entry", automaton.Initial()).
					OnTool("go").
					OnSuccess("end", automaton.Terminal()).
					BuildEdge().
					BuildState().
					DefineState("end").
					BuildState()
			},
			contains: []string{
				`entry(("entry"))`,
				`end["end"]`,
			},
		},
		{
			name: "Success And Terminal Edge Labels",
			define: func(b *automaton.Builder) {
				b.DefineState("entry", automaton.Initial()).
					OnTool("finish").
					OnSuccess("end", automaton.Terminal()).
					BuildEdge().
					BuildState().
					DefineState("end").
					BuildState()
			},
			contains: []string{
				`entry -- "finish 🛑" --> end`,
			},
		},
		{
			name: "Explicit Error Edge Is Dashed",
			define: func(b *automaton.Builder) {
				b.DefineState("entry", automaton.Initial()).
					OnTool("risky").
					OnSuccess("end", automaton.Terminal()).
					OnError("entry").
					BuildEdge().
					BuildState().
					DefineState("end").
					BuildState()
			},
			contains: []string{
				`entry -. "risky ❌" .-> entry`,
			},
		},
		{
			name: "Implicit Error Loops Are Hidden",
			define: func(b *automaton.Builder) {
				b.DefineState("entry", automaton.Initial()).
					OnTool("finish").
					OnSuccess("end", automaton.Terminal()).
					BuildEdge().
					BuildState().
					DefineState("end").
					BuildState()
			},
			excludes: []string{
				`.-> entry`,
			},
		},
		{
			name: "ID Sanitization",
			define: func(b *automaton.Builder) {
				b.DefineState("step-1.draft", automaton.Initial()).
					OnResource("doc://guide").
					OnSuccess("end", automaton.Terminal()).
					BuildEdge().
					BuildState().
					DefineState("end").
					BuildState()
			},
			contains: []string{
				`step_1_draft(("step-1.draft"))`,
				`doc://guide`,
			},
		},
		{
			name: "Current State Overlay",
			define: func(b *automaton.Builder) {
				b.DefineState("entry", automaton.Initial()).
					OnTool("go").
					OnSuccess("end", automaton.Terminal()).
					BuildEdge().
					BuildState().
					DefineState("end").
					BuildState()
			},
			overlay: &graph.Overlay{CurrentState: "entry"},
			contains: []string{
				"classDef current",
				"class entry current;",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(buildAutomaton(t, tt.define), tt.overlay)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("GenerateMermaid() = \n%v\nWant substring: %v", got, want)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(got, unwanted) {
					t.Errorf("GenerateMermaid() = \n%v\nUnwanted substring: %v", got, unwanted)
				}
			}
		})
	}
}
