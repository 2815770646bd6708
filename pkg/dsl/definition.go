// Package dsl loads workflow graphs from YAML or JSON definitions. It is the
// file-based counterpart of the fluent builder: operators describe states,
// bindings and edges declaratively, and the definition is applied onto an
// automaton builder.
package dsl

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/TobiWan1995/statemcp/pkg/automaton"
)

// Definition is the top-level document of a graph file.
type Definition struct {
	Name    string     `yaml:"name" json:"name"`
	Initial string     `yaml:"initial" json:"initial"`
	States  []StateDef `yaml:"states" json:"states"`
}

// StateDef declares one state and the artifacts it exposes.
type StateDef struct {
	ID      string    `yaml:"id" json:"id"`
	Initial bool      `yaml:"initial,omitempty" json:"initial,omitempty"`
	Edges   []EdgeDef `yaml:"edges,omitempty" json:"edges,omitempty"`
}

// EdgeDef binds exactly one artifact and routes its outcomes. Success is the
// destination on a successful invocation; Error optionally overrides the
// implicit stay-in-place error handling.
type EdgeDef struct {
	Tool     string `yaml:"tool,omitempty" json:"tool,omitempty"`
	Resource string `yaml:"resource,omitempty" json:"resource,omitempty"`
	Prompt   string `yaml:"prompt,omitempty" json:"prompt,omitempty"`

	Success string `yaml:"success" json:"success"`
	Error   string `yaml:"error,omitempty" json:"error,omitempty"`

	// Terminal marks the success edge as concluding the session.
	Terminal bool `yaml:"terminal,omitempty" json:"terminal,omitempty"`
	// ErrorTerminal marks the error edge as concluding the session.
	ErrorTerminal bool `yaml:"error_terminal,omitempty" json:"error_terminal,omitempty"`
}

// Parse decodes a YAML definition.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse graph definition: %w", err)
	}
	return &def, nil
}

// Load reads a definition from a YAML or JSON file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph definition: %w", err)
	}
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		var def Definition
		if err := json.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("failed to parse graph definition: %w", err)
		}
		return &def, nil
	}
	return Parse(data)
}

// Apply replays the definition onto a builder. Structural problems the
// definition format can express, such as an edge binding two artifacts, are
// reported here; everything else is left to the builder's own validation.
func (d *Definition) Apply(b *automaton.Builder) error {
	initial := d.Initial
	for _, state := range d.States {
		if state.ID == "" {
			return fmt.Errorf("state without id in graph definition")
		}
		if state.Initial {
			if initial != "" && initial != state.ID {
				return fmt.Errorf("conflicting initial states %q and %q", initial, state.ID)
			}
			initial = state.ID
		}
	}

	for _, state := range d.States {
		var opts []automaton.StateOption
		if state.ID == initial {
			opts = append(opts, automaton.Initial())
		}
		sb := b.DefineState(state.ID, opts...)

		for i, edge := range state.Edges {
			eb, err := bindEdge(sb, edge)
			if err != nil {
				return fmt.Errorf("state %q edge %d: %w", state.ID, i, err)
			}
			if edge.Success != "" {
				var edgeOpts []automaton.EdgeOption
				if edge.Terminal {
					edgeOpts = append(edgeOpts, automaton.Terminal())
				}
				eb.OnSuccess(edge.Success, edgeOpts...)
			}
			if edge.Error != "" {
				var edgeOpts []automaton.EdgeOption
				if edge.ErrorTerminal {
					edgeOpts = append(edgeOpts, automaton.Terminal())
				}
				eb.OnError(edge.Error, edgeOpts...)
			}
			eb.BuildEdge()
		}
		sb.BuildState()
	}
	return nil
}

// Build applies the definition onto a fresh builder and compiles it.
func (d *Definition) Build() (*automaton.Automaton, error) {
	b := automaton.NewBuilder()
	if err := d.Apply(b); err != nil {
		return nil, err
	}
	return b.Build()
}

func bindEdge(sb *automaton.StateBuilder, edge EdgeDef) (*automaton.EdgeBuilder, error) {
	bound := 0
	for _, name := range []string{edge.Tool, edge.Resource, edge.Prompt} {
		if name != "" {
			bound++
		}
	}
	if bound != 1 {
		return nil, fmt.Errorf("exactly one of tool, resource or prompt must be set")
	}

	switch {
	case edge.Tool != "":
		return sb.OnTool(edge.Tool), nil
	case edge.Resource != "":
		return sb.OnResource(edge.Resource), nil
	default:
		return sb.OnPrompt(edge.Prompt), nil
	}
}
