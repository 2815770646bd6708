package graph

import (
	"fmt"
	"strings"

	"github.com/TobiWan1995/statemcp/pkg/automaton"
	"github.com/TobiWan1995/statemcp/pkg/domain"
)

// Overlay contains dynamic session data to visualize on the graph.
type Overlay struct {
	CurrentState string
}

// GenerateMermaid produces a Mermaid flowchart from the automaton.
// Semantic styling:
// - Initial state: ((Circle))
// - Other states: [Rectangle]
// - Success edges: solid, labeled with the artifact
// - Explicit error edges: dashed, labeled with the artifact
// - Implicit error self-loops: omitted (they carry no information)
// - Terminal edges: labeled with a stop icon
// An overlay highlights the session's current state, if provided.
func GenerateMermaid(a *automaton.Automaton, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, state := range a.States() {
		safeID := sanitizeMermaidID(state.ID)
		opener, closer := "[", "]"
		if state.Initial {
			opener, closer = "((", "))"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, state.ID, closer))
	}

	for _, edge := range a.Edges() {
		if edge.Implicit {
			continue
		}
		safeFrom := sanitizeMermaidID(edge.From)
		safeTo := sanitizeMermaidID(edge.To)

		label := edge.Artifact.ID
		if edge.Terminal {
			label += " 🛑"
		}
		label = strings.ReplaceAll(label, "\"", "'")

		arrow := fmt.Sprintf("-- \"%s\" -->", label)
		if edge.Outcome == domain.OutcomeError {
			arrow = fmt.Sprintf("-. \"%s ❌\" .->", label)
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", safeFrom, arrow, safeTo))
	}

	if overlay != nil && overlay.CurrentState != "" {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.CurrentState)))
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
