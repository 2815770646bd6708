package proxy

import (
	"context"

	"github.com/TobiWan1995/statemcp/pkg/automaton"
	"github.com/TobiWan1995/statemcp/pkg/domain"
	"github.com/TobiWan1995/statemcp/pkg/ports"
	"github.com/TobiWan1995/statemcp/pkg/session"
)

// ToolProxy gates a ToolBackend behind the automaton. Listing and calling
// are both filtered by the session's current state.
type ToolProxy struct {
	base
	backend ports.ToolBackend
}

// NewToolProxy wraps a tool backend.
func NewToolProxy(machine *automaton.Automaton, tracker *session.Tracker, backend ports.ToolBackend, opts ...Option) *ToolProxy {
	return &ToolProxy{base: newBase(machine, tracker, opts), backend: backend}
}

// ListTools returns the tools bound to the session's current state, in
// binding order. A concluded session sees an empty list. Bound tools the
// backend no longer serves are skipped with a warning.
func (p *ToolProxy) ListTools(ctx context.Context, sessionID string) ([]domain.Tool, error) {
	refs, err := p.bindingsFor(ctx, sessionID, domain.KindTool)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, nil
	}

	all, err := p.backend.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]domain.Tool, len(all))
	for _, tool := range all {
		byName[tool.Name] = tool
	}

	tools := make([]domain.Tool, 0, len(refs))
	for _, ref := range refs {
		tool, ok := byName[ref.ID]
		if !ok {
			p.logger.Warn("bound tool missing from backend", "tool", ref.ID)
			continue
		}
		tools = append(tools, tool)
	}
	return tools, nil
}

// CallTool invokes a tool through the automaton gate. On admission the call
// is delegated, its outcome classified and the resulting transition
// committed before the result is returned. A call interrupted by the
// caller's context produces no transition.
func (p *ToolProxy) CallTool(ctx context.Context, sessionID, name string, args map[string]any) (*domain.ToolResult, domain.TransitionResult, error) {
	ref := domain.ToolRef(name)
	if _, err := p.gate(ctx, sessionID, ref); err != nil {
		return nil, domain.TransitionResult{}, err
	}

	result, err := p.backend.CallTool(ctx, name, args)
	if interrupted(ctx, err) {
		if err == nil {
			err = ctx.Err()
		}
		return nil, domain.TransitionResult{}, err
	}
	if err != nil {
		result = &domain.ToolResult{IsError: true, Error: err.Error()}
	}

	outcome := domain.OutcomeSuccess
	if result.IsError {
		outcome = domain.OutcomeError
	}
	res, err := p.commit(ctx, sessionID, ref, outcome)
	if err != nil {
		return nil, domain.TransitionResult{}, err
	}
	return result, res, nil
}
