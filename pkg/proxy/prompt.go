package proxy

import (
	"context"

	"github.com/TobiWan1995/statemcp/pkg/automaton"
	"github.com/TobiWan1995/statemcp/pkg/domain"
	"github.com/TobiWan1995/statemcp/pkg/ports"
	"github.com/TobiWan1995/statemcp/pkg/session"
)

// PromptProxy gates a PromptBackend behind the automaton.
type PromptProxy struct {
	base
	backend ports.PromptBackend
}

// NewPromptProxy wraps a prompt backend.
func NewPromptProxy(machine *automaton.Automaton, tracker *session.Tracker, backend ports.PromptBackend, opts ...Option) *PromptProxy {
	return &PromptProxy{base: newBase(machine, tracker, opts), backend: backend}
}

// ListPrompts returns the prompts bound to the session's current state, in
// binding order. A concluded session sees an empty list.
func (p *PromptProxy) ListPrompts(ctx context.Context, sessionID string) ([]domain.Prompt, error) {
	refs, err := p.bindingsFor(ctx, sessionID, domain.KindPrompt)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, nil
	}

	all, err := p.backend.ListPrompts(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]domain.Prompt, len(all))
	for _, prompt := range all {
		byName[prompt.Name] = prompt
	}

	prompts := make([]domain.Prompt, 0, len(refs))
	for _, ref := range refs {
		prompt, ok := byName[ref.ID]
		if !ok {
			p.logger.Warn("bound prompt missing from backend", "prompt", ref.ID)
			continue
		}
		prompts = append(prompts, prompt)
	}
	return prompts, nil
}

// GetPrompt renders a prompt through the automaton gate and commits the
// resulting transition. Render failures take the error edge; a render
// interrupted by the caller's context produces no transition.
func (p *PromptProxy) GetPrompt(ctx context.Context, sessionID, name string, args map[string]string) (*domain.PromptResult, domain.TransitionResult, error) {
	ref := domain.PromptRef(name)
	if _, err := p.gate(ctx, sessionID, ref); err != nil {
		return nil, domain.TransitionResult{}, err
	}

	result, err := p.backend.GetPrompt(ctx, name, args)
	if interrupted(ctx, err) {
		if err == nil {
			err = ctx.Err()
		}
		return nil, domain.TransitionResult{}, err
	}
	if err != nil {
		res, terr := p.commit(ctx, sessionID, ref, domain.OutcomeError)
		if terr != nil {
			return nil, domain.TransitionResult{}, terr
		}
		return nil, res, err
	}

	res, err := p.commit(ctx, sessionID, ref, domain.OutcomeSuccess)
	if err != nil {
		return nil, domain.TransitionResult{}, err
	}
	return result, res, nil
}
