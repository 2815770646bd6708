package proxy

import (
	"context"
	"fmt"

	"github.com/TobiWan1995/statemcp/pkg/automaton"
	"github.com/TobiWan1995/statemcp/pkg/domain"
	"github.com/TobiWan1995/statemcp/pkg/ports"
	"github.com/TobiWan1995/statemcp/pkg/session"
)

// ResourceProxy gates a ResourceBackend behind the automaton. Only concrete
// URIs participate: template discovery is rejected because templates denote
// an open set of URIs the automaton cannot bind.
type ResourceProxy struct {
	base
	backend ports.ResourceBackend
}

// NewResourceProxy wraps a resource backend.
func NewResourceProxy(machine *automaton.Automaton, tracker *session.Tracker, backend ports.ResourceBackend, opts ...Option) *ResourceProxy {
	return &ResourceProxy{base: newBase(machine, tracker, opts), backend: backend}
}

// ListResources returns the concrete resources bound to the session's
// current state, in binding order. A concluded session sees an empty list.
func (p *ResourceProxy) ListResources(ctx context.Context, sessionID string) ([]domain.Resource, error) {
	refs, err := p.bindingsFor(ctx, sessionID, domain.KindResource)
	if err != nil {
		return nil, err
	}

	resources := make([]domain.Resource, 0, len(refs))
	for _, ref := range refs {
		desc, err := p.backend.Describe(ctx, ref.ID)
		if err != nil {
			p.logger.Warn("bound resource missing from backend", "uri", ref.ID, "err", err)
			continue
		}
		resources = append(resources, *desc)
	}
	if len(resources) == 0 {
		return nil, nil
	}
	return resources, nil
}

// ListTemplates is rejected: templates are not part of the automaton's
// binding vocabulary, so a state-filtered template listing cannot exist.
func (p *ResourceProxy) ListTemplates(ctx context.Context, sessionID string) ([]domain.ResourceTemplate, error) {
	return nil, fmt.Errorf("resource template discovery: %w", domain.ErrUnsupportedOperation)
}

// ReadResource reads a concrete URI through the automaton gate and commits
// the resulting transition. A read interrupted by the caller's context
// produces no transition.
func (p *ResourceProxy) ReadResource(ctx context.Context, sessionID, uri string) (*domain.ResourceContents, domain.TransitionResult, error) {
	ref := domain.ResourceRef(uri)
	if _, err := p.gate(ctx, sessionID, ref); err != nil {
		return nil, domain.TransitionResult{}, err
	}

	contents, err := p.backend.ReadResource(ctx, uri)
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
	return contents, res, nil
}
