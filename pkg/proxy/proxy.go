package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/TobiWan1995/statemcp/internal/logging"
	"github.com/TobiWan1995/statemcp/pkg/automaton"
	"github.com/TobiWan1995/statemcp/pkg/domain"
	"github.com/TobiWan1995/statemcp/pkg/observability"
	"github.com/TobiWan1995/statemcp/pkg/session"
)

// Option configures a proxy.
type Option func(*base)

// WithLogger sets the proxy's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *base) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics wires rejection counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(b *base) { b.metrics = m }
}

// base carries what every proxy flavor needs: the graph for availability
// decisions and the tracker for session position and transitions.
type base struct {
	machine *automaton.Automaton
	tracker *session.Tracker
	logger  *slog.Logger
	metrics *observability.Metrics
}

func newBase(machine *automaton.Automaton, tracker *session.Tracker, opts []Option) base {
	b := base{machine: machine, tracker: tracker, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// gate admits or rejects an invocation of ref for the session. It returns
// the session's current state on admission.
func (b *base) gate(ctx context.Context, sessionID string, ref domain.ArtifactRef) (string, error) {
	state, err := b.tracker.State(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if state.Concluded {
		b.metrics.RecordRejection(observability.ReasonConcluded)
		b.logger.Debug("invocation rejected, session concluded",
			"session_id", sessionID, "artifact", ref.String())
		return "", fmt.Errorf("session %q: %w", sessionID, domain.ErrSessionConcluded)
	}
	if !b.machine.Callable(state.Current, ref) {
		b.metrics.RecordRejection(observability.ReasonNotAvailable)
		b.logger.Debug("invocation rejected, artifact not bound to current state",
			"session_id", sessionID, "state", state.Current, "artifact", ref.String())
		return "", fmt.Errorf("%s in state %q: %w", ref, state.Current, domain.ErrArtifactNotAvailable)
	}
	return state.Current, nil
}

// bindingsFor returns the artifacts of one kind bound to the session's
// current state, in binding order. A concluded session exposes nothing.
func (b *base) bindingsFor(ctx context.Context, sessionID string, kind domain.Kind) ([]domain.ArtifactRef, error) {
	state, err := b.tracker.State(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state.Concluded {
		return nil, nil
	}
	var refs []domain.ArtifactRef
	for _, ref := range b.machine.ArtifactsBoundTo(state.Current) {
		if ref.Kind == kind {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

// interrupted reports whether a backend failure stems from the caller's
// context rather than the artifact itself. Such failures produce no
// transition: the session holds position and the invocation may be retried.
func interrupted(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// commit resolves the invocation outcome into a transition.
func (b *base) commit(ctx context.Context, sessionID string, ref domain.ArtifactRef, outcome domain.Outcome) (domain.TransitionResult, error) {
	return b.tracker.Transition(ctx, sessionID, ref, outcome)
}
