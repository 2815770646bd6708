package ports

import (
	"context"

	"github.com/TobiWan1995/statemcp/pkg/domain"
)

// EffectDispatcher executes transition side-effects after a commit. The
// dispatch mechanism (direct call, queue, async task) is a pluggable
// collaborator; the tracker only requires that failures are absorbed and
// never reach the invocation's result path.
type EffectDispatcher interface {
	Dispatch(ctx context.Context, effects []domain.Effect, vars *domain.Vars, res domain.TransitionResult)
}

// Notifier pushes artifact-list-changed notifications to a session's client.
// Transports implement this so effects can advertise availability changes.
type Notifier interface {
	ArtifactListChanged(ctx context.Context, sessionID string) error
}
