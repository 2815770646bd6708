package ports

import (
	"context"

	"github.com/TobiWan1995/statemcp/pkg/domain"
)

// SessionStore persists per-session automaton positions. Implementations must
// be safe for concurrent use; the tracker serializes access per session but
// different sessions hit the store in parallel.
type SessionStore interface {
	// Save persists the state for a given session ID.
	Save(ctx context.Context, sessionID string, state *domain.SessionState) error

	// Load retrieves the state for a given session ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.SessionState, error)

	// Delete removes the state for a given session ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of all stored sessions.
	List(ctx context.Context) ([]string, error)
}
