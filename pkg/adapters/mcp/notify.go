package mcp

import (
	"context"
	"fmt"
)

// ArtifactListChanged tells one client that the set of artifacts available
// to its session changed, typically after a transition moved the session
// into a state with different bindings. Clients on transports without
// session routing simply re-list on their next request.
func (s *Server) ArtifactListChanged(ctx context.Context, sessionID string) error {
	if err := s.mcpServer.SendNotificationToSpecificClient(sessionID, "notifications/tools/list_changed", nil); err != nil {
		return fmt.Errorf("failed to notify session %q: %w", sessionID, err)
	}
	return nil
}
