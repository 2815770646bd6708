// Package http provides an inspection API over a running server. It exposes
// the workflow graph and the live sessions for operators and debuggers; it is
// not part of the MCP surface.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/TobiWan1995/statemcp/internal/presentation/graph"
	"github.com/TobiWan1995/statemcp/pkg/automaton"
	"github.com/TobiWan1995/statemcp/pkg/domain"
)

// SessionInspector is the slice of the session tracker the API needs.
type SessionInspector interface {
	Sessions(ctx context.Context) ([]string, error)
	State(ctx context.Context, id string) (*domain.SessionState, error)
	EndSession(ctx context.Context, id string) error
}

// Server serves the inspection endpoints.
type Server struct {
	name     string
	version  string
	machine  *automaton.Automaton
	sessions SessionInspector
	logger   *slog.Logger
}

// SessionView is the JSON shape of one session.
type SessionView struct {
	ID        string `json:"id"`
	Current   string `json:"current"`
	Concluded bool   `json:"concluded"`
}

// NewHandler creates the inspection handler.
func NewHandler(name, version string, machine *automaton.Automaton, sessions SessionInspector, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		name:     name,
		version:  version,
		machine:  machine,
		sessions: sessions,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Get("/info", s.getInfo)
	r.Get("/graph", s.getGraph)
	r.Get("/sessions", s.listSessions)
	r.Get("/sessions/{id}", s.getSession)
	r.Delete("/sessions/{id}", s.deleteSession)
	return r
}

func (s *Server) getInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"app":     s.name,
		"version": s.version,
	})
}

// getGraph renders the automaton as Mermaid text. With ?session=<id> the
// session's current state is highlighted.
func (s *Server) getGraph(w http.ResponseWriter, r *http.Request) {
	var overlay *graph.Overlay
	if id := r.URL.Query().Get("session"); id != "" {
		state, err := s.sessions.State(r.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrSessionNotFound) {
				http.Error(w, "session not found", http.StatusNotFound)
				return
			}
			http.Error(w, fmt.Sprintf("session lookup error: %v", err), http.StatusInternalServerError)
			s.logger.Error("session lookup failed", "session_id", id, "error", err)
			return
		}
		overlay = &graph.Overlay{CurrentState: state.Current}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(graph.GenerateMermaid(s.machine, overlay)))
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.sessions.Sessions(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("session listing error: %v", err), http.StatusInternalServerError)
		s.logger.Error("session listing failed", "error", err)
		return
	}

	views := make([]SessionView, 0, len(ids))
	for _, id := range ids {
		state, err := s.sessions.State(r.Context(), id)
		if err != nil {
			// The session may have been evicted between List and Load.
			continue
		}
		views = append(views, SessionView{ID: id, Current: state.Current, Concluded: state.Concluded})
	}
	writeJSON(w, views)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, err := s.sessions.State(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("session lookup error: %v", err), http.StatusInternalServerError)
		s.logger.Error("session lookup failed", "session_id", id, "error", err)
		return
	}
	writeJSON(w, SessionView{ID: id, Current: state.Current, Concluded: state.Concluded})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.EndSession(r.Context(), id); err != nil {
		http.Error(w, fmt.Sprintf("session delete error: %v", err), http.StatusInternalServerError)
		s.logger.Error("session delete failed", "session_id", id, "error", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}
