package statemcp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TobiWan1995/statemcp/internal/logging"
	adminhttp "github.com/TobiWan1995/statemcp/pkg/adapters/http"
	"github.com/TobiWan1995/statemcp/pkg/adapters/memory"
	mcpadapter "github.com/TobiWan1995/statemcp/pkg/adapters/mcp"
	"github.com/TobiWan1995/statemcp/pkg/automaton"
	"github.com/TobiWan1995/statemcp/pkg/domain"
	"github.com/TobiWan1995/statemcp/pkg/observability"
	"github.com/TobiWan1995/statemcp/pkg/ports"
	"github.com/TobiWan1995/statemcp/pkg/proxy"
	"github.com/TobiWan1995/statemcp/pkg/registry"
	"github.com/TobiWan1995/statemcp/pkg/session"
)

// Version is the library version, reported to MCP clients.
const Version = "0.1.0"

// Server is the high-level entry point. It bundles the artifact catalog,
// the automaton under construction and, after Start, the session tracker
// and gated proxies.
//
// Typical use: register artifacts, define the automaton, Start, then serve:
//
//	srv := statemcp.New("office")
//	srv.Tools().Register(...)
//	srv.Automaton().
//		DefineState("lobby", automaton.Initial()).
//		...
//	if err := srv.Start(ctx); err != nil { ... }
//	srv.ServeStdio()
type Server struct {
	name    string
	version string

	catalog *registry.Catalog
	builder *automaton.Builder
	machine *automaton.Automaton

	store         ports.SessionStore
	locker        ports.SessionLocker
	tracker       *session.Tracker
	tools         *proxy.ToolProxy
	resources     *proxy.ResourceProxy
	prompts       *proxy.PromptProxy
	adapter       *mcpadapter.Server
	metrics       *observability.Metrics
	promRegistry  *prometheus.Registry
	logger        *slog.Logger
	sessionTTL    time.Duration
	effectTimeout time.Duration

	started bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger used across all components.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStore sets the session store. Defaults to the in-process store; use
// the redis adapter to share sessions across replicas.
func WithStore(store ports.SessionStore) Option {
	return func(s *Server) {
		if store != nil {
			s.store = store
		}
	}
}

// WithSessionLocker serializes transitions across replicas sharing one
// session store.
func WithSessionLocker(locker ports.SessionLocker) Option {
	return func(s *Server) { s.locker = locker }
}

// WithVersion overrides the version reported to clients.
func WithVersion(version string) Option {
	return func(s *Server) { s.version = version }
}

// WithSessionTTL evicts sessions idle for longer than ttl.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Server) { s.sessionTTL = ttl }
}

// WithEffectTimeout bounds each transition effect. Defaults to 5s.
func WithEffectTimeout(timeout time.Duration) Option {
	return func(s *Server) { s.effectTimeout = timeout }
}

// New creates a Server with an empty catalog and automaton.
func New(name string, opts ...Option) *Server {
	s := &Server{
		name:         name,
		version:      Version,
		catalog:      registry.NewCatalog(),
		builder:      automaton.NewBuilder(),
		store:        memory.New(),
		promRegistry: prometheus.NewRegistry(),
		logger:       logging.New(slog.LevelInfo),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tools returns the tool catalog for registration.
func (s *Server) Tools() *registry.ToolSet { return s.catalog.Tools }

// Resources returns the resource catalog for registration.
func (s *Server) Resources() *registry.ResourceSet { return s.catalog.Resources }

// Prompts returns the prompt catalog for registration.
func (s *Server) Prompts() *registry.PromptSet { return s.catalog.Prompts }

// Automaton returns the graph builder. Definitions are accepted until Start.
func (s *Server) Automaton() *automaton.Builder { return s.builder }

// Machine returns the built automaton. It is nil before Start.
func (s *Server) Machine() *automaton.Automaton { return s.machine }

// Tracker returns the session tracker. It is nil before Start.
func (s *Server) Tracker() *session.Tracker { return s.tracker }

// Start builds and validates the automaton, cross-checks its bindings
// against the catalog and wires the session tracker and proxies. Structural
// defects and unregistered artifacts are fatal; unreachable-state warnings
// are logged and the server starts anyway.
func (s *Server) Start(ctx context.Context) error {
	if s.started {
		return fmt.Errorf("server %q already started", s.name)
	}

	machine, err := s.builder.Build()
	if err != nil {
		return fmt.Errorf("automaton rejected: %w", err)
	}
	for _, finding := range automaton.Validate(machine) {
		if finding.Severity == automaton.SeverityWarning {
			s.logger.Warn("automaton warning", "kind", string(finding.Kind), "detail", finding.Detail)
		}
	}
	if findings := automaton.CheckRegistrations(machine, s.catalog); len(findings) > 0 {
		for _, finding := range findings {
			s.logger.Error("unregistered artifact", "state", finding.StateID, "artifact", finding.Artifact.String())
		}
		return fmt.Errorf("automaton binds %d artifact(s) the catalog does not serve", len(findings))
	}
	s.machine = machine

	s.metrics = observability.NewMetrics(s.promRegistry)

	dispatcherOpts := []session.DispatcherOption{
		session.WithDispatchLogger(s.logger),
		session.WithDispatchMetrics(s.metrics),
	}
	if s.effectTimeout > 0 {
		dispatcherOpts = append(dispatcherOpts, session.WithEffectTimeout(s.effectTimeout))
	}

	trackerOpts := []session.TrackerOption{
		session.WithLogger(s.logger),
		session.WithMetrics(s.metrics),
		session.WithDispatcher(session.NewDirectDispatcher(dispatcherOpts...)),
	}
	if s.sessionTTL > 0 {
		trackerOpts = append(trackerOpts, session.WithTTL(s.sessionTTL))
	}
	if s.locker != nil {
		trackerOpts = append(trackerOpts, session.WithSessionLocker(s.locker))
	}
	s.tracker = session.NewTracker(machine, s.store, trackerOpts...)

	proxyOpts := []proxy.Option{proxy.WithLogger(s.logger), proxy.WithMetrics(s.metrics)}
	s.tools = proxy.NewToolProxy(machine, s.tracker, s.catalog.Tools, proxyOpts...)
	s.resources = proxy.NewResourceProxy(machine, s.tracker, s.catalog.Resources, proxyOpts...)
	s.prompts = proxy.NewPromptProxy(machine, s.tracker, s.catalog.Prompts, proxyOpts...)

	adapter, err := mcpadapter.NewServer(s.name, s.version, s.catalog, s.tracker,
		s.tools, s.resources, s.prompts,
		mcpadapter.WithLogger(s.logger),
		mcpadapter.WithMetricsHandler(promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{})),
		mcpadapter.WithAdminHandler(adminhttp.NewHandler(s.name, s.version, machine, s.tracker, s.logger)),
	)
	if err != nil {
		return fmt.Errorf("failed to build MCP surface: %w", err)
	}
	s.adapter = adapter

	s.started = true
	s.logger.Info("server started",
		"name", s.name, "version", s.version,
		"states", len(machine.States()), "edges", len(machine.Edges()))
	return nil
}

// Stop releases background resources, such as the idle-session janitor.
func (s *Server) Stop() {
	if s.tracker != nil {
		s.tracker.Stop()
	}
}

func (s *Server) ensureStarted() error {
	if !s.started {
		return fmt.Errorf("server %q not started", s.name)
	}
	return nil
}

// ListTools lists the tools the session's current state exposes.
func (s *Server) ListTools(ctx context.Context, sessionID string) ([]domain.Tool, error) {
	if err := s.ensureStarted(); err != nil {
		return nil, err
	}
	return s.tools.ListTools(ctx, sessionID)
}

// CallTool invokes a tool through the automaton gate.
func (s *Server) CallTool(ctx context.Context, sessionID, name string, args map[string]any) (*domain.ToolResult, domain.TransitionResult, error) {
	if err := s.ensureStarted(); err != nil {
		return nil, domain.TransitionResult{}, err
	}
	return s.tools.CallTool(ctx, sessionID, name, args)
}

// ListResources lists the concrete resources the session's current state exposes.
func (s *Server) ListResources(ctx context.Context, sessionID string) ([]domain.Resource, error) {
	if err := s.ensureStarted(); err != nil {
		return nil, err
	}
	return s.resources.ListResources(ctx, sessionID)
}

// ReadResource reads a concrete resource URI through the automaton gate.
func (s *Server) ReadResource(ctx context.Context, sessionID, uri string) (*domain.ResourceContents, domain.TransitionResult, error) {
	if err := s.ensureStarted(); err != nil {
		return nil, domain.TransitionResult{}, err
	}
	return s.resources.ReadResource(ctx, sessionID, uri)
}

// ListPrompts lists the prompts the session's current state exposes.
func (s *Server) ListPrompts(ctx context.Context, sessionID string) ([]domain.Prompt, error) {
	if err := s.ensureStarted(); err != nil {
		return nil, err
	}
	return s.prompts.ListPrompts(ctx, sessionID)
}

// GetPrompt renders a prompt through the automaton gate.
func (s *Server) GetPrompt(ctx context.Context, sessionID, name string, args map[string]string) (*domain.PromptResult, domain.TransitionResult, error) {
	if err := s.ensureStarted(); err != nil {
		return nil, domain.TransitionResult{}, err
	}
	return s.prompts.GetPrompt(ctx, sessionID, name, args)
}

// Vars returns the session's scratch variables.
func (s *Server) Vars(sessionID string) *domain.Vars {
	if s.tracker == nil {
		return domain.NewVars()
	}
	return s.tracker.Vars(sessionID)
}

// ArtifactsChanged is a transition effect that notifies the moved session's
// client that its visible artifact set changed. Attach it to edges whose
// destination exposes different artifacts than their source.
func (s *Server) ArtifactsChanged() domain.Effect {
	return domain.Effect{
		Name: "artifacts_changed",
		Run: func(ctx context.Context, vars *domain.Vars, res domain.TransitionResult) error {
			if s.adapter == nil {
				return nil
			}
			return s.adapter.ArtifactListChanged(ctx, res.SessionID)
		},
	}
}

// ServeStdio serves MCP on Stdin/Stdout. The server must be started.
func (s *Server) ServeStdio() error {
	if err := s.ensureStarted(); err != nil {
		return err
	}
	defer s.Stop()
	return s.adapter.ServeStdio()
}

// ServeSSE serves MCP over SSE on the given port, with metrics and health
// endpoints on the same listener. Blocks until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	if err := s.ensureStarted(); err != nil {
		return err
	}
	defer s.Stop()
	return s.adapter.ServeSSE(ctx, port)
}
