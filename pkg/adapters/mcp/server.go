package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TobiWan1995/statemcp/internal/logging"
	"github.com/TobiWan1995/statemcp/pkg/domain"
	"github.com/TobiWan1995/statemcp/pkg/proxy"
	"github.com/TobiWan1995/statemcp/pkg/registry"
	"github.com/TobiWan1995/statemcp/pkg/session"
)

// Server exposes the gated catalog as an MCP server. All listing and access
// runs through the state-aware proxies: a client only ever sees what its
// session's current state exposes. Tools are registered up front and narrowed
// by a list filter; concrete resources are attached per session and re-synced
// after every transition. Prompts are the one class the framework cannot
// scope per session, so they are registered globally with a gated handler,
// and on single-client transports the global set is kept in step with the
// session's state as well.
type Server struct {
	name    string
	version string

	tracker   *session.Tracker
	tools     *proxy.ToolProxy
	resources *proxy.ResourceProxy
	prompts   *proxy.PromptProxy

	logger    *slog.Logger
	metrics   http.Handler
	admin     http.Handler
	mcpServer *server.MCPServer

	// fallbackID identifies the session on transports that carry no client
	// session, such as a bare stdio pipe.
	fallbackID string

	mu              sync.Mutex
	resourceEntries map[string]server.ServerResource
	promptEntries   map[string]registeredPrompt
	exposed         map[string]*exposure
}

type registeredPrompt struct {
	prompt  mcp.Prompt
	handler server.PromptHandlerFunc
}

// exposure tracks which artifacts a session currently sees. Sessions on
// transports without per-session resource support fall back to mutating the
// server's shared sets; such transports carry a single client, so the shared
// sets can track that one session.
type exposure struct {
	shared         bool
	promptsTrimmed bool
	resources      map[string]bool
	prompts        map[string]bool
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the adapter's logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsHandler mounts a metrics endpoint on the SSE router.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(s *Server) { s.metrics = h }
}

// WithAdminHandler mounts an inspection API under /admin on the SSE router.
func WithAdminHandler(h http.Handler) ServerOption {
	return func(s *Server) { s.admin = h }
}

// NewServer builds the MCP surface over the catalog and proxies.
func NewServer(name, version string, catalog *registry.Catalog, tracker *session.Tracker,
	tools *proxy.ToolProxy, resources *proxy.ResourceProxy, prompts *proxy.PromptProxy,
	opts ...ServerOption) (*Server, error) {

	s := &Server{
		name:            name,
		version:         version,
		tracker:         tracker,
		tools:           tools,
		resources:       resources,
		prompts:         prompts,
		logger:          logging.NewNop(),
		metrics:         promhttp.Handler(),
		fallbackID:      uuid.NewString(),
		resourceEntries: make(map[string]server.ServerResource),
		promptEntries:   make(map[string]registeredPrompt),
		exposed:         make(map[string]*exposure),
	}
	for _, opt := range opts {
		opt(s)
	}

	hooks := &server.Hooks{}
	hooks.AddOnRegisterSession(func(ctx context.Context, cs server.ClientSession) {
		if _, err := s.tracker.StartSession(ctx, cs.SessionID()); err != nil {
			s.logger.Error("failed to start session", "session_id", cs.SessionID(), "err", err)
			return
		}
		s.syncSession(ctx, cs.SessionID())
		s.logger.Info("client session started", "session_id", cs.SessionID())
	})
	hooks.AddOnUnregisterSession(func(ctx context.Context, cs server.ClientSession) {
		s.dropSession(cs.SessionID())
		if err := s.tracker.EndSession(ctx, cs.SessionID()); err != nil {
			s.logger.Warn("failed to end session", "session_id", cs.SessionID(), "err", err)
			return
		}
		s.logger.Info("client session ended", "session_id", cs.SessionID())
	})

	s.mcpServer = server.NewMCPServer(name, version,
		server.WithHooks(hooks),
		server.WithToolFilter(s.filterTools),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
	)

	if err := s.register(catalog); err != nil {
		return nil, err
	}
	return s, nil
}

// sessionID resolves the session identity of a request. Transports without
// client sessions share one stable fallback identity per server instance.
func (s *Server) sessionID(ctx context.Context) string {
	if cs := server.ClientSessionFromContext(ctx); cs != nil {
		return cs.SessionID()
	}
	return s.fallbackID
}

// filterTools narrows the advertised tool list to the session's current
// state. Failures hide everything rather than leak the full catalog.
func (s *Server) filterTools(ctx context.Context, tools []mcp.Tool) []mcp.Tool {
	allowed, err := s.tools.ListTools(ctx, s.sessionID(ctx))
	if err != nil {
		s.logger.Warn("tool filter failed, hiding all tools", "err", err)
		return nil
	}
	visible := make(map[string]bool, len(allowed))
	for _, tool := range allowed {
		visible[tool.Name] = true
	}
	filtered := make([]mcp.Tool, 0, len(tools))
	for _, tool := range tools {
		if visible[tool.Name] {
			filtered = append(filtered, tool)
		}
	}
	return filtered
}

func (s *Server) register(catalog *registry.Catalog) error {
	ctx := context.Background()

	tools, err := catalog.Tools.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("failed to enumerate tools: %w", err)
	}
	for _, tool := range tools {
		s.registerTool(tool)
	}

	resources, err := catalog.Resources.ListResources(ctx)
	if err != nil {
		return fmt.Errorf("failed to enumerate resources: %w", err)
	}
	for _, resource := range resources {
		s.registerResource(resource)
	}

	prompts, err := catalog.Prompts.ListPrompts(ctx)
	if err != nil {
		return fmt.Errorf("failed to enumerate prompts: %w", err)
	}
	for _, prompt := range prompts {
		s.registerPrompt(prompt)
	}
	return nil
}

func (s *Server) registerTool(tool domain.Tool) {
	var def mcp.Tool
	if len(tool.Parameters) > 0 {
		schema, err := json.Marshal(tool.Parameters)
		if err != nil {
			s.logger.Error("invalid tool parameter schema", "tool", tool.Name, "err", err)
			return
		}
		def = mcp.NewToolWithRawSchema(tool.Name, tool.Description, schema)
	} else {
		def = mcp.NewTool(tool.Name, mcp.WithDescription(tool.Description))
	}

	name := tool.Name
	s.mcpServer.AddTool(def, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := s.sessionID(ctx)
		result, res, err := s.tools.CallTool(ctx, id, name, request.GetArguments())
		if err != nil {
			if rejected(err) {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return nil, err
		}
		s.syncAfterTransition(ctx, id, res)
		if result.IsError {
			return mcp.NewToolResultError(result.Error), nil
		}
		return mcp.NewToolResultText(renderContent(result.Content)), nil
	})
}

// registerResource prepares a framework resource without attaching it: the
// per-session sync decides which sessions see it.
func (s *Server) registerResource(resource domain.Resource) {
	def := mcp.NewResource(resource.URI, resource.Name,
		mcp.WithResourceDescription(resource.Description),
		mcp.WithMIMEType(resource.MIMEType),
	)
	uri := resource.URI
	s.resourceEntries[uri] = server.ServerResource{
		Resource: def,
		Handler: func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			id := s.sessionID(ctx)
			contents, res, err := s.resources.ReadResource(ctx, id, uri)
			if err != nil {
				return nil, err
			}
			s.syncAfterTransition(ctx, id, res)
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      contents.URI,
					MIMEType: contents.MIMEType,
					Text:     contents.Text,
				},
			}, nil
		},
	}
}

// registerPrompt attaches a prompt with a gated handler. The framework has
// no per-session prompt sets, so the definition itself stays shared.
func (s *Server) registerPrompt(prompt domain.Prompt) {
	opts := []mcp.PromptOption{mcp.WithPromptDescription(prompt.Description)}
	for _, arg := range prompt.Arguments {
		argOpts := []mcp.ArgumentOption{mcp.ArgumentDescription(arg.Description)}
		if arg.Required {
			argOpts = append(argOpts, mcp.RequiredArgument())
		}
		opts = append(opts, mcp.WithArgument(arg.Name, argOpts...))
	}

	name := prompt.Name
	handler := func(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		id := s.sessionID(ctx)
		result, res, err := s.prompts.GetPrompt(ctx, id, name, request.Params.Arguments)
		if err != nil {
			return nil, err
		}
		s.syncAfterTransition(ctx, id, res)
		messages := make([]mcp.PromptMessage, 0, len(result.Messages))
		for _, msg := range result.Messages {
			messages = append(messages, mcp.NewPromptMessage(mcp.Role(msg.Role), mcp.NewTextContent(msg.Text)))
		}
		return mcp.NewGetPromptResult(result.Description, messages), nil
	}
	s.promptEntries[name] = registeredPrompt{prompt: mcp.NewPrompt(name, opts...), handler: handler}
	s.mcpServer.AddPrompt(s.promptEntries[name].prompt, handler)
}

// syncAfterTransition refreshes the session's exposed artifacts once a
// transition committed. Gate rejections commit nothing and change nothing.
func (s *Server) syncAfterTransition(ctx context.Context, id string, res domain.TransitionResult) {
	if res.SessionID == "" {
		return
	}
	s.syncSession(ctx, id)
}

// syncSession reconciles the artifacts the framework advertises for one
// session with what the session's current state exposes.
func (s *Server) syncSession(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp := s.exposed[id]
	if exp == nil {
		exp = &exposure{resources: make(map[string]bool), prompts: make(map[string]bool)}
		// An empty add probes whether the framework can hold resources for
		// this session. The fallback identity and stdio sessions cannot.
		exp.shared = s.mcpServer.AddSessionResources(id) != nil
		s.exposed[id] = exp
	}
	s.syncResources(ctx, id, exp)
	if exp.shared {
		s.syncPrompts(ctx, id, exp)
	}
}

func (s *Server) syncResources(ctx context.Context, id string, exp *exposure) {
	visible, err := s.resources.ListResources(ctx, id)
	if err != nil {
		s.logger.Warn("resource sync failed", "session_id", id, "err", err)
		return
	}
	want := make(map[string]bool, len(visible))
	var add []server.ServerResource
	for _, resource := range visible {
		want[resource.URI] = true
		if exp.resources[resource.URI] {
			continue
		}
		if entry, ok := s.resourceEntries[resource.URI]; ok {
			add = append(add, entry)
		}
	}
	var remove []string
	for uri := range exp.resources {
		if !want[uri] {
			remove = append(remove, uri)
		}
	}
	if len(add) == 0 && len(remove) == 0 {
		return
	}

	if exp.shared {
		for _, entry := range add {
			s.mcpServer.AddResource(entry.Resource, entry.Handler)
		}
		if len(remove) > 0 {
			s.mcpServer.DeleteResources(remove...)
		}
		exp.resources = want
		return
	}

	if len(add) > 0 {
		if err := s.mcpServer.AddSessionResources(id, add...); err != nil {
			s.logger.Warn("resource sync failed", "session_id", id, "err", err)
			return
		}
	}
	if len(remove) > 0 {
		if err := s.mcpServer.DeleteSessionResources(id, remove...); err != nil {
			s.logger.Warn("resource sync failed", "session_id", id, "err", err)
			return
		}
	}
	exp.resources = want
}

// syncPrompts trims the shared prompt set to the session's state. Only
// shared-set sessions run this: on a multi-session transport the prompt
// definitions stay registered for everyone and the gate alone protects them.
func (s *Server) syncPrompts(ctx context.Context, id string, exp *exposure) {
	visible, err := s.prompts.ListPrompts(ctx, id)
	if err != nil {
		s.logger.Warn("prompt sync failed", "session_id", id, "err", err)
		return
	}
	want := make(map[string]bool, len(visible))
	for _, prompt := range visible {
		want[prompt.Name] = true
		if exp.prompts[prompt.Name] {
			continue
		}
		if entry, ok := s.promptEntries[prompt.Name]; ok {
			s.mcpServer.AddPrompt(entry.prompt, entry.handler)
		}
	}
	var remove []string
	for name := range s.promptEntries {
		if want[name] {
			continue
		}
		// Until the first trim the shared set still holds every registered
		// prompt, so everything outside the state goes.
		if exp.prompts[name] || !exp.promptsTrimmed {
			remove = append(remove, name)
		}
	}
	if len(remove) > 0 {
		s.mcpServer.DeletePrompts(remove...)
	}
	exp.prompts = want
	exp.promptsTrimmed = true
}

// dropSession forgets a session's exposure. Shared-set sessions also hand
// their artifacts back so the next single-client session starts from the
// full registered prompt set and an empty resource set.
func (s *Server) dropSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp := s.exposed[id]
	delete(s.exposed, id)
	if exp == nil || !exp.shared {
		return
	}
	uris := make([]string, 0, len(exp.resources))
	for uri := range exp.resources {
		uris = append(uris, uri)
	}
	if len(uris) > 0 {
		s.mcpServer.DeleteResources(uris...)
	}
	if !exp.promptsTrimmed {
		return
	}
	for name, entry := range s.promptEntries {
		if !exp.prompts[name] {
			s.mcpServer.AddPrompt(entry.prompt, entry.handler)
		}
	}
}

// rejected reports a gate rejection, which surfaces as a tool error result
// instead of a protocol failure.
func rejected(err error) bool {
	return errors.Is(err, domain.ErrArtifactNotAvailable) ||
		errors.Is(err, domain.ErrSessionConcluded)
}

func renderContent(content any) string {
	switch v := content.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}

// HandleMessage processes one raw JSON-RPC message, for embedding the server
// without a transport. Messages that arrive without a client session run
// against the fallback session, which is synchronized first so listings
// reflect its current state.
func (s *Server) HandleMessage(ctx context.Context, message json.RawMessage) mcp.JSONRPCMessage {
	if server.ClientSessionFromContext(ctx) == nil {
		s.syncSession(ctx, s.fallbackID)
	}
	return s.mcpServer.HandleMessage(ctx, message)
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE, alongside the
// metrics and health endpoints.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	router := chi.NewRouter()
	router.Handle("/sse", sseServer.SSEHandler())
	router.Handle("/message", sseServer.MessageHandler())
	router.Handle("/metrics", s.metrics)
	if s.admin != nil {
		router.Mount("/admin", s.admin)
	}
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	httpServer := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("shutdown signal received, stopping server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}
