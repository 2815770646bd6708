package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/TobiWan1995/statemcp/pkg/domain"
)

// ToolFunc is the signature of a tool implementation. It receives the raw
// argument map; DecodeArgs maps it onto a typed struct when one is wanted.
// A returned error marks the invocation as failed without failing the server.
type ToolFunc func(ctx context.Context, args map[string]any) (any, error)

type toolEntry struct {
	def domain.Tool
	fn  ToolFunc
}

// ToolSet holds the registered tools in registration order.
type ToolSet struct {
	mu    sync.RWMutex
	tools map[string]toolEntry
	order []string
}

// NewToolSet creates an empty tool set.
func NewToolSet() *ToolSet {
	return &ToolSet{tools: make(map[string]toolEntry)}
}

// Register adds a tool. Re-registering a name replaces the implementation
// and keeps the original position.
func (s *ToolSet) Register(def domain.Tool, fn ToolFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tools[def.Name]; !exists {
		s.order = append(s.order, def.Name)
	}
	s.tools[def.Name] = toolEntry{def: def, fn: fn}
}

// Has reports whether a tool is registered under the given name.
func (s *ToolSet) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tools[name]
	return ok
}

// ListTools returns every registered tool in registration order.
func (s *ToolSet) ListTools(ctx context.Context) ([]domain.Tool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tools := make([]domain.Tool, 0, len(s.order))
	for _, name := range s.order {
		tools = append(tools, s.tools[name].def)
	}
	return tools, nil
}

// CallTool executes the named tool. Implementation errors become IsError
// results; only an unknown name is reported as a Go error.
func (s *ToolSet) CallTool(ctx context.Context, name string, args map[string]any) (*domain.ToolResult, error) {
	s.mu.RLock()
	entry, ok := s.tools[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("tool %q: %w", name, ErrNotRegistered)
	}

	content, err := entry.fn(ctx, args)
	if err != nil {
		return &domain.ToolResult{IsError: true, Error: err.Error()}, nil
	}
	if res, ok := content.(*domain.ToolResult); ok {
		return res, nil
	}
	return &domain.ToolResult{Content: content}, nil
}
