package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/TobiWan1995/statemcp/pkg/domain"
)

// PromptFunc renders a prompt from its string arguments.
type PromptFunc func(ctx context.Context, args map[string]string) (*domain.PromptResult, error)

type promptEntry struct {
	def domain.Prompt
	fn  PromptFunc
}

// PromptSet holds the registered prompts in registration order.
type PromptSet struct {
	mu      sync.RWMutex
	prompts map[string]promptEntry
	order   []string
}

// NewPromptSet creates an empty prompt set.
func NewPromptSet() *PromptSet {
	return &PromptSet{prompts: make(map[string]promptEntry)}
}

// Register adds a prompt. Re-registering a name replaces the implementation
// and keeps the original position.
func (s *PromptSet) Register(def domain.Prompt, fn PromptFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.prompts[def.Name]; !exists {
		s.order = append(s.order, def.Name)
	}
	s.prompts[def.Name] = promptEntry{def: def, fn: fn}
}

// Has reports whether a prompt is registered under the given name.
func (s *PromptSet) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.prompts[name]
	return ok
}

// ListPrompts returns every registered prompt in registration order.
func (s *PromptSet) ListPrompts(ctx context.Context) ([]domain.Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prompts := make([]domain.Prompt, 0, len(s.order))
	for _, name := range s.order {
		prompts = append(prompts, s.prompts[name].def)
	}
	return prompts, nil
}

// GetPrompt renders the named prompt. Required arguments declared on the
// prompt must be present.
func (s *PromptSet) GetPrompt(ctx context.Context, name string, args map[string]string) (*domain.PromptResult, error) {
	s.mu.RLock()
	entry, ok := s.prompts[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("prompt %q: %w", name, ErrNotRegistered)
	}
	for _, arg := range entry.def.Arguments {
		if !arg.Required {
			continue
		}
		if _, present := args[arg.Name]; !present {
			return nil, fmt.Errorf("prompt %q: missing required argument %q", name, arg.Name)
		}
	}
	return entry.fn(ctx, args)
}
