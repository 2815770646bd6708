package ports

import (
	"context"

	"github.com/TobiWan1995/statemcp/pkg/domain"
)

// ToolBackend is the tool surface of the underlying artifact framework.
// Execution failures inside the tool are reported as IsError results; a
// non-nil error means the framework itself failed to run the tool.
type ToolBackend interface {
	// ListTools returns every registered tool in registration order.
	ListTools(ctx context.Context) ([]domain.Tool, error)

	// CallTool executes the named tool with the given arguments.
	CallTool(ctx context.Context, name string, args map[string]any) (*domain.ToolResult, error)
}

// ResourceBackend is the resource surface of the underlying artifact
// framework. Concrete resources are enumerable; templates only resolve
// concrete URIs to content.
type ResourceBackend interface {
	// ListResources returns every registered concrete resource in
	// registration order.
	ListResources(ctx context.Context) ([]domain.Resource, error)

	// ListTemplates returns every registered resource template.
	ListTemplates(ctx context.Context) ([]domain.ResourceTemplate, error)

	// Describe resolves metadata for a concrete URI, through a static
	// registration or a template match.
	Describe(ctx context.Context, uri string) (*domain.Resource, error)

	// ReadResource reads the contents of a concrete URI, through a static
	// registration or a template match.
	ReadResource(ctx context.Context, uri string) (*domain.ResourceContents, error)
}

// PromptBackend is the prompt surface of the underlying artifact framework.
type PromptBackend interface {
	// ListPrompts returns every registered prompt in registration order.
	ListPrompts(ctx context.Context) ([]domain.Prompt, error)

	// GetPrompt renders the named prompt with the given arguments.
	GetPrompt(ctx context.Context, name string, args map[string]string) (*domain.PromptResult, error)
}
