package domain

// Kind identifies the artifact class an identifier belongs to.
type Kind string

const (
	KindTool     Kind = "tool"
	KindResource Kind = "resource"
	KindPrompt   Kind = "prompt"
)

// ArtifactRef identifies one artifact in the automaton's input alphabet.
// Tools and prompts are referenced by name, resources by concrete URI.
// Template URIs (parametric matchers) are not valid refs; the automaton
// requires a finite input alphabet.
type ArtifactRef struct {
	Kind Kind   `json:"kind" yaml:"kind"`
	ID   string `json:"id" yaml:"id"`
}

// ToolRef builds a tool reference.
func ToolRef(name string) ArtifactRef {
	return ArtifactRef{Kind: KindTool, ID: name}
}

// ResourceRef builds a resource reference for a concrete URI.
func ResourceRef(uri string) ArtifactRef {
	return ArtifactRef{Kind: KindResource, ID: uri}
}

// PromptRef builds a prompt reference.
func PromptRef(name string) ArtifactRef {
	return ArtifactRef{Kind: KindPrompt, ID: name}
}

func (r ArtifactRef) String() string {
	return string(r.Kind) + "/" + r.ID
}

// Tool describes a callable tool registered with the backend.
// Ideally compatible with OpenAI/MCP tool schemas.
type Tool struct {
	Name        string         `json:"name" yaml:"name" mapstructure:"name"`
	Description string         `json:"description" yaml:"description" mapstructure:"description"`
	Parameters  map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty" mapstructure:"parameters"`
}

// ToolResult is the outcome payload of one tool invocation.
// Execution failures are carried as IsError results rather than Go errors, so
// the proxy can map them onto automaton outcomes uniformly.
type ToolResult struct {
	Content any    `json:"content,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Resource describes one concrete, enumerable resource.
type Resource struct {
	URI         string `json:"uri" yaml:"uri"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	MIMEType    string `json:"mime_type,omitempty" yaml:"mime_type,omitempty"`
}

// ResourceTemplate describes a parametric URI matcher (RFC 6570).
// Templates resolve concrete URIs to content but are never part of the
// automaton's binding vocabulary.
type ResourceTemplate struct {
	URITemplate string `json:"uri_template" yaml:"uri_template"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	MIMEType    string `json:"mime_type,omitempty" yaml:"mime_type,omitempty"`
}

// ResourceContents is the payload of one resource read.
type ResourceContents struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mime_type,omitempty"`
	Text     string `json:"text"`
}

// PromptArgument describes one argument a prompt accepts.
type PromptArgument struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool   `json:"required,omitempty" yaml:"required,omitempty"`
}

// Prompt describes one renderable prompt registered with the backend.
type Prompt struct {
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty" yaml:"arguments,omitempty"`
}

// Role identifies the speaker of a prompt message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PromptMessage is one rendered prompt message.
type PromptMessage struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// PromptResult is the payload of one prompt render.
type PromptResult struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}
