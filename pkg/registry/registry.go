package registry

import (
	"errors"

	"github.com/mitchellh/mapstructure"
)

// ErrNotRegistered is returned when a tool, resource or prompt is looked up
// under a name or URI the catalog does not serve.
var ErrNotRegistered = errors.New("not registered")

// Catalog bundles the three artifact sets of one server. It satisfies the
// automaton's registration cross-check and the backend ports in one value.
type Catalog struct {
	Tools     *ToolSet
	Resources *ResourceSet
	Prompts   *PromptSet
}

// NewCatalog creates a catalog with empty artifact sets.
func NewCatalog() *Catalog {
	return &Catalog{
		Tools:     NewToolSet(),
		Resources: NewResourceSet(),
		Prompts:   NewPromptSet(),
	}
}

// HasTool reports whether the named tool is registered.
func (c *Catalog) HasTool(name string) bool { return c.Tools.Has(name) }

// HasResource reports whether the URI is served statically or by template.
func (c *Catalog) HasResource(uri string) bool { return c.Resources.Has(uri) }

// HasPrompt reports whether the named prompt is registered.
func (c *Catalog) HasPrompt(name string) bool { return c.Prompts.Has(name) }

// DecodeArgs maps a raw argument map onto a typed struct using mapstructure
// tags. Input is decoded weakly, so JSON numbers land in integer fields.
func DecodeArgs(args map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(args)
}
