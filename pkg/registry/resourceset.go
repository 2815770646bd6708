package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/yosida95/uritemplate/v3"

	"github.com/TobiWan1995/statemcp/pkg/domain"
)

// ReadFunc produces the contents of a statically registered resource.
type ReadFunc func(ctx context.Context) (*domain.ResourceContents, error)

// TemplateReadFunc produces the contents of a template-matched URI. The vars
// map carries the values extracted from the RFC 6570 template.
type TemplateReadFunc func(ctx context.Context, uri string, vars map[string]string) (*domain.ResourceContents, error)

type resourceEntry struct {
	def  domain.Resource
	read ReadFunc
}

type templateEntry struct {
	def      domain.ResourceTemplate
	compiled *uritemplate.Template
	read     TemplateReadFunc
}

// ResourceSet holds concrete resources and URI templates. Concrete
// registrations are enumerable; templates only resolve URIs presented to
// Describe and ReadResource. A concrete registration shadows any template
// that would match the same URI.
type ResourceSet struct {
	mu        sync.RWMutex
	static    map[string]resourceEntry
	order     []string
	templates []templateEntry
}

// NewResourceSet creates an empty resource set.
func NewResourceSet() *ResourceSet {
	return &ResourceSet{static: make(map[string]resourceEntry)}
}

// Register adds a concrete resource. Re-registering a URI replaces the
// reader and keeps the original position.
func (s *ResourceSet) Register(def domain.Resource, read ReadFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.static[def.URI]; !exists {
		s.order = append(s.order, def.URI)
	}
	s.static[def.URI] = resourceEntry{def: def, read: read}
}

// RegisterTemplate adds a URI template. The template string must be a valid
// RFC 6570 expression.
func (s *ResourceSet) RegisterTemplate(def domain.ResourceTemplate, read TemplateReadFunc) error {
	compiled, err := uritemplate.New(def.URITemplate)
	if err != nil {
		return fmt.Errorf("invalid resource template %q: %w", def.URITemplate, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates = append(s.templates, templateEntry{def: def, compiled: compiled, read: read})
	return nil
}

// Has reports whether a concrete URI is served, either statically or through
// a template match.
func (s *ResourceSet) Has(uri string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.static[uri]; ok {
		return true
	}
	_, ok := s.matchLocked(uri)
	return ok
}

// ListResources returns the concrete resources in registration order.
// Templates are not enumerable and never appear here.
func (s *ResourceSet) ListResources(ctx context.Context) ([]domain.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resources := make([]domain.Resource, 0, len(s.order))
	for _, uri := range s.order {
		resources = append(resources, s.static[uri].def)
	}
	return resources, nil
}

// ListTemplates returns the registered templates in registration order.
func (s *ResourceSet) ListTemplates(ctx context.Context) ([]domain.ResourceTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	templates := make([]domain.ResourceTemplate, 0, len(s.templates))
	for _, entry := range s.templates {
		templates = append(templates, entry.def)
	}
	return templates, nil
}

// Describe resolves metadata for a concrete URI. Template matches inherit
// the template's name, description and MIME type under the concrete URI.
func (s *ResourceSet) Describe(ctx context.Context, uri string) (*domain.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if entry, ok := s.static[uri]; ok {
		def := entry.def
		return &def, nil
	}
	if entry, ok := s.matchLocked(uri); ok {
		return &domain.Resource{
			URI:         uri,
			Name:        entry.def.Name,
			Description: entry.def.Description,
			MIMEType:    entry.def.MIMEType,
		}, nil
	}
	return nil, fmt.Errorf("resource %q: %w", uri, ErrNotRegistered)
}

// ReadResource reads a concrete URI, static registrations first, then
// templates in registration order.
func (s *ResourceSet) ReadResource(ctx context.Context, uri string) (*domain.ResourceContents, error) {
	s.mu.RLock()
	if entry, ok := s.static[uri]; ok {
		s.mu.RUnlock()
		return entry.read(ctx)
	}
	entry, ok := s.matchLocked(uri)
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("resource %q: %w", uri, ErrNotRegistered)
	}
	return entry.read(ctx, uri, extractVars(entry.compiled, uri))
}

// matchLocked returns the first template matching uri. Caller holds s.mu.
func (s *ResourceSet) matchLocked(uri string) (templateEntry, bool) {
	for _, entry := range s.templates {
		if entry.compiled.Match(uri) != nil {
			return entry, true
		}
	}
	return templateEntry{}, false
}

func extractVars(tmpl *uritemplate.Template, uri string) map[string]string {
	values := tmpl.Match(uri)
	vars := make(map[string]string, len(values))
	for name, value := range values {
		vars[name] = value.String()
	}
	return vars
}
