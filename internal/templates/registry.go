package templates

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/valyala/fasttemplate"
)

var ErrNotFound = errors.New("template not found")

// Template is a named WhatsApp message definition.
type Template struct {
	Kind string
	// Variables are ordered; position i maps to approved placeholder {{i+1}}.
	Variables []string
	// ContentSID is the approved template handle understood by the gateway.
	ContentSID string
	// Body uses {name} placeholders for free-text rendering.
	Body string
	// PlainText forces free-text rendering even when ContentSID is set.
	PlainText bool
}

// UsesApproved reports whether the template should go out as an approved template.
func (t Template) UsesApproved() bool {
	return t.ContentSID != "" && !t.PlainText
}

// Positional maps named variables onto the approved template's numbered slots.
func (t Template) Positional(vars map[string]string) map[string]string {
	out := make(map[string]string, len(t.Variables))
	for i, name := range t.Variables {
		out[strconv.Itoa(i+1)] = vars[name]
	}
	return out
}

// Render substitutes {name} tokens; missing variables render as "".
func (t Template) Render(vars map[string]string) string {
	return fasttemplate.ExecuteFuncString(t.Body, "{", "}", func(w io.Writer, tag string) (int, error) {
		return io.WriteString(w, vars[tag])
	})
}

// Registry resolves templates by notification kind.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]Template
}

func NewRegistry() *Registry {
	return &Registry{templates: make(map[string]Template)}
}

// Register adds or replaces a template.
func (r *Registry) Register(t Template) error {
	if t.Kind == "" {
		return errors.New("template kind is required")
	}
	if t.Body == "" && t.ContentSID == "" {
		return fmt.Errorf("template %s: body or content sid required", t.Kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.Kind] = t
	return nil
}

// Resolve returns the template for kind.
func (r *Registry) Resolve(kind string) (Template, error) {
	r.mu.RLock()
	t, ok := r.templates[kind]
	r.mu.RUnlock()
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrNotFound, kind)
	}
	return t, nil
}

// Render renders the free-text body for kind.
func (r *Registry) Render(kind string, vars map[string]string) (string, error) {
	t, err := r.Resolve(kind)
	if err != nil {
		return "", err
	}
	return t.Render(vars), nil
}
