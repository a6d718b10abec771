package infrastructure

import (
	"fmt"
	"slices"
	"sync"

	"reactWs/internal/modules/reactive/domain"
)

// HandlerRegistry binds request paths to handler templates. It is filled at boot and only
// read afterwards.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]*HandlerTemplate
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]*HandlerTemplate)}
}

func (r *HandlerRegistry) Register(path string, tpl *HandlerTemplate) error {
	if tpl == nil {
		return fmt.Errorf("%w: nil template for %q", domain.ErrInvalidHandler, path)
	}
	path = NormalizePath(path)
	if path == "" {
		return fmt.Errorf("%w: empty path for %s", domain.ErrInvalidHandler, tpl.Type)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.handlers[path]; ok {
		return fmt.Errorf("%w: %s already bound to %s", domain.ErrDuplicatePath, path, existing.Type)
	}
	r.handlers[path] = tpl
	return nil
}

// Bind compiles proto into a template and registers it under the path it reacts to.
func (r *HandlerRegistry) Bind(proto domain.Handler) (string, []domain.TopicRef, error) {
	tpl, err := NewTemplate("", proto)
	if err != nil {
		return "", nil, err
	}
	if err := r.Register(tpl.Path, tpl); err != nil {
		return "", nil, err
	}
	return tpl.Path, tpl.Refs(), nil
}

// Lookup matches the path byte for byte, apart from a missing leading slash.
func (r *HandlerRegistry) Lookup(path string) (*HandlerTemplate, bool) {
	path = NormalizePath(path)
	r.mu.RLock()
	defer r.mu.RUnlock()
	tpl, ok := r.handlers[path]
	return tpl, ok
}

// Paths returns the bound paths in sorted order.
func (r *HandlerRegistry) Paths() []string {
	r.mu.RLock()
	paths := make([]string, 0, len(r.handlers))
	for p := range r.handlers {
		paths = append(paths, p)
	}
	r.mu.RUnlock()
	slices.Sort(paths)
	return paths
}
