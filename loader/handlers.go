package loader

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
)

// HandlerRegistry maps the handler names used in manifests to the functions
// that serve them. Plugin modules can shadow these names with their own
// handlers.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]http.HandlerFunc)}
}

// Register adds a handler. Names are unique.
func (r *HandlerRegistry) Register(name string, h http.HandlerFunc) error {
	if name == "" || h == nil {
		return fmt.Errorf("handler name and function are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("handler %q already registered", name)
	}
	r.handlers[name] = h
	return nil
}

// MustRegister is Register that panics, for package init wiring.
func (r *HandlerRegistry) MustRegister(name string, h http.HandlerFunc) {
	if err := r.Register(name, h); err != nil {
		panic(err)
	}
}

func (r *HandlerRegistry) Lookup(name string) (http.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered names in sorted order.
func (r *HandlerRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
