package provider

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Registry maps provider names to their factories. Names are case-insensitive.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// Default is the registry backends register into from their init() function.
var Default = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory to the Default registry.
func Register(name string, factory Factory) {
	Default.Register(name, factory)
}

// Register adds a factory under the given name.
// It panics if the name is empty, the factory is nil, or the name is already taken.
func (r *Registry) Register(name string, factory Factory) {
	key := normalizeName(name)
	if key == "" {
		panic("provider: Register called with an empty name")
	}
	if factory == nil {
		panic(fmt.Sprintf("provider: Register called with a nil factory for %q", name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[key]; exists {
		panic(fmt.Sprintf("provider: %q is already registered", key))
	}
	r.factories[key] = factory
}

// Lookup returns the factory registered under name, or an *UnknownProviderError.
func (r *Registry) Lookup(name string) (Factory, error) {
	r.mu.RLock()
	factory, ok := r.factories[normalizeName(name)]
	r.mu.RUnlock()

	if !ok {
		return nil, &UnknownProviderError{Name: name, Known: r.Names()}
	}

	return factory, nil
}

// Names lists the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)

	return names
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
