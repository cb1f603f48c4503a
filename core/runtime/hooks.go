package runtime

import (
	"fmt"
	"sort"
	"sync"

	"github.com/artpar/warpmodel/core/schema"
)

// HookFactory builds a beforeSave hook from its declaration in a model file.
type HookFactory func(spec schema.Hook) (schema.BeforeSaveFunc, error)

// HookRegistry maps the hook types usable in model files to factories.
type HookRegistry struct {
	mu        sync.RWMutex
	factories map[string]HookFactory
}

// NewHookRegistry creates an empty hook registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{
		factories: make(map[string]HookFactory),
	}
}

// Register adds a factory under name, replacing any previous one.
func (r *HookRegistry) Register(name string, f HookFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Build creates the hook described by spec.
func (r *HookRegistry) Build(spec schema.Hook) (schema.BeforeSaveFunc, error) {
	r.mu.RLock()
	f, ok := r.factories[spec.Type]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("hook %q not registered", spec.Type)
	}

	return f(spec)
}

// Has checks if a hook type is registered.
func (r *HookRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// List returns the registered hook types, sorted.
func (r *HookRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
