// Package registry holds the compiled model definitions of a process.
// It is populated at startup and read concurrently afterwards.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/artpar/warpmodel/core/convention"
	"github.com/artpar/warpmodel/core/schema"
)

// Registry maps class names to compiled definitions.
type Registry struct {
	mu sync.RWMutex

	opts convention.Options

	// definitions by class name
	defs map[string]*convention.Definition

	// sources to class names
	sources map[string]string
}

// New creates a registry that compiles models with opts.
func New(opts convention.Options) *Registry {
	return &Registry{
		opts:    opts,
		defs:    make(map[string]*convention.Definition),
		sources: make(map[string]string),
	}
}

// Register compiles mod and adds it. It fails when the class name or the
// source is already taken, or when compilation fails.
func (r *Registry) Register(mod schema.Model) (*convention.Definition, error) {
	def, err := convention.Compile(mod, r.opts)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.ClassName()]; exists {
		return nil, fmt.Errorf("class %q already registered", def.ClassName())
	}
	if existing, exists := r.sources[def.Source()]; exists {
		return nil, fmt.Errorf("source %q already claimed by class %q", def.Source(), existing)
	}

	r.defs[def.ClassName()] = def
	r.sources[def.Source()] = def.ClassName()
	return def, nil
}

// Unregister removes a class.
func (r *Registry) Unregister(className string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	def, exists := r.defs[className]
	if !exists {
		return fmt.Errorf("class %q not registered", className)
	}

	delete(r.sources, def.Source())
	delete(r.defs, className)
	return nil
}

// Get returns the definition of className.
func (r *Registry) Get(className string) (*convention.Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[className]
	return def, ok
}

// SourceOf returns the source of className, or className itself when the
// class is not registered.
func (r *Registry) SourceOf(className string) string {
	if def, ok := r.Get(className); ok {
		return def.Source()
	}
	return className
}

// List returns all definitions sorted by class name.
func (r *Registry) List() []*convention.Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*convention.Definition, 0, len(r.defs))
	for _, def := range r.defs {
		defs = append(defs, def)
	}

	sort.Slice(defs, func(i, j int) bool {
		return defs[i].ClassName() < defs[j].ClassName()
	})

	return defs
}

// CheckReferences reports pointers whose target class is not registered.
func (r *Registry) CheckReferences() error {
	var missing []string
	for _, def := range r.List() {
		for _, ptr := range def.Pointers() {
			if _, ok := r.Get(ptr.ClassName); !ok {
				missing = append(missing, fmt.Sprintf("%s.%s -> %s", def.ClassName(), ptr.Name, ptr.ClassName))
			}
		}
	}
	if len(missing) > 0 {
		return &UnresolvedError{References: missing}
	}
	return nil
}

// UnresolvedError lists pointers to unregistered classes.
type UnresolvedError struct {
	References []string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("unresolved pointers:\n  - %s", strings.Join(e.References, "\n  - "))
}
