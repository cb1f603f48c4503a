// Package runtime executes reads and mutations against compiled models.
// It assembles soft-delete safe queries for the executor and runs the
// validate, hook, parse and format pipeline for writes.
package runtime

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/warpmodel/adapters/clock"
	"github.com/artpar/warpmodel/adapters/idgen"
	"github.com/artpar/warpmodel/core/apperr"
	"github.com/artpar/warpmodel/core/events"
	"github.com/artpar/warpmodel/core/hook"
	"github.com/artpar/warpmodel/core/query"
	"github.com/artpar/warpmodel/core/registry"
	"github.com/artpar/warpmodel/core/schema"
	"github.com/artpar/warpmodel/ports"
)

// Observer receives the outcome of every model operation.
type Observer interface {
	ObserveOperation(class, operation string, duration time.Duration, err error)
}

// Config configures the runtime.
type Config struct {
	// Clock stamps mutations. Defaults to the real clock.
	Clock ports.Clock

	// IDs generates session tokens. Defaults to UUIDs.
	IDs ports.IDGenerator

	// Events receives one event per successful mutation (optional).
	Events *events.Bus

	// Observer receives operation timings (optional).
	Observer Observer

	// Logger for the pipeline.
	Logger zerolog.Logger
}

// Runtime binds compiled models to an executor.
type Runtime struct {
	mu sync.RWMutex

	// registry holds the compiled definitions
	registry *registry.Registry

	// exec runs queries against the datastore
	exec query.Executor

	// hooks resolves library hooks named in model files
	hooks *HookRegistry

	models map[string]*Model

	clock    ports.Clock
	ids      ports.IDGenerator
	events   *events.Bus
	observer Observer
	logger   zerolog.Logger
}

// New creates a runtime. The session hook is registered by default.
func New(reg *registry.Registry, exec query.Executor, cfg Config) *Runtime {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.IDs == nil {
		cfg.IDs = idgen.UUID{}
	}

	r := &Runtime{
		registry: reg,
		exec:     exec,
		hooks:    NewHookRegistry(),
		models:   make(map[string]*Model),
		clock:    cfg.Clock,
		ids:      cfg.IDs,
		events:   cfg.Events,
		observer: cfg.Observer,
		logger:   cfg.Logger,
	}

	r.hooks.Register("session", func(spec schema.Hook) (schema.BeforeSaveFunc, error) {
		return hook.Session(spec.Days, r.ids, r.clock), nil
	})

	return r
}

// Hooks returns the hook registry so callers can add hook types before
// loading models.
func (r *Runtime) Hooks() *HookRegistry {
	return r.hooks
}

// Registry returns the definition registry.
func (r *Runtime) Registry() *registry.Registry {
	return r.registry
}

// Events returns the event bus, which may be nil.
func (r *Runtime) Events() *events.Bus {
	return r.events
}

// Load installs declared library hooks, compiles mod into the registry and
// returns its bound Model.
func (r *Runtime) Load(mod schema.Model) (*Model, error) {
	if spec := mod.Hooks.BeforeSave; spec != nil && mod.BeforeSave == nil {
		fn, err := r.hooks.Build(*spec)
		if err != nil {
			return nil, apperr.New(apperr.MissingConfiguration,
				"beforeSave: %v (Model: `%s`)", err, mod.ClassName)
		}
		mod.BeforeSave = fn
	}

	def, err := r.registry.Register(mod)
	if err != nil {
		return nil, fmt.Errorf("load model %q: %w", mod.ClassName, err)
	}

	m := &Model{def: def, rt: r}

	r.mu.Lock()
	r.models[def.ClassName()] = m
	r.mu.Unlock()

	r.logger.Info().
		Str("class", def.ClassName()).
		Str("source", def.Source()).
		Int("pointers", len(def.Pointers())).
		Msg("model loaded")

	return m, nil
}

// LoadDir loads every model file under dir.
func (r *Runtime) LoadDir(dir string) error {
	return r.LoadGlob(dir, schema.DefaultPattern)
}

// LoadGlob loads the model files under dir matching pattern.
func (r *Runtime) LoadGlob(dir, pattern string) error {
	mods, err := schema.ParseGlob(dir, pattern)
	if err != nil {
		return err
	}

	for _, mod := range mods {
		if _, err := r.Load(mod); err != nil {
			return err
		}
	}

	if err := r.registry.CheckReferences(); err != nil {
		r.logger.Warn().Err(err).Msg("models reference unregistered classes")
	}

	return nil
}

// Model returns the bound model of className.
func (r *Runtime) Model(className string) (*Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[className]
	return m, ok
}

// Models returns all bound models sorted by class name.
func (r *Runtime) Models() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Model, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].def.ClassName() < out[j].def.ClassName()
	})
	return out
}

func (r *Runtime) observe(class, operation string, start time.Time, err error) {
	if r.observer == nil {
		return
	}
	r.observer.ObserveOperation(class, operation, time.Since(start), err)
}
