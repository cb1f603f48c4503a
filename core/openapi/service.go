package openapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/swaggo/swag"
	"gopkg.in/yaml.v3"

	"github.com/artpar/warpmodel/core/convention"
)

// Service provides OpenAPI generation with caching. The cache is keyed by
// the shape of the loaded definitions, so loading or replacing a model
// regenerates the document on the next read.
type Service struct {
	definitions func() []*convention.Definition
	info        Info
	logger      zerolog.Logger

	cache atomic.Pointer[cachedSpec]
	mu    sync.Mutex // serializes generation
}

type cachedSpec struct {
	spec     *Spec
	json     []byte
	dataHash string
}

// ServiceConfig contains configuration for the OpenAPI service.
type ServiceConfig struct {
	// Definitions returns the currently loaded definitions.
	Definitions func() []*convention.Definition
	Info        Info
	Logger      zerolog.Logger
}

// NewService creates a new OpenAPI service.
func NewService(cfg ServiceConfig) *Service {
	info := cfg.Info
	if info.Title == "" {
		info.Title = "warpmodel API"
	}
	if info.Version == "" {
		info.Version = "1.0.0"
	}
	return &Service{
		definitions: cfg.Definitions,
		info:        info,
		logger:      cfg.Logger,
	}
}

// Spec returns the specification for the loaded definitions.
func (s *Service) Spec() *Spec {
	return s.current().spec
}

// JSON returns the specification encoded as JSON.
func (s *Service) JSON() []byte {
	return s.current().json
}

// YAML returns the specification encoded as YAML.
func (s *Service) YAML() ([]byte, error) {
	var doc any
	if err := json.Unmarshal(s.JSON(), &doc); err != nil {
		return nil, err
	}
	return yaml.Marshal(doc)
}

// ReadDoc implements swag.Swagger so the service can back the docs UI.
func (s *Service) ReadDoc() string {
	return string(s.JSON())
}

// InvalidateCache forces the next read to regenerate the spec.
func (s *Service) InvalidateCache() {
	s.cache.Store(nil)
	s.logger.Debug().Msg("openapi cache invalidated")
}

func (s *Service) current() *cachedSpec {
	defs := s.load()
	hash := computeDataHash(defs)

	if cached := s.cache.Load(); cached != nil && cached.dataHash == hash {
		return cached
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cached := s.cache.Load(); cached != nil && cached.dataHash == hash {
		return cached
	}

	gen := NewGenerator(defs)
	gen.SetInfo(s.info)
	spec := gen.Generate()

	data, err := json.Marshal(spec)
	if err != nil {
		s.logger.Error().Err(err).Msg("encode openapi spec")
		data = []byte("{}")
	}

	cached := &cachedSpec{spec: spec, json: data, dataHash: hash}
	s.cache.Store(cached)
	s.logger.Debug().Int("classes", len(defs)).Msg("openapi spec generated")
	return cached
}

func (s *Service) load() []*convention.Definition {
	if s.definitions == nil {
		return nil
	}
	return s.definitions()
}

// computeDataHash fingerprints the parts of the definitions that appear in
// the generated document.
func computeDataHash(defs []*convention.Definition) string {
	hasher := sha256.New()
	for _, def := range defs {
		hasher.Write([]byte(def.ClassName()))
		hasher.Write([]byte{0})
		hasher.Write([]byte(def.Source()))
		hasher.Write([]byte{0})
		hasher.Write([]byte(strings.Join(def.Viewable(), ",")))
		hasher.Write([]byte{0})
		hasher.Write([]byte(strings.Join(def.Actionable(), ",")))
		hasher.Write([]byte{0})
		for _, key := range def.Actionable() {
			if spec, ok := def.Spec(key); ok {
				hasher.Write([]byte(key + ":" + string(spec.Type)))
			}
		}
		hasher.Write([]byte{'\n'})
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}

// providers holds the services registered with swag. swag panics on a
// second registration of a name, so later services replace the target of
// the existing provider instead.
var (
	providersMu sync.Mutex
	providers   = map[string]*provider{}
)

type provider struct {
	target atomic.Pointer[Service]
}

func (p *provider) ReadDoc() string {
	if s := p.target.Load(); s != nil {
		return s.ReadDoc()
	}
	return "{}"
}

// Register makes s the document served by swag under instanceName.
func Register(instanceName string, s *Service) {
	providersMu.Lock()
	defer providersMu.Unlock()

	p, ok := providers[instanceName]
	if !ok {
		p = &provider{}
		providers[instanceName] = p
		swag.Register(instanceName, p)
	}
	p.target.Store(s)
}
