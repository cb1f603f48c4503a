package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/artpar/warpmodel/core/apperr"
	"github.com/artpar/warpmodel/core/convention"
	"github.com/artpar/warpmodel/core/openapi"
	"github.com/artpar/warpmodel/core/runtime"
	"github.com/artpar/warpmodel/pkg/envelope"
)

// SchemaHandler lets clients discover the loaded models.
type SchemaHandler struct {
	runtime *runtime.Runtime
	docs    *openapi.Service
}

// NewSchemaHandler creates a new schema handler.
func NewSchemaHandler(rt *runtime.Runtime, docs *openapi.Service) *SchemaHandler {
	return &SchemaHandler{runtime: rt, docs: docs}
}

// Routes returns a router with all schema routes.
func (h *SchemaHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.listModels)
	r.Get("/openapi.json", h.openAPIJSON)
	r.Get("/openapi.yaml", h.openAPIYAML)
	r.Get("/{className}", h.getModel)
	return r
}

func (h *SchemaHandler) openAPIJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(h.docs.JSON())
}

func (h *SchemaHandler) openAPIYAML(w http.ResponseWriter, r *http.Request) {
	data, err := h.docs.YAML()
	if err != nil {
		envelope.WriteError(w, apperr.New(apperr.InternalServerError, "encode openapi document: %v", err))
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.Write(data)
}

// ModelSummary is one entry of GET /_schema.
type ModelSummary struct {
	ClassName string `json:"className"`
	Source    string `json:"source"`
}

// PointerSchema describes a reference key.
type PointerSchema struct {
	Name      string `json:"name"`
	ClassName string `json:"className"`
	Via       string `json:"via"`
}

// ModelSchema is the response of GET /_schema/{className}.
type ModelSchema struct {
	ClassName  string          `json:"className"`
	Source     string          `json:"source"`
	Viewable   []string        `json:"viewable"`
	Actionable []string        `json:"actionable"`
	Pointers   []PointerSchema `json:"pointers"`
	Files      []string        `json:"files"`
	Columns    []ColumnSchema  `json:"columns"`
	Warnings   []string        `json:"warnings,omitempty"`
}

// ColumnSchema describes a persisted column.
type ColumnSchema struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

func (h *SchemaHandler) listModels(w http.ResponseWriter, r *http.Request) {
	models := h.runtime.Models()
	out := make([]ModelSummary, 0, len(models))
	for _, m := range models {
		def := m.Definition()
		out = append(out, ModelSummary{ClassName: def.ClassName(), Source: def.Source()})
	}
	envelope.WriteOK(w, out)
}

func (h *SchemaHandler) getModel(w http.ResponseWriter, r *http.Request) {
	className := chi.URLParam(r, "className")
	m, ok := h.runtime.Model(className)
	if !ok {
		envelope.WriteError(w, apperr.New(apperr.ObjectNotFound, "Class `%s` not found", className))
		return
	}
	envelope.WriteOK(w, BuildModelSchema(m.Definition()))
}

// BuildModelSchema describes a compiled definition.
func BuildModelSchema(def *convention.Definition) ModelSchema {
	s := ModelSchema{
		ClassName:  def.ClassName(),
		Source:     def.Source(),
		Viewable:   def.Viewable(),
		Actionable: def.Actionable(),
		Pointers:   []PointerSchema{},
		Files:      def.Files(),
		Warnings:   def.Warnings(),
	}
	for _, p := range def.Pointers() {
		s.Pointers = append(s.Pointers, PointerSchema{
			Name:      p.Name,
			ClassName: p.ClassName,
			Via:       def.ActionSource(p.Name),
		})
	}
	for _, c := range def.Columns() {
		s.Columns = append(s.Columns, ColumnSchema{Name: c.Name, Type: c.Type})
	}
	return s
}
