// Package openapi generates OpenAPI 3.0 specifications from compiled model
// definitions. Every class gets the five record routes of the HTTP channel
// and three component schemas: the displayed record, the create body and
// the update body.
package openapi

import (
	"fmt"

	"github.com/artpar/warpmodel/core/convention"
	"github.com/artpar/warpmodel/core/field"
	"github.com/artpar/warpmodel/core/record"
)

// Spec represents an OpenAPI 3.0 specification.
type Spec struct {
	OpenAPI    string              `json:"openapi"`
	Info       Info                `json:"info"`
	Servers    []Server            `json:"servers,omitempty"`
	Paths      map[string]PathItem `json:"paths"`
	Components Components          `json:"components"`
	Tags       []Tag               `json:"tags,omitempty"`
}

// Info provides API metadata.
type Info struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
}

// Server represents a server URL.
type Server struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// PathItem contains operations for a path.
type PathItem struct {
	Get    *Operation `json:"get,omitempty"`
	Post   *Operation `json:"post,omitempty"`
	Put    *Operation `json:"put,omitempty"`
	Delete *Operation `json:"delete,omitempty"`
}

// Operation represents an API operation.
type Operation struct {
	Tags        []string            `json:"tags,omitempty"`
	Summary     string              `json:"summary,omitempty"`
	Description string              `json:"description,omitempty"`
	OperationID string              `json:"operationId,omitempty"`
	Parameters  []Parameter         `json:"parameters,omitempty"`
	RequestBody *RequestBody        `json:"requestBody,omitempty"`
	Responses   map[string]Response `json:"responses"`
}

// Parameter represents an API parameter.
type Parameter struct {
	Name        string  `json:"name"`
	In          string  `json:"in"` // path, query, header
	Description string  `json:"description,omitempty"`
	Required    bool    `json:"required,omitempty"`
	Schema      *Schema `json:"schema,omitempty"`
}

// RequestBody represents a request body.
type RequestBody struct {
	Description string               `json:"description,omitempty"`
	Required    bool                 `json:"required,omitempty"`
	Content     map[string]MediaType `json:"content"`
}

// Response represents an API response.
type Response struct {
	Description string               `json:"description"`
	Content     map[string]MediaType `json:"content,omitempty"`
}

// MediaType represents a media type.
type MediaType struct {
	Schema *Schema `json:"schema,omitempty"`
}

// Schema represents a JSON Schema.
type Schema struct {
	Type        string             `json:"type,omitempty"`
	Format      string             `json:"format,omitempty"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Ref         string             `json:"$ref,omitempty"`
	MinLength   *int               `json:"minLength,omitempty"`
	MaxLength   *int               `json:"maxLength,omitempty"`
	Minimum     *float64           `json:"minimum,omitempty"`
	Pattern     string             `json:"pattern,omitempty"`
	Example     any                `json:"example,omitempty"`
	OneOf       []*Schema          `json:"oneOf,omitempty"`
	ReadOnly    bool               `json:"readOnly,omitempty"`
	WriteOnly   bool               `json:"writeOnly,omitempty"`
}

// Components contains reusable schemas.
type Components struct {
	Schemas map[string]*Schema `json:"schemas,omitempty"`
}

// Tag provides metadata for a group of operations.
type Tag struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Shared component names.
const (
	SchemaPointer   = "Pointer"
	SchemaFile      = "File"
	SchemaIncrement = "Increment"
	SchemaJSONOp    = "JsonOperation"
	SchemaError     = "Error"
)

// Generator generates OpenAPI specs from compiled definitions.
type Generator struct {
	defs    []*convention.Definition
	info    Info
	servers []Server
}

// NewGenerator creates a generator for defs. Order is kept in the output.
func NewGenerator(defs []*convention.Definition) *Generator {
	return &Generator{
		defs: defs,
		info: Info{
			Title:       "warpmodel API",
			Version:     "1.0.0",
			Description: "Generated from the loaded model definitions",
		},
	}
}

// SetInfo sets the API info.
func (g *Generator) SetInfo(info Info) {
	g.info = info
}

// AddServer adds a server URL.
func (g *Generator) AddServer(url, description string) {
	g.servers = append(g.servers, Server{URL: url, Description: description})
}

// Generate creates the OpenAPI specification.
func (g *Generator) Generate() *Spec {
	spec := &Spec{
		OpenAPI: "3.0.3",
		Info:    g.info,
		Servers: g.servers,
		Paths:   make(map[string]PathItem),
		Components: Components{
			Schemas: sharedSchemas(),
		},
		Tags: make([]Tag, 0, len(g.defs)),
	}

	for _, def := range g.defs {
		g.generateClass(spec, def)
	}
	return spec
}

func (g *Generator) generateClass(spec *Spec, def *convention.Definition) {
	class := def.ClassName()
	spec.Tags = append(spec.Tags, Tag{Name: class, Description: "Records of " + def.Source()})

	spec.Components.Schemas[class] = buildRecordSchema(def)
	spec.Components.Schemas[class+"Create"] = buildWriteSchema(def)
	spec.Components.Schemas[class+"Update"] = buildWriteSchema(def)

	idParam := Parameter{Name: "id", In: "path", Required: true, Description: "Record id", Schema: &Schema{Type: "string"}}
	one := envelopeResponse("The record", ref(class))
	many := envelopeResponse("Matching records", &Schema{Type: "array", Items: ref(class)})

	spec.Paths["/classes/"+class] = PathItem{
		Get: &Operation{
			Tags:        []string{class},
			Summary:     "Find " + class + " records",
			OperationID: "find" + class,
			Parameters:  findParameters(),
			Responses:   responses("200", many),
		},
		Post: &Operation{
			Tags:        []string{class},
			Summary:     "Create a " + class,
			OperationID: "create" + class,
			RequestBody: jsonBody(ref(class + "Create")),
			Responses:   responses("201", one),
		},
	}
	spec.Paths["/classes/"+class+"/{id}"] = PathItem{
		Get: &Operation{
			Tags:        []string{class},
			Summary:     "Get a " + class,
			OperationID: "get" + class,
			Parameters: []Parameter{idParam, {
				Name: "include", In: "query", Description: "Comma separated pointer attributes to expand",
				Schema: &Schema{Type: "string"},
			}},
			Responses: responses("200", one),
		},
		Put: &Operation{
			Tags:        []string{class},
			Summary:     "Update a " + class,
			OperationID: "update" + class,
			Parameters:  []Parameter{idParam},
			RequestBody: jsonBody(ref(class + "Update")),
			Responses:   responses("200", one),
		},
		Delete: &Operation{
			Tags:        []string{class},
			Summary:     "Destroy a " + class,
			OperationID: "destroy" + class,
			Parameters:  []Parameter{idParam},
			Responses:   responses("200", one),
		},
	}
}

// buildRecordSchema describes a displayed record: the system keys and every
// viewable key.
func buildRecordSchema(def *convention.Definition) *Schema {
	s := &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			record.KeyID:        {Type: "integer", ReadOnly: true},
			record.KeyCreatedAt: {Type: "string", Format: "date-time", ReadOnly: true},
			record.KeyUpdatedAt: {Type: "string", Format: "date-time", ReadOnly: true},
		},
		Required: []string{record.KeyID},
	}
	for _, key := range def.Viewable() {
		if record.IsSystemKey(key) {
			continue
		}
		s.Properties[key] = keySchema(def, key)
	}
	return s
}

// buildWriteSchema describes a create or update body: every actionable key.
// Keys are never required since validators only see supplied values.
func buildWriteSchema(def *convention.Definition) *Schema {
	s := &Schema{Type: "object", Properties: map[string]*Schema{}}
	for _, key := range def.Actionable() {
		if record.IsSystemKey(key) {
			continue
		}
		ks := keySchema(def, key)
		if def.IsViewable(key) {
			s.Properties[key] = ks
			continue
		}
		ks.WriteOnly = true
		s.Properties[key] = ks
	}
	return s
}

func keySchema(def *convention.Definition, key string) *Schema {
	if ptr, ok := def.Pointers().Get(key); ok {
		return &Schema{
			Description: "Pointer to " + ptr.ClassName,
			OneOf:       []*Schema{ref(SchemaPointer)},
		}
	}
	if def.IsFile(key) {
		return ref(SchemaFile)
	}
	spec, ok := def.Spec(key)
	if !ok {
		return &Schema{Description: "Untyped key"}
	}
	return specSchema(spec)
}

// specSchema maps a declared field type to a JSON schema.
func specSchema(spec field.Spec) *Schema {
	s := &Schema{}
	switch spec.Type {
	case field.TypeString:
		s.Type = "string"
		setLength(s, spec)
	case field.TypePassword:
		s.Type = "string"
		s.Format = "password"
		s.WriteOnly = true
		setLength(s, spec)
	case field.TypeEmail:
		s.Type = "string"
		s.Format = "email"
		s.Example = "user@example.com"
	case field.TypeNoSpaces:
		s.Type = "string"
		s.Pattern = `^\S*$`
		setLength(s, spec)
	case field.TypeInteger:
		s.OneOf = []*Schema{{Type: "integer"}, ref(SchemaIncrement)}
	case field.TypePositiveInteger:
		zero := float64(0)
		s.OneOf = []*Schema{{Type: "integer", Minimum: &zero}, ref(SchemaIncrement)}
	case field.TypeFloat:
		s.Type = "number"
		if spec.Decimals > 0 {
			s.Description = fmt.Sprintf("Rounded to %d decimals", spec.Decimals)
		}
	case field.TypeDate:
		s.Type = "string"
		s.Format = "date-time"
	case field.TypeObject:
		s.Type = "object"
	case field.TypeJSON:
		s.OneOf = []*Schema{{Type: "object"}, {Type: "array"}, ref(SchemaJSONOp)}
	}
	return s
}

func setLength(s *Schema, spec field.Spec) {
	if spec.Min > 0 {
		n := spec.Min
		s.MinLength = &n
	}
	if spec.Max > 0 {
		n := spec.Max
		s.MaxLength = &n
	}
}

func sharedSchemas() map[string]*Schema {
	tag := func(value string) *Schema {
		return &Schema{Type: "string", Enum: []string{value}}
	}
	return map[string]*Schema{
		SchemaPointer: {
			Type: "object",
			Properties: map[string]*Schema{
				"type":       tag(field.TagReference),
				"className":  {Type: "string"},
				"id":         {Type: "integer"},
				"attributes": {Type: "object", ReadOnly: true},
			},
			Required: []string{"type", "className", "id"},
		},
		SchemaFile: {
			Type: "object",
			Properties: map[string]*Schema{
				"type": tag(field.TagAttachment),
				"key":  {Type: "string"},
				"url":  {Type: "string", Format: "uri", ReadOnly: true},
			},
			Required: []string{"type", "key"},
		},
		SchemaIncrement: {
			Type: "object",
			Properties: map[string]*Schema{
				"type":   tag(field.TagIncrement),
				"value": {Type: "integer"},
			},
			Required: []string{"type"},
		},
		SchemaJSONOp: {
			Type: "object",
			Properties: map[string]*Schema{
				"type":  {Type: "string", Enum: []string{field.TagJSONAppend, field.TagJSONSet}},
				"path":  {Type: "string"},
				"value": {},
			},
			Required: []string{"type"},
		},
		SchemaError: {
			Type: "object",
			Properties: map[string]*Schema{
				"status":  {Type: "integer", Description: "Error code"},
				"message": {Type: "string"},
			},
		},
	}
}

func findParameters() []Parameter {
	str := func(name, desc string) Parameter {
		return Parameter{Name: name, In: "query", Description: desc, Schema: &Schema{Type: "string"}}
	}
	num := func(name, desc string) Parameter {
		return Parameter{Name: name, In: "query", Description: desc, Schema: &Schema{Type: "integer"}}
	}
	return []Parameter{
		str("where", "JSON condition, e.g. {\"title\":{\"neq\":\"draft\"}}"),
		str("select", "Comma separated keys to return"),
		str("include", "Comma separated pointer attributes to expand, e.g. author.name"),
		str("sort", "JSON list of {key: 1|-1}"),
		num("limit", "Maximum number of records"),
		num("skip", "Number of records to skip"),
	}
}

func ref(name string) *Schema {
	return &Schema{Ref: "#/components/schemas/" + name}
}

func jsonBody(s *Schema) *RequestBody {
	return &RequestBody{Required: true, Content: map[string]MediaType{"application/json": {Schema: s}}}
}

func envelopeResponse(desc string, result *Schema) Response {
	return Response{
		Description: desc,
		Content: map[string]MediaType{"application/json": {Schema: &Schema{
			Type: "object",
			Properties: map[string]*Schema{
				"status":  {Type: "integer"},
				"message": {Type: "string"},
				"result":  result,
			},
		}}},
	}
}

func responses(okCode string, ok Response) map[string]Response {
	errResp := Response{
		Description: "Error",
		Content:     map[string]MediaType{"application/json": {Schema: ref(SchemaError)}},
	}
	return map[string]Response{
		okCode: ok,
		"400":  errResp,
		"404":  errResp,
		"500":  errResp,
	}
}
