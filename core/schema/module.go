package schema

import (
	"context"

	"github.com/artpar/warpmodel/core/field"
	"github.com/artpar/warpmodel/core/record"
)

// BeforeSaveFunc runs after validation and before persistence. It must
// complete res exactly once, possibly from another goroutine.
type BeforeSaveFunc func(ctx context.Context, req *record.Request, res record.Response)

// AfterSaveFunc runs after a successful write. Its outcome is not observed.
type AfterSaveFunc func(ctx context.Context, req *record.Request)

// Model is the declarative definition of one class.
type Model struct {
	// ClassName is the public name of the class (e.g. "Post").
	ClassName string `yaml:"className"`

	// Source is the datastore table. Defaults to ClassName.
	Source string `yaml:"source,omitempty"`

	// Keys declares the field categories. Required.
	Keys *Keys `yaml:"keys"`

	// Pointers and Files are only legal inside Keys. They are decoded here
	// so a misplaced declaration is reported instead of silently dropped.
	Pointers Pointers `yaml:"pointers,omitempty"`
	Files    []string `yaml:"files,omitempty"`

	// Fields assigns library descriptors to keys by type.
	Fields map[string]field.Spec `yaml:"fields,omitempty"`

	// Hooks names library hooks to install.
	Hooks Hooks `yaml:"hooks,omitempty"`

	Meta ModelMeta `yaml:"meta,omitempty"`

	// Go-supplied behavior. These take precedence over Fields and over the
	// descriptors generated for pointers and files, per function.
	Validate   map[string]field.Validator `yaml:"-"`
	Parse      map[string]field.Parser    `yaml:"-"`
	Format     map[string]field.Formatter `yaml:"-"`
	BeforeSave BeforeSaveFunc             `yaml:"-"`
	AfterSave  AfterSaveFunc              `yaml:"-"`
}

// Keys declares which fields can be read, which can be written, which
// reference other classes, and which hold attachments.
type Keys struct {
	Viewable   []string `yaml:"viewable,omitempty"`
	Actionable []string `yaml:"actionable,omitempty"`
	Pointers   Pointers `yaml:"pointers,omitempty"`
	Files      []string `yaml:"files,omitempty"`
}

// Hooks selects library hooks by name.
type Hooks struct {
	BeforeSave *Hook `yaml:"beforeSave,omitempty"`
}

// Hook configures a library hook.
type Hook struct {
	// Type of hook: session.
	Type string `yaml:"type"`

	// Days a session stays valid.
	Days int `yaml:"days,omitempty"`
}

// ModelMeta contains optional model metadata.
type ModelMeta struct {
	Description string `yaml:"description,omitempty"`
}

// SourceName returns Source or ClassName.
func (m Model) SourceName() string {
	if m.Source != "" {
		return m.Source
	}
	return m.ClassName
}
