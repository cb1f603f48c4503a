// Package convention compiles declarative models into immutable definitions.
// It applies the key conventions: reference and attachment descriptors,
// timestamp formatters, default join columns, and the legality rules for
// second-level references.
package convention

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/artpar/warpmodel/core/apperr"
	"github.com/artpar/warpmodel/core/field"
	"github.com/artpar/warpmodel/core/query"
	"github.com/artpar/warpmodel/core/record"
	"github.com/artpar/warpmodel/core/schema"
	"github.com/artpar/warpmodel/ports"
)

// Options carries the collaborators a compiled definition needs.
type Options struct {
	Hasher       ports.Hasher
	PasswordCost int
	Storage      ports.Storage
	Logger       zerolog.Logger
}

// Compile validates mod and builds its Definition. Errors are logged and
// returned as *apperr.Error.
func Compile(mod schema.Model, opts Options) (*Definition, error) {
	log := opts.Logger.With().Str("class", mod.ClassName).Logger()

	def, err := compile(mod, opts, log)
	if err != nil {
		log.Error().Stringer("code", apperr.CodeOf(err)).Err(err).Msg("model compile failed")
		return nil, err
	}
	return def, nil
}

func compile(mod schema.Model, opts Options, log zerolog.Logger) (*Definition, error) {
	if mod.ClassName == "" {
		return nil, apperr.New(apperr.MissingConfiguration, "A `className` was not defined for this model")
	}
	if mod.Keys == nil {
		return nil, apperr.New(apperr.MissingConfiguration,
			"`keys` have not been defined (Model: `%s`)", mod.ClassName)
	}
	if len(mod.Pointers) > 0 {
		return nil, apperr.New(apperr.ForbiddenOperation,
			"The `pointers` definition should be inside of the `keys` definition (Model: `%s`)", mod.ClassName)
	}
	if len(mod.Files) > 0 {
		return nil, apperr.New(apperr.ForbiddenOperation,
			"The `files` definition should be inside of the `keys` definition (Model: `%s`)", mod.ClassName)
	}

	d := &Definition{
		className:   mod.ClassName,
		source:      mod.SourceName(),
		viewable:    copyStrings(mod.Keys.Viewable),
		actionable:  copyStrings(mod.Keys.Actionable),
		pointers:    append(schema.Pointers{}, mod.Keys.Pointers...),
		files:       make(map[string]bool, len(mod.Keys.Files)),
		fileOrder:   copyStrings(mod.Keys.Files),
		descriptors: make(map[string]field.Descriptor),
		specs:       make(map[string]field.Spec, len(mod.Fields)),
		beforeSave:  mod.BeforeSave,
		afterSave:   mod.AfterSave,
		storage:     opts.Storage,
	}
	for _, f := range mod.Keys.Files {
		d.files[f] = true
	}

	if err := d.checkPointers(); err != nil {
		return nil, err
	}

	for _, key := range unionStrings(d.viewable, d.actionable) {
		if strings.Contains(key, "_id") && !d.IsPointer(key) {
			msg := "`" + key + "` appears to be pointing to another class. It would be best to make this a pointer instead."
			d.warnings = append(d.warnings, msg)
			log.Warn().Str("key", key).Msg(msg)
		}
	}

	env := field.Env{Hasher: opts.Hasher, PasswordCost: opts.PasswordCost}
	for key, spec := range mod.Fields {
		if d.IsPointer(key) || d.IsFile(key) {
			return nil, apperr.New(apperr.ForbiddenOperation,
				"`%s` is a pointer or file and cannot declare a field type (Model: `%s`)", key, mod.ClassName)
		}
		desc, err := spec.Descriptor(env)
		if err != nil {
			return nil, apperr.New(apperr.MissingConfiguration,
				"field `%s`: %v (Model: `%s`)", key, err, mod.ClassName)
		}
		d.descriptors[key] = desc
		d.specs[key] = spec
	}

	for _, ptr := range d.pointers {
		d.descriptors[ptr.Name] = field.ReferenceDescriptor(ptr.ClassName)
	}
	for _, f := range d.fileOrder {
		if !d.IsPointer(f) {
			d.descriptors[f] = field.FileDescriptor()
		}
	}

	for key, fn := range mod.Validate {
		desc := d.descriptors[key]
		desc.Validate = fn
		d.descriptors[key] = desc
	}
	for key, p := range mod.Parse {
		desc := d.descriptors[key]
		desc.Parse = p
		d.descriptors[key] = desc
	}
	for key, fn := range mod.Format {
		desc := d.descriptors[key]
		desc.Format = fn
		d.descriptors[key] = desc
	}

	for _, key := range []string{record.KeyCreatedAt, record.KeyUpdatedAt, record.KeyDeletedAt} {
		desc := d.descriptors[key]
		desc.Format = field.DateFormatter
		d.descriptors[key] = desc
	}

	return d, nil
}

// checkPointers enforces reference declarations: a target class, safe
// identifiers, dotted vias only through declared pointers, and no
// second-level references among actionable keys.
func (d *Definition) checkPointers() error {
	actionable := make(map[string]bool, len(d.actionable))
	for _, k := range d.actionable {
		actionable[k] = true
	}

	for _, ptr := range d.pointers {
		if ptr.ClassName == "" {
			return apperr.New(apperr.MissingConfiguration,
				"Pointer `%s` does not define a `className` (Model: `%s`)", ptr.Name, d.className)
		}
		if !query.ValidIdentifier(ptr.ClassName) {
			return apperr.New(apperr.ForbiddenOperation,
				"Pointer `%s` targets an invalid class `%s` (Model: `%s`)", ptr.Name, ptr.ClassName, d.className)
		}

		dotted := strings.Contains(ptr.Via, ".")
		if ptr.Via != "" {
			if !query.ValidColumn(ptr.Via) {
				return apperr.New(apperr.ForbiddenOperation,
					"Pointer `%s` has an invalid `via` `%s` (Model: `%s`)", ptr.Name, ptr.Via, d.className)
			}
			if dotted {
				alias, _, _ := strings.Cut(ptr.Via, ".")
				if alias == ptr.Name || !d.IsPointer(alias) {
					return apperr.New(apperr.ForbiddenOperation,
						"Pointer `%s` joins through undeclared pointer `%s` (Model: `%s`)", ptr.Name, alias, d.className)
				}
			}
		}

		if err := ptr.Where.Validate(); err != nil {
			return apperr.New(apperr.ForbiddenOperation,
				"Pointer `%s` has an invalid `where`: %v (Model: `%s`)", ptr.Name, err, d.className)
		}

		if actionable[ptr.Name] && (dotted || len(ptr.Where) > 0) {
			return apperr.New(apperr.ForbiddenOperation,
				"Second-level pointer `%s` cannot be defined as actionable (Model: `%s`)", ptr.Name, d.className)
		}
	}
	return nil
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// unionStrings returns the unique elements of a then b, in order.
func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}
