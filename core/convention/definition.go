package convention

import (
	"strings"

	"github.com/artpar/warpmodel/core/field"
	"github.com/artpar/warpmodel/core/query"
	"github.com/artpar/warpmodel/core/record"
	"github.com/artpar/warpmodel/core/schema"
	"github.com/artpar/warpmodel/ports"
)

// Definition is a compiled model. It is immutable and safe for concurrent use.
type Definition struct {
	className  string
	source     string
	viewable   []string
	actionable []string
	pointers   schema.Pointers
	files      map[string]bool
	fileOrder  []string

	descriptors map[string]field.Descriptor
	specs       map[string]field.Spec

	beforeSave schema.BeforeSaveFunc
	afterSave  schema.AfterSaveFunc

	storage  ports.Storage
	warnings []string
}

// ClassName returns the class name.
func (d *Definition) ClassName() string { return d.className }

// Source returns the datastore source name.
func (d *Definition) Source() string { return d.source }

// Viewable returns the viewable keys in declaration order.
func (d *Definition) Viewable() []string { return copyStrings(d.viewable) }

// Actionable returns the actionable keys in declaration order.
func (d *Definition) Actionable() []string { return copyStrings(d.actionable) }

// Pointers returns the reference declarations in declaration order.
func (d *Definition) Pointers() schema.Pointers {
	return append(schema.Pointers{}, d.pointers...)
}

// Files returns the attachment keys in declaration order.
func (d *Definition) Files() []string { return copyStrings(d.fileOrder) }

// IsPointer reports whether key is a reference field.
func (d *Definition) IsPointer(key string) bool {
	_, ok := d.pointers.Get(key)
	return ok
}

// IsFile reports whether key is an attachment field.
func (d *Definition) IsFile(key string) bool { return d.files[key] }

// IsViewable reports whether key is returned by reads.
func (d *Definition) IsViewable(key string) bool {
	for _, k := range d.viewable {
		if k == key {
			return true
		}
	}
	return false
}

// Descriptor returns the behavior of key.
func (d *Definition) Descriptor(key string) field.Descriptor { return d.descriptors[key] }

// BeforeSave returns the beforeSave hook, or nil.
func (d *Definition) BeforeSave() schema.BeforeSaveFunc { return d.beforeSave }

// AfterSave returns the afterSave hook, or nil.
func (d *Definition) AfterSave() schema.AfterSaveFunc { return d.afterSave }

// Spec returns the declared field spec of key, if the model file gave one.
func (d *Definition) Spec(key string) (field.Spec, bool) {
	s, ok := d.specs[key]
	return s, ok
}

// Warnings returns the non-fatal findings of compilation.
func (d *Definition) Warnings() []string { return copyStrings(d.warnings) }

// FileURL resolves an attachment key through the storage collaborator.
func (d *Definition) FileURL(key string) string {
	if d.storage == nil {
		return ""
	}
	return d.storage.URL(key)
}

// Format applies the formatter of key to value.
func (d *Definition) Format(key string, value any) any {
	return field.FormatValue(d.descriptors[key].Format, value, d)
}

// Joins returns one join per pointer, in declaration order.
func (d *Definition) Joins() []query.Join {
	joins := make([]query.Join, 0, len(d.pointers))
	seen := make(map[string]bool, len(d.pointers))
	for _, ptr := range d.pointers {
		if seen[ptr.Name] {
			continue
		}
		seen[ptr.Name] = true
		joins = append(joins, query.Join{
			ClassName: ptr.ClassName,
			Alias:     ptr.Name,
			Via:       ptr.Via,
			To:        record.KeyID,
			Where:     ptr.Where,
		})
	}
	return joins
}

// ViewKeys is the read projection for a set of requested keys.
type ViewKeys struct {
	Projection query.Projection
	// Subfields lists, per pointer name, the requested fields of the
	// referenced record in request order.
	Subfields map[string][]string
}

// ViewKeys resolves the requested keys into a projection. Dotted keys name
// subfields of a declared pointer and are dropped unless the subfield is an
// identifier; others are intersected with the viewable keys. With no plain keys requested every viewable key is selected. The id
// and the created/updated timestamps are always included and deleted_at
// never is.
func (d *Definition) ViewKeys(requested []string) ViewKeys {
	out := ViewKeys{Subfields: map[string][]string{}}

	var selected []string
	seenSelected := map[string]bool{}
	var pointerOrder []string
	seenSub := map[string]bool{}

	for _, key := range requested {
		if name, sub, ok := strings.Cut(key, "."); ok {
			if !d.IsPointer(name) || !query.ValidIdentifier(sub) || seenSub[key] {
				continue
			}
			seenSub[key] = true
			if _, exists := out.Subfields[name]; !exists {
				pointerOrder = append(pointerOrder, name)
			}
			out.Subfields[name] = append(out.Subfields[name], sub)
			continue
		}
		if seenSelected[key] {
			continue
		}
		seenSelected[key] = true
		selected = append(selected, key)
	}

	keys := d.viewable
	if len(selected) > 0 {
		keys = nil
		for _, k := range selected {
			if d.IsViewable(k) {
				keys = append(keys, k)
			}
		}
	}
	keys = unionStrings(keys, []string{record.KeyID, record.KeyCreatedAt, record.KeyUpdatedAt})

	for _, key := range keys {
		if key == record.KeyDeletedAt {
			continue
		}
		if d.IsPointer(key) {
			out.Projection = append(out.Projection, query.Selection{Alias: key, Table: key, Column: record.KeyID})
			continue
		}
		out.Projection = append(out.Projection, query.Selection{Alias: key, Column: key})
	}

	for _, name := range pointerOrder {
		for _, sub := range out.Subfields[name] {
			out.Projection = append(out.Projection, query.Selection{Alias: name + "." + sub, Table: name, Column: sub})
		}
	}

	return out
}

// ActionKeys returns the supplied keys that may be written, in declaration
// order. System keys are never writable.
func (d *Definition) ActionKeys(supplied map[string]any) []string {
	var out []string
	for _, key := range d.actionable {
		if record.IsSystemKey(key) {
			continue
		}
		if _, ok := supplied[key]; ok {
			out = append(out, key)
		}
	}
	return out
}

// ActionSource returns the column a key is written to: the pointer's via
// or "<key>_id" for references and the key itself otherwise.
func (d *Definition) ActionSource(key string) string {
	ptr, ok := d.pointers.Get(key)
	if !ok {
		return key
	}
	if ptr.Via != "" {
		return ptr.Via
	}
	return key + "_id"
}

// Column is a persisted column of the definition's source.
type Column struct {
	Name string
	// Type is the SQLite type. Empty means no declared affinity.
	Type string
}

// Columns returns the non-system columns backing the definition: every
// non-reference key and the local join column of every reference.
func (d *Definition) Columns() []Column {
	var cols []Column
	seen := map[string]bool{}
	add := func(c Column) {
		if seen[c.Name] || record.IsSystemKey(c.Name) {
			return
		}
		seen[c.Name] = true
		cols = append(cols, c)
	}

	for _, key := range unionStrings(d.viewable, d.actionable) {
		if d.IsPointer(key) {
			continue
		}
		col := Column{Name: key}
		if spec, ok := d.specs[key]; ok {
			col.Type = spec.SQLType()
		} else if d.IsFile(key) {
			col.Type = "TEXT"
		}
		add(col)
	}
	for _, ptr := range d.pointers {
		if strings.Contains(ptr.Via, ".") {
			continue
		}
		add(Column{Name: d.ActionSource(ptr.Name), Type: "INTEGER"})
	}
	return cols
}
