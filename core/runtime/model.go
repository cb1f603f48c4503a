package runtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/artpar/warpmodel/core/apperr"
	"github.com/artpar/warpmodel/core/convention"
	"github.com/artpar/warpmodel/core/events"
	"github.com/artpar/warpmodel/core/field"
	"github.com/artpar/warpmodel/core/query"
	"github.com/artpar/warpmodel/core/record"
)

// Model is a compiled definition bound to a runtime.
type Model struct {
	def *convention.Definition
	rt  *Runtime
}

// Definition returns the compiled definition.
func (m *Model) Definition() *convention.Definition {
	return m.def
}

// FindOptions constrains a read.
type FindOptions struct {
	// Select lists the keys to return. Empty means every viewable key.
	Select []string
	// Include lists subfields of pointers ("author.name").
	Include []string
	Where   query.Where
	Sort    []query.Sort
	Limit   int
	Skip    int
}

func (o FindOptions) requested() []string {
	out := make([]string, 0, len(o.Select)+len(o.Include))
	out = append(out, o.Select...)
	return append(out, o.Include...)
}

// Find returns the live records matching opts, formatted for display.
func (m *Model) Find(ctx context.Context, opts FindOptions) (out []map[string]any, err error) {
	start := time.Now()
	defer func() { m.rt.observe(m.def.ClassName(), "find", start, err) }()

	view, err := m.view(opts)
	if err != nil {
		return nil, err
	}

	rows, err := view.Find(ctx, m.formatRow)
	if err != nil {
		return nil, wrap(err, "find %s", m.def.ClassName())
	}

	out = make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = row
	}
	return out, nil
}

// First returns the live record with the given id, or nil when there is none.
func (m *Model) First(ctx context.Context, id any, include []string) (out map[string]any, err error) {
	start := time.Now()
	defer func() { m.rt.observe(m.def.ClassName(), "first", start, err) }()

	view, err := m.view(FindOptions{
		Include: include,
		Where:   query.Where{{Column: record.KeyID, Op: query.OpEq, Value: id}},
	})
	if err != nil {
		return nil, err
	}

	row, err := view.First(ctx, m.formatRow)
	if err != nil {
		return nil, wrap(err, "first %s", m.def.ClassName())
	}
	if row == nil {
		return nil, nil
	}
	return row, nil
}

func (m *Model) view(opts FindOptions) (query.View, error) {
	if err := opts.Where.Validate(); err != nil {
		return nil, err
	}

	requested, err := m.readable(opts.requested())
	if err != nil {
		return nil, err
	}
	if err := m.checkQualified(opts.Where, opts.Sort); err != nil {
		return nil, err
	}

	keys := m.def.ViewKeys(requested)
	joins := m.joins()
	where := query.ExcludeDeleted(m.resolveSources(m.pointerColumns(opts.Where)), m.def.Source(), joins)

	view := m.rt.exec.View(m.def.Source()).
		Select(keys.Projection).
		Joins(joins).
		Where(where)

	if len(opts.Sort) > 0 {
		view = view.Sort(opts.Sort)
	}
	if opts.Limit > 0 {
		view = view.Limit(opts.Limit)
	}
	if opts.Skip > 0 {
		view = view.Skip(opts.Skip)
	}
	return view, nil
}

// readable drops the pointer subfields the referenced class does not expose.
// A subfield that is not an identifier is an InvalidQuery.
func (m *Model) readable(requested []string) ([]string, error) {
	out := make([]string, 0, len(requested))
	for _, key := range requested {
		name, sub, ok := strings.Cut(key, ".")
		if !ok || !m.def.IsPointer(name) {
			out = append(out, key)
			continue
		}
		if !query.ValidIdentifier(sub) {
			return nil, apperr.New(apperr.InvalidQuery, "invalid include `%s`", key)
		}
		if m.subfieldVisible(name, sub) {
			out = append(out, key)
		}
	}
	return out, nil
}

// checkQualified rejects where and sort columns that reach into a joined
// record through anything but a declared pointer and its visible fields.
func (m *Model) checkQualified(where query.Where, sorts []query.Sort) error {
	check := func(column string) error {
		name, sub, ok := strings.Cut(column, ".")
		if !ok {
			return nil
		}
		if !m.def.IsPointer(name) {
			return apperr.New(apperr.InvalidQuery, "`%s` is not a pointer of %s", name, m.def.ClassName())
		}
		if !query.ValidIdentifier(sub) || !m.subfieldVisible(name, sub) {
			return apperr.New(apperr.InvalidQuery, "`%s` is not viewable", column)
		}
		return nil
	}

	for _, c := range where {
		if err := check(c.Column); err != nil {
			return err
		}
	}
	for _, o := range sorts {
		if err := check(o.Column); err != nil {
			return err
		}
	}
	return nil
}

// subfieldVisible reports whether sub of the record behind pointer name may
// be read: its id and timestamps always, other keys when the referenced
// class lists them as viewable plain columns.
func (m *Model) subfieldVisible(name, sub string) bool {
	switch sub {
	case record.KeyID, record.KeyCreatedAt, record.KeyUpdatedAt:
		return true
	}
	ptr, _ := m.def.Pointers().Get(name)
	target, ok := m.rt.registry.Get(ptr.ClassName)
	if !ok {
		return false
	}
	return target.IsViewable(sub) && !target.IsPointer(sub)
}

func (m *Model) joins() []query.Join {
	joins := m.def.Joins()
	for i := range joins {
		joins[i].Source = m.rt.registry.SourceOf(joins[i].ClassName)
		joins[i].Where = query.ExcludeDeletedNested(m.resolveSources(joins[i].Where))
	}
	return joins
}

// pointerColumns makes conditions on a pointer key compare the id of the
// joined record.
func (m *Model) pointerColumns(w query.Where) query.Where {
	out := make(query.Where, len(w))
	for i, c := range w {
		if m.def.IsPointer(c.Column) {
			c.Column += "." + record.KeyID
		}
		out[i] = c
	}
	return out
}

// resolveSources rewrites the class names of subqueries to their sources.
func (m *Model) resolveSources(w query.Where) query.Where {
	if len(w) == 0 {
		return w
	}
	out := make(query.Where, len(w))
	for i, c := range w {
		if c.Sub != nil {
			sub := m.resolveSub(*c.Sub)
			c.Sub = &sub
		}
		if c.Subs != nil {
			subs := make([]query.Subquery, len(c.Subs))
			for j, s := range c.Subs {
				subs[j] = m.resolveSub(s)
			}
			c.Subs = subs
		}
		out[i] = c
	}
	return out
}

func (m *Model) resolveSub(s query.Subquery) query.Subquery {
	s.ClassName = m.rt.registry.SourceOf(s.ClassName)
	s.Where = m.resolveSources(s.Where)
	return s
}

// formatRow applies formatters and moves "pointer.field" columns into the
// attributes of the pointer's reference.
func (m *Model) formatRow(row query.Row) query.Row {
	out := make(query.Row, len(row))
	attrs := map[string]map[string]any{}

	for key, value := range row {
		if name, sub, ok := strings.Cut(key, "."); ok {
			if attrs[name] == nil {
				attrs[name] = map[string]any{}
			}
			attrs[name][sub] = value
			continue
		}

		formatted := m.def.Format(key, value)
		if formatted == field.Unset {
			continue
		}
		out[key] = formatted
	}

	for name, values := range attrs {
		ref, ok := out[name].(field.Reference)
		if !ok {
			continue
		}
		ref.Attributes = values
		out[name] = ref
	}

	return out
}

// Create validates fields, runs the beforeSave hook and inserts the record.
// It returns the client payload of the new record.
func (m *Model) Create(ctx context.Context, fields map[string]any, meta record.Meta) (out map[string]any, err error) {
	start := time.Now()
	defer func() { m.rt.observe(m.def.ClassName(), events.OpCreate, start, err) }()

	req, raw, err := m.ActionKeys(ctx, fields, ActionOptions{IsNew: true, Meta: meta})
	if err != nil {
		return nil, err
	}

	id, err := m.rt.exec.Action(m.def.Source(), nil).Fields(raw).Create(ctx)
	if err != nil {
		return nil, wrap(err, "create %s", m.def.ClassName())
	}
	req.ID = id

	out = m.payload(req, record.KeyCreatedAt, record.KeyUpdatedAt)
	m.finish(ctx, req, events.OpCreate, out)
	return out, nil
}

// Update validates fields, runs the beforeSave hook and updates the live
// record with the given id.
func (m *Model) Update(ctx context.Context, id any, fields map[string]any, meta record.Meta) (out map[string]any, err error) {
	start := time.Now()
	defer func() { m.rt.observe(m.def.ClassName(), events.OpUpdate, start, err) }()

	req, raw, err := m.ActionKeys(ctx, fields, ActionOptions{ID: id, Meta: meta})
	if err != nil {
		return nil, err
	}

	if err := m.rt.exec.Action(m.def.Source(), id).Fields(raw).Update(ctx); err != nil {
		return nil, wrap(err, "update %s", m.def.ClassName())
	}

	out = m.payload(req, record.KeyUpdatedAt)
	m.finish(ctx, req, events.OpUpdate, out)
	return out, nil
}

// Destroy soft-deletes the live record with the given id. fields go through
// the same pipeline as an update and are written with the deletion mark.
func (m *Model) Destroy(ctx context.Context, id any, fields map[string]any, meta record.Meta) (out map[string]any, err error) {
	start := time.Now()
	defer func() { m.rt.observe(m.def.ClassName(), events.OpDestroy, start, err) }()

	req, raw, err := m.ActionKeys(ctx, fields, ActionOptions{ID: id, IsDestroyed: true, Meta: meta})
	if err != nil {
		return nil, err
	}

	if err := m.rt.exec.Action(m.def.Source(), id).Fields(raw).Update(ctx); err != nil {
		return nil, wrap(err, "destroy %s", m.def.ClassName())
	}

	out = m.payload(req, record.KeyUpdatedAt, record.KeyDeletedAt)
	m.finish(ctx, req, events.OpDestroy, out)
	return out, nil
}

func (m *Model) finish(ctx context.Context, req *record.Request, op string, data map[string]any) {
	m.afterSave(ctx, req)

	m.rt.logger.Debug().
		Str("class", m.def.ClassName()).
		Str("op", op).
		Interface("id", req.ID).
		Msg("record saved")

	if m.rt.events == nil {
		return
	}
	m.rt.events.PublishAsync(ctx, events.Event{
		Name:      events.Name(m.def.ClassName(), op),
		Class:     m.def.ClassName(),
		Operation: op,
		ID:        req.ID,
		Data:      data,
		Meta: map[string]any{
			"client":     req.Client,
			"sdkVersion": req.SDKVersion,
			"appVersion": req.AppVersion,
		},
	})
}

// wrap adds context to executor errors. Coded errors pass through so
// callers can map them.
func wrap(err error, format string, args ...any) error {
	if _, ok := err.(*apperr.Error); ok {
		return err
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
