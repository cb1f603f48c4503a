package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/artpar/warpmodel/core/apperr"
	"github.com/artpar/warpmodel/core/field"
	"github.com/artpar/warpmodel/core/record"
	"github.com/artpar/warpmodel/core/schema"
)

// ActionOptions describes the mutation a pipeline prepares.
type ActionOptions struct {
	ID          any
	IsNew       bool
	IsDestroyed bool
	Meta        record.Meta

	// Now is the operation start time. Zero means the runtime clock.
	Now time.Time
}

// ActionKeys runs the mutation pipeline on the supplied fields: it keeps the
// actionable ones, validates and type-checks them, parses all but
// references and attachments, stamps system timestamps, runs the
// beforeSave hook, and finalizes. It returns the request, whose keys now
// hold formatted values, and the raw column map for the executor.
func (m *Model) ActionKeys(ctx context.Context, fields map[string]any, opts ActionOptions) (*record.Request, map[string]any, error) {
	def := m.def
	if opts.Now.IsZero() {
		opts.Now = m.rt.clock.Now()
	}
	now := opts.Now.UTC().Truncate(time.Second)

	fields = field.DecodeFields(fields)
	keys := record.NewKeyMap(nil, nil)

	for _, key := range def.ActionKeys(fields) {
		value := fields[key]
		desc := def.Descriptor(key)

		if desc.Validate != nil {
			if msg := desc.Validate(value, key); msg != "" {
				return nil, nil, apperr.New(apperr.InvalidObjectKey, "%s", msg)
			}
		}

		if msg := field.CheckKind(value, desc.Parse); msg != "" {
			return nil, nil, apperr.New(apperr.InvalidObjectKey, "%s", msg)
		}

		if !def.IsPointer(key) && !def.IsFile(key) {
			parsed, err := desc.Parse.Parse(value)
			if err != nil {
				return nil, nil, apperr.New(apperr.InvalidObjectKey, "%s: %v", key, err)
			}
			value = parsed
		}

		if err := keys.Set(key, value); err != nil {
			return nil, nil, apperr.New(apperr.InvalidObjectKey, "%s", err.Error())
		}
	}

	req := &record.Request{
		Keys:        keys,
		IsNew:       opts.IsNew,
		IsDestroyed: opts.IsDestroyed,
		Meta:        opts.Meta,
		ID:          opts.ID,
		UpdatedAt:   now,
	}
	if opts.IsNew {
		req.CreatedAt = now
	}
	if opts.IsDestroyed {
		req.DeletedAt = now
	}

	if hook := def.BeforeSave(); hook != nil {
		if err := m.runBeforeSave(ctx, hook, req); err != nil {
			return nil, nil, err
		}
	}

	raw, err := m.finalize(req)
	if err != nil {
		return nil, nil, err
	}
	return req, raw, nil
}

func (m *Model) runBeforeSave(ctx context.Context, hook schema.BeforeSaveFunc, req *record.Request) error {
	log := m.rt.logger.With().Str("class", m.def.ClassName()).Logger()
	done := record.NewCompletion(log)

	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("beforeSave panicked")
				done.Error(fmt.Sprintf("beforeSave failed: %v", r))
			}
		}()
		hook(ctx, req, done)
	}()

	outcome, err := done.Wait(ctx)
	if err != nil {
		return fmt.Errorf("beforeSave %s: %w", m.def.ClassName(), err)
	}
	if !outcome.OK {
		return apperr.New(apperr.InvalidObjectKey, "%s", outcome.Message)
	}
	return nil
}

// finalize parses deferred references and attachments, builds the raw
// column map, and replaces each key's value with its formatted form.
func (m *Model) finalize(req *record.Request) (map[string]any, error) {
	def := m.def
	raw := make(map[string]any, req.Keys.Len()+3)

	for _, key := range req.Keys.Keys() {
		value, err := req.Keys.Get(key)
		if err != nil {
			return nil, apperr.New(apperr.InvalidObjectKey, "%s", err.Error())
		}

		if def.IsPointer(key) || def.IsFile(key) {
			parsed, err := def.Descriptor(key).Parse.Parse(value)
			if err != nil {
				return nil, apperr.New(apperr.InvalidObjectKey, "%s: %v", key, err)
			}
			value = parsed
		}

		raw[def.ActionSource(key)] = value

		formatted := def.Format(key, value)
		if formatted == field.Unset {
			_ = req.Keys.Delete(key)
			continue
		}
		_ = req.Keys.Set(key, formatted)
	}

	for col, ts := range req.Timestamps() {
		raw[col] = ts.Format(field.StoredTimeLayout)
	}

	return raw, nil
}

// payload is the client view of a finished mutation: the request keys that
// are viewable plus the id and the given system timestamps.
func (m *Model) payload(req *record.Request, timestamps ...string) map[string]any {
	out := req.Keys.Copy()
	for key := range out {
		if !m.def.IsViewable(key) {
			delete(out, key)
		}
	}

	out[record.KeyID] = req.ID
	stamps := req.Timestamps()
	for _, key := range timestamps {
		out[key] = m.def.Format(key, stamps[key])
	}
	return out
}

func (m *Model) afterSave(ctx context.Context, req *record.Request) {
	fn := m.def.AfterSave()
	if fn == nil {
		return
	}

	log := m.rt.logger.With().Str("class", m.def.ClassName()).Logger()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("afterSave panicked")
			}
		}()
		fn(context.WithoutCancel(ctx), req)
	}()
}
