package savechange

import (
	"context"
	"fmt"
)

// Backend is the host persistence layer a Record saves through.
type Backend interface {
	// Write persists r. See Write for how the request is shaped.
	Write(ctx context.Context, r *Record, w Write) error
	// Fetch returns the stored values of the named fields of r keyed by
	// column. No names means every field.
	Fetch(ctx context.Context, r *Record, fields []string) (map[string]any, error)
}

// Write describes a single persistence request.
type Write struct {
	Fields      []string       // field names to write; nil means every field
	Adding      bool           // r has no persisted identity yet
	ForceInsert bool           // caller demanded an insert
	ForceUpdate bool           // caller demanded an update
	Before      map[string]any // baseline column values of the written fields
}

// Partial reports whether the write is restricted to Fields.
func (w Write) Partial() bool {
	return w.Fields != nil
}

// Record is one live instance of a schema.
type Record struct {
	schema       *Schema
	values       map[string]any
	related      map[string]any
	ledger       *ledger
	adding       bool
	initializing bool
}

// New builds a record that has not been persisted yet.
func (s *Schema) New(values map[string]any) (*Record, error) {
	return s.build(values, true)
}

// Load builds a record from values read from the backing store.
func (s *Schema) Load(values map[string]any) (*Record, error) {
	return s.build(values, false)
}

func (s *Schema) build(values map[string]any, adding bool) (*Record, error) {
	r := &Record{
		schema:  s,
		values:  make(map[string]any, len(values)),
		related: map[string]any{},
		ledger:  newLedger(s.classifier),
		adding:  adding,
	}
	if err := r.apply(values); err != nil {
		return nil, err
	}
	return r, nil
}

// apply stores values without recording changes.
func (r *Record) apply(values map[string]any) error {
	r.initializing = true
	defer func() { r.initializing = false }()
	for _, f := range r.schema.fields {
		for _, name := range []string{f.Column, f.Name} {
			v, ok := values[name]
			if !ok {
				continue
			}
			if err := r.schema.trackers[name].store(r, v); err != nil {
				return fmt.Errorf("savechange: set %s.%s: %w", r.schema.table, name, err)
			}
			if name == f.Column && name != f.Name {
				delete(r.related, f.Name)
			}
		}
	}
	for name := range values {
		if _, ok := r.schema.trackers[name]; !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownField, r.schema.table, name)
		}
	}
	return nil
}

func (r *Record) Schema() *Schema {
	return r.schema
}

// Adding reports whether r has no persisted identity yet.
func (r *Record) Adding() bool {
	return r.adding
}

// Get returns the value of a field by name or column.
func (r *Record) Get(name string) (any, error) {
	if t, ok := r.schema.trackers[name]; ok {
		return t.get(r)
	}
	if v, ok := r.values[name]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, r.schema.table, name)
}

// Set assigns a field by name or column. Names the schema does not know are
// stored untracked.
func (r *Record) Set(name string, v any) error {
	if t, ok := r.schema.trackers[name]; ok {
		return t.set(r, v)
	}
	r.values[name] = v
	return nil
}

// Value returns a field converted to T.
func Value[T any](r *Record, name string) (T, error) {
	var zero T
	v, err := r.Get(name)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("savechange: %s.%s is %T, not %T", r.schema.table, name, v, zero)
	}
	return out, nil
}

// Raw returns the stored value under name, bypassing accessors and tracking.
func (r *Record) Raw(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// SetRaw stores v under name, bypassing accessors and tracking.
func (r *Record) SetRaw(name string, v any) {
	r.values[name] = v
}

// Cached returns the related object cached for a relation field.
func (r *Record) Cached(name string) (any, bool) {
	v, ok := r.related[name]
	return v, ok
}

// Cache stores a related object for a relation field, bypassing tracking.
func (r *Record) Cache(name string, v any) {
	r.related[name] = v
}

// Columns returns the stored column values of every field.
func (r *Record) Columns() map[string]any {
	out := make(map[string]any, len(r.schema.fields))
	for _, f := range r.schema.fields {
		if v, ok := r.values[f.Column]; ok {
			out[f.Column] = v
		}
	}
	return out
}

// PrimaryKey returns the stored identity value.
func (r *Record) PrimaryKey() any {
	return r.values[r.schema.PrimaryKey().Column]
}

// Changes exposes change introspection when the schema tracks changes.
func (r *Record) Changes() (Changes, bool) {
	if !r.schema.trackChanges {
		return Changes{}, false
	}
	return Changes{r: r}, true
}

// Reload refreshes fields from b. With no names every field is refreshed and
// all tracking state is dropped; otherwise only the named fields are reset.
func (r *Record) Reload(ctx context.Context, b Backend, fields ...string) error {
	var names []string
	if len(fields) > 0 {
		var err error
		if names, err = r.schema.resolve(fields); err != nil {
			return err
		}
	}
	values, err := b.Fetch(ctx, r, names)
	if err != nil {
		return err
	}
	if err := r.apply(values); err != nil {
		return err
	}
	if len(names) == 0 {
		r.related = map[string]any{}
		r.ledger.reset()
		return nil
	}
	for _, name := range names {
		f, _ := r.schema.Field(name)
		delete(r.related, f.Name)
		r.ledger.resetFields(f.Name, f.Column)
	}
	return nil
}

// live resolves the current value of a tracked name for comparisons.
func (r *Record) live(name string) (any, error) {
	return r.schema.trackers[name].load(r)
}

// before collects the baseline column values of the named fields.
func (r *Record) before(names []string) map[string]any {
	fields := r.schema.fields
	if names != nil {
		fields = make([]Field, 0, len(names))
		for _, n := range names {
			f, _ := r.schema.Field(n)
			fields = append(fields, f)
		}
	}
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := r.ledger.original(f.Column); ok {
			out[f.Column] = v
			continue
		}
		if v, ok := r.values[f.Column]; ok {
			out[f.Column] = v
		}
	}
	return out
}
