package savechange

import (
	"errors"
)

// tracker intercepts reads and writes of one name of a field. A relation
// field gets two trackers: one for its public name, which delegates to the
// field's Accessor, and one for its identifier column, which uses raw storage.
type tracker struct {
	name  string
	field Field
	acc   Accessor
}

func newTrackers(f Field) []*tracker {
	out := []*tracker{{name: f.Name, field: f, acc: f.Accessor}}
	if f.Column != f.Name {
		out = append(out, &tracker{name: f.Column, field: f})
	}
	return out
}

// load resolves the current value without touching the ledger.
func (t *tracker) load(r *Record) (any, error) {
	if t.acc != nil {
		return t.acc.Get(r, t.field)
	}
	return r.values[t.name], nil
}

func (t *tracker) get(r *Record) (any, error) {
	v, err := t.load(r)
	if err != nil {
		return nil, err
	}
	if !r.initializing {
		r.ledger.observe(t.name, v)
	}
	return v, nil
}

// previous resolves the value an assignment replaces. Stored values win; a
// relation falls back to its cached object and then to a lookup, where a
// missing related row means there is no previous value.
func (t *tracker) previous(r *Record) (any, bool, error) {
	if v, ok := r.values[t.name]; ok {
		return v, true, nil
	}
	if t.acc == nil {
		return nil, false, nil
	}
	if rel, ok := t.acc.(RelationAccessor); ok {
		if v, ok := rel.Cached(r, t.field); ok {
			return v, true, nil
		}
	}
	v, err := t.acc.Get(r, t.field)
	if errors.Is(err, ErrDoesNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (t *tracker) set(r *Record, v any) error {
	var apply func()
	if !r.initializing && r.ledger.status(t.name) != snapshotted {
		old, ok, err := t.previous(r)
		if err != nil {
			return err
		}
		if ok {
			apply = r.ledger.plan(t.name, old, v)
		}
	}
	if err := t.store(r, v); err != nil {
		return err
	}
	if apply != nil {
		apply()
	}
	return nil
}

func (t *tracker) store(r *Record, v any) error {
	if t.acc != nil {
		return t.acc.Set(r, t.field, v)
	}
	if t.name == t.field.Column && t.field.Column != t.field.Name {
		// the hydrated object no longer matches a new identifier
		if prev, ok := r.values[t.name]; !ok || !equal(prev, v) {
			delete(r.related, t.field.Name)
		}
	}
	r.values[t.name] = v
	return nil
}
