package savechange

import (
	"fmt"
	"iter"
)

// OldValues maps every field name and column to its value as of the last
// load or save. Untouched fields report their current value.
type OldValues struct {
	r *Record
}

// Get returns the baseline of name. Snapshots are returned as stored and must
// not be modified.
func (o OldValues) Get(name string) (any, error) {
	if v, ok := o.r.ledger.original(name); ok {
		return v, nil
	}
	if _, ok := o.r.schema.trackers[name]; !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, o.r.schema.table, name)
	}
	return o.r.Get(name)
}

// Keys returns every field name, followed by its column when the two differ.
func (o OldValues) Keys() []string {
	out := make([]string, 0, len(o.r.schema.fields))
	for _, f := range o.r.schema.fields {
		out = append(out, f.Name)
		if f.Column != f.Name {
			out = append(out, f.Column)
		}
	}
	return out
}

// Len returns the number of fields.
func (o OldValues) Len() int {
	return len(o.r.schema.fields)
}

// All iterates over Keys and their baselines, skipping values that cannot be
// resolved.
func (o OldValues) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, k := range o.Keys() {
			v, err := o.Get(k)
			if err != nil {
				continue
			}
			if !yield(k, v) {
				return
			}
		}
	}
}

// Map collects All into a map.
func (o OldValues) Map() map[string]any {
	out := make(map[string]any, o.Len())
	for k, v := range o.All() {
		out[k] = v
	}
	return out
}
