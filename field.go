package savechange

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Field describes one persisted attribute of a schema.
type Field struct {
	Name     string   // public name, e.g. "author"
	Column   string   // storage name, e.g. "author_id"; defaults to Name
	Primary  bool     // identity column
	Accessor Accessor // optional host accessor for Name
	Codec    Codec    // optional conversion to and from column values
}

// Accessor is a host-provided read/write hook for a field. Change tracking
// wraps it; it never replaces it.
type Accessor interface {
	Get(r *Record, f Field) (any, error)
	Set(r *Record, f Field, v any) error
}

// RelationAccessor is implemented by accessors that cache a hydrated object on
// the record. Cached must not hit the backing store.
type RelationAccessor interface {
	Accessor
	Cached(r *Record, f Field) (any, bool)
}

// Codec converts between Go values and the values a backend stores.
type Codec interface {
	Encode(v any) (any, error)
	Decode(v any) (any, error)
}

// ForeignKey is an Accessor for a relation stored as an identifier column.
// Reading the field hydrates the related object through Resolve and caches it;
// assigning an object writes Key(obj) to the column through the tracked path.
type ForeignKey struct {
	Resolve func(id any) (any, error)
	Key     func(obj any) any
}

func (fk ForeignKey) Get(r *Record, f Field) (any, error) {
	if obj, ok := r.related[f.Name]; ok {
		return obj, nil
	}
	id, ok := r.values[f.Column]
	if !ok || id == nil {
		return nil, nil
	}
	if fk.Resolve == nil {
		return nil, fmt.Errorf("savechange: resolve %s=%v: %w", f.Column, id, ErrDoesNotExist)
	}
	obj, err := fk.Resolve(id)
	if err != nil {
		return nil, err
	}
	r.related[f.Name] = obj
	return obj, nil
}

func (fk ForeignKey) Set(r *Record, f Field, v any) error {
	if isNil(v) {
		if err := r.Set(f.Column, nil); err != nil {
			return err
		}
		delete(r.related, f.Name)
		return nil
	}
	if fk.Key == nil {
		return fmt.Errorf("savechange: foreign key %s has no Key func", f.Name)
	}
	if err := r.Set(f.Column, fk.Key(v)); err != nil {
		return err
	}
	r.related[f.Name] = v
	return nil
}

func (fk ForeignKey) Cached(r *Record, f Field) (any, bool) {
	obj, ok := r.related[f.Name]
	return obj, ok
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// JSON returns a Codec that stores values of type T as JSON text.
func JSON[T any]() Codec {
	return jsonCodec[T]{}
}

type jsonCodec[T any] struct{}

func (jsonCodec[T]) Encode(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("savechange: encode json: %w", err)
	}
	return string(b), nil
}

func (jsonCodec[T]) Decode(v any) (any, error) {
	var raw []byte
	switch s := v.(type) {
	case nil:
		return nil, nil
	case T:
		return s, nil
	case string:
		raw = []byte(s)
	case []byte:
		raw = s
	default:
		return nil, fmt.Errorf("savechange: decode json: unsupported source %T", v)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("savechange: decode json into %T: %w", out, err)
	}
	return out, nil
}
