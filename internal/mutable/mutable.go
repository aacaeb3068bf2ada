package mutable

import (
	"errors"
	"net/netip"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/copystructure"
	"github.com/shopspring/decimal"
)

// ErrNotCopyable is returned by Copy when the copy would not equal the
// original, as with types that keep their state in unexported fields.
var ErrNotCopyable = errors.New("mutable: value cannot be copied faithfully")

// Immutable may be implemented by types that promise never to change in place.
// The promise is not verified.
type Immutable interface {
	Immutable()
}

var immutableIface = reflect.TypeOf((*Immutable)(nil)).Elem()

// knownImmutable lists composite types that contain references internally but
// are never mutated through their public API.
var knownImmutable = []reflect.Type{
	reflect.TypeOf(time.Time{}),
	reflect.TypeOf((*time.Location)(nil)),
	reflect.TypeOf(uuid.UUID{}),
	reflect.TypeOf(decimal.Decimal{}),
	reflect.TypeOf(decimal.NullDecimal{}),
	reflect.TypeOf(netip.Addr{}),
	reflect.TypeOf(netip.Prefix{}),
}

// Classifier decides whether a value could change without a new assignment.
type Classifier struct {
	immutable map[reflect.Type]struct{}
	copier    copystructure.Config
}

// New returns a Classifier that also treats extra as immutable.
func New(extra ...reflect.Type) *Classifier {
	c := &Classifier{immutable: make(map[reflect.Type]struct{}, len(knownImmutable)+len(extra))}
	for _, t := range knownImmutable {
		c.immutable[t] = struct{}{}
	}
	for _, t := range extra {
		if t != nil {
			c.immutable[t] = struct{}{}
		}
	}

	// copying skips unexported fields, so immutable structs are shared as is
	copiers := make(map[reflect.Type]copystructure.CopierFunc, len(copystructure.Copiers)+len(c.immutable))
	for t, fn := range copystructure.Copiers {
		copiers[t] = fn
	}
	for t := range c.immutable {
		if _, ok := copiers[t]; !ok && t.Kind() == reflect.Struct {
			copiers[t] = func(v any) (any, error) { return v, nil }
		}
	}
	c.copier = copystructure.Config{Copiers: copiers}
	return c
}

// Copy returns a deep copy of v. Values of immutable struct types are shared.
func (c *Classifier) Copy(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	cp, err := c.copier.Copy(v)
	if err != nil {
		return nil, err
	}
	if !reflect.DeepEqual(v, cp) {
		return nil, ErrNotCopyable
	}
	return cp, nil
}

// IsMutable reports whether v is possibly mutable.
//
// Scalars, strings and the known immutable types are immutable. Arrays and
// structs are value types, so they are immutable unless one of their elements
// is mutable. Non-nil pointers, maps and slices are mutable. Nil references,
// funcs and channels cannot be changed in place and are treated as immutable.
func (c *Classifier) IsMutable(v any) bool {
	if v == nil {
		return false
	}
	return c.check(reflect.ValueOf(v))
}

func (c *Classifier) check(v reflect.Value) bool {
	if !v.IsValid() {
		return false
	}
	t := v.Type()
	if _, ok := c.immutable[t]; ok {
		return false
	}
	if t.Implements(immutableIface) {
		return false
	}

	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128,
		reflect.String:
		return false
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if c.check(v.Index(i)) {
				return true
			}
		}
		return false
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if c.check(v.Field(i)) {
				return true
			}
		}
		return false
	case reflect.Interface:
		if v.IsNil() {
			return false
		}
		return c.check(v.Elem())
	case reflect.Pointer, reflect.Map, reflect.Slice:
		return !v.IsNil()
	default:
		// chan, func, unsafe pointer
		return false
	}
}
