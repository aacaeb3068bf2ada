package savechange

import (
	"reflect"
)

var boolType = reflect.TypeOf(true)

// equal reports whether a and b hold the same value. Types with an
// Equal(T) bool method (time.Time, decimal.Decimal) are compared with it.
// Builtin numbers of different kinds compare by value, so an int assigned
// over an int64 read from a driver is not a change. Everything else is
// compared deeply.
func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	t := va.Type()
	if t == vb.Type() && !(t.Kind() == reflect.Pointer && (va.IsNil() || vb.IsNil())) {
		if m, ok := t.MethodByName("Equal"); ok {
			mt := m.Type
			if mt.NumIn() == 2 && mt.In(1) == t && mt.NumOut() == 1 && mt.Out(0) == boolType {
				return m.Func.Call([]reflect.Value{va, vb})[0].Bool()
			}
		}
	}
	if t != vb.Type() && isBuiltinNumber(t) && isBuiltinNumber(vb.Type()) {
		return numbersEqual(va, vb)
	}
	return reflect.DeepEqual(a, b)
}

type numClass int

const (
	notNumber numClass = iota
	signed
	unsigned
	floating
)

func classify(k reflect.Kind) numClass {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return signed
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return unsigned
	case reflect.Float32, reflect.Float64:
		return floating
	default:
		return notNumber
	}
}

// isBuiltinNumber excludes named types such as time.Duration.
func isBuiltinNumber(t reflect.Type) bool {
	return t.PkgPath() == "" && t.Name() != "" && classify(t.Kind()) != notNumber
}

func numbersEqual(a, b reflect.Value) bool {
	ca, cb := classify(a.Kind()), classify(b.Kind())
	if ca > cb {
		a, b = b, a
		ca, cb = cb, ca
	}
	switch {
	case ca == signed && cb == signed:
		return a.Int() == b.Int()
	case ca == unsigned && cb == unsigned:
		return a.Uint() == b.Uint()
	case ca == signed && cb == unsigned:
		return a.Int() >= 0 && uint64(a.Int()) == b.Uint()
	}
	// at least one float
	return toFloat(a) == toFloat(b)
}

func toFloat(v reflect.Value) float64 {
	switch classify(v.Kind()) {
	case signed:
		return float64(v.Int())
	case unsigned:
		return float64(v.Uint())
	default:
		return v.Float()
	}
}
