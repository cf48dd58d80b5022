package domain

import (
	"bytes"
	"encoding/json"
	"reflect"
)

// deepEqual reports structural equality. Values that differ only in their Go
// representation, such as an int that came back from JSON as float64, compare
// equal through their canonical JSON encoding.
func deepEqual(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ja, jb)
}

// valueComparer is implemented by ValueObject so the shallow comparison can
// recognise value objects without knowing their type parameter.
type valueComparer interface {
	snapshotAny() any
	equalsAny(other any) bool
}

func asValueComparer(v reflect.Value) (valueComparer, bool) {
	if !v.IsValid() || !v.CanInterface() {
		return nil, false
	}
	if (v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer) && v.IsNil() {
		return nil, false
	}
	vc, ok := v.Interface().(valueComparer)
	return vc, ok
}

// shallowEqual compares by reference for maps, slices, pointers, funcs and
// channels, by value for scalars, and field by field for structs and arrays.
// Value objects on both sides are compared by content.
func shallowEqual(a, b reflect.Value) bool {
	if va, ok := asValueComparer(a); ok {
		if vb, ok := asValueComparer(b); ok {
			return va.equalsAny(vb.snapshotAny())
		}
	}
	if !a.IsValid() || !b.IsValid() {
		return a.IsValid() == b.IsValid()
	}
	if a.Type() != b.Type() {
		return false
	}
	switch a.Kind() {
	case reflect.Slice:
		return a.Len() == b.Len() && a.Pointer() == b.Pointer()
	case reflect.Map, reflect.Pointer, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return a.Pointer() == b.Pointer()
	case reflect.Interface:
		if a.IsNil() || b.IsNil() {
			return a.IsNil() && b.IsNil()
		}
		return shallowEqual(a.Elem(), b.Elem())
	case reflect.Struct:
		for i := range a.NumField() {
			if !shallowEqual(a.Field(i), b.Field(i)) {
				return false
			}
		}
		return true
	case reflect.Array:
		for i := range a.Len() {
			if !shallowEqual(a.Index(i), b.Index(i)) {
				return false
			}
		}
		return true
	default:
		return a.Equal(b)
	}
}
