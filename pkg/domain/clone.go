package domain

import "reflect"

// deepCopy returns an independent copy of value. Maps, slices, arrays,
// pointers and interfaces are copied recursively along exported paths; struct
// values are copied wholesale first so unexported state is carried over
// shallowly. value must be acyclic.
func deepCopy[T any](value T) T {
	src := reflect.ValueOf(&value).Elem()
	dst := reflect.New(src.Type()).Elem()
	copyInto(dst, src)
	return *(dst.Addr().Interface().(*T))
}

func copyInto(dst, src reflect.Value) {
	switch src.Kind() {
	case reflect.Pointer:
		if src.IsNil() {
			return
		}
		ptr := reflect.New(src.Type().Elem())
		copyInto(ptr.Elem(), src.Elem())
		dst.Set(ptr)
	case reflect.Interface:
		if src.IsNil() {
			return
		}
		inner := src.Elem()
		cp := reflect.New(inner.Type()).Elem()
		copyInto(cp, inner)
		dst.Set(cp)
	case reflect.Map:
		if src.IsNil() {
			return
		}
		clone := reflect.MakeMapWithSize(src.Type(), src.Len())
		iter := src.MapRange()
		for iter.Next() {
			val := reflect.New(src.Type().Elem()).Elem()
			copyInto(val, iter.Value())
			clone.SetMapIndex(iter.Key(), val)
		}
		dst.Set(clone)
	case reflect.Slice:
		if src.IsNil() {
			return
		}
		clone := reflect.MakeSlice(src.Type(), src.Len(), src.Len())
		for i := range src.Len() {
			copyInto(clone.Index(i), src.Index(i))
		}
		dst.Set(clone)
	case reflect.Array:
		for i := range src.Len() {
			copyInto(dst.Index(i), src.Index(i))
		}
	case reflect.Struct:
		dst.Set(src)
		for i := range src.NumField() {
			if !src.Type().Field(i).IsExported() {
				continue
			}
			copyInto(dst.Field(i), src.Field(i))
		}
	default:
		dst.Set(src)
	}
}

// kindAdopter is implemented by *Entity[T]. JSON decoding cannot know which
// Kind a nested entity belongs to, so decoded copies adopt it from the value
// they were decoded from.
type kindAdopter interface {
	adoptKind(src any)
}

// adoptKinds walks dst and src in parallel and hands every entity found in
// dst the kind of its counterpart in src.
func adoptKinds(dst, src reflect.Value) {
	if !dst.IsValid() || !src.IsValid() || dst.Type() != src.Type() {
		return
	}
	if dst.Kind() == reflect.Pointer && !dst.IsNil() && !src.IsNil() && dst.CanInterface() && src.CanInterface() {
		if a, ok := dst.Interface().(kindAdopter); ok {
			a.adoptKind(src.Interface())
			return
		}
	}
	if dst.Kind() == reflect.Struct && dst.CanAddr() && dst.Addr().CanInterface() && src.CanInterface() {
		if a, ok := dst.Addr().Interface().(kindAdopter); ok {
			a.adoptKind(src.Interface())
			return
		}
	}
	switch dst.Kind() {
	case reflect.Pointer, reflect.Interface:
		if dst.IsNil() || src.IsNil() {
			return
		}
		adoptKinds(dst.Elem(), src.Elem())
	case reflect.Struct:
		for i := range dst.NumField() {
			if dst.Type().Field(i).IsExported() {
				adoptKinds(dst.Field(i), src.Field(i))
			}
		}
	case reflect.Slice, reflect.Array:
		for i := range min(dst.Len(), src.Len()) {
			adoptKinds(dst.Index(i), src.Index(i))
		}
	case reflect.Map:
		iter := dst.MapRange()
		for iter.Next() {
			adoptKinds(iter.Value(), src.MapIndex(iter.Key()))
		}
	}
}
