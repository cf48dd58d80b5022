package domain

import (
	"reflect"
	"strings"
)

// fieldSpec locates one data field of an entity record.
type fieldSpec struct {
	name      string
	index     []int
	tagged    bool
	omitEmpty bool
	omitZero  bool
}

// Kind is the explicit descriptor of an entity variant: a developer supplied
// type tag plus the field list of the record type T, fixed when the kind is
// defined. Kinds are immutable and safe to share between goroutines.
type Kind[T any] struct {
	name      string
	fields    []fieldSpec
	byName    map[string]int
	requireID bool
}

// KindOption customises a Kind at definition time.
type KindOption func(*kindConfig)

type kindConfig struct {
	requireID bool
}

// RequireID makes NewEntity reject records constructed without an identity.
func RequireID() KindOption {
	return func(c *kindConfig) { c.requireID = true }
}

// DefineKind describes the record type T under the given type tag. T must be a
// struct; its exported fields become the entity's data fields in declaration
// order, resolved as encoding/json does: untagged embedded structs and struct
// pointers are flattened, `json:"-"` is skipped and a shallower field hides a
// deeper one of the same name. A field serialised as "id" is rejected
// because identity is held by the entity itself.
func DefineKind[T any](name string, opts ...KindOption) (*Kind[T], error) {
	if strings.TrimSpace(name) == "" {
		return nil, invalidArgument("kind name must not be empty")
	}
	var cfg kindConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	fields, err := schemaOf(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	k := &Kind[T]{
		name:      name,
		fields:    fields,
		byName:    make(map[string]int, len(fields)),
		requireID: cfg.requireID,
	}
	for i, f := range fields {
		k.byName[f.name] = i
	}
	return k, nil
}

// MustDefineKind is like DefineKind but panics on error. It simplifies
// package-level kind declarations.
func MustDefineKind[T any](name string, opts ...KindOption) *Kind[T] {
	k, err := DefineKind[T](name, opts...)
	if err != nil {
		panic(err)
	}
	return k
}

// Name returns the type tag.
func (k *Kind[T]) Name() string { return k.name }

// RequiresID reports whether entities of this kind must carry an identity.
func (k *Kind[T]) RequiresID() bool { return k.requireID }

// Fields returns the declared data field names in order.
func (k *Kind[T]) Fields() []string {
	out := make([]string, len(k.fields))
	for i, f := range k.fields {
		out[i] = f.name
	}
	return out
}

// New is shorthand for NewEntity(k, data, id...).
func (k *Kind[T]) New(data *T, id ...ID) (*Entity[T], error) {
	return NewEntity(k, data, id...)
}

// Decode builds an entity of this kind from serialized text.
func (k *Kind[T]) Decode(text []byte) (*Entity[T], error) {
	data, id, err := decodeRecord[T](k.name, text)
	if err != nil {
		return nil, err
	}
	return NewEntity(k, &data, id)
}

func (k *Kind[T]) lookup(name string) (fieldSpec, bool) {
	i, ok := k.byName[name]
	if !ok {
		return fieldSpec{}, false
	}
	return k.fields[i], true
}

func schemaOf(t reflect.Type) ([]fieldSpec, error) {
	if t.Kind() != reflect.Struct {
		return nil, invalidArgument("entity record must be a struct, got %s", t)
	}
	var fields []fieldSpec
	collectFields(t, nil, map[reflect.Type]bool{t: true}, &fields)
	fields, err := dominantFields(t, fields)
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		if strings.EqualFold(f.name, "id") {
			return nil, invalidArgument("%s declares field %q; identity is held by the entity", t, f.name)
		}
	}
	return fields, nil
}

// collectFields walks t in declaration order the way encoding/json does:
// untagged embedded structs, and pointers to them, contribute their fields.
func collectFields(t reflect.Type, prefix []int, path map[reflect.Type]bool, out *[]fieldSpec) {
	for i := range t.NumField() {
		sf := t.Field(i)
		tag := sf.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		index := append(append([]int(nil), prefix...), i)
		if sf.Anonymous && name == "" {
			inner := sf.Type
			if inner.Kind() == reflect.Pointer {
				inner = inner.Elem()
			}
			if inner.Kind() == reflect.Struct {
				if !path[inner] {
					path[inner] = true
					collectFields(inner, index, path, out)
					delete(path, inner)
				}
				continue
			}
		}
		if !sf.IsExported() || !jsonRepresentable(sf.Type) {
			continue
		}
		spec := fieldSpec{name: name, index: index, tagged: name != ""}
		if name == "" {
			spec.name = sf.Name
		}
		for _, opt := range strings.Split(opts, ",") {
			switch opt {
			case "omitempty":
				spec.omitEmpty = true
			case "omitzero":
				spec.omitZero = true
			}
		}
		*out = append(*out, spec)
	}
}

// dominantFields resolves fields sharing a JSON name: the shallowest wins,
// then a tagged one. Ties at the same depth are rejected.
func dominantFields(t reflect.Type, fields []fieldSpec) ([]fieldSpec, error) {
	byName := make(map[string][]int, len(fields))
	for i, f := range fields {
		byName[f.name] = append(byName[f.name], i)
	}
	keep := make([]bool, len(fields))
	for name, idx := range byName {
		best := idx[0]
		tie := false
		for _, i := range idx[1:] {
			switch c := compareDominance(fields[i], fields[best]); {
			case c > 0:
				best, tie = i, false
			case c == 0:
				tie = true
			}
		}
		if tie {
			return nil, invalidArgument("%s declares field %q more than once", t, name)
		}
		keep[best] = true
	}
	out := make([]fieldSpec, 0, len(byName))
	for i, f := range fields {
		if keep[i] {
			out = append(out, f)
		}
	}
	return out, nil
}

func compareDominance(a, b fieldSpec) int {
	if len(a.index) != len(b.index) {
		return len(b.index) - len(a.index)
	}
	switch {
	case a.tagged == b.tagged:
		return 0
	case a.tagged:
		return 1
	default:
		return -1
	}
}

// jsonRepresentable reports whether values of t survive encoding/json. Func,
// channel and complex typed fields are not data and never become keys.
func jsonRepresentable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Func, reflect.Chan, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer:
		return false
	default:
		return true
	}
}

// valueIn returns the field's value inside root. It reports false when the
// field sits behind a nil embedded pointer.
func (f fieldSpec) valueIn(root reflect.Value) (reflect.Value, bool) {
	v, err := root.FieldByIndexErr(f.index)
	if err != nil {
		return reflect.Value{}, false
	}
	return v, true
}

// omitted mirrors encoding/json's omitempty and omitzero rules.
func (f fieldSpec) omitted(v reflect.Value) bool {
	if f.omitZero && v.IsZero() {
		return true
	}
	if !f.omitEmpty {
		return false
	}
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.Interface, reflect.Pointer:
		return v.IsZero()
	default:
		return false
	}
}
