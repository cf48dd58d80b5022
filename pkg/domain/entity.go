// Package domain provides generic building blocks for Domain-Driven-Design
// object models: identity-bearing entities, ordered entity collections,
// aggregates bundling both, and identity-free value objects.
//
// None of the types here synchronise access internally. A given Entity,
// Entities or Aggregate must be confined to one goroutine at a time or guarded
// by the caller.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// Record is the non-generic view of an entity used by collections, aggregates
// and snapshot persistence.
type Record interface {
	ID() ID
	SetID(ID)
	Keys() []string
	Name() string
	Type() string
	Serialize() ([]byte, error)
}

// Entity pairs a data record of type T with an identity. Equality is
// structural over the record fields; the identity is compared like any other
// field and serialised under the "id" key.
type Entity[T any] struct {
	kind *Kind[T]
	id   ID
	data T
}

var _ Record = (*Entity[struct{}])(nil)

// NewEntity builds an entity of the given kind from data. data is copied into
// the entity by value. It fails with ErrInvalidArgument when kind or data is
// nil, or when the kind requires an identity and none is supplied.
func NewEntity[T any](kind *Kind[T], data *T, id ...ID) (*Entity[T], error) {
	if kind == nil {
		return nil, invalidArgument("entity kind is required")
	}
	if data == nil {
		return nil, invalidArgument("invalid data provided to %s", kind.name)
	}
	e := &Entity[T]{kind: kind, data: *data}
	if len(id) > 0 {
		e.id = id[0]
	}
	if kind.requireID && !e.id.IsSet() {
		return nil, invalidArgument("%s requires an id", kind.name)
	}
	return e, nil
}

// Kind returns the entity's variant descriptor.
func (e *Entity[T]) Kind() *Kind[T] { return e.kind }

// ID returns the identity. A nil entity has none.
func (e *Entity[T]) ID() ID {
	if e == nil {
		return ID{}
	}
	return e.id
}

// SetID replaces the identity.
func (e *Entity[T]) SetID(id ID) { e.id = id }

// Data returns a deep copy of the record.
func (e *Entity[T]) Data() T { return deepCopy(e.data) }

// Update mutates the record in place.
func (e *Entity[T]) Update(fn func(*T)) { fn(&e.data) }

// Type returns the kind's type tag.
func (e *Entity[T]) Type() string {
	if e == nil || e.kind == nil {
		return ""
	}
	return e.kind.name
}

// Name returns a diagnostic label such as "Order - ID: 42".
func (e *Entity[T]) Name() string {
	return fmt.Sprintf("%s - ID: %s", e.Type(), e.ID())
}

// Keys returns the names of the fields currently present on the entity, in
// declaration order. omitempty fields holding an empty value are absent, and
// "id" is appended when the identity is set.
func (e *Entity[T]) Keys() []string {
	if e == nil {
		return nil
	}
	fields := e.schema()
	root := reflect.ValueOf(&e.data).Elem()
	keys := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		v, ok := f.valueIn(root)
		if !ok || f.omitted(v) {
			continue
		}
		keys = append(keys, f.name)
	}
	if e.id.IsSet() {
		keys = append(keys, "id")
	}
	return keys
}

// Equal reports whether other has the same kind and deeply equal values for
// the given fields, or for every current key of e when fields is empty.
// Field names unknown to the kind compare as absent on both sides.
func (e *Entity[T]) Equal(other *Entity[T], fields ...string) bool {
	if other == nil || e.kind != other.kind {
		return false
	}
	if len(fields) == 0 {
		fields = e.Keys()
	}
	for _, name := range fields {
		a, aok := e.field(name)
		b, bok := other.field(name)
		if aok != bok {
			return false
		}
		if aok && !deepEqual(a.Interface(), b.Interface()) {
			return false
		}
	}
	return true
}

// CompareProperties is the legacy shallow comparison. It fails fast when the
// key counts differ, then compares every key of e by reference-or-value
// equality: maps, slices and pointers must be identical, scalars equal. When
// both sides of a field hold value objects they are compared by content.
//
// Unlike Equal, two entities holding distinct but structurally equal nested
// maps, slices or pointers are not equal here.
//
// Deprecated: use Equal.
func (e *Entity[T]) CompareProperties(other *Entity[T]) bool {
	if other == nil {
		return false
	}
	keys := e.Keys()
	if len(keys) != len(other.Keys()) {
		return false
	}
	for _, name := range keys {
		a, aok := e.field(name)
		b, bok := other.field(name)
		if !aok || !bok || !shallowEqual(a, b) {
			return false
		}
	}
	return true
}

// Serialize renders the current keys as a JSON object in Keys order. Field
// values are encoded by encoding/json with their struct tags applied. A nil
// entity serializes as null.
func (e *Entity[T]) Serialize() ([]byte, error) {
	if e == nil {
		return []byte("null"), nil
	}
	raw, err := json.Marshal(&e.data)
	if err != nil {
		return nil, fmt.Errorf("serialize %s: %w", e.Type(), err)
	}
	var values map[string]json.RawMessage
	if err := json.Unmarshal(raw, &values); err != nil || values == nil {
		return nil, fmt.Errorf("serialize %s: record does not encode as a JSON object", e.Type())
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for _, name := range e.Keys() {
		val, ok := values[name]
		if name == "id" {
			if val, err = json.Marshal(e.id); err != nil {
				return nil, fmt.Errorf("serialize %s.id: %w", e.Type(), err)
			}
			ok = true
		}
		if !ok {
			continue
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Deserialize replaces the record and identity with the fields parsed from
// text. Fields missing from text are reset to their zero value, so valid JSON
// that is not an object (an array, a string, null) leaves an empty record and
// no identity. It fails with a *DeserializationError when text is not valid
// JSON or an object field does not fit the record; the entity is left
// untouched in that case.
func (e *Entity[T]) Deserialize(text []byte) error {
	data, id, err := decodeRecord[T](e.Type(), text)
	if err != nil {
		return err
	}
	adoptKinds(reflect.ValueOf(&data).Elem(), reflect.ValueOf(&e.data).Elem())
	e.data = data
	e.id = id
	return nil
}

// Clone returns a new entity of the same kind built from a serialize-then-parse
// round trip of e. Nested entities keep their kinds.
func (e *Entity[T]) Clone() (*Entity[T], error) {
	text, err := e.Serialize()
	if err != nil {
		return nil, err
	}
	data, id, err := decodeRecord[T](e.Type(), text)
	if err != nil {
		return nil, err
	}
	adoptKinds(reflect.ValueOf(&data).Elem(), reflect.ValueOf(&e.data).Elem())
	if e.kind == nil {
		return &Entity[T]{id: id, data: data}, nil
	}
	return NewEntity(e.kind, &data, id)
}

// MarshalJSON implements json.Marshaler via Serialize.
func (e *Entity[T]) MarshalJSON() ([]byte, error) {
	return e.Serialize()
}

// UnmarshalJSON implements json.Unmarshaler via Deserialize.
func (e *Entity[T]) UnmarshalJSON(data []byte) error {
	return e.Deserialize(data)
}

func (e *Entity[T]) schema() []fieldSpec {
	if e.kind != nil {
		return e.kind.fields
	}
	fields, err := schemaOf(reflect.TypeFor[T]())
	if err != nil {
		return nil
	}
	return fields
}

// field resolves a key to its current value. Omitted fields are absent.
func (e *Entity[T]) field(name string) (reflect.Value, bool) {
	if name == "id" {
		if !e.id.IsSet() {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(e.id), true
	}
	var spec fieldSpec
	var ok bool
	if e.kind != nil {
		spec, ok = e.kind.lookup(name)
	} else {
		for _, f := range e.schema() {
			if f.name == name {
				spec, ok = f, true
				break
			}
		}
	}
	if !ok {
		return reflect.Value{}, false
	}
	v, ok := spec.valueIn(reflect.ValueOf(&e.data).Elem())
	if !ok || spec.omitted(v) {
		return reflect.Value{}, false
	}
	return v, true
}

// adoptKind lets a decoded copy take over the descriptor of the entity it was
// decoded from; see adoptKinds.
func (e *Entity[T]) adoptKind(src any) {
	var from *Entity[T]
	switch s := src.(type) {
	case *Entity[T]:
		from = s
	case Entity[T]:
		from = &s
	}
	if from == nil {
		return
	}
	if e.kind == nil {
		e.kind = from.kind
	}
	adoptKinds(reflect.ValueOf(&e.data).Elem(), reflect.ValueOf(&from.data).Elem())
}

func decodeRecord[T any](kind string, text []byte) (T, ID, error) {
	var zero T
	if !json.Valid(text) {
		var parsed any
		return zero, ID{}, &DeserializationError{Kind: kind, Err: json.Unmarshal(text, &parsed)}
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(text, &fields); err != nil || fields == nil {
		// Valid JSON that is not an object carries no fields.
		return zero, ID{}, nil
	}
	var id ID
	if raw, ok := fields["id"]; ok {
		if err := json.Unmarshal(raw, &id); err != nil {
			return zero, ID{}, &DeserializationError{Kind: kind, Err: err}
		}
	}
	var data T
	if err := json.Unmarshal(text, &data); err != nil {
		return zero, ID{}, &DeserializationError{Kind: kind, Err: err}
	}
	return data, id, nil
}
