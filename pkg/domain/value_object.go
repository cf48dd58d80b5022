package domain

import "encoding/json"

// ValueObject wraps an identity-free record compared purely by content. The
// record is deep-copied on construction and every accessor hands out copies,
// so a ValueObject never changes after it is built.
type ValueObject[T any] struct {
	value T
}

// NewValueObject wraps a deep copy of value; later changes the caller makes
// to value are not observed.
func NewValueObject[T any](value T) ValueObject[T] {
	return ValueObject[T]{value: deepCopy(value)}
}

// Snapshot is a read-only view of a value object's record taken at a point in
// time. It exposes no mutators and Value returns a fresh copy on every call.
type Snapshot[T any] struct {
	value T
}

// Value returns a copy of the captured record.
func (s Snapshot[T]) Value() T { return deepCopy(s.value) }

// MarshalJSON encodes the captured record.
func (s Snapshot[T]) MarshalJSON() ([]byte, error) { return json.Marshal(s.value) }

// Immutable returns a read-only snapshot of the record.
func (v ValueObject[T]) Immutable() Snapshot[T] {
	return Snapshot[T]{value: deepCopy(v.value)}
}

// Equals compares the snapshots of both value objects structurally.
func (v ValueObject[T]) Equals(other ValueObject[T]) bool {
	return deepEqual(v.Immutable().value, other.Immutable().value)
}

// EqualsValue compares the wrapped record with a raw record structurally.
func (v ValueObject[T]) EqualsValue(other T) bool {
	return deepEqual(v.value, other)
}

// ToObject returns a plain copy of the record taken through its snapshot.
func (v ValueObject[T]) ToObject() T {
	return v.Immutable().Value()
}

// CloneObject returns a deep, independent copy of the record.
func (v ValueObject[T]) CloneObject() T {
	return deepCopy(v.value)
}

// MarshalJSON encodes the wrapped record so value objects embedded in entity
// records survive serialisation.
func (v ValueObject[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.value)
}

// UnmarshalJSON decodes the wrapped record.
func (v *ValueObject[T]) UnmarshalJSON(data []byte) error {
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	v.value = value
	return nil
}

func (v ValueObject[T]) snapshotAny() any { return v.Immutable().value }

func (v ValueObject[T]) equalsAny(other any) bool {
	typed, ok := other.(T)
	if !ok {
		return false
	}
	return deepEqual(v.value, typed)
}
