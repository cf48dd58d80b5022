package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument indicates a constructor received absent or malformed input.
var ErrInvalidArgument = errors.New("domain: invalid argument")

// ErrDeserialization indicates entity text could not be decoded.
var ErrDeserialization = errors.New("domain: deserialization failed")

// ErrNotFound indicates a referenced entity or aggregate does not exist.
var ErrNotFound = errors.New("domain: not found")

// ErrUnknownKind indicates a snapshot referenced an entity type that was never registered.
var ErrUnknownKind = errors.New("domain: unknown entity kind")

// NotFoundError reports a missing entity reference or aggregate snapshot.
// It matches ErrNotFound through errors.Is.
type NotFoundError struct {
	What string
	ID   string
	Msg  string
}

func (e NotFoundError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return fmt.Sprintf("%s %s not found", e.What, e.ID)
}

// Is reports whether target is ErrNotFound.
func (e NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// errEntityNotInList is returned by Entities.Remove.
var errEntityNotInList = NotFoundError{What: "entity", Msg: "Entity not found in the list."}

// DeserializationError wraps the decoder failure for a Deserialize call.
type DeserializationError struct {
	Kind string
	Err  error
}

func (e *DeserializationError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("deserialize entity: %v", e.Err)
	}
	return fmt.Sprintf("deserialize %s: %v", e.Kind, e.Err)
}

// Unwrap exposes the underlying decoder error.
func (e *DeserializationError) Unwrap() error { return e.Err }

// Is reports whether target is ErrDeserialization.
func (e *DeserializationError) Is(target error) bool {
	return target == ErrDeserialization
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
