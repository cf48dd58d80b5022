package domain

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

type decodeFunc func(payload []byte) (Record, error)

// Registry maps entity type tags to the kinds able to decode them. It is used
// to rebuild aggregates from snapshots and is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]decodeFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]decodeFunc)}
}

// RegisterKind adds kind to the registry under its type tag. Registering two
// kinds with the same tag fails with ErrInvalidArgument.
func RegisterKind[T any](r *Registry, kind *Kind[T]) error {
	if r == nil || kind == nil {
		return invalidArgument("registry and kind are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.decoders[kind.name]; exists {
		return invalidArgument("kind %q already registered", kind.name)
	}
	r.decoders[kind.name] = func(payload []byte) (Record, error) {
		e, err := kind.Decode(payload)
		if err != nil {
			return nil, err
		}
		return e, nil
	}
	return nil
}

// Kinds returns the registered type tags, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := slices.Collect(maps.Keys(r.decoders))
	slices.Sort(kinds)
	return kinds
}

// Decode rebuilds a record of the named type from its serialized payload.
func (r *Registry) Decode(typeName string, payload []byte) (Record, error) {
	r.mu.RLock()
	decode, ok := r.decoders[typeName]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, typeName)
	}
	return decode(payload)
}
