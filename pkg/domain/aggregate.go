package domain

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

// AggregateProps are the construction parameters of an Aggregate. The three
// mappings are independent; keys are unique within each mapping.
type AggregateProps struct {
	ID                ID
	Name              string
	Entities          map[string]Record
	EntityCollections map[string]Collection
	Extra             map[string]any
}

// Aggregate is a named, identified bundle of single entities, entity
// collections and free-form extra data. It holds the mappings it was built
// with rather than copies.
type Aggregate struct {
	props AggregateProps
}

// NewAggregate builds an aggregate. All three mappings must be supplied,
// possibly empty; a nil mapping fails with ErrInvalidArgument.
func NewAggregate(props AggregateProps) (*Aggregate, error) {
	switch {
	case props.Entities == nil:
		return nil, invalidArgument("aggregate %q: entities mapping is required", props.Name)
	case props.EntityCollections == nil:
		return nil, invalidArgument("aggregate %q: entity collections mapping is required", props.Name)
	case props.Extra == nil:
		return nil, invalidArgument("aggregate %q: extra mapping is required", props.Name)
	}
	return &Aggregate{props: props}, nil
}

// ID returns the aggregate identity.
func (a *Aggregate) ID() ID { return a.props.ID }

// Name returns the aggregate name.
func (a *Aggregate) Name() string { return a.props.Name }

// EntityTypeCount returns the number of entity instances reachable from the
// aggregate: one per single-entity key, populated or not, plus the count of
// every entity collection.
func (a *Aggregate) EntityTypeCount() int {
	count := len(a.props.Entities)
	for _, c := range a.props.EntityCollections {
		if c != nil {
			count += c.Count()
		}
	}
	return count
}

// EntityByKey looks up a single entity.
func (a *Aggregate) EntityByKey(key string) (Record, bool) {
	e, ok := a.props.Entities[key]
	return e, ok
}

// EntityCollectionByKey looks up an entity collection.
func (a *Aggregate) EntityCollectionByKey(key string) (Collection, bool) {
	c, ok := a.props.EntityCollections[key]
	return c, ok
}

// AddEntity inserts or overwrites the entity stored under key.
func (a *Aggregate) AddEntity(key string, entity Record) {
	a.props.Entities[key] = entity
}

// RemoveEntity deletes the entity stored under key, if any.
func (a *Aggregate) RemoveEntity(key string) {
	delete(a.props.Entities, key)
}

// AddEntityCollection inserts or overwrites the collection stored under key.
func (a *Aggregate) AddEntityCollection(key string, collection Collection) {
	a.props.EntityCollections[key] = collection
}

// RemoveEntityCollection deletes the collection stored under key, if any.
func (a *Aggregate) RemoveEntityCollection(key string) {
	delete(a.props.EntityCollections, key)
}

// ExtraInfo returns the extra value stored under key.
func (a *Aggregate) ExtraInfo(key string) (any, bool) {
	v, ok := a.props.Extra[key]
	return v, ok
}

// SetExtraInfo stores value under key without validation.
func (a *Aggregate) SetExtraInfo(key string, value any) {
	a.props.Extra[key] = value
}

// EntityEnvelope is the persisted form of one entity: its type tag and its
// serialized fields. An empty Type marks an unpopulated entity slot.
type EntityEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AggregateSnapshot is the detached, JSON-ready form of an aggregate.
type AggregateSnapshot struct {
	ID          ID                          `json:"id"`
	Name        string                      `json:"name"`
	Entities    map[string]EntityEnvelope   `json:"entities"`
	Collections map[string][]EntityEnvelope `json:"entity_collections"`
	Extra       map[string]json.RawMessage  `json:"extra"`
	TakenAt     time.Time                   `json:"taken_at,omitzero"`
}

// EntityCount mirrors Aggregate.EntityTypeCount for the snapshot.
func (s AggregateSnapshot) EntityCount() int {
	count := len(s.Entities)
	for _, items := range s.Collections {
		count += len(items)
	}
	return count
}

// Snapshot serializes every entity, collection and extra value of the
// aggregate. The result shares no memory with the aggregate.
func (a *Aggregate) Snapshot() (AggregateSnapshot, error) {
	snap := AggregateSnapshot{
		ID:          a.props.ID,
		Name:        a.props.Name,
		Entities:    make(map[string]EntityEnvelope, len(a.props.Entities)),
		Collections: make(map[string][]EntityEnvelope, len(a.props.EntityCollections)),
		Extra:       make(map[string]json.RawMessage, len(a.props.Extra)),
	}
	for key, record := range a.props.Entities {
		env, err := envelopeOf(record)
		if err != nil {
			return AggregateSnapshot{}, fmt.Errorf("snapshot entity %s: %w", key, err)
		}
		snap.Entities[key] = env
	}
	for key, collection := range a.props.EntityCollections {
		var records []Record
		if collection != nil {
			records = collection.Records()
		}
		envs := make([]EntityEnvelope, 0, len(records))
		for i, record := range records {
			env, err := envelopeOf(record)
			if err != nil {
				return AggregateSnapshot{}, fmt.Errorf("snapshot collection %s[%d]: %w", key, i, err)
			}
			envs = append(envs, env)
		}
		snap.Collections[key] = envs
	}
	for key, value := range a.props.Extra {
		raw, err := json.Marshal(value)
		if err != nil {
			return AggregateSnapshot{}, fmt.Errorf("snapshot extra %s: %w", key, err)
		}
		snap.Extra[key] = raw
	}
	return snap, nil
}

// RestoreAggregate rebuilds an aggregate from a snapshot, decoding entities
// through registry. Collections come back as *Entities[Record] and extra
// values as their generic JSON decoding (maps, slices, float64, string, bool).
func RestoreAggregate(snap AggregateSnapshot, registry *Registry) (*Aggregate, error) {
	if registry == nil {
		return nil, invalidArgument("registry is required to restore aggregate %q", snap.Name)
	}
	props := AggregateProps{
		ID:                snap.ID,
		Name:              snap.Name,
		Entities:          make(map[string]Record, len(snap.Entities)),
		EntityCollections: make(map[string]Collection, len(snap.Collections)),
		Extra:             make(map[string]any, len(snap.Extra)),
	}
	for key, env := range snap.Entities {
		record, err := recordOf(env, registry)
		if err != nil {
			return nil, fmt.Errorf("restore entity %s: %w", key, err)
		}
		props.Entities[key] = record
	}
	for key, envs := range snap.Collections {
		items := make([]Record, 0, len(envs))
		for i, env := range envs {
			record, err := recordOf(env, registry)
			if err != nil {
				return nil, fmt.Errorf("restore collection %s[%d]: %w", key, i, err)
			}
			items = append(items, record)
		}
		props.EntityCollections[key] = NewEntities(items...)
	}
	for key, raw := range snap.Extra {
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, fmt.Errorf("restore extra %s: %w", key, err)
		}
		props.Extra[key] = value
	}
	return NewAggregate(props)
}

func envelopeOf(record Record) (EntityEnvelope, error) {
	if isNilRecord(record) {
		return EntityEnvelope{Payload: json.RawMessage("null")}, nil
	}
	payload, err := record.Serialize()
	if err != nil {
		return EntityEnvelope{}, err
	}
	return EntityEnvelope{Type: record.Type(), Payload: payload}, nil
}

// isNilRecord reports an empty slot: a nil interface or a typed nil pointer
// such as (*Entity[T])(nil).
func isNilRecord(record Record) bool {
	if record == nil {
		return true
	}
	v := reflect.ValueOf(record)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

func recordOf(env EntityEnvelope, registry *Registry) (Record, error) {
	if env.Type == "" {
		return nil, nil
	}
	return registry.Decode(env.Type, env.Payload)
}
