// Package memory provides an in-memory snapshot store used for tests and
// ephemeral environments.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"dddcore/pkg/domain"
)

// Compile-time contract assertion ensuring Store adheres to the domain persistence interface.
var _ domain.SnapshotStore = (*Store)(nil)

type entry struct {
	name        string
	entityCount int
	payload     []byte
	updatedAt   time.Time
}

// Store keeps encoded snapshots in a map guarded by a RWMutex. Snapshots are
// stored as JSON so loads never share memory with saved values.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the time source used for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore constructs an empty in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]entry),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save inserts or replaces the snapshot.
func (s *Store) Save(ctx context.Context, snapshot domain.AggregateSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := domain.SnapshotKey(snapshot)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{
		name:        snapshot.Name,
		entityCount: snapshot.EntityCount(),
		payload:     payload,
		updatedAt:   s.now(),
	}
	return nil
}

// Load returns the snapshot stored under id.
func (s *Store) Load(ctx context.Context, id string) (domain.AggregateSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.AggregateSnapshot{}, err
	}
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return domain.AggregateSnapshot{}, domain.SnapshotNotFound(id)
	}
	var snapshot domain.AggregateSnapshot
	if err := json.Unmarshal(e.payload, &snapshot); err != nil {
		return domain.AggregateSnapshot{}, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	return snapshot, nil
}

// Delete removes the snapshot stored under id.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return false, nil
	}
	delete(s.entries, id)
	return true, nil
}

// List returns snapshot summaries ordered by ID.
func (s *Store) List(ctx context.Context) ([]domain.SnapshotInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]domain.SnapshotInfo, 0, len(s.entries))
	for id, e := range s.entries {
		out = append(out, domain.SnapshotInfo{
			ID:          id,
			Name:        e.name,
			EntityCount: e.entityCount,
			UpdatedAt:   e.updatedAt,
		})
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }
