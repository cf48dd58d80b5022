package domain

import (
	"context"
	"time"
)

// SnapshotInfo summarises a stored aggregate snapshot.
type SnapshotInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	EntityCount int       `json:"entity_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SnapshotStore is the durable home of aggregate snapshots, keyed by the
// string form of the aggregate ID. Implementations must return an error
// matching ErrNotFound from Load when the key is absent.
type SnapshotStore interface {
	// Save inserts or replaces the snapshot stored under snapshot.ID.
	Save(ctx context.Context, snapshot AggregateSnapshot) error
	Load(ctx context.Context, id string) (AggregateSnapshot, error)
	// Delete removes a snapshot, reporting whether it existed.
	Delete(ctx context.Context, id string) (bool, error)
	// List returns summaries ordered by ID.
	List(ctx context.Context) ([]SnapshotInfo, error)
	Close() error
}

// SnapshotKey validates a snapshot for storage and returns its key, the
// rendered ID. StringID("1") and NumberID(1) render alike and therefore
// address the same stored snapshot; the key space is flat so that List
// reports plain IDs.
func SnapshotKey(snapshot AggregateSnapshot) (string, error) {
	if !snapshot.ID.IsSet() {
		return "", invalidArgument("aggregate %q has no id", snapshot.Name)
	}
	return snapshot.ID.String(), nil
}

// SnapshotNotFound builds the error returned for a missing snapshot.
func SnapshotNotFound(id string) error {
	return NotFoundError{What: "aggregate snapshot", ID: id}
}
