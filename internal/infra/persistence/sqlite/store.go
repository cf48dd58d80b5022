// Package sqlite persists aggregate snapshots to an embedded SQLite database
// using the pure Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dddcore/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ domain.SnapshotStore = (*Store)(nil)

// DefaultPath is used when NewStore receives an empty path.
const DefaultPath = "dddcore.db"

const schema = `CREATE TABLE IF NOT EXISTS aggregate_snapshots (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	entity_count INTEGER NOT NULL,
	payload BLOB NOT NULL,
	updated_at TEXT NOT NULL
)`

// Store keeps one row per aggregate snapshot, the snapshot itself encoded as
// a JSON blob next to the summary columns used by List.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the time source used for updated_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore opens (creating if needed) the database at path and ensures the
// snapshot table exists.
func NewStore(path string, opts ...Option) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create snapshot table: %w", err)
	}
	s := &Store{db: db, path: path, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Save upserts the snapshot row.
func (s *Store) Save(ctx context.Context, snapshot domain.AggregateSnapshot) error {
	key, err := domain.SnapshotKey(snapshot)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", key, err)
	}
	stamp := s.now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO aggregate_snapshots(id,name,entity_count,payload,updated_at) VALUES(?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, entity_count=excluded.entity_count, payload=excluded.payload, updated_at=excluded.updated_at`,
		key, snapshot.Name, snapshot.EntityCount(), payload, stamp); err != nil {
		return fmt.Errorf("upsert snapshot %s: %w", key, err)
	}
	return nil
}

// Load reads the snapshot stored under id.
func (s *Store) Load(ctx context.Context, id string) (domain.AggregateSnapshot, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM aggregate_snapshots WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AggregateSnapshot{}, domain.SnapshotNotFound(id)
	}
	if err != nil {
		return domain.AggregateSnapshot{}, fmt.Errorf("select snapshot %s: %w", id, err)
	}
	var snapshot domain.AggregateSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return domain.AggregateSnapshot{}, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	return snapshot, nil
}

// Delete removes the row stored under id.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM aggregate_snapshots WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete snapshot %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete snapshot %s: %w", id, err)
	}
	return n > 0, nil
}

// List returns snapshot summaries ordered by ID.
func (s *Store) List(ctx context.Context) ([]domain.SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, entity_count, updated_at FROM aggregate_snapshots ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.SnapshotInfo
	for rows.Next() {
		var info domain.SnapshotInfo
		var stamp string
		if err := rows.Scan(&info.ID, &info.Name, &info.EntityCount, &stamp); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if info.UpdatedAt, err = time.Parse(time.RFC3339Nano, stamp); err != nil {
			return nil, fmt.Errorf("parse updated_at for %s: %w", info.ID, err)
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
