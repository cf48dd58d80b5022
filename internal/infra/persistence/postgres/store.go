// Package postgres persists aggregate snapshots to PostgreSQL through the pgx
// database/sql driver, storing each snapshot as a JSONB document.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"dddcore/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.SnapshotStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	// DefaultDSN is used when NewStore receives an empty DSN.
	DefaultDSN = "postgres://localhost/dddcore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store keeps aggregate snapshots in the aggregate_snapshots table.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens a Postgres-backed store using dsn (falling back to
// DefaultDSN), verifies connectivity and ensures the snapshot table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureSnapshotTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func ensureSnapshotTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS aggregate_snapshots (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		entity_count INTEGER NOT NULL,
		payload JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure snapshot table: %w", err)
	}
	return nil
}

// Save upserts the snapshot row inside a transaction.
func (s *Store) Save(ctx context.Context, snapshot domain.AggregateSnapshot) error {
	key, err := domain.SnapshotKey(snapshot)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", key, err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO aggregate_snapshots(id,name,entity_count,payload,updated_at) VALUES($1,$2,$3,$4,$5)
		ON CONFLICT(id) DO UPDATE SET name=EXCLUDED.name, entity_count=EXCLUDED.entity_count, payload=EXCLUDED.payload, updated_at=EXCLUDED.updated_at`,
		key, snapshot.Name, snapshot.EntityCount(), payload, s.now()); err != nil {
		return fmt.Errorf("upsert snapshot %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Load reads the snapshot stored under id.
func (s *Store) Load(ctx context.Context, id string) (domain.AggregateSnapshot, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM aggregate_snapshots WHERE id = $1`, id).Scan(&payload)
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
	res, err := s.db.ExecContext(ctx, `DELETE FROM aggregate_snapshots WHERE id = $1`, id)
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
		if err := rows.Scan(&info.ID, &info.Name, &info.EntityCount, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
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

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
