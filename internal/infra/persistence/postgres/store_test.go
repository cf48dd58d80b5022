package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"dddcore/internal/infra/persistence/postgres/testutil"
	"dddcore/internal/infra/persistence/storetest"
)

func openStubStore(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	var gotDriver, gotDSN string
	restore := OverrideSQLOpen(func(driverName, dsn string) (*sql.DB, error) {
		gotDriver, gotDSN = driverName, dsn
		return db, nil
	})
	defer restore()
	store, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if gotDriver != "pgx" || gotDSN != DefaultDSN {
		t.Fatalf("opened %s %s", gotDriver, gotDSN)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, conn
}

func TestPostgresStoreContract(t *testing.T) {
	store, _ := openStubStore(t)
	storetest.Run(t, store)
}

func TestNewStoreEnsuresTable(t *testing.T) {
	_, conn := openStubStore(t)
	var sawDDL bool
	for _, stmt := range conn.Execs {
		if strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS aggregate_snapshots") && strings.Contains(stmt, "JSONB") {
			sawDDL = true
		}
	}
	if !sawDDL {
		t.Fatalf("expected snapshot table DDL, got %v", conn.Execs)
	}
}

func TestSaveWritesSummaryColumns(t *testing.T) {
	store, conn := openStubStore(t)
	fixed := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }
	if err := store.Save(context.Background(), storetest.Snapshot("agg", "Cart")); err != nil {
		t.Fatalf("save: %v", err)
	}
	rows := conn.Rows("aggregate_snapshots")
	if len(rows) != 1 {
		t.Fatalf("rows = %v", rows)
	}
	row := rows[0]
	if row["id"] != "agg" || row["name"] != "Cart" || row["entity_count"] != int64(3) {
		t.Fatalf("unexpected row %v", row)
	}
	if ts, ok := row["updated_at"].(time.Time); !ok || !ts.Equal(fixed) {
		t.Fatalf("updated_at = %v", row["updated_at"])
	}
}

func TestNewStoreFailures(t *testing.T) {
	t.Run("open", func(t *testing.T) {
		restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, errors.New("boom") })
		defer restore()
		if _, err := NewStore(context.Background(), "dsn"); err == nil || !strings.Contains(err.Error(), "open postgres") {
			t.Fatalf("expected open error, got %v", err)
		}
	})
	t.Run("ping", func(t *testing.T) {
		db, conn := testutil.NewStubDB()
		conn.FailPing = true
		restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
		defer restore()
		if _, err := NewStore(context.Background(), "dsn"); err == nil || !strings.Contains(err.Error(), "ping postgres") {
			t.Fatalf("expected ping error, got %v", err)
		}
	})
	t.Run("ddl", func(t *testing.T) {
		db, conn := testutil.NewStubDB()
		conn.FailExec = true
		restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
		defer restore()
		if _, err := NewStore(context.Background(), "dsn"); err == nil || !strings.Contains(err.Error(), "ensure snapshot table") {
			t.Fatalf("expected ddl error, got %v", err)
		}
	})
}

func TestSaveTransactionFailures(t *testing.T) {
	ctx := context.Background()
	snap := storetest.Snapshot("agg", "Cart")

	store, conn := openStubStore(t)
	conn.FailBegin = true
	if err := store.Save(ctx, snap); err == nil || !strings.Contains(err.Error(), "begin tx") {
		t.Fatalf("expected begin failure, got %v", err)
	}
	conn.FailBegin = false
	conn.FailCommit = true
	if err := store.Save(ctx, snap); err == nil || !strings.Contains(err.Error(), "commit") {
		t.Fatalf("expected commit failure, got %v", err)
	}
	conn.FailCommit = false
	conn.FailTables = map[string]bool{"aggregate_snapshots": true}
	if err := store.Save(ctx, snap); err == nil || !strings.Contains(err.Error(), "upsert snapshot agg") {
		t.Fatalf("expected upsert failure, got %v", err)
	}
	if _, err := store.List(ctx); err == nil {
		t.Fatalf("expected list failure")
	}
}

func TestListPropagatesRowsError(t *testing.T) {
	store, conn := openStubStore(t)
	if err := store.Save(context.Background(), storetest.Snapshot("agg", "Cart")); err != nil {
		t.Fatalf("save: %v", err)
	}
	conn.RowsErr = errors.New("cursor lost")
	if _, err := store.List(context.Background()); err == nil || !strings.Contains(err.Error(), "cursor lost") {
		t.Fatalf("expected rows error, got %v", err)
	}
}
