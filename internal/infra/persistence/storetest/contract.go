// Package storetest holds the behavioural contract every domain.SnapshotStore
// backend is tested against.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"dddcore/pkg/domain"
)

// Snapshot builds a small snapshot with one entity, a two-element collection
// and one extra value.
func Snapshot(id, name string) domain.AggregateSnapshot {
	return domain.AggregateSnapshot{
		ID:   domain.StringID(id),
		Name: name,
		Entities: map[string]domain.EntityEnvelope{
			"owner": {Type: "Customer", Payload: json.RawMessage(`{"name":"Ada","id":"c-1"}`)},
		},
		Collections: map[string][]domain.EntityEnvelope{
			"lines": {
				{Type: "Line", Payload: json.RawMessage(`{"sku":"A","id":1}`)},
				{Type: "Line", Payload: json.RawMessage(`{"sku":"B","id":2}`)},
			},
		},
		Extra: map[string]json.RawMessage{"channel": json.RawMessage(`"web"`)},
	}
}

// Run exercises store against the SnapshotStore contract. The store must be
// empty when passed in.
func Run(t *testing.T, store domain.SnapshotStore) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.Load(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for missing snapshot, got %v", err)
	}
	if err := store.Save(ctx, domain.AggregateSnapshot{Name: "anon"}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for snapshot without id, got %v", err)
	}

	first := Snapshot("order-2", "Order")
	second := Snapshot("order-1", "Order")
	for _, snap := range []domain.AggregateSnapshot{first, second} {
		if err := store.Save(ctx, snap); err != nil {
			t.Fatalf("save %s: %v", snap.ID, err)
		}
	}

	loaded, err := store.Load(ctx, "order-2")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.ID != first.ID || loaded.Name != first.Name || loaded.EntityCount() != 3 {
		t.Fatalf("loaded snapshot mismatch: %+v", loaded)
	}
	if got := string(loaded.Collections["lines"][1].Payload); got != `{"sku":"B","id":2}` {
		t.Fatalf("collection payload = %s", got)
	}

	infos, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].ID != "order-1" || infos[1].ID != "order-2" {
		t.Fatalf("list must be ordered by id, got %+v", infos)
	}
	if infos[0].EntityCount != 3 || infos[0].Name != "Order" || infos[0].UpdatedAt.IsZero() {
		t.Fatalf("unexpected summary %+v", infos[0])
	}

	first.Name = "Renamed"
	delete(first.Collections, "lines")
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	loaded, err = store.Load(ctx, "order-2")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.Name != "Renamed" || loaded.EntityCount() != 1 {
		t.Fatalf("overwrite not applied: %+v", loaded)
	}

	existed, err := store.Delete(ctx, "order-2")
	if err != nil || !existed {
		t.Fatalf("delete existing = %v, %v", existed, err)
	}
	existed, err = store.Delete(ctx, "order-2")
	if err != nil || existed {
		t.Fatalf("delete missing = %v, %v", existed, err)
	}
	if _, err := store.Load(ctx, "order-2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected deleted snapshot to be gone, got %v", err)
	}
	infos, err = store.List(ctx)
	if err != nil || len(infos) != 1 {
		t.Fatalf("list after delete = %+v, %v", infos, err)
	}
}
