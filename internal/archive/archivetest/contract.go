// Package archivetest holds the behavioural contract shared by archive
// backends.
package archivetest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"dddcore/internal/archive/core"
)

// Run exercises store against the core.Store contract. The store must be
// empty when passed in.
func Run(t *testing.T, store core.Store) {
	t.Helper()
	ctx := context.Background()

	if _, _, err := store.Get(ctx, "aggregates/missing.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found on get, got %v", err)
	}
	if _, err := store.Head(ctx, "aggregates/missing.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found on head, got %v", err)
	}
	if ok, err := store.Delete(ctx, "aggregates/missing.json"); err != nil || ok {
		t.Fatalf("delete missing = %v, %v", ok, err)
	}

	payload := []byte(`{"id":"a1","name":"Order"}`)
	info, err := store.Put(ctx, "aggregates/a1/one.json", bytes.NewReader(payload), core.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"aggregate": "a1"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "aggregates/a1/one.json" || info.Size != int64(len(payload)) {
		t.Fatalf("unexpected put info %+v", info)
	}
	if _, err := store.Put(ctx, "aggregates/a1/one.json", bytes.NewReader(payload), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected exists error on duplicate put, got %v", err)
	}
	if _, err := store.Put(ctx, "aggregates/a2/two.json", bytes.NewReader([]byte(`{}`)), core.PutOptions{}); err != nil {
		t.Fatalf("put second: %v", err)
	}

	got, rc, err := store.Get(ctx, "aggregates/a1/one.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(body, payload) {
		t.Fatalf("body = %s", body)
	}
	if got.ContentType != "application/json" || got.Metadata["aggregate"] != "a1" {
		t.Fatalf("metadata not preserved: %+v", got)
	}

	head, err := store.Head(ctx, "aggregates/a1/one.json")
	if err != nil || head.Size != int64(len(payload)) {
		t.Fatalf("head = %+v, %v", head, err)
	}

	all, err := store.List(ctx, "aggregates/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].Key != "aggregates/a1/one.json" || all[1].Key != "aggregates/a2/two.json" {
		t.Fatalf("list = %+v", all)
	}
	scoped, err := store.List(ctx, "aggregates/a2/")
	if err != nil || len(scoped) != 1 {
		t.Fatalf("prefix list = %+v, %v", scoped, err)
	}

	if ok, err := store.Delete(ctx, "aggregates/a1/one.json"); err != nil || !ok {
		t.Fatalf("delete = %v, %v", ok, err)
	}
	if _, _, err := store.Get(ctx, "aggregates/a1/one.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected deleted object to be gone, got %v", err)
	}
}
