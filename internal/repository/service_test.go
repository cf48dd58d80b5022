package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"dddcore/internal/archive"
	"dddcore/internal/infra/persistence/memory"
	"dddcore/pkg/domain"
)

func TestNewServiceValidation(t *testing.T) {
	if _, err := NewService(nil, domain.NewRegistry()); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for nil store, got %v", err)
	}
	if _, err := NewService(memory.NewStore(), nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for nil registry, got %v", err)
	}
	svc, err := NewService(memory.NewStore(), domain.NewRegistry(), WithLogger(nil), WithTracer(nil), WithMetricsRecorder(nil), WithAuditRecorder(nil), WithClock(nil))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, ok := svc.logger.(noopLogger); !ok {
		t.Fatalf("nil logger should keep noop, got %T", svc.logger)
	}
	if svc.now == nil {
		t.Fatalf("nil clock should keep default")
	}
}

func TestServiceSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	snap, err := svc.Save(ctx, newOrder(t, "order-1"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if snap.TakenAt.IsZero() {
		t.Fatalf("expected snapshot stamp")
	}
	if snap.EntityCount() != 3 {
		t.Fatalf("entity count = %d, want 3", snap.EntityCount())
	}

	agg, err := svc.Load(ctx, "order-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if agg.Name() != "Order" || agg.ID().String() != "order-1" {
		t.Fatalf("unexpected aggregate %s %s", agg.Name(), agg.ID())
	}
	if agg.EntityTypeCount() != 3 {
		t.Fatalf("restored count = %d, want 3", agg.EntityTypeCount())
	}
	record, ok := agg.EntityByKey("buyer")
	if !ok {
		t.Fatalf("buyer missing")
	}
	buyer, ok := record.(*domain.Entity[customer])
	if !ok {
		t.Fatalf("buyer decoded as %T", record)
	}
	if buyer.Data().Name != "Ada" || buyer.ID().String() != "c-1" {
		t.Fatalf("unexpected buyer %+v %s", buyer.Data(), buyer.ID())
	}
	lines, ok := agg.EntityCollectionByKey("lines")
	if !ok || lines.Count() != 2 {
		t.Fatalf("expected two lines, got %v", lines)
	}
	if channel, _ := agg.ExtraInfo("channel"); channel != "web" {
		t.Fatalf("extra channel = %v", channel)
	}
}

func TestServiceSaveRejectsNilAndUnsetID(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	if _, err := svc.Save(ctx, nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for nil aggregate, got %v", err)
	}
	agg, err := domain.NewAggregate(domain.AggregateProps{
		Name:              "Draft",
		Entities:          map[string]domain.Record{},
		EntityCollections: map[string]domain.Collection{},
		Extra:             map[string]any{},
	})
	if err != nil {
		t.Fatalf("new aggregate: %v", err)
	}
	if _, err := svc.Save(ctx, agg); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for unset id, got %v", err)
	}
}

func TestServiceSaveUnassignedSlot(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	agg := newOrder(t, "order-2")
	agg.AddEntity("buyer", (*domain.Entity[customer])(nil))

	snap, err := svc.Save(ctx, agg)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if env := snap.Entities["buyer"]; env.Type != "" {
		t.Fatalf("buyer envelope = %+v", env)
	}
	loaded, err := svc.Load(ctx, "order-2")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got, ok := loaded.EntityByKey("buyer"); !ok || got != nil {
		t.Fatalf("buyer slot = %v, %v", got, ok)
	}
	if loaded.EntityTypeCount() != 3 {
		t.Fatalf("restored count = %d, want 3", loaded.EntityTypeCount())
	}
}

func TestServiceLoadUnknownKind(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	writer, err := NewService(store, testRegistry(t))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := writer.Save(ctx, newOrder(t, "order-1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	reader, err := NewService(store, domain.NewRegistry())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := reader.Load(ctx, "order-1"); !errors.Is(err, domain.ErrUnknownKind) {
		t.Fatalf("expected unknown kind, got %v", err)
	}
}

func TestServiceListAndDelete(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	for _, id := range []string{"b", "a", "c"} {
		if _, err := svc.Save(ctx, newOrder(t, id)); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
	infos, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var ids []string
	for _, info := range infos {
		ids = append(ids, info.ID)
		if info.EntityCount != 3 || info.Name != "Order" {
			t.Fatalf("unexpected summary %+v", info)
		}
	}
	if strings.Join(ids, ",") != "a,b,c" {
		t.Fatalf("list order = %v", ids)
	}

	existed, err := svc.Delete(ctx, "b")
	if err != nil || !existed {
		t.Fatalf("delete b: existed=%v err=%v", existed, err)
	}
	existed, err = svc.Delete(ctx, "b")
	if err != nil || existed {
		t.Fatalf("second delete: existed=%v err=%v", existed, err)
	}
	if _, err := svc.Load(ctx, "b"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestServiceArchiveRoundTrip(t *testing.T) {
	backends := map[string]func() archive.Store{
		"memory": archive.NewMemory,
		"s3":     archive.NewMockS3ForTests,
	}
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc := newTestService(t, WithArchive(open()))
			keys := []string{"k2", "k1"}
			svc.newKey = func() string {
				key := keys[0]
				keys = keys[1:]
				return key
			}

			if _, err := svc.Save(ctx, newOrder(t, "order-1")); err != nil {
				t.Fatalf("save: %v", err)
			}
			first, err := svc.Archive(ctx, "order-1")
			if err != nil {
				t.Fatalf("archive: %v", err)
			}
			if first.Key != "aggregates/order-1/k2.json" {
				t.Fatalf("archive key = %s", first.Key)
			}
			if _, err := svc.Archive(ctx, "order-1"); err != nil {
				t.Fatalf("second archive: %v", err)
			}

			versions, err := svc.ArchivedVersions(ctx, "order-1")
			if err != nil {
				t.Fatalf("archived versions: %v", err)
			}
			if len(versions) != 2 || versions[0].Key != "aggregates/order-1/k1.json" {
				t.Fatalf("unexpected versions %+v", versions)
			}

			if _, err := svc.Delete(ctx, "order-1"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			agg, err := svc.RestoreArchive(ctx, first.Key)
			if err != nil {
				t.Fatalf("restore archive: %v", err)
			}
			if agg.EntityTypeCount() != 3 {
				t.Fatalf("restored count = %d", agg.EntityTypeCount())
			}
			if _, err := svc.Load(ctx, "order-1"); err != nil {
				t.Fatalf("restore should write back to the store: %v", err)
			}
		})
	}
}

func TestServiceArchiveMetadata(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, WithArchive(archive.NewMemory()))
	if _, err := svc.Save(ctx, newOrder(t, "order-1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := svc.Archive(ctx, "order-1")
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if info.ContentType != "application/json" {
		t.Fatalf("content type = %s", info.ContentType)
	}
	want := map[string]string{"aggregate-id": "order-1", "aggregate-name": "Order", "entity-count": "3"}
	for k, v := range want {
		if info.Metadata[k] != v {
			t.Fatalf("metadata %s = %q, want %q", k, info.Metadata[k], v)
		}
	}
}

func TestServiceArchiveErrors(t *testing.T) {
	ctx := context.Background()

	bare := newTestService(t)
	if _, err := bare.Archive(ctx, "x"); !errors.Is(err, ErrArchiveDisabled) {
		t.Fatalf("archive without store: %v", err)
	}
	if _, err := bare.ArchivedVersions(ctx, "x"); !errors.Is(err, ErrArchiveDisabled) {
		t.Fatalf("versions without store: %v", err)
	}
	if _, err := bare.RestoreArchive(ctx, "x"); !errors.Is(err, ErrArchiveDisabled) {
		t.Fatalf("restore without store: %v", err)
	}

	store := archive.NewMemory()
	svc := newTestService(t, WithArchive(store))
	if _, err := svc.Archive(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("archive of missing aggregate: %v", err)
	}
	_, err := svc.RestoreArchive(ctx, "aggregates/none/x.json")
	if !errors.Is(err, domain.ErrNotFound) || !errors.Is(err, archive.ErrNotFound) {
		t.Fatalf("restore of missing key: %v", err)
	}

	if _, err := store.Put(ctx, "aggregates/bad/1.json", strings.NewReader("{"), archive.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := svc.RestoreArchive(ctx, "aggregates/bad/1.json"); err == nil || !strings.Contains(err.Error(), "decode archive") {
		t.Fatalf("expected decode error, got %v", err)
	}

	payload, _ := json.Marshal(domain.AggregateSnapshot{
		ID:       domain.StringID("ghost"),
		Name:     "Ghost",
		Entities: map[string]domain.EntityEnvelope{"x": {Type: "Unknown", Payload: json.RawMessage(`{}`)}},
	})
	if _, err := store.Put(ctx, "aggregates/ghost/1.json", bytes.NewReader(payload), archive.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := svc.RestoreArchive(ctx, "aggregates/ghost/1.json"); !errors.Is(err, domain.ErrUnknownKind) {
		t.Fatalf("expected unknown kind, got %v", err)
	}
	if _, err := svc.Load(ctx, "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("failed restore must not write back, got %v", err)
	}
}

func TestServiceObservability(t *testing.T) {
	ctx := context.Background()
	audit := &captureAuditRecorder{}
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}
	svc := newTestService(t,
		WithAuditRecorder(audit),
		WithMetricsRecorder(metrics),
		WithTracer(tracer),
		WithArchive(archive.NewMemory()),
	)

	if _, err := svc.Save(ctx, newOrder(t, "order-1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := svc.Load(ctx, "order-1"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := svc.Load(ctx, "missing"); err == nil {
		t.Fatalf("expected load error")
	}
	if _, err := svc.List(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}
	info, err := svc.Archive(ctx, "order-1")
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if _, err := svc.ArchivedVersions(ctx, "order-1"); err != nil {
		t.Fatalf("versions: %v", err)
	}
	if _, err := svc.RestoreArchive(ctx, info.Key); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if _, err := svc.Delete(ctx, "order-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	for _, op := range []string{OpSave, OpLoad, OpList, OpArchive, OpArchivedVersions, OpRestoreArchive, OpDelete} {
		if !audit.has(op, AuditStatusSuccess, nil) {
			t.Fatalf("expected success audit for %s", op)
		}
		if !metrics.has(op, true) {
			t.Fatalf("expected success metric for %s", op)
		}
		if !tracer.has(op, true) {
			t.Fatalf("expected success span for %s", op)
		}
	}
	if !audit.has(OpLoad, AuditStatusError, func(e AuditEntry) bool {
		return e.AggregateID == "missing" && strings.Contains(e.Error, "not found")
	}) {
		t.Fatalf("expected error audit for missing load")
	}
	if !metrics.has(OpLoad, false) || !tracer.has(OpLoad, false) {
		t.Fatalf("expected failed load to reach metrics and tracer")
	}
	if len(tracer.started) != len(tracer.ended) {
		t.Fatalf("spans started %d ended %d", len(tracer.started), len(tracer.ended))
	}
	if !audit.has(OpSave, AuditStatusSuccess, func(e AuditEntry) bool { return !e.OccurredAt.IsZero() }) {
		t.Fatalf("expected audit timestamp")
	}
}

func TestServiceLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	svc := newTestService(t, WithLogger(logger))
	ctx := context.Background()

	if _, err := svc.Load(ctx, "missing"); err == nil {
		t.Fatalf("expected load error")
	}
	if _, err := svc.List(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}

	var lines []map[string]any
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var line map[string]any
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			t.Fatalf("decode log line %q: %v", raw, err)
		}
		lines = append(lines, line)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}
	if lines[0]["level"] != "ERROR" || lines[0]["operation"] != OpLoad || lines[0]["aggregate_id"] != "missing" {
		t.Fatalf("unexpected failure log %v", lines[0])
	}
	if lines[1]["level"] != "DEBUG" || lines[1]["operation"] != OpList {
		t.Fatalf("unexpected success log %v", lines[1])
	}
}

func TestServiceCancelledContext(t *testing.T) {
	svc := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.List(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestServiceStoreAccessor(t *testing.T) {
	store := memory.NewStore()
	svc, err := NewService(store, domain.NewRegistry())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if svc.Store() != domain.SnapshotStore(store) {
		t.Fatalf("store accessor mismatch")
	}
}
