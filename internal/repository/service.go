// Package repository persists domain aggregates as snapshots and archives
// point-in-time copies of them. Every operation is timed, traced, audited and
// logged on failure.
package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"

	"dddcore/internal/archive"
	"dddcore/pkg/domain"
)

// ErrArchiveDisabled is returned by archive operations when the service was
// built without an archive store.
var ErrArchiveDisabled = errors.New("repository: archive store not configured")

// Operation names reported to metrics, traces and audit entries.
const (
	OpSave             = "save"
	OpLoad             = "load"
	OpDelete           = "delete"
	OpList             = "list"
	OpArchive          = "archive"
	OpArchivedVersions = "archived_versions"
	OpRestoreArchive   = "restore_archive"
)

const archivePrefix = "aggregates/"

// Service saves and restores aggregates through a snapshot store and an
// optional archive.
type Service struct {
	store    domain.SnapshotStore
	registry *domain.Registry
	archive  archive.Store
	logger   Logger
	metrics  MetricsRecorder
	tracer   Tracer
	audit    AuditRecorder
	now      func() time.Time
	newKey   func() string
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the logger; nil keeps the noop logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used for snapshot stamps and audits.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMetricsRecorder sets the metrics recorder.
func WithMetricsRecorder(rec MetricsRecorder) Option {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithAuditRecorder sets the audit recorder.
func WithAuditRecorder(rec AuditRecorder) Option {
	return func(s *Service) {
		if rec != nil {
			s.audit = rec
		}
	}
}

// WithArchive enables Archive, ArchivedVersions and RestoreArchive.
func WithArchive(store archive.Store) Option {
	return func(s *Service) { s.archive = store }
}

// NewService constructs a service over store; registry decodes entity types
// when aggregates are loaded.
func NewService(store domain.SnapshotStore, registry *domain.Registry, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: snapshot store is required", domain.ErrInvalidArgument)
	}
	if registry == nil {
		return nil, fmt.Errorf("%w: registry is required", domain.ErrInvalidArgument)
	}
	s := &Service{
		store:    store,
		registry: registry,
		logger:   noopLogger{},
		metrics:  noopMetricsRecorder{},
		tracer:   noopTracer{},
		audit:    noopAuditRecorder{},
		now:      func() time.Time { return time.Now().UTC() },
		newKey:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Store returns the underlying snapshot store.
func (s *Service) Store() domain.SnapshotStore { return s.store }

// Close releases the snapshot store.
func (s *Service) Close() error { return s.store.Close() }

// Save snapshots agg and upserts it under its ID.
func (s *Service) Save(ctx context.Context, agg *domain.Aggregate) (domain.AggregateSnapshot, error) {
	if agg == nil {
		return domain.AggregateSnapshot{}, fmt.Errorf("%w: aggregate is required", domain.ErrInvalidArgument)
	}
	var snap domain.AggregateSnapshot
	err := s.run(ctx, OpSave, agg.ID().String(), func(ctx context.Context) error {
		var err error
		if snap, err = agg.Snapshot(); err != nil {
			return err
		}
		snap.TakenAt = s.now()
		return s.store.Save(ctx, snap)
	})
	if err != nil {
		return domain.AggregateSnapshot{}, err
	}
	return snap, nil
}

// Load restores the aggregate stored under id.
func (s *Service) Load(ctx context.Context, id string) (*domain.Aggregate, error) {
	var agg *domain.Aggregate
	err := s.run(ctx, OpLoad, id, func(ctx context.Context) error {
		snap, err := s.store.Load(ctx, id)
		if err != nil {
			return err
		}
		agg, err = domain.RestoreAggregate(snap, s.registry)
		return err
	})
	return agg, err
}

// Delete removes the snapshot stored under id, reporting whether it existed.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	var existed bool
	err := s.run(ctx, OpDelete, id, func(ctx context.Context) error {
		var err error
		existed, err = s.store.Delete(ctx, id)
		return err
	})
	return existed, err
}

// List returns snapshot summaries ordered by ID.
func (s *Service) List(ctx context.Context) ([]domain.SnapshotInfo, error) {
	var infos []domain.SnapshotInfo
	err := s.run(ctx, OpList, "", func(ctx context.Context) error {
		var err error
		infos, err = s.store.List(ctx)
		return err
	})
	return infos, err
}

// Archive copies the stored snapshot of id into the archive under
// aggregates/<id>/<uuid>.json.
func (s *Service) Archive(ctx context.Context, id string) (archive.Info, error) {
	var info archive.Info
	err := s.run(ctx, OpArchive, id, func(ctx context.Context) error {
		if s.archive == nil {
			return ErrArchiveDisabled
		}
		snap, err := s.store.Load(ctx, id)
		if err != nil {
			return err
		}
		payload, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("encode snapshot %s: %w", id, err)
		}
		key := archivePrefix + id + "/" + s.newKey() + ".json"
		info, err = s.archive.Put(ctx, key, bytes.NewReader(payload), archive.PutOptions{
			ContentType: "application/json",
			Metadata: map[string]string{
				"aggregate-id":   id,
				"aggregate-name": snap.Name,
				"entity-count":   strconv.Itoa(snap.EntityCount()),
			},
		})
		return err
	})
	return info, err
}

// ArchivedVersions lists the archived copies of id ordered by key.
func (s *Service) ArchivedVersions(ctx context.Context, id string) ([]archive.Info, error) {
	var infos []archive.Info
	err := s.run(ctx, OpArchivedVersions, id, func(ctx context.Context) error {
		if s.archive == nil {
			return ErrArchiveDisabled
		}
		var err error
		infos, err = s.archive.List(ctx, archivePrefix+id+"/")
		return err
	})
	return infos, err
}

// RestoreArchive reads the archived snapshot at key, writes it back to the
// snapshot store and returns the restored aggregate.
func (s *Service) RestoreArchive(ctx context.Context, key string) (*domain.Aggregate, error) {
	var agg *domain.Aggregate
	err := s.run(ctx, OpRestoreArchive, key, func(ctx context.Context) error {
		if s.archive == nil {
			return ErrArchiveDisabled
		}
		_, rc, err := s.archive.Get(ctx, key)
		if errors.Is(err, archive.ErrNotFound) {
			return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
		}
		if err != nil {
			return err
		}
		defer func() { _ = rc.Close() }()
		raw, err := io.ReadAll(rc)
		if err != nil {
			return fmt.Errorf("read archive %s: %w", key, err)
		}
		var snap domain.AggregateSnapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return fmt.Errorf("decode archive %s: %w", key, err)
		}
		if agg, err = domain.RestoreAggregate(snap, s.registry); err != nil {
			return err
		}
		return s.store.Save(ctx, snap)
	})
	if err != nil {
		return nil, err
	}
	return agg, nil
}

// run wraps fn with tracing, metrics, audit and failure logging.
func (s *Service) run(ctx context.Context, op, aggregateID string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, op)
	started := s.now()
	err := fn(ctx)
	duration := s.now().Sub(started)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)

	entry := AuditEntry{
		Operation:   op,
		AggregateID: aggregateID,
		Status:      AuditStatusSuccess,
		Duration:    duration,
		OccurredAt:  s.now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
		s.logger.Error("repository operation failed", "operation", op, "aggregate_id", aggregateID, "error", err)
	} else {
		s.logger.Debug("repository operation completed", "operation", op, "aggregate_id", aggregateID, "duration", duration)
	}
	s.audit.Record(ctx, entry)
	return err
}
