package repository

import (
	"context"
	"testing"
	"time"

	"dddcore/internal/infra/persistence/memory"
	"dddcore/pkg/domain"
)

type customer struct {
	Name string `json:"name"`
	Tier int    `json:"tier"`
}

type orderLine struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

var (
	customerKind = domain.MustDefineKind[customer]("Customer")
	lineKind     = domain.MustDefineKind[orderLine]("OrderLine")
)

func testRegistry(t *testing.T) *domain.Registry {
	t.Helper()
	reg := domain.NewRegistry()
	if err := domain.RegisterKind(reg, customerKind); err != nil {
		t.Fatalf("register customer: %v", err)
	}
	if err := domain.RegisterKind(reg, lineKind); err != nil {
		t.Fatalf("register line: %v", err)
	}
	return reg
}

func newOrder(t *testing.T, id string) *domain.Aggregate {
	t.Helper()
	buyer, err := customerKind.New(&customer{Name: "Ada", Tier: 2}, domain.StringID("c-1"))
	if err != nil {
		t.Fatalf("new customer: %v", err)
	}
	first, err := lineKind.New(&orderLine{SKU: "A", Quantity: 1}, domain.NumberID(1))
	if err != nil {
		t.Fatalf("new line: %v", err)
	}
	second, err := lineKind.New(&orderLine{SKU: "B", Quantity: 3}, domain.NumberID(2))
	if err != nil {
		t.Fatalf("new line: %v", err)
	}
	agg, err := domain.NewAggregate(domain.AggregateProps{
		ID:                domain.StringID(id),
		Name:              "Order",
		Entities:          map[string]domain.Record{"buyer": buyer},
		EntityCollections: map[string]domain.Collection{"lines": domain.NewEntities(first, second)},
		Extra:             map[string]any{"channel": "web"},
	})
	if err != nil {
		t.Fatalf("new aggregate: %v", err)
	}
	return agg
}

type fixedClock struct {
	at time.Time
}

func (c *fixedClock) Now() time.Time { return c.at }

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	clock := &fixedClock{at: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	svc, err := NewService(memory.NewStore(), testRegistry(t), opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

type captureAuditRecorder struct {
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.entries = append(c.entries, entry)
}

func (c *captureAuditRecorder) has(op string, status AuditStatus, predicate func(AuditEntry) bool) bool {
	for _, entry := range c.entries {
		if entry.Operation == op && entry.Status == status {
			if predicate == nil || predicate(entry) {
				return true
			}
		}
	}
	return false
}

type metricsCall struct {
	op       string
	success  bool
	duration time.Duration
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success, duration: duration})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type spanRecord struct {
	op  string
	err error
}

type captureTracer struct {
	started []string
	ended   []spanRecord
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	c.started = append(c.started, op)
	return ctx, &captureSpan{tracer: c, op: op}
}

func (c *captureTracer) has(op string, success bool) bool {
	for _, record := range c.ended {
		if record.op == op && (record.err == nil) == success {
			return true
		}
	}
	return false
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}
