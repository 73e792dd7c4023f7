// Package metrics provides Prometheus metrics for the search engine calls.
package metrics

import (
	"context"
	"errors"
	"time"

	"bookcatalogue/internal/book"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

var (
	// OperationsTotal counts engine operations by outcome.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalogue",
			Name:      "engine_operations_total",
			Help:      "Total number of search engine operations",
		},
		[]string{"op", "outcome"},
	)

	// OperationDuration measures engine operation latency.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "catalogue",
			Name:      "engine_operation_duration_seconds",
			Help:      "Duration of search engine operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)

// RecordOperation records one engine call.
func RecordOperation(op, outcome string, duration time.Duration) {
	OperationsTotal.WithLabelValues(op, outcome).Inc()
	OperationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, book.ErrNotFound):
		return OutcomeNotFound
	default:
		return OutcomeError
	}
}

// Engine decorates a book.Engine with operation metrics.
type Engine struct {
	next book.Engine
}

func NewEngine(next book.Engine) *Engine {
	return &Engine{next: next}
}

func (e *Engine) observe(op string, start time.Time, err error) {
	RecordOperation(op, outcomeOf(err), time.Since(start))
}

func (e *Engine) Index(ctx context.Context, index, id string, doc book.Book) error {
	start := time.Now()
	err := e.next.Index(ctx, index, id, doc)
	e.observe("index", start, err)
	return err
}

func (e *Engine) Get(ctx context.Context, index, id string) (book.Book, bool, error) {
	start := time.Now()
	b, found, err := e.next.Get(ctx, index, id)
	outcome := outcomeOf(err)
	if err == nil && !found {
		outcome = OutcomeNotFound
	}
	RecordOperation("get", outcome, time.Since(start))
	return b, found, err
}

func (e *Engine) UpdateMerge(ctx context.Context, index, id string, doc book.Book) error {
	start := time.Now()
	err := e.next.UpdateMerge(ctx, index, id, doc)
	e.observe("update", start, err)
	return err
}

func (e *Engine) Delete(ctx context.Context, index, id string) error {
	start := time.Now()
	err := e.next.Delete(ctx, index, id)
	e.observe("delete", start, err)
	return err
}

func (e *Engine) Search(ctx context.Context, index string, plan book.Plan) ([]book.Book, error) {
	start := time.Now()
	books, err := e.next.Search(ctx, index, plan)
	e.observe("search", start, err)
	return books, err
}

func (e *Engine) CreateIndex(ctx context.Context, index string) error {
	start := time.Now()
	err := e.next.CreateIndex(ctx, index)
	e.observe("create_index", start, err)
	return err
}

// Ping forwards to the wrapped engine when it can report readiness.
func (e *Engine) Ping(ctx context.Context) error {
	if p, ok := e.next.(book.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
