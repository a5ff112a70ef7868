package store

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	productStoreName = "products"
	cartStoreName    = "carts"
)

var tracer = otel.Tracer("github.com/vyrodovalexey/storefront/internal/store")

// Prometheus metrics.
var (
	storeOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_store_operations_total",
			Help: "Total number of store operations by result",
		},
		[]string{"store", "operation", "result"},
	)

	storePersistDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_store_persist_duration_seconds",
			Help:    "Time spent rewriting a collection file",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"store"},
	)

	storeRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storefront_store_records",
			Help: "Number of records held by a store",
		},
		[]string{"store"},
	)
)

// startOperation opens a span for a store operation.
func startOperation(ctx context.Context, storeName, operation string) (context.Context, trace.Span) {
	return tracer.Start(ctx, storeName+"."+operation,
		trace.WithAttributes(attribute.String("store.name", storeName)),
	)
}

// endOperation records the outcome of a store operation and ends its span.
func endOperation(span trace.Span, storeName, operation string, err error) {
	result := resultLabel(err)
	if err != nil {
		span.RecordError(err)
		if result == "error" {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.SetAttributes(attribute.String("store.result", result))
	span.End()

	storeOperationsTotal.WithLabelValues(storeName, operation, result).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrDuplicateCode):
		return "duplicate"
	default:
		return "error"
	}
}
