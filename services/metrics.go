package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("socialfeed.services")

var (
	followOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "socialfeed",
		Subsystem: "follow",
		Name:      "operations_total",
		Help:      "Follow graph mutations by operation and outcome",
	}, []string{"op", "outcome"})

	bootstrapEdgesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "socialfeed",
		Subsystem: "follow",
		Name:      "bootstrap_edges_total",
		Help:      "Directed follow edges created by the auto-friend bootstrap",
	})

	adjacencyCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "socialfeed",
		Subsystem: "follow",
		Name:      "adjacency_cache_total",
		Help:      "Adjacency cache lookups by result (hit, miss, error, discarded)",
	}, []string{"result"})

	feedDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "socialfeed",
		Subsystem: "feed",
		Name:      "compose_duration_seconds",
		Help:      "Time spent composing a feed page",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})
)

// outcome labels an operation result for metrics.
func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// endSpan records err on span before ending it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
