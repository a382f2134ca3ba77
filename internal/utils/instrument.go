package utils

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dash_rows_total",
		Help: "Tabular rows read, by source and outcome (mapped, dropped).",
	}, []string{"source", "outcome"})

	InsightsRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dash_insights_requests_total",
		Help: "Insights API page requests by outcome.",
	}, []string{"outcome"})

	InsightsEntries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dash_insights_entries_total",
		Help: "Insights entries converted to records.",
	})

	MergeRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dash_merge_rows_total",
		Help: "Merge outcomes per operation (inserted, updated, discarded).",
	}, []string{"op", "outcome"})

	OpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dash_operation_seconds",
		Help:    "Pipeline operation latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op", "result"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dash_http_requests_total",
		Help: "HTTP requests by method and status code.",
	}, []string{"method", "code"})
)

// ObserveOp records how long op took; call it deferred with a pointer to the
// operation's named error.
func ObserveOp(op string, start time.Time, err *error) {
	result := "ok"
	if err != nil && *err != nil {
		result = "error"
	}
	OpDuration.WithLabelValues(op, result).Observe(time.Since(start).Seconds())
}
