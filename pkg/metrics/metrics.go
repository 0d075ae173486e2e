// Package metrics registers the server's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts handled HTTP requests by method, route pattern
	// and status code.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "federation",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Handled HTTP requests.",
	}, []string{"method", "route", "status"})

	// HTTPDuration observes request latency by route pattern.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "federation",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// CacheHits counts cache lookups that returned a value, by key kind.
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "federation",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Cache lookups that hit.",
	}, []string{"kind"})

	// CacheMisses counts cache lookups that fell through to the database.
	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "federation",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Cache lookups that missed.",
	}, []string{"kind"})

	// CacheErrors counts cache operations that failed and were degraded
	// to a miss.
	CacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "federation",
		Subsystem: "cache",
		Name:      "errors_total",
		Help:      "Cache operations that failed.",
	}, []string{"kind"})

	// AuditEntriesWritten counts audit log entries by type.
	AuditEntriesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "federation",
		Subsystem: "audit",
		Name:      "entries_total",
		Help:      "Audit log entries written.",
	}, []string{"type"})
)
