// Package metrics holds the process-wide Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StatusOK          = "ok"
	StatusClientError = "client_error"
	StatusError       = "error"

	CacheHit  = "hit"
	CacheMiss = "miss"
)

var (
	// QueriesBuilt counts list and search query builds.
	QueriesBuilt = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aipq_queries_built_total",
			Help: "Total number of list and search queries built",
		},
		[]string{"kind", "status"},
	)
	// PageTokens counts page token encodes and decodes per strategy.
	PageTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aipq_page_tokens_total",
			Help: "Total number of page token operations",
		},
		[]string{"strategy", "operation", "status"},
	)
	// SQLCompiles counts filter to SQL compilations per dialect.
	SQLCompiles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aipq_sql_compile_total",
			Help: "Total number of SQL compilations",
		},
		[]string{"dialect", "status"},
	)
	// CacheLookups counts in-memory cache lookups per cache.
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aipq_cache_lookups_total",
			Help: "Total number of cache lookups by result",
		},
		[]string{"cache", "result"},
	)
)

// Status maps an error to a status label. clientFault reports whether the
// caller caused it.
func Status(err error, clientFault bool) string {
	switch {
	case err == nil:
		return StatusOK
	case clientFault:
		return StatusClientError
	default:
		return StatusError
	}
}
