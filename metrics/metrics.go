// Package metrics holds the Prometheus collectors of the service. HTTP
// traffic is measured by the Metrics middleware; query compilation and
// execution are recorded by the search handler and table sizes by the stats
// scheduler.
//
// All collectors are registered with the default registry at init.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Number of client token buckets currently tracked",
		},
	)

	QueryCompileRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_compile_rejections_total",
			Help: "Search requests rejected while compiling the query parameters",
		},
		[]string{"item", "reason"},
	)

	QueryWarnings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_warnings_total",
			Help: "Ignored query parameters (unknown fields, stray operators)",
		},
		[]string{"item"},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "query_duration_seconds",
			Help:    "Store query latency per item",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"item"},
	)

	QueryRowsReturned = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "query_rows_returned",
			Help:    "Flat rows returned per search",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
		[]string{"item"},
	)

	StoreTableRows = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "store_table_rows",
			Help: "Row count per table at the last stats refresh",
		},
		[]string{"table"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestTotals,
		HTTPRequestDuration,
		HTTPRequestInFlight,
		RateLimiterBucketsTotal,
		QueryCompileRejections,
		QueryWarnings,
		QueryDuration,
		QueryRowsReturned,
		StoreTableRows,
	)
}

// ObserveQuery records one executed search
func ObserveQuery(item string, elapsed time.Duration, rows int) {
	QueryDuration.WithLabelValues(item).Observe(elapsed.Seconds())
	QueryRowsReturned.WithLabelValues(item).Observe(float64(rows))
}

// SetTableRows publishes the row counts of a stats refresh
func SetTableRows(counts map[string]int64) {
	for table, n := range counts {
		StoreTableRows.WithLabelValues(table).Set(float64(n))
	}
}
