// Package interfaces defines the seams between the search pipeline, the
// stats refresh and the HTTP layer so each side can be tested with mocks.
package interfaces

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/giygas/openfda-api/query"
	"github.com/giygas/openfda-api/registry"
)

// QueryCompiler turns raw query parameters into a validated query
type QueryCompiler interface {
	Compile(req query.Request) (*query.Compiled, error)
	Registry() *registry.Registry
}

// QueryExecutor runs a compiled query and returns nested rows
type QueryExecutor interface {
	Query(ctx context.Context, c *query.Compiled) ([]map[string]any, error)
}

// RowMapper flattens nested rows into tabular rows
type RowMapper interface {
	Map(entity string, rows []map[string]any) []map[string]any
	Columns(entity string, rows []map[string]any) []string
}

// StatsSource reads table sizes and connectivity from the database
type StatsSource interface {
	Counts(ctx context.Context) (map[string]int64, error)
	Ping(ctx context.Context) error
}

// StatsStore holds the last table-size snapshot. Updates are atomic swaps;
// BeginUpdate/EndUpdate guard against overlapping refreshes.
type StatsStore interface {
	GetCounts() map[string]int64
	GetLastUpdated() time.Time
	GetServerStartTime() time.Time
	IsUpdating() bool
	UpdateCounts(counts map[string]int64)
	BeginUpdate() bool
	EndUpdate()
}

// Scheduler manages the periodic stats refresh
type Scheduler interface {
	Start() error
	Stop()
	NextRun() time.Time
}

// HealthChecker reports service health for the /health endpoint
type HealthChecker interface {
	// HealthCheck returns a status word, details and the HTTP status to send
	HealthCheck(ctx context.Context) (status string, details map[string]any, httpStatus int)
}

// ParamValidator rejects malformed query strings before compilation
type ParamValidator interface {
	ValidateParams(values url.Values) error
}

// HTTPHandler is the set of endpoints served by the API
type HTTPHandler interface {
	SearchDrugs(w http.ResponseWriter, r *http.Request)
	DescribeSchema(w http.ResponseWriter, r *http.Request)
	HealthCheck(w http.ResponseWriter, r *http.Request)
}
