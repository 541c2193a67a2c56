// Package health reports service health from database reachability and the
// age of the stats snapshot.
package health

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/giygas/openfda-api/interfaces"
)

const pingTimeout = 2 * time.Second

// HealthCheckerImpl implements interfaces.HealthChecker
type HealthCheckerImpl struct {
	source    interfaces.StatsSource
	store     interfaces.StatsStore
	scheduler interfaces.Scheduler
	interval  time.Duration
}

var _ interfaces.HealthChecker = (*HealthCheckerImpl)(nil)

// NewHealthChecker returns a checker that considers stats stale after three
// missed refreshes. scheduler may be nil.
func NewHealthChecker(source interfaces.StatsSource, store interfaces.StatsStore, scheduler interfaces.Scheduler, interval time.Duration) *HealthCheckerImpl {
	return &HealthCheckerImpl{source: source, store: store, scheduler: scheduler, interval: interval}
}

// HealthCheck returns the status word, response details and HTTP status
func (h *HealthCheckerImpl) HealthCheck(ctx context.Context) (status string, details map[string]any, httpStatus int) {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	pingErr := h.source.Ping(ctx)

	lastUpdate := h.store.GetLastUpdated()
	counts := h.store.GetCounts()
	dataAge := time.Since(lastUpdate)

	switch {
	case pingErr != nil:
		status, httpStatus = "unhealthy", http.StatusServiceUnavailable
	case lastUpdate.IsZero():
		status, httpStatus = "starting", http.StatusServiceUnavailable
	case dataAge > 3*h.interval:
		status, httpStatus = "degraded", http.StatusServiceUnavailable
	default:
		status, httpStatus = "healthy", http.StatusOK
	}

	var total int64
	for _, n := range counts {
		total += n
	}

	details = map[string]any{
		"database":    "ok",
		"tables":      counts,
		"total_rows":  total,
		"is_updating": h.store.IsUpdating(),
		"uptime":      FormatUptime(time.Since(h.store.GetServerStartTime())),
	}
	if pingErr != nil {
		details["database"] = pingErr.Error()
	}
	if !lastUpdate.IsZero() {
		details["last_update"] = lastUpdate.Format(time.RFC3339)
		details["data_age_minutes"] = math.Round(dataAge.Minutes()*10) / 10
	}
	if h.scheduler != nil {
		if next := h.scheduler.NextRun(); !next.IsZero() {
			details["next_refresh"] = next.Format(time.RFC3339)
		}
	}

	return status, details, httpStatus
}

// FormatUptime renders d as "1d 2h 3m 4s", dropping leading zero units
func FormatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", seconds))

	return strings.Join(parts, " ")
}
