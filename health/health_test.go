package health

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

type mockSource struct{ err error }

func (m mockSource) Counts(ctx context.Context) (map[string]int64, error) { return nil, m.err }
func (m mockSource) Ping(ctx context.Context) error                        { return m.err }

type mockStore struct {
	counts     map[string]int64
	lastUpdate time.Time
	updating   bool
}

func (m *mockStore) GetCounts() map[string]int64          { return m.counts }
func (m *mockStore) GetLastUpdated() time.Time            { return m.lastUpdate }
func (m *mockStore) GetServerStartTime() time.Time        { return time.Now().Add(-90 * time.Second) }
func (m *mockStore) IsUpdating() bool                     { return m.updating }
func (m *mockStore) UpdateCounts(counts map[string]int64) { m.counts = counts }
func (m *mockStore) BeginUpdate() bool                    { return true }
func (m *mockStore) EndUpdate()                           {}

type mockScheduler struct{ next time.Time }

func (m mockScheduler) Start() error       { return nil }
func (m mockScheduler) Stop()              {}
func (m mockScheduler) NextRun() time.Time { return m.next }

func TestHealthCheckStatuses(t *testing.T) {
	interval := 10 * time.Minute

	tests := []struct {
		name       string
		pingErr    error
		lastUpdate time.Time
		wantStatus string
		wantHTTP   int
	}{
		{"healthy", nil, time.Now().Add(-time.Minute), "healthy", http.StatusOK},
		{"database down", errors.New("connection refused"), time.Now(), "unhealthy", http.StatusServiceUnavailable},
		{"never refreshed", nil, time.Time{}, "starting", http.StatusServiceUnavailable},
		{"stale stats", nil, time.Now().Add(-31 * time.Minute), "degraded", http.StatusServiceUnavailable},
		{"within three intervals", nil, time.Now().Add(-29 * time.Minute), "healthy", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{counts: map[string]int64{"drug": 3, "report": 2}, lastUpdate: tt.lastUpdate}
			h := NewHealthChecker(mockSource{err: tt.pingErr}, store, nil, interval)

			status, details, code := h.HealthCheck(context.Background())
			if status != tt.wantStatus || code != tt.wantHTTP {
				t.Errorf("Expected %s/%d, got %s/%d", tt.wantStatus, tt.wantHTTP, status, code)
			}
			if details["total_rows"] != int64(5) {
				t.Errorf("Expected total_rows 5, got %v", details["total_rows"])
			}
			if tt.pingErr != nil && details["database"] != tt.pingErr.Error() {
				t.Errorf("Expected database error in details, got %v", details["database"])
			}
			if _, ok := details["last_update"]; ok == tt.lastUpdate.IsZero() {
				t.Errorf("Unexpected last_update presence: %v", details)
			}
		})
	}
}

func TestHealthCheckNextRefresh(t *testing.T) {
	next := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	store := &mockStore{lastUpdate: time.Now()}
	h := NewHealthChecker(mockSource{}, store, mockScheduler{next: next}, time.Minute)

	_, details, _ := h.HealthCheck(context.Background())
	if details["next_refresh"] != next.Format(time.RFC3339) {
		t.Errorf("Expected next_refresh %s, got %v", next.Format(time.RFC3339), details["next_refresh"])
	}
	if details["uptime"] != "1m 30s" {
		t.Errorf("Expected uptime 1m 30s, got %v", details["uptime"])
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{5 * time.Second, "5s"},
		{time.Hour, "1h 0m 0s"},
		{26*time.Hour + 3*time.Minute + 4*time.Second, "1d 2h 3m 4s"},
	}
	for _, tt := range tests {
		if got := FormatUptime(tt.in); got != tt.want {
			t.Errorf("FormatUptime(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
