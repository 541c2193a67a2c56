package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/giygas/openfda-api/data"
)

type mockSource struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
	calls  int
}

func (m *mockSource) Counts(ctx context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.counts, m.err
}

func (m *mockSource) Ping(ctx context.Context) error { return m.err }

func TestStartPerformsInitialRefresh(t *testing.T) {
	source := &mockSource{counts: map[string]int64{"drug": 3}}
	store := data.NewStatsContainer()
	s := NewScheduler(source, store, time.Hour)

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	if diff := cmp.Diff(map[string]int64{"drug": 3}, store.GetCounts()); diff != "" {
		t.Errorf("Counts mismatch (-want +got):\n%s", diff)
	}
	if store.GetLastUpdated().IsZero() {
		t.Error("Expected the snapshot time to be set")
	}
	if next := s.NextRun(); !next.After(time.Now()) {
		t.Errorf("Expected a future next run, got %v", next)
	}
	if store.IsUpdating() {
		t.Error("Update flag should be released")
	}
}

func TestStartFailsWhenSourceFails(t *testing.T) {
	source := &mockSource{err: errors.New("connection refused")}
	s := NewScheduler(source, data.NewStatsContainer(), time.Hour)

	if err := s.Start(); err == nil {
		s.Stop()
		t.Fatal("Expected Start to fail")
	}
	if !s.NextRun().IsZero() {
		t.Error("Expected no scheduled run after a failed start")
	}
}

func TestRefreshKeepsSnapshotOnError(t *testing.T) {
	source := &mockSource{counts: map[string]int64{"drug": 3}}
	store := data.NewStatsContainer()
	s := NewScheduler(source, store, time.Hour)

	if err := s.refresh(); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	source.err = errors.New("boom")
	if err := s.refresh(); err == nil {
		t.Error("Expected refresh error")
	}
	if store.GetCounts()["drug"] != 3 {
		t.Errorf("Previous snapshot was lost: %v", store.GetCounts())
	}
}

func TestRefreshSkipsWhileUpdating(t *testing.T) {
	source := &mockSource{counts: map[string]int64{"drug": 3}}
	store := data.NewStatsContainer()
	s := NewScheduler(source, store, time.Hour)

	store.BeginUpdate()
	if err := s.refresh(); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if source.calls != 0 {
		t.Errorf("Expected no source call while updating, got %d", source.calls)
	}
	if !store.IsUpdating() {
		t.Error("A skipped refresh must not release someone else's update")
	}
}
