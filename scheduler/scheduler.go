// Package scheduler refreshes the table statistics on a fixed interval with
// gocron and publishes them to the stats container and Prometheus.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/giygas/openfda-api/interfaces"
	"github.com/giygas/openfda-api/logging"
	"github.com/giygas/openfda-api/metrics"
)

var _ interfaces.Scheduler = (*Scheduler)(nil)

const refreshTimeout = 30 * time.Second

// Scheduler refreshes stats from a StatsSource into a StatsStore
type Scheduler struct {
	source    interfaces.StatsSource
	store     interfaces.StatsStore
	interval  time.Duration
	scheduler *gocron.Scheduler

	mu  sync.Mutex
	job *gocron.Job
}

// NewScheduler creates a scheduler refreshing every interval
func NewScheduler(source interfaces.StatsSource, store interfaces.StatsStore, interval time.Duration) *Scheduler {
	return &Scheduler{
		source:    source,
		store:     store,
		interval:  interval,
		scheduler: gocron.NewScheduler(time.Local),
	}
}

// Start performs a first refresh, then schedules the next ones. A failed
// first refresh aborts the start since the database is unreachable.
func (s *Scheduler) Start() error {
	if err := s.refresh(); err != nil {
		logging.Error("Failed to perform initial stats refresh", "error", err)
		return fmt.Errorf("initial stats refresh failed: %w", err)
	}

	job, err := s.scheduler.Every(s.interval).SingletonMode().WaitForSchedule().Do(func() {
		if err := s.refresh(); err != nil {
			logging.Error("Failed to refresh stats", "error", err)
		}
	})
	if err != nil {
		logging.Error("Failed to schedule stats refresh", "error", err)
		return fmt.Errorf("failed to schedule stats refresh: %w", err)
	}

	s.mu.Lock()
	s.job = job
	s.mu.Unlock()

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// NextRun returns the time of the next scheduled refresh, zero before Start
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		return time.Time{}
	}
	return s.job.NextRun()
}

// refresh reads fresh counts and swaps them in
func (s *Scheduler) refresh() error {
	if !s.store.BeginUpdate() {
		logging.Info("Stats refresh already in progress, skipping...")
		return nil
	}
	defer s.store.EndUpdate()

	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	start := time.Now()
	counts, err := s.source.Counts(ctx)
	if err != nil {
		return fmt.Errorf("failed to count rows: %w", err)
	}

	s.store.UpdateCounts(counts)
	metrics.SetTableRows(counts)

	var total int64
	for _, n := range counts {
		total += n
	}
	logging.Debug("Stats refresh completed", "duration", time.Since(start).String(), "tables", len(counts), "rows", total)
	return nil
}
