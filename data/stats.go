// Package data keeps the table-size snapshot shown by /health and exported
// as metrics. The snapshot is replaced atomically so readers never block on
// a refresh.
package data

import (
	"maps"
	"sync/atomic"
	"time"

	"github.com/giygas/openfda-api/interfaces"
)

var _ interfaces.StatsStore = (*StatsContainer)(nil)

type snapshot struct {
	counts    map[string]int64
	updatedAt time.Time
}

// StatsContainer holds the latest row counts per table
type StatsContainer struct {
	current   atomic.Pointer[snapshot]
	updating  atomic.Bool
	startedAt time.Time
}

// NewStatsContainer returns an empty container started now
func NewStatsContainer() *StatsContainer {
	sc := &StatsContainer{startedAt: time.Now()}
	sc.current.Store(&snapshot{counts: map[string]int64{}})
	return sc
}

// GetCounts returns a copy of the latest counts
func (sc *StatsContainer) GetCounts() map[string]int64 {
	return maps.Clone(sc.current.Load().counts)
}

// GetLastUpdated returns when the counts were last replaced, zero if never
func (sc *StatsContainer) GetLastUpdated() time.Time {
	return sc.current.Load().updatedAt
}

func (sc *StatsContainer) GetServerStartTime() time.Time {
	return sc.startedAt
}

func (sc *StatsContainer) IsUpdating() bool {
	return sc.updating.Load()
}

// UpdateCounts swaps in a new snapshot. A nil map is stored as empty.
func (sc *StatsContainer) UpdateCounts(counts map[string]int64) {
	c := maps.Clone(counts)
	if c == nil {
		c = map[string]int64{}
	}
	sc.current.Store(&snapshot{counts: c, updatedAt: time.Now()})
}

// BeginUpdate returns false when another refresh is in progress
func (sc *StatsContainer) BeginUpdate() bool {
	return sc.updating.CompareAndSwap(false, true)
}

func (sc *StatsContainer) EndUpdate() {
	sc.updating.Store(false)
}
