// Package monitoring summarizes pipeline health and raises alerts.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/labsync/internal/model"
	"github.com/sells-group/labsync/internal/store"
)

// Snapshot holds a point-in-time view of the pipeline.
type Snapshot struct {
	Stages       store.StageCounts       `json:"stages"`
	FailureRates map[model.Stage]float64 `json:"failure_rates"`
	DLQDepth     int                     `json:"dlq_depth"`
	Allocations  store.AllocationTotals  `json:"allocations"`
	CollectedAt  time.Time               `json:"collected_at"`
}

// Finished is the number of messages whose stage succeeded or failed.
func (s *Snapshot) Finished(stage model.Stage) int {
	c := s.Stages[stage]
	return c[model.StatusSucceeded] + c[model.StatusFailed]
}

// Source is the store subset the collector reads.
type Source interface {
	CountStageStatuses(ctx context.Context) (store.StageCounts, error)
	CountDLQ(ctx context.Context) (int, error)
	SumAllocations(ctx context.Context) (*store.AllocationTotals, error)
}

// Collector gathers snapshots from the store.
type Collector struct {
	src Source
}

// NewCollector creates a new metrics collector.
func NewCollector(src Source) *Collector {
	return &Collector{src: src}
}

// Collect returns stage counts, DLQ depth, and allocation totals.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	counts, err := c.src.CountStageStatuses(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count stage statuses")
	}
	depth, err := c.src.CountDLQ(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count dlq")
	}
	totals, err := c.src.SumAllocations(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: sum allocations")
	}

	snap := &Snapshot{
		Stages:       counts,
		FailureRates: make(map[model.Stage]float64, len(model.Stages)),
		DLQDepth:     depth,
		CollectedAt:  time.Now().UTC(),
	}
	if totals != nil {
		snap.Allocations = *totals
	}
	for _, s := range model.Stages {
		if finished := snap.Finished(s); finished > 0 {
			snap.FailureRates[s] = float64(counts[s][model.StatusFailed]) / float64(finished)
		} else {
			snap.FailureRates[s] = 0
		}
	}
	return snap, nil
}
