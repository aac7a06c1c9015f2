package chain

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/labsync/internal/model"
	"github.com/sells-group/labsync/internal/resilience"
)

// ReplayStore is the dead-letter surface the Replayer needs.
type ReplayStore interface {
	DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error)
	IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error
	RemoveDLQ(ctx context.Context, id string) error
}

// ReplayResult summarizes one replay pass.
type ReplayResult struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Replayer re-runs due dead-letter entries on operator request. Nothing
// replays automatically.
type Replayer struct {
	store    ReplayStore
	handlers map[model.Stage]Handler
	now      func() time.Time
}

// NewReplayer creates a Replayer dispatching on handlers.
func NewReplayer(store ReplayStore, handlers map[model.Stage]Handler) *Replayer {
	return &Replayer{
		store:    store,
		handlers: handlers,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Replay runs every due entry matching filter once. A success removes the
// entry; a failure bumps its retry count and pushes next_retry_at back.
func (r *Replayer) Replay(ctx context.Context, filter resilience.DLQFilter) (*ReplayResult, error) {
	entries, err := r.store.DequeueDLQ(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "chain: dequeue dlq")
	}

	res := &ReplayResult{}
	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		res.Attempted++
		log := zap.L().With(
			zap.String("dlq_id", e.ID),
			zap.String("source_id", e.SourceID),
			zap.String("stage", string(e.Stage)),
			zap.Int("retry_count", e.RetryCount),
		)

		runErr := r.run(ctx, e)
		if runErr == nil {
			if err := r.store.RemoveDLQ(ctx, e.ID); err != nil {
				return res, eris.Wrapf(err, "chain: remove dlq %s", e.ID)
			}
			res.Succeeded++
			log.Info("chain: replay succeeded")
			continue
		}

		res.Failed++
		next := resilience.NextRetryAt(r.now(), e.RetryCount+1)
		log.Warn("chain: replay failed", zap.Time("next_retry_at", next), zap.Error(runErr))
		if err := r.store.IncrementDLQRetry(ctx, e.ID, next, runErr.Error()); err != nil {
			return res, eris.Wrapf(err, "chain: increment dlq retry %s", e.ID)
		}
	}
	return res, nil
}

func (r *Replayer) run(ctx context.Context, e resilience.DLQEntry) error {
	h, ok := r.handlers[e.Stage]
	if !ok {
		return eris.Errorf("chain: no handler for stage %q", e.Stage)
	}
	return h(ctx, e.SourceID)
}
