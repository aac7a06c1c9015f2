package stage

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/labsync/internal/model"
	"github.com/sells-group/labsync/internal/store"
)

// DefaultSweepLimit caps each pass when the caller passes limit <= 0.
const DefaultSweepLimit = 10

// SweepResult counts what one sweep did.
type SweepResult struct {
	Extracted int `json:"extracted"`
	Designed  int `json:"designed"`
	Failed    int `json:"failed"`
}

// Sweeper picks up work the chain missed: messages never extracted and
// meetings that never got a budget.
type Sweeper struct {
	store      Store
	extraction *ExtractionService
	design     *DesignService
}

// NewSweeper creates a Sweeper.
func NewSweeper(st Store, extraction *ExtractionService, design *DesignService) *Sweeper {
	return &Sweeper{store: st, extraction: extraction, design: design}
}

// ProcessPending designs undesigned meetings, then extracts pending
// messages. Each pass handles up to limit records. Failures are counted and
// logged, never returned; only listing errors are.
func (s *Sweeper) ProcessPending(ctx context.Context, limit int) (*SweepResult, error) {
	if limit <= 0 {
		limit = DefaultSweepLimit
	}
	res := &SweepResult{}

	// Design first so meetings extracted below are left to the chain.
	undesigned, err := s.store.ListMessages(ctx, store.MessageFilter{
		Stage:     model.StageExtraction,
		Status:    model.StatusSucceeded,
		NotStage:  model.StageDesign,
		NotStatus: model.StatusSucceeded,
		Limit:     limit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "stage: list undesigned messages")
	}
	for _, msg := range undesigned {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		meeting, err := s.store.GetMeetingByMessage(ctx, msg.ID)
		if err != nil || meeting == nil {
			continue
		}
		if b, err := s.store.GetBudgetByMeeting(ctx, meeting.ID); err != nil || b != nil {
			continue
		}
		if _, err := s.design.DesignAndSave(ctx, meeting.ID); err != nil {
			res.Failed++
			zap.L().Warn("stage: sweep design failed", zap.String("meeting_id", meeting.ID), zap.Error(err))
			continue
		}
		res.Designed++
	}

	pending, err := s.store.ListMessages(ctx, store.MessageFilter{
		Stage:  model.StageExtraction,
		Status: model.StatusPending,
		Limit:  limit,
	})
	if err != nil {
		return res, eris.Wrap(err, "stage: list pending messages")
	}
	for _, msg := range pending {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if _, err := s.extraction.ExtractAndSave(ctx, msg.ID); err != nil {
			res.Failed++
			zap.L().Warn("stage: sweep extraction failed", zap.String("message_id", msg.ID), zap.Error(err))
			continue
		}
		res.Extracted++
	}

	zap.L().Info("stage: sweep complete",
		zap.Int("extracted", res.Extracted),
		zap.Int("designed", res.Designed),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}
