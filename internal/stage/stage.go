// Package stage runs the extraction and budget design stages against stored
// records and tracks their per-message status.
package stage

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/labsync/internal/chain"
	"github.com/sells-group/labsync/internal/model"
	"github.com/sells-group/labsync/internal/store"
)

var (
	// ErrNotFound means the source record of a stage does not exist. It is
	// terminal and never retried.
	ErrNotFound = eris.New("stage: not found")
	// ErrInvalidInput rejects caller-supplied values.
	ErrInvalidInput = eris.New("stage: invalid input")
)

// Generator turns a prompt into raw model text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Enqueuer schedules the next stage without waiting for it.
type Enqueuer interface {
	Enqueue(ctx context.Context, t chain.Task) error
}

// Store is the persistence the stages need. Reads return (nil, nil) when a
// record is absent.
type Store interface {
	GetMessage(ctx context.Context, id string) (*model.Message, error)
	ListMessages(ctx context.Context, filter store.MessageFilter) ([]model.Message, error)
	UpdateStageStatus(ctx context.Context, id string, stage model.Stage, status model.StageStatus) error

	GetMeeting(ctx context.Context, id string) (*model.Meeting, error)
	GetMeetingByMessage(ctx context.Context, messageID string) (*model.Meeting, error)
	UpsertMeeting(ctx context.Context, m model.Meeting) (*model.Meeting, error)

	GetBudget(ctx context.Context, id string) (*model.Budget, error)
	GetBudgetByMeeting(ctx context.Context, meetingID string) (*model.Budget, error)
	UpsertBudget(ctx context.Context, b model.Budget) (*model.Budget, error)

	CreateAllocation(ctx context.Context, a model.Allocation) (*model.Allocation, error)
	GetAllocation(ctx context.Context, id string) (*model.Allocation, error)
	ListAllocations(ctx context.Context, budgetID string) ([]model.Allocation, error)
	UpdateAllocationSpent(ctx context.Context, id string, spent float64) (*model.Allocation, error)
}

// setStatus persists a status change. A failed write is logged and returned.
func setStatus(ctx context.Context, st Store, messageID string, stage model.Stage, status model.StageStatus) error {
	if err := st.UpdateStageStatus(ctx, messageID, stage, status); err != nil {
		zap.L().Error("stage: status write failed",
			zap.String("message_id", messageID),
			zap.String("stage", string(stage)),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return eris.Wrapf(err, "stage: set %s %s", stage, status)
	}
	return nil
}
