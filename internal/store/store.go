package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/labsync/internal/model"
	"github.com/sells-group/labsync/internal/resilience"
)

// ErrNotFound is wrapped by updates that target a missing record. Gets
// return (nil, nil) instead.
var ErrNotFound = eris.New("store: not found")

// MessageFilter specifies criteria for listing messages. NotStage and
// NotStatus exclude messages whose NotStage status equals NotStatus.
type MessageFilter struct {
	Stage     model.Stage       `json:"stage,omitempty"`
	Status    model.StageStatus `json:"status,omitempty"`
	NotStage  model.Stage       `json:"not_stage,omitempty"`
	NotStatus model.StageStatus `json:"not_status,omitempty"`
	Limit     int               `json:"limit,omitempty"`
	Offset    int               `json:"offset,omitempty"`
}

// ListFilter pages through meetings and budgets, newest first.
type ListFilter struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// AllocationTotals sums every allocation.
type AllocationTotals struct {
	Count     int     `json:"count"`
	Allocated float64 `json:"allocated"`
	Spent     float64 `json:"spent"`
}

// StageCounts is the number of messages per stage and status.
type StageCounts map[model.Stage]map[model.StageStatus]int

// Store defines the persistence interface for the meeting pipeline. Every
// write is atomic per record.
type Store interface {
	// Messages
	UpsertMessage(ctx context.Context, msg model.Message) (*model.Message, bool, error)
	GetMessage(ctx context.Context, id string) (*model.Message, error)
	GetMessageByExternalID(ctx context.Context, messageID string) (*model.Message, error)
	ListMessages(ctx context.Context, filter MessageFilter) ([]model.Message, error)
	UpdateStageStatus(ctx context.Context, id string, stage model.Stage, status model.StageStatus) error

	// Meetings
	GetMeeting(ctx context.Context, id string) (*model.Meeting, error)
	GetMeetingByMessage(ctx context.Context, messageID string) (*model.Meeting, error)
	UpsertMeeting(ctx context.Context, m model.Meeting) (*model.Meeting, error)
	ListMeetings(ctx context.Context, filter ListFilter) ([]model.Meeting, error)

	// Budgets
	GetBudget(ctx context.Context, id string) (*model.Budget, error)
	GetBudgetByMeeting(ctx context.Context, meetingID string) (*model.Budget, error)
	UpsertBudget(ctx context.Context, b model.Budget) (*model.Budget, error)
	ListBudgets(ctx context.Context, filter ListFilter) ([]model.Budget, error)

	// Allocations
	CreateAllocation(ctx context.Context, a model.Allocation) (*model.Allocation, error)
	GetAllocation(ctx context.Context, id string) (*model.Allocation, error)
	ListAllocations(ctx context.Context, budgetID string) ([]model.Allocation, error)
	UpdateAllocationSpent(ctx context.Context, id string, spent float64) (*model.Allocation, error)
	SumAllocations(ctx context.Context) (*AllocationTotals, error)

	// Dead letter queue
	EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error
	DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error)
	ListDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error)
	IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error
	RemoveDLQ(ctx context.Context, id string) error
	CountDLQ(ctx context.Context) (int, error)

	// Stats
	CountStageStatuses(ctx context.Context) (StageCounts, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

func listLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}

// statusColumn maps a stage to its status column on messages.
func statusColumn(stage model.Stage) (string, error) {
	switch stage {
	case model.StageExtraction:
		return "extraction_status", nil
	case model.StageDesign:
		return "design_status", nil
	case model.StageAllocation:
		return "allocation_status", nil
	}
	return "", eris.Errorf("store: unknown stage %q", stage)
}

// prepareMessage fills the fields a new message needs before insert.
func prepareMessage(msg *model.Message, id string, now time.Time) {
	msg.ID = id
	for _, s := range model.Stages {
		if !msg.Status(s).Valid() {
			msg.SetStatus(s, model.StatusPending)
		}
	}
	if msg.DateReceived.IsZero() {
		msg.DateReceived = now
	}
	msg.CreatedAt = now
	msg.UpdatedAt = now
}

func newStageCounts() StageCounts {
	counts := make(StageCounts, len(model.Stages))
	for _, s := range model.Stages {
		counts[s] = map[model.StageStatus]int{}
	}
	return counts
}

func dlqEntryDefaults(entry *resilience.DLQEntry, id string, now time.Time) {
	if entry.ID == "" {
		entry.ID = id
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.LastFailedAt.IsZero() {
		entry.LastFailedAt = now
	}
	if entry.NextRetryAt.IsZero() {
		entry.NextRetryAt = now
	}
	if entry.MaxRetries == 0 {
		entry.MaxRetries = 3
	}
}
