package stage

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/labsync/internal/model"
	"github.com/sells-group/labsync/internal/store"
)

// DefaultAllocatedBy is recorded when the caller names nobody.
const DefaultAllocatedBy = "system"

// AllocationInput is a request to assign part of a budget.
type AllocationInput struct {
	BudgetID        string  `json:"budget_id"`
	AllocatedTo     string  `json:"allocated_to"`
	Category        string  `json:"category"`
	AllocatedAmount float64 `json:"allocated_amount"`
	ActualSpent     float64 `json:"actual_spent,omitempty"`
	AllocatedBy     string  `json:"allocated_by,omitempty"`
	Notes           string  `json:"notes,omitempty"`
}

// AllocationService records and tracks spend against budgets.
type AllocationService struct {
	store Store
	now   func() time.Time
}

// NewAllocationService creates an AllocationService.
func NewAllocationService(st Store) *AllocationService {
	return &AllocationService{store: st, now: func() time.Time { return time.Now().UTC() }}
}

// Create validates in and stores a new allocation, then marks the
// allocation stage succeeded on the budget's message.
func (s *AllocationService) Create(ctx context.Context, in AllocationInput) (*model.Allocation, error) {
	in.AllocatedTo = strings.TrimSpace(in.AllocatedTo)
	in.Category = strings.TrimSpace(in.Category)
	if in.AllocatedTo == "" {
		return nil, eris.Wrap(ErrInvalidInput, "allocated_to is required")
	}
	if in.Category == "" {
		return nil, eris.Wrap(ErrInvalidInput, "category is required")
	}
	if err := checkAmount("allocated_amount", in.AllocatedAmount); err != nil {
		return nil, err
	}
	if err := checkAmount("actual_spent", in.ActualSpent); err != nil {
		return nil, err
	}

	budget, err := s.store.GetBudget(ctx, in.BudgetID)
	if err != nil {
		return nil, eris.Wrapf(err, "stage: load budget %s", in.BudgetID)
	}
	if budget == nil {
		return nil, eris.Wrapf(ErrNotFound, "budget %s", in.BudgetID)
	}

	by := strings.TrimSpace(in.AllocatedBy)
	if by == "" {
		by = DefaultAllocatedBy
	}
	a, err := s.store.CreateAllocation(ctx, model.Allocation{
		BudgetID:        budget.ID,
		AllocatedTo:     in.AllocatedTo,
		Category:        in.Category,
		AllocatedAmount: in.AllocatedAmount,
		ActualSpent:     in.ActualSpent,
		AllocatedAt:     s.now(),
		AllocatedBy:     by,
		Notes:           in.Notes,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "stage: create allocation for budget %s", budget.ID)
	}

	s.markAllocated(ctx, budget)
	return a, nil
}

func (s *AllocationService) markAllocated(ctx context.Context, budget *model.Budget) {
	meeting, err := s.store.GetMeeting(ctx, budget.MeetingID)
	if err != nil || meeting == nil {
		zap.L().Warn("stage: allocation status not tracked",
			zap.String("budget_id", budget.ID),
			zap.String("meeting_id", budget.MeetingID),
			zap.Error(err),
		)
		return
	}
	_ = setStatus(ctx, s.store, meeting.MessageID, model.StageAllocation, model.StatusSucceeded)
}

// UpdateSpent records the actual spend on an allocation.
func (s *AllocationService) UpdateSpent(ctx context.Context, id string, spent float64) (*model.Allocation, error) {
	if err := checkAmount("actual_spent", spent); err != nil {
		return nil, err
	}
	a, err := s.store.UpdateAllocationSpent(ctx, id, spent)
	if errors.Is(err, store.ErrNotFound) {
		return nil, eris.Wrapf(ErrNotFound, "allocation %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "stage: update allocation %s", id)
	}
	return a, nil
}

// Get returns an allocation or ErrNotFound.
func (s *AllocationService) Get(ctx context.Context, id string) (*model.Allocation, error) {
	a, err := s.store.GetAllocation(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "stage: load allocation %s", id)
	}
	if a == nil {
		return nil, eris.Wrapf(ErrNotFound, "allocation %s", id)
	}
	return a, nil
}

// List returns allocations for budgetID, or all of them when it is empty.
func (s *AllocationService) List(ctx context.Context, budgetID string) ([]model.Allocation, error) {
	allocs, err := s.store.ListAllocations(ctx, budgetID)
	return allocs, eris.Wrap(err, "stage: list allocations")
}

func checkAmount(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return eris.Wrapf(ErrInvalidInput, "%s must be a finite number >= 0", field)
	}
	return nil
}
