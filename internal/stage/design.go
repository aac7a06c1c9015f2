package stage

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/labsync/internal/model"
	"github.com/sells-group/labsync/internal/normalize"
	"github.com/sells-group/labsync/internal/parse"
	"github.com/sells-group/labsync/internal/prompt"
)

// DesignService turns a meeting into a budget. Its status lives on the
// meeting's message.
type DesignService struct {
	store Store
	gen   Generator
	now   func() time.Time
}

// NewDesignService wires the design stage. Allocation is manual, so nothing
// is scheduled after it.
func NewDesignService(st Store, gen Generator) *DesignService {
	return &DesignService{
		store: st,
		gen:   gen,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// DesignAndSave runs design for meetingID and returns the stored budget. A
// meeting already designed returns its budget without calling the model.
// When the meeting's message is gone the stage still runs but no status is
// written.
func (s *DesignService) DesignAndSave(ctx context.Context, meetingID string) (*model.Budget, error) {
	log := zap.L().With(zap.String("meeting_id", meetingID), zap.String("stage", string(model.StageDesign)))

	meeting, err := s.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, eris.Wrapf(err, "stage: load meeting %s", meetingID)
	}
	if meeting == nil {
		return nil, eris.Wrapf(ErrNotFound, "meeting %s", meetingID)
	}

	msg, err := s.store.GetMessage(ctx, meeting.MessageID)
	if err != nil {
		return nil, eris.Wrapf(err, "stage: load message %s", meeting.MessageID)
	}
	if msg == nil {
		log.Warn("stage: meeting has no message, design status will not be tracked",
			zap.String("message_id", meeting.MessageID))
	}

	if msg != nil && msg.DesignStatus == model.StatusSucceeded {
		existing, err := s.store.GetBudgetByMeeting(ctx, meeting.ID)
		if err != nil {
			return nil, eris.Wrapf(err, "stage: load budget for meeting %s", meeting.ID)
		}
		if existing != nil {
			log.Debug("stage: design already done", zap.String("budget_id", existing.ID))
			return existing, nil
		}
	}

	budget, err := s.run(ctx, meeting, msg)
	if err != nil {
		if msg != nil {
			_ = setStatus(ctx, s.store, msg.ID, model.StageDesign, model.StatusFailed)
		}
		log.Warn("stage: design failed", zap.Error(err))
		return nil, err
	}
	log.Info("stage: design complete",
		zap.String("budget_id", budget.ID),
		zap.Float64("total_budget", budget.TotalBudget),
	)
	return budget, nil
}

func (s *DesignService) run(ctx context.Context, meeting *model.Meeting, msg *model.Message) (*model.Budget, error) {
	if msg != nil {
		if err := setStatus(ctx, s.store, msg.ID, model.StageDesign, model.StatusPending); err != nil {
			return nil, err
		}
	}

	raw, err := s.gen.Generate(ctx, prompt.Budget(*meeting))
	if err != nil {
		return nil, eris.Wrapf(err, "stage: design model call for meeting %s", meeting.ID)
	}

	fields := parse.Budget(raw)
	b := normalize.Budget(fields, meeting.EstimatedBudget)
	b.MeetingID = meeting.ID
	b.ProjectName = meeting.ProjectName
	b.DesignedAt = s.now()
	b.DesignedBy = model.DesignedBy
	zap.L().Debug("stage: design parsed",
		zap.String("meeting_id", meeting.ID),
		zap.Stringer("origin", fields.Origin),
		zap.Float64("computed_total", b.ComputedTotal()),
	)

	saved, err := s.store.UpsertBudget(ctx, b)
	if err != nil {
		return nil, eris.Wrapf(err, "stage: save budget for meeting %s", meeting.ID)
	}
	if msg != nil {
		if err := setStatus(ctx, s.store, msg.ID, model.StageDesign, model.StatusSucceeded); err != nil {
			return nil, err
		}
	}
	return saved, nil
}

// Handle adapts DesignAndSave to a chain handler.
func (s *DesignService) Handle(ctx context.Context, meetingID string) error {
	_, err := s.DesignAndSave(ctx, meetingID)
	return err
}
