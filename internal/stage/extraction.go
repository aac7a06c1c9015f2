package stage

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/labsync/internal/chain"
	"github.com/sells-group/labsync/internal/model"
	"github.com/sells-group/labsync/internal/normalize"
	"github.com/sells-group/labsync/internal/parse"
	"github.com/sells-group/labsync/internal/prompt"
)

// ExtractionService turns a message into a meeting.
type ExtractionService struct {
	store Store
	gen   Generator
	next  Enqueuer
	now   func() time.Time
}

// NewExtractionService wires the extraction stage. next may be nil, in which
// case design is never scheduled.
func NewExtractionService(st Store, gen Generator, next Enqueuer) *ExtractionService {
	return &ExtractionService{
		store: st,
		gen:   gen,
		next:  next,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// ExtractAndSave runs extraction for messageID and returns the stored
// meeting. A message already extracted returns its meeting without calling
// the model.
//
// Two concurrent calls for the same message can both pass the succeeded
// check and both call the model; the last upsert wins.
func (s *ExtractionService) ExtractAndSave(ctx context.Context, messageID string) (*model.Meeting, error) {
	log := zap.L().With(zap.String("message_id", messageID), zap.String("stage", string(model.StageExtraction)))

	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, eris.Wrapf(err, "stage: load message %s", messageID)
	}
	if msg == nil {
		return nil, eris.Wrapf(ErrNotFound, "message %s", messageID)
	}

	if msg.ExtractionStatus == model.StatusSucceeded {
		existing, err := s.store.GetMeetingByMessage(ctx, msg.ID)
		if err != nil {
			return nil, eris.Wrapf(err, "stage: load meeting for message %s", msg.ID)
		}
		if existing != nil {
			log.Debug("stage: extraction already done", zap.String("meeting_id", existing.ID))
			return existing, nil
		}
	}

	meeting, err := s.run(ctx, msg)
	if err != nil {
		_ = setStatus(ctx, s.store, msg.ID, model.StageExtraction, model.StatusFailed)
		log.Warn("stage: extraction failed", zap.Error(err))
		return nil, err
	}
	log.Info("stage: extraction complete", zap.String("meeting_id", meeting.ID))

	if s.next != nil {
		task := chain.Task{SourceID: meeting.ID, Stage: model.StageDesign}
		if err := s.next.Enqueue(ctx, task); err != nil {
			log.Error("stage: enqueue design failed", zap.String("meeting_id", meeting.ID), zap.Error(err))
		}
	}
	return meeting, nil
}

func (s *ExtractionService) run(ctx context.Context, msg *model.Message) (*model.Meeting, error) {
	if err := setStatus(ctx, s.store, msg.ID, model.StageExtraction, model.StatusPending); err != nil {
		return nil, err
	}

	raw, err := s.gen.Generate(ctx, prompt.Extraction(msg.Text))
	if err != nil {
		return nil, eris.Wrapf(err, "stage: extraction model call for message %s", msg.ID)
	}

	now := s.now()
	fields := parse.Extraction(raw, msg.Text)
	m := normalize.Meeting(fields, now)
	m.MessageID = msg.ID
	m.ExtractedAt = now
	zap.L().Debug("stage: extraction parsed",
		zap.String("message_id", msg.ID),
		zap.Stringer("origin", fields.Origin),
		zap.Int("raw_len", len(raw)),
	)

	saved, err := s.store.UpsertMeeting(ctx, m)
	if err != nil {
		return nil, eris.Wrapf(err, "stage: save meeting for message %s", msg.ID)
	}
	if err := setStatus(ctx, s.store, msg.ID, model.StageExtraction, model.StatusSucceeded); err != nil {
		return nil, err
	}
	return saved, nil
}

// Handle adapts ExtractAndSave to a chain handler.
func (s *ExtractionService) Handle(ctx context.Context, messageID string) error {
	_, err := s.ExtractAndSave(ctx, messageID)
	return err
}
