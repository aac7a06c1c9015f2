// Package intake stores inbound Telegram messages and optionally schedules
// their extraction.
package intake

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/labsync/internal/chain"
	"github.com/sells-group/labsync/internal/model"
	"github.com/sells-group/labsync/pkg/telegram"
)

// ErrInvalidPayload rejects updates and manual messages that carry nothing
// to store.
var ErrInvalidPayload = eris.New("intake: invalid payload")

// UnknownSender is stored when a message has no sender.
const UnknownSender = "unknown"

// Store is the persistence intake needs.
type Store interface {
	UpsertMessage(ctx context.Context, msg model.Message) (*model.Message, bool, error)
}

// Enqueuer schedules extraction.
type Enqueuer interface {
	Enqueue(ctx context.Context, t chain.Task) error
}

// Service ingests messages.
type Service struct {
	store       Store
	next        Enqueuer
	autoExtract bool
	now         func() time.Time
}

// NewService creates a Service. When autoExtract is set, every stored
// message that has not been extracted yet is queued for extraction on next.
func NewService(st Store, next Enqueuer, autoExtract bool) *Service {
	return &Service{
		store:       st,
		next:        next,
		autoExtract: autoExtract && next != nil,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// HandleUpdate stores the message carried by a raw webhook update.
// Redelivery of the same message id updates the stored message and keeps
// its stage statuses.
func (s *Service) HandleUpdate(ctx context.Context, raw []byte) (*model.Message, error) {
	_, tm, err := telegram.ParseUpdate(raw)
	if err != nil {
		return nil, eris.Wrap(ErrInvalidPayload, err.Error())
	}

	return s.save(ctx, model.Message{
		MessageID:    tm.ExternalID(),
		ChatID:       tm.ChatID(),
		SenderID:     tm.SenderID(),
		SenderName:   tm.SenderName(),
		Text:         tm.Text,
		DateReceived: tm.Time(s.now()),
		RawPayload:   json.RawMessage(raw),
	})
}

// Ingest stores a manually created message. A blank external id gets a
// generated one.
func (s *Service) Ingest(ctx context.Context, msg model.Message) (*model.Message, error) {
	msg.Text = strings.TrimSpace(msg.Text)
	if msg.Text == "" {
		return nil, eris.Wrap(ErrInvalidPayload, "text is required")
	}
	if msg.MessageID == "" {
		msg.MessageID = "manual-" + uuid.NewString()
	}
	if msg.SenderID == "" {
		msg.SenderID = UnknownSender
	}
	if msg.DateReceived.IsZero() {
		msg.DateReceived = s.now()
	}
	return s.save(ctx, msg)
}

func (s *Service) save(ctx context.Context, msg model.Message) (*model.Message, error) {
	stored, created, err := s.store.UpsertMessage(ctx, msg)
	if err != nil {
		return nil, eris.Wrapf(err, "intake: store message %s", msg.MessageID)
	}
	log := zap.L().With(zap.String("message_id", stored.ID), zap.String("external_id", stored.MessageID))
	log.Info("intake: message stored", zap.Bool("created", created))

	if s.autoExtract && stored.ExtractionStatus != model.StatusSucceeded {
		task := chain.Task{SourceID: stored.ID, Stage: model.StageExtraction}
		if err := s.next.Enqueue(ctx, task); err != nil {
			log.Error("intake: enqueue extraction failed", zap.Error(err))
		}
	}
	return stored, nil
}
