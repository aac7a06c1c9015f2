package intake

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/labsync/internal/chain"
	"github.com/sells-group/labsync/internal/model"
	"github.com/sells-group/labsync/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "intake.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

const update = `{"update_id":9,"message":{"message_id":101,"from":{"id":7,"username":"dana"},"chat":{"id":-5},"date":1767225600,"text":"Project Atlas kickoff, budget $20000, timeline 1 month"}}`

func TestHandleUpdate_StoresMessage(t *testing.T) {
	st := newTestStore(t)
	svc := NewService(st, nil, false)

	msg, err := svc.HandleUpdate(context.Background(), []byte(update))
	require.NoError(t, err)

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "101", msg.MessageID)
	assert.Equal(t, "7", msg.SenderID)
	assert.Equal(t, "@dana", msg.SenderName)
	assert.Equal(t, "-5", msg.ChatID)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), msg.DateReceived.UTC())
	assert.JSONEq(t, update, string(msg.RawPayload))
	for _, s := range model.Stages {
		assert.Equal(t, model.StatusPending, msg.Status(s), s)
	}
}

func TestHandleUpdate_RedeliveryKeepsStatuses(t *testing.T) {
	st := newTestStore(t)
	svc := NewService(st, nil, false)
	ctx := context.Background()

	first, err := svc.HandleUpdate(ctx, []byte(update))
	require.NoError(t, err)
	require.NoError(t, st.UpdateStageStatus(ctx, first.ID, model.StageExtraction, model.StatusSucceeded))

	edited := `{"update_id":10,"edited_message":{"message_id":101,"from":{"id":7},"date":1767225600,"text":"Project Atlas kickoff, budget $25000"}}`
	second, err := svc.HandleUpdate(ctx, []byte(edited))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Project Atlas kickoff, budget $25000", second.Text)
	assert.Equal(t, model.StatusSucceeded, second.ExtractionStatus)

	all, err := st.ListMessages(ctx, store.MessageFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestHandleUpdate_Invalid(t *testing.T) {
	svc := NewService(newTestStore(t), nil, false)
	for _, raw := range []string{`{}`, `{"callback_query":{}}`, `nope`, `{"message":{"text":"no id"}}`} {
		_, err := svc.HandleUpdate(context.Background(), []byte(raw))
		assert.ErrorIs(t, err, ErrInvalidPayload, raw)
	}
}

func TestHandleUpdate_AutoExtract(t *testing.T) {
	st := newTestStore(t)
	q := chain.NewMemoryQueue(4)
	svc := NewService(st, q, true)
	ctx := context.Background()

	msg, err := svc.HandleUpdate(ctx, []byte(update))
	require.NoError(t, err)
	require.Equal(t, 1, q.Len())
	assert.Equal(t, chain.Task{SourceID: msg.ID, Stage: model.StageExtraction}, <-q.Tasks())

	// Already extracted messages are not queued again.
	require.NoError(t, st.UpdateStageStatus(ctx, msg.ID, model.StageExtraction, model.StatusSucceeded))
	_, err = svc.HandleUpdate(ctx, []byte(update))
	require.NoError(t, err)
	assert.Zero(t, q.Len())
}

func TestHandleUpdate_QueueFullStillStores(t *testing.T) {
	st := newTestStore(t)
	q := chain.NewMemoryQueue(1)
	require.NoError(t, q.Enqueue(context.Background(), chain.Task{SourceID: "x", Stage: model.StageDesign}))
	svc := NewService(st, q, true)

	msg, err := svc.HandleUpdate(context.Background(), []byte(update))
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
}

func TestIngest(t *testing.T) {
	st := newTestStore(t)
	svc := NewService(st, nil, false)

	msg, err := svc.Ingest(context.Background(), model.Message{Text: "  Kickoff for Borealis  "})
	require.NoError(t, err)
	assert.Equal(t, "Kickoff for Borealis", msg.Text)
	assert.Contains(t, msg.MessageID, "manual-")
	assert.Equal(t, UnknownSender, msg.SenderID)
	assert.False(t, msg.DateReceived.IsZero())

	_, err = svc.Ingest(context.Background(), model.Message{Text: "   "})
	assert.ErrorIs(t, err, ErrInvalidPayload)
}
