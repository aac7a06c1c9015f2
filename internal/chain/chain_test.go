package chain

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/labsync/internal/model"
	"github.com/sells-group/labsync/internal/resilience"
)

type memDLQ struct {
	mu      sync.Mutex
	entries []resilience.DLQEntry
	err     error
}

func (m *memDLQ) EnqueueDLQ(_ context.Context, e resilience.DLQEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return m.err
}

func (m *memDLQ) snapshot() []resilience.DLQEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]resilience.DLQEntry(nil), m.entries...)
}

func TestMemoryQueue_EnqueueAndDrain(t *testing.T) {
	q := NewMemoryQueue(2)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, Task{SourceID: "m-1", Stage: model.StageDesign}))
	require.NoError(t, q.Enqueue(ctx, Task{SourceID: "m-2", Stage: model.StageDesign}))
	assert.Equal(t, 2, q.Len())

	err := q.Enqueue(ctx, Task{SourceID: "m-3", Stage: model.StageDesign})
	assert.ErrorIs(t, err, ErrQueueFull)

	got := <-q.Tasks()
	assert.Equal(t, Task{SourceID: "m-1", Stage: model.StageDesign}, got)
}

func TestMemoryQueue_Close(t *testing.T) {
	q := NewMemoryQueue(0)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, Task{SourceID: "m-1", Stage: model.StageExtraction}))

	q.Close()
	q.Close()

	assert.ErrorIs(t, q.Enqueue(ctx, Task{SourceID: "m-2", Stage: model.StageExtraction}), ErrQueueClosed)

	got, ok := <-q.Tasks()
	require.True(t, ok, "buffered tasks survive close")
	assert.Equal(t, "m-1", got.SourceID)
	_, ok = <-q.Tasks()
	assert.False(t, ok)
}

func TestMemoryQueue_RejectsInvalidTask(t *testing.T) {
	q := NewMemoryQueue(1)
	assert.Error(t, q.Enqueue(context.Background(), Task{Stage: model.StageDesign}))
	assert.Error(t, q.Enqueue(context.Background(), Task{SourceID: "x", Stage: "billing"}))
	assert.Zero(t, q.Len())
}

func TestConsumer_RunsHandlersUntilClosed(t *testing.T) {
	q := NewMemoryQueue(10)
	var mu sync.Mutex
	var seen []string
	handlers := map[model.Stage]Handler{
		model.StageDesign: func(_ context.Context, id string) error {
			mu.Lock()
			seen = append(seen, id)
			mu.Unlock()
			return nil
		},
	}
	c := NewConsumer(q.Tasks(), handlers, WithWorkers(3))

	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, q.Enqueue(context.Background(), Task{SourceID: id, Stage: model.StageDesign}))
	}
	q.Close()

	require.NoError(t, c.Run(context.Background()))
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, seen)
}

func TestConsumer_FailureIsDeadLetteredAndConsumerContinues(t *testing.T) {
	q := NewMemoryQueue(10)
	dlq := &memDLQ{}
	var ran sync.WaitGroup
	ran.Add(3)
	handlers := map[model.Stage]Handler{
		model.StageDesign: func(_ context.Context, id string) error {
			defer ran.Done()
			switch id {
			case "bad":
				return resilience.NewTransientError(errors.New("overloaded"), 529)
			case "panic":
				panic("boom")
			}
			return nil
		},
	}
	c := NewConsumer(q.Tasks(), handlers, WithWorkers(1), WithDeadLetters(dlq), WithMaxRetries(5))

	for _, id := range []string{"bad", "panic", "good"} {
		require.NoError(t, q.Enqueue(context.Background(), Task{SourceID: id, Stage: model.StageDesign}))
	}
	q.Close()
	require.NoError(t, c.Run(context.Background()))
	ran.Wait()

	entries := dlq.snapshot()
	require.Len(t, entries, 2)
	assert.Equal(t, "bad", entries[0].SourceID)
	assert.Equal(t, model.StageDesign, entries[0].Stage)
	assert.Equal(t, resilience.ClassTransient, entries[0].ErrorType)
	assert.Equal(t, 5, entries[0].MaxRetries)
	assert.True(t, entries[0].NextRetryAt.After(entries[0].CreatedAt))
	assert.Equal(t, "panic", entries[1].SourceID)
	assert.Equal(t, resilience.ClassPermanent, entries[1].ErrorType)
	assert.Contains(t, entries[1].Error, "panic")
}

func TestConsumer_UnknownStage(t *testing.T) {
	dlq := &memDLQ{}
	c := NewConsumer(nil, map[model.Stage]Handler{}, WithDeadLetters(dlq))

	err := c.Handle(context.Background(), Task{SourceID: "x", Stage: model.StageAllocation})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no handler")
	assert.Len(t, dlq.snapshot(), 1)
}

func TestConsumer_DeadLetterWriteFailureIsSwallowed(t *testing.T) {
	dlq := &memDLQ{err: errors.New("disk full")}
	handlers := map[model.Stage]Handler{
		model.StageDesign: func(context.Context, string) error { return errors.New("nope") },
	}
	c := NewConsumer(nil, handlers, WithDeadLetters(dlq))

	err := c.Handle(context.Background(), Task{SourceID: "x", Stage: model.StageDesign})
	assert.EqualError(t, err, "nope")
}

func TestConsumer_StartedStageIgnoresCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var handlerCtxErr error
	handlers := map[model.Stage]Handler{
		model.StageDesign: func(ctx context.Context, _ string) error {
			handlerCtxErr = ctx.Err()
			return nil
		},
	}
	c := NewConsumer(nil, handlers)

	require.NoError(t, c.Handle(ctx, Task{SourceID: "x", Stage: model.StageDesign}))
	assert.NoError(t, handlerCtxErr)
}

func TestConsumer_StopsOnContextCancel(t *testing.T) {
	q := NewMemoryQueue(1)
	c := NewConsumer(q.Tasks(), map[model.Stage]Handler{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

type mockReplayStore struct {
	mock.Mock
}

func (m *mockReplayStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]resilience.DLQEntry), args.Error(1)
}

func (m *mockReplayStore) IncrementDLQRetry(ctx context.Context, id string, next time.Time, lastErr string) error {
	return m.Called(ctx, id, next, lastErr).Error(0)
}

func (m *mockReplayStore) RemoveDLQ(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func TestReplayer_Replay(t *testing.T) {
	st := &mockReplayStore{}
	ctx := context.Background()
	filter := resilience.DLQFilter{Limit: 10}
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	st.On("DequeueDLQ", ctx, filter).Return([]resilience.DLQEntry{
		{ID: "d1", SourceID: "ok", Stage: model.StageDesign},
		{ID: "d2", SourceID: "fail", Stage: model.StageExtraction, RetryCount: 1},
	}, nil)
	st.On("RemoveDLQ", ctx, "d1").Return(nil)
	st.On("IncrementDLQRetry", ctx, "d2", now.Add(4*time.Minute), "still broken").Return(nil)

	handlers := map[model.Stage]Handler{
		model.StageDesign:     func(context.Context, string) error { return nil },
		model.StageExtraction: func(context.Context, string) error { return errors.New("still broken") },
	}
	r := NewReplayer(st, handlers)
	r.now = func() time.Time { return now }

	res, err := r.Replay(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, &ReplayResult{Attempted: 2, Succeeded: 1, Failed: 1}, res)
	st.AssertExpectations(t)
}

func TestReplayer_DequeueError(t *testing.T) {
	st := &mockReplayStore{}
	st.On("DequeueDLQ", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	_, err := NewReplayer(st, nil).Replay(context.Background(), resilience.DLQFilter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dequeue dlq")
}
