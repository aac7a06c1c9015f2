package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/labsync/internal/model"
	"github.com/sells-group/labsync/internal/resilience"
)

// Handler runs one stage against a source record.
type Handler func(ctx context.Context, sourceID string) error

// DeadLetters records tasks that failed in the background.
type DeadLetters interface {
	EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error
}

// Consumer drains a task channel with a fixed pool of workers.
type Consumer struct {
	tasks      <-chan Task
	handlers   map[model.Stage]Handler
	dlq        DeadLetters
	workers    int
	maxRetries int
	now        func() time.Time
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithWorkers sets the number of concurrent workers.
func WithWorkers(n int) ConsumerOption {
	return func(c *Consumer) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithDeadLetters records failed tasks in dlq.
func WithDeadLetters(dlq DeadLetters) ConsumerOption {
	return func(c *Consumer) { c.dlq = dlq }
}

// WithMaxRetries sets the replay budget stamped on dead-letter entries.
func WithMaxRetries(n int) ConsumerOption {
	return func(c *Consumer) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// NewConsumer creates a consumer for tasks dispatching on handlers.
func NewConsumer(tasks <-chan Task, handlers map[model.Stage]Handler, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		tasks:      tasks,
		handlers:   handlers,
		workers:    2,
		maxRetries: 3,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run blocks until ctx is done or the task channel is closed and drained.
// Handler failures never stop it.
func (c *Consumer) Run(ctx context.Context) error {
	zap.L().Info("chain: consumer started", zap.Int("workers", c.workers))
	g, gctx := errgroup.WithContext(ctx)
	for range c.workers {
		g.Go(func() error {
			c.work(gctx)
			return nil
		})
	}
	err := g.Wait()
	zap.L().Info("chain: consumer stopped")
	return err
}

func (c *Consumer) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-c.tasks:
			if !ok {
				return
			}
			_ = c.Handle(ctx, t)
		}
	}
}

// Handle runs a single task. A started stage runs to completion even if ctx
// is cancelled. Failures are logged and dead-lettered, then returned.
func (c *Consumer) Handle(ctx context.Context, t Task) error {
	log := zap.L().With(zap.String("source_id", t.SourceID), zap.String("stage", string(t.Stage)))
	start := time.Now()

	err := c.run(context.WithoutCancel(ctx), t)
	if err == nil {
		log.Info("chain: stage task complete", zap.Duration("elapsed", time.Since(start)))
		return nil
	}

	class := resilience.ClassifyError(err)
	log.Error("chain: stage task failed", zap.String("error_type", class), zap.Error(err))
	c.deadLetter(ctx, t, err, class)
	return err
}

func (c *Consumer) run(ctx context.Context, t Task) (err error) {
	h, ok := c.handlers[t.Stage]
	if !ok {
		return eris.Errorf("chain: no handler for stage %q", t.Stage)
	}
	defer func() {
		if r := recover(); r != nil {
			err = eris.New(fmt.Sprintf("chain: handler panic: %v", r))
		}
	}()
	return h(ctx, t.SourceID)
}

func (c *Consumer) deadLetter(ctx context.Context, t Task, taskErr error, class string) {
	if c.dlq == nil {
		return
	}
	now := c.now()
	entry := resilience.DLQEntry{
		SourceID:     t.SourceID,
		Stage:        t.Stage,
		Error:        taskErr.Error(),
		ErrorType:    class,
		MaxRetries:   c.maxRetries,
		NextRetryAt:  resilience.NextRetryAt(now, 0),
		CreatedAt:    now,
		LastFailedAt: now,
	}
	if err := c.dlq.EnqueueDLQ(context.WithoutCancel(ctx), entry); err != nil {
		zap.L().Error("chain: dead-letter write failed",
			zap.String("source_id", t.SourceID),
			zap.String("stage", string(t.Stage)),
			zap.Error(err),
		)
	}
}
