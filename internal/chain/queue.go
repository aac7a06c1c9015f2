// Package chain hands finished stages to the next one. A producing stage
// enqueues a Task and returns; a Consumer runs the next stage and records
// failures in the dead-letter queue.
package chain

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/labsync/internal/model"
)

// Task asks for stage Stage to run against the record SourceID.
type Task struct {
	SourceID string      `json:"source_id"`
	Stage    model.Stage `json:"next_stage"`
}

var (
	ErrQueueFull   = eris.New("chain: queue full")
	ErrQueueClosed = eris.New("chain: queue closed")
)

// DefaultQueueSize is the buffer used when NewMemoryQueue gets size <= 0.
const DefaultQueueSize = 256

// MemoryQueue is an in-process task queue backed by a buffered channel.
// Enqueue never blocks.
type MemoryQueue struct {
	mu     sync.RWMutex
	tasks  chan Task
	closed bool
}

// NewMemoryQueue creates a queue holding up to size pending tasks.
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &MemoryQueue{tasks: make(chan Task, size)}
}

// Enqueue adds t, or returns ErrQueueFull when the buffer is full and
// ErrQueueClosed after Close.
func (q *MemoryQueue) Enqueue(_ context.Context, t Task) error {
	if t.SourceID == "" || !t.Stage.Valid() {
		return eris.Errorf("chain: invalid task %+v", t)
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.tasks <- t:
		return nil
	default:
		return ErrQueueFull
	}
}

// Tasks is the receive side consumed by workers. It is closed by Close.
func (q *MemoryQueue) Tasks() <-chan Task {
	return q.tasks
}

// Len is the number of tasks waiting.
func (q *MemoryQueue) Len() int {
	return len(q.tasks)
}

// Close stops new tasks. Tasks already buffered can still be drained.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
}
