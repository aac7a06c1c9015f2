package resilience

import (
	"time"

	"github.com/sells-group/labsync/internal/model"
)

// DLQEntry is a stage task that failed in the background and can be
// replayed by an operator.
type DLQEntry struct {
	ID           string      `json:"id" bson:"_id"`
	SourceID     string      `json:"source_id" bson:"source_id"`
	Stage        model.Stage `json:"stage" bson:"stage"`
	Error        string      `json:"error" bson:"error"`
	ErrorType    string      `json:"error_type" bson:"error_type"` // ClassTransient or ClassPermanent
	RetryCount   int         `json:"retry_count" bson:"retry_count"`
	MaxRetries   int         `json:"max_retries" bson:"max_retries"`
	NextRetryAt  time.Time   `json:"next_retry_at" bson:"next_retry_at"`
	CreatedAt    time.Time   `json:"created_at" bson:"created_at"`
	LastFailedAt time.Time   `json:"last_failed_at" bson:"last_failed_at"`
}

// DLQFilter narrows a dead-letter query.
type DLQFilter struct {
	ErrorType string      `json:"error_type,omitempty"`
	Stage     model.Stage `json:"stage,omitempty"`
	Limit     int         `json:"limit,omitempty"`
}

// CanRetry reports whether the entry is under its retry budget.
func (e *DLQEntry) CanRetry() bool {
	return e.RetryCount < e.MaxRetries
}

// Base and ceiling for the dead-letter replay schedule.
const (
	dlqBaseDelay = time.Minute
	dlqMaxDelay  = 6 * time.Hour
)

// NextRetryAt schedules the next replay after retryCount failures:
// 1m, 2m, 4m... capped at 6h.
func NextRetryAt(now time.Time, retryCount int) time.Time {
	delay := dlqBaseDelay
	for i := 0; i < retryCount && delay < dlqMaxDelay; i++ {
		delay *= 2
	}
	if delay > dlqMaxDelay {
		delay = dlqMaxDelay
	}
	return now.Add(delay)
}
