package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/labsync/internal/model"
	"github.com/sells-group/labsync/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS messages (
	id                TEXT PRIMARY KEY,
	message_id        TEXT NOT NULL UNIQUE,
	chat_id           TEXT NOT NULL DEFAULT '',
	sender_id         TEXT NOT NULL,
	sender_name       TEXT NOT NULL DEFAULT '',
	text              TEXT NOT NULL,
	date_received     DATETIME NOT NULL,
	raw_payload       TEXT,
	extraction_status TEXT NOT NULL DEFAULT 'pending',
	design_status     TEXT NOT NULL DEFAULT 'pending',
	allocation_status TEXT NOT NULL DEFAULT 'pending',
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS meetings (
	id           TEXT PRIMARY KEY,
	message_id   TEXT NOT NULL UNIQUE,
	data         TEXT NOT NULL,
	extracted_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS budgets (
	id           TEXT PRIMARY KEY,
	meeting_id   TEXT NOT NULL UNIQUE,
	data         TEXT NOT NULL,
	total_budget REAL NOT NULL DEFAULT 0,
	designed_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS allocations (
	id               TEXT PRIMARY KEY,
	budget_id        TEXT NOT NULL,
	allocated_to     TEXT NOT NULL,
	category         TEXT NOT NULL,
	allocated_amount REAL NOT NULL,
	actual_spent     REAL NOT NULL DEFAULT 0,
	allocated_at     DATETIME NOT NULL,
	allocated_by     TEXT NOT NULL,
	notes            TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id             TEXT PRIMARY KEY,
	source_id      TEXT NOT NULL,
	stage          TEXT NOT NULL,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL DEFAULT 'transient',
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  DATETIME NOT NULL,
	created_at     DATETIME NOT NULL,
	last_failed_at DATETIME NOT NULL
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Messages

const messageColumns = `id, message_id, chat_id, sender_id, sender_name, text, date_received, raw_payload,
	extraction_status, design_status, allocation_status, created_at, updated_at`

func (s *SQLiteStore) UpsertMessage(ctx context.Context, msg model.Message) (*model.Message, bool, error) {
	newID := uuid.New().String()
	prepareMessage(&msg, newID, time.Now().UTC())

	var id string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO messages (`+messageColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(message_id) DO UPDATE SET
		   chat_id = excluded.chat_id, sender_id = excluded.sender_id, sender_name = excluded.sender_name,
		   text = excluded.text, date_received = excluded.date_received, raw_payload = excluded.raw_payload,
		   updated_at = excluded.updated_at
		 RETURNING id`,
		msg.ID, msg.MessageID, msg.ChatID, msg.SenderID, msg.SenderName, msg.Text, msg.DateReceived.UTC(),
		rawPayload(msg.RawPayload), string(msg.ExtractionStatus), string(msg.DesignStatus),
		string(msg.AllocationStatus), msg.CreatedAt, msg.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return nil, false, eris.Wrapf(err, "sqlite: upsert message %s", msg.MessageID)
	}

	got, err := s.GetMessage(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return got, id == newID, nil
}

func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	return scanMessage(row)
}

func (s *SQLiteStore) GetMessageByExternalID(ctx context.Context, messageID string) (*model.Message, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE message_id = ?`, messageID)
	return scanMessage(row)
}

func (s *SQLiteStore) ListMessages(ctx context.Context, filter MessageFilter) ([]model.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE 1=1`
	var args []any

	if filter.Stage != "" && filter.Status != "" {
		col, err := statusColumn(filter.Stage)
		if err != nil {
			return nil, err
		}
		query += ` AND ` + col + ` = ?`
		args = append(args, string(filter.Status))
	}
	if filter.NotStage != "" && filter.NotStatus != "" {
		col, err := statusColumn(filter.NotStage)
		if err != nil {
			return nil, err
		}
		query += ` AND ` + col + ` != ?`
		args = append(args, string(filter.NotStatus))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list messages")
	}
	defer rows.Close()

	msgs := []model.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, eris.Wrap(rows.Err(), "sqlite: list messages iterate")
}

func (s *SQLiteStore) UpdateStageStatus(ctx context.Context, id string, stage model.Stage, status model.StageStatus) error {
	col, err := statusColumn(stage)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET `+col+` = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update %s status %s", stage, id)
	}
	return checkRowsAffected(res, "message", id)
}

// Meetings

func (s *SQLiteStore) GetMeeting(ctx context.Context, id string) (*model.Meeting, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, message_id, data FROM meetings WHERE id = ?`, id)
	return scanMeeting(row)
}

func (s *SQLiteStore) GetMeetingByMessage(ctx context.Context, messageID string) (*model.Meeting, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, message_id, data FROM meetings WHERE message_id = ?`, messageID)
	return scanMeeting(row)
}

func (s *SQLiteStore) UpsertMeeting(ctx context.Context, m model.Meeting) (*model.Meeting, error) {
	if m.MessageID == "" {
		return nil, eris.New("sqlite: upsert meeting: message id is required")
	}
	if m.ExtractedAt.IsZero() {
		m.ExtractedAt = time.Now().UTC()
	}
	newID := uuid.New().String()
	m.ID = newID

	data, err := json.Marshal(m)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal meeting")
	}

	var id string
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO meetings (id, message_id, data, extracted_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(message_id) DO UPDATE SET data = excluded.data, extracted_at = excluded.extracted_at
		 RETURNING id`,
		newID, m.MessageID, string(data), m.ExtractedAt,
	).Scan(&id)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert meeting for message %s", m.MessageID)
	}
	m.ID = id
	return &m, nil
}

func (s *SQLiteStore) ListMeetings(ctx context.Context, filter ListFilter) ([]model.Meeting, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, message_id, data FROM meetings ORDER BY extracted_at DESC LIMIT ? OFFSET ?`,
		listLimit(filter.Limit), filter.Offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list meetings")
	}
	defer rows.Close()

	meetings := []model.Meeting{}
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		meetings = append(meetings, *m)
	}
	return meetings, eris.Wrap(rows.Err(), "sqlite: list meetings iterate")
}

// Budgets

func (s *SQLiteStore) GetBudget(ctx context.Context, id string) (*model.Budget, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, meeting_id, data FROM budgets WHERE id = ?`, id)
	return scanBudget(row)
}

func (s *SQLiteStore) GetBudgetByMeeting(ctx context.Context, meetingID string) (*model.Budget, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, meeting_id, data FROM budgets WHERE meeting_id = ?`, meetingID)
	return scanBudget(row)
}

func (s *SQLiteStore) UpsertBudget(ctx context.Context, b model.Budget) (*model.Budget, error) {
	if b.MeetingID == "" {
		return nil, eris.New("sqlite: upsert budget: meeting id is required")
	}
	if b.DesignedAt.IsZero() {
		b.DesignedAt = time.Now().UTC()
	}
	newID := uuid.New().String()
	b.ID = newID

	data, err := json.Marshal(b)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal budget")
	}

	var id string
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO budgets (id, meeting_id, data, total_budget, designed_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(meeting_id) DO UPDATE SET
		   data = excluded.data, total_budget = excluded.total_budget, designed_at = excluded.designed_at
		 RETURNING id`,
		newID, b.MeetingID, string(data), b.TotalBudget, b.DesignedAt,
	).Scan(&id)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert budget for meeting %s", b.MeetingID)
	}
	b.ID = id
	return &b, nil
}

func (s *SQLiteStore) ListBudgets(ctx context.Context, filter ListFilter) ([]model.Budget, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, meeting_id, data FROM budgets ORDER BY designed_at DESC LIMIT ? OFFSET ?`,
		listLimit(filter.Limit), filter.Offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list budgets")
	}
	defer rows.Close()

	budgets := []model.Budget{}
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, *b)
	}
	return budgets, eris.Wrap(rows.Err(), "sqlite: list budgets iterate")
}

// Allocations

const allocationColumns = `id, budget_id, allocated_to, category, allocated_amount, actual_spent, allocated_at, allocated_by, notes`

func (s *SQLiteStore) CreateAllocation(ctx context.Context, a model.Allocation) (*model.Allocation, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.AllocatedAt.IsZero() {
		a.AllocatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO allocations (`+allocationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.BudgetID, a.AllocatedTo, a.Category, a.AllocatedAmount, a.ActualSpent,
		a.AllocatedAt, a.AllocatedBy, a.Notes,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert allocation for budget %s", a.BudgetID)
	}
	return &a, nil
}

func (s *SQLiteStore) GetAllocation(ctx context.Context, id string) (*model.Allocation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+allocationColumns+` FROM allocations WHERE id = ?`, id)
	return scanAllocation(row)
}

func (s *SQLiteStore) ListAllocations(ctx context.Context, budgetID string) ([]model.Allocation, error) {
	query := `SELECT ` + allocationColumns + ` FROM allocations`
	var args []any
	if budgetID != "" {
		query += ` WHERE budget_id = ?`
		args = append(args, budgetID)
	}
	query += ` ORDER BY allocated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list allocations")
	}
	defer rows.Close()

	allocs := []model.Allocation{}
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		allocs = append(allocs, *a)
	}
	return allocs, eris.Wrap(rows.Err(), "sqlite: list allocations iterate")
}

func (s *SQLiteStore) UpdateAllocationSpent(ctx context.Context, id string, spent float64) (*model.Allocation, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE allocations SET actual_spent = ? WHERE id = ?`, spent, id)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update allocation spent %s", id)
	}
	if err := checkRowsAffected(res, "allocation", id); err != nil {
		return nil, err
	}
	return s.GetAllocation(ctx, id)
}

func (s *SQLiteStore) SumAllocations(ctx context.Context) (*AllocationTotals, error) {
	var t AllocationTotals
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(allocated_amount), 0), COALESCE(SUM(actual_spent), 0) FROM allocations`,
	).Scan(&t.Count, &t.Allocated, &t.Spent)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: sum allocations")
	}
	return &t, nil
}

// Dead letter queue

const dlqColumns = `id, source_id, stage, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at`

func (s *SQLiteStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	dlqEntryDefaults(&entry, uuid.New().String(), time.Now().UTC())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dead_letter_queue (`+dlqColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   error = excluded.error, error_type = excluded.error_type, retry_count = excluded.retry_count,
		   next_retry_at = excluded.next_retry_at, last_failed_at = excluded.last_failed_at`,
		entry.ID, entry.SourceID, string(entry.Stage), entry.Error, entry.ErrorType,
		entry.RetryCount, entry.MaxRetries, entry.NextRetryAt.UTC(), entry.CreatedAt.UTC(), entry.LastFailedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: enqueue dlq")
}

func (s *SQLiteStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT ` + dlqColumns + ` FROM dead_letter_queue WHERE next_retry_at <= ? AND retry_count < max_retries`
	args := []any{time.Now().UTC()}
	query, args = appendDLQFilter(query, args, filter)
	query += ` ORDER BY next_retry_at ASC LIMIT ?`
	args = append(args, listLimit(filter.Limit))
	return s.queryDLQ(ctx, "dequeue", query, args)
}

func (s *SQLiteStore) ListDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT ` + dlqColumns + ` FROM dead_letter_queue WHERE 1=1`
	query, args := appendDLQFilter(query, nil, filter)
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))
	return s.queryDLQ(ctx, "list", query, args)
}

func appendDLQFilter(query string, args []any, filter resilience.DLQFilter) (string, []any) {
	if filter.ErrorType != "" {
		query += ` AND error_type = ?`
		args = append(args, filter.ErrorType)
	}
	if filter.Stage != "" {
		query += ` AND stage = ?`
		args = append(args, string(filter.Stage))
	}
	return query, args
}

func (s *SQLiteStore) queryDLQ(ctx context.Context, op, query string, args []any) ([]resilience.DLQEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: %s dlq", op)
	}
	defer rows.Close()

	entries := []resilience.DLQEntry{}
	for rows.Next() {
		var e resilience.DLQEntry
		if err := rows.Scan(&e.ID, &e.SourceID, &e.Stage, &e.Error, &e.ErrorType,
			&e.RetryCount, &e.MaxRetries, &e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dlq entry")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrapf(rows.Err(), "sqlite: %s dlq iterate", op)
}

func (s *SQLiteStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE dead_letter_queue
		 SET retry_count = retry_count + 1, next_retry_at = ?, error = ?, last_failed_at = ?
		 WHERE id = ?`,
		nextRetryAt.UTC(), lastErr, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: increment dlq retry %s", id)
	}
	return checkRowsAffected(res, "dlq_entry", id)
}

func (s *SQLiteStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dead_letter_queue WHERE id = ?`, id)
	return eris.Wrap(err, "sqlite: remove dlq")
}

func (s *SQLiteStore) CountDLQ(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letter_queue`).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count dlq")
}

// Stats

const stageCountsQuery = `
SELECT 'extraction', extraction_status, COUNT(*) FROM messages GROUP BY extraction_status
UNION ALL
SELECT 'design', design_status, COUNT(*) FROM messages GROUP BY design_status
UNION ALL
SELECT 'allocation', allocation_status, COUNT(*) FROM messages GROUP BY allocation_status`

func (s *SQLiteStore) CountStageStatuses(ctx context.Context) (StageCounts, error) {
	rows, err := s.db.QueryContext(ctx, stageCountsQuery)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count stage statuses")
	}
	defer rows.Close()

	counts := newStageCounts()
	for rows.Next() {
		var stage, status string
		var n int
		if err := rows.Scan(&stage, &status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stage count")
		}
		counts[model.Stage(stage)][model.StageStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: count stage statuses iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func rawPayload(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanMessage(row scannable) (*model.Message, error) {
	var m model.Message
	var raw sql.NullString
	err := row.Scan(&m.ID, &m.MessageID, &m.ChatID, &m.SenderID, &m.SenderName, &m.Text,
		&m.DateReceived, &raw, &m.ExtractionStatus, &m.DesignStatus, &m.AllocationStatus,
		&m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan message")
	}
	if raw.Valid {
		m.RawPayload = json.RawMessage(raw.String)
	}
	return &m, nil
}

func scanMeeting(row scannable) (*model.Meeting, error) {
	var id, messageID, data string
	err := row.Scan(&id, &messageID, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan meeting")
	}
	var m model.Meeting
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal meeting")
	}
	m.ID, m.MessageID = id, messageID
	return &m, nil
}

func scanBudget(row scannable) (*model.Budget, error) {
	var id, meetingID, data string
	err := row.Scan(&id, &meetingID, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan budget")
	}
	var b model.Budget
	if err := json.Unmarshal([]byte(data), &b); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal budget")
	}
	b.ID, b.MeetingID = id, meetingID
	return &b, nil
}

func scanAllocation(row scannable) (*model.Allocation, error) {
	var a model.Allocation
	err := row.Scan(&a.ID, &a.BudgetID, &a.AllocatedTo, &a.Category, &a.AllocatedAmount,
		&a.ActualSpent, &a.AllocatedAt, &a.AllocatedBy, &a.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan allocation")
	}
	return &a, nil
}
