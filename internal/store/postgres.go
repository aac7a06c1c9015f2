package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/labsync/internal/db"
	"github.com/sells-group/labsync/internal/model"
	"github.com/sells-group/labsync/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS messages (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	message_id        TEXT NOT NULL UNIQUE,
	chat_id           TEXT NOT NULL DEFAULT '',
	sender_id         TEXT NOT NULL,
	sender_name       TEXT NOT NULL DEFAULT '',
	text              TEXT NOT NULL,
	date_received     TIMESTAMPTZ NOT NULL,
	raw_payload       JSONB,
	extraction_status TEXT NOT NULL DEFAULT 'pending',
	design_status     TEXT NOT NULL DEFAULT 'pending',
	allocation_status TEXT NOT NULL DEFAULT 'pending',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS meetings (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	message_id   TEXT NOT NULL UNIQUE REFERENCES messages(id),
	data         JSONB NOT NULL,
	extracted_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS budgets (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	meeting_id   TEXT NOT NULL UNIQUE REFERENCES meetings(id),
	data         JSONB NOT NULL,
	total_budget DOUBLE PRECISION NOT NULL DEFAULT 0,
	designed_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS allocations (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	budget_id        TEXT NOT NULL REFERENCES budgets(id),
	allocated_to     TEXT NOT NULL,
	category         TEXT NOT NULL,
	allocated_amount DOUBLE PRECISION NOT NULL,
	actual_spent     DOUBLE PRECISION NOT NULL DEFAULT 0,
	allocated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	allocated_by     TEXT NOT NULL,
	notes            TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source_id      TEXT NOT NULL,
	stage          TEXT NOT NULL,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL DEFAULT 'transient',
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_failed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Messages

func (s *PostgresStore) UpsertMessage(ctx context.Context, msg model.Message) (*model.Message, bool, error) {
	newID := uuid.New().String()
	prepareMessage(&msg, newID, time.Now().UTC())

	var id string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO messages (`+messageColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (message_id) DO UPDATE SET
		   chat_id = EXCLUDED.chat_id, sender_id = EXCLUDED.sender_id, sender_name = EXCLUDED.sender_name,
		   text = EXCLUDED.text, date_received = EXCLUDED.date_received, raw_payload = EXCLUDED.raw_payload,
		   updated_at = EXCLUDED.updated_at
		 RETURNING id`,
		msg.ID, msg.MessageID, msg.ChatID, msg.SenderID, msg.SenderName, msg.Text, msg.DateReceived.UTC(),
		jsonbOrNil(msg.RawPayload), string(msg.ExtractionStatus), string(msg.DesignStatus),
		string(msg.AllocationStatus), msg.CreatedAt, msg.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return nil, false, eris.Wrapf(err, "postgres: upsert message %s", msg.MessageID)
	}

	got, err := s.GetMessage(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return got, id == newID, nil
}

func (s *PostgresStore) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	m, err := scanPgMessage(s.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
	return m, eris.Wrapf(err, "postgres: get message %s", id)
}

func (s *PostgresStore) GetMessageByExternalID(ctx context.Context, messageID string) (*model.Message, error) {
	m, err := scanPgMessage(s.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE message_id = $1`, messageID))
	return m, eris.Wrapf(err, "postgres: get message by external id %s", messageID)
}

func (s *PostgresStore) ListMessages(ctx context.Context, filter MessageFilter) ([]model.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Stage != "" && filter.Status != "" {
		col, err := statusColumn(filter.Stage)
		if err != nil {
			return nil, err
		}
		query += fmt.Sprintf(` AND %s = $%d`, col, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.NotStage != "" && filter.NotStatus != "" {
		col, err := statusColumn(filter.NotStage)
		if err != nil {
			return nil, err
		}
		query += fmt.Sprintf(` AND %s <> $%d`, col, argIdx)
		args = append(args, string(filter.NotStatus))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))
	argIdx++
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list messages")
	}
	defer rows.Close()

	msgs := []model.Message{}
	for rows.Next() {
		m, err := scanPgMessage(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: list messages")
		}
		msgs = append(msgs, *m)
	}
	return msgs, eris.Wrap(rows.Err(), "postgres: list messages iterate")
}

func (s *PostgresStore) UpdateStageStatus(ctx context.Context, id string, stage model.Stage, status model.StageStatus) error {
	col, err := statusColumn(stage)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE messages SET `+col+` = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update %s status %s", stage, id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "message %s", id)
	}
	return nil
}

// Meetings

func (s *PostgresStore) GetMeeting(ctx context.Context, id string) (*model.Meeting, error) {
	m, err := scanPgMeeting(s.pool.QueryRow(ctx, `SELECT id, message_id, data FROM meetings WHERE id = $1`, id))
	return m, eris.Wrapf(err, "postgres: get meeting %s", id)
}

func (s *PostgresStore) GetMeetingByMessage(ctx context.Context, messageID string) (*model.Meeting, error) {
	m, err := scanPgMeeting(s.pool.QueryRow(ctx, `SELECT id, message_id, data FROM meetings WHERE message_id = $1`, messageID))
	return m, eris.Wrapf(err, "postgres: get meeting for message %s", messageID)
}

func (s *PostgresStore) UpsertMeeting(ctx context.Context, m model.Meeting) (*model.Meeting, error) {
	if m.MessageID == "" {
		return nil, eris.New("postgres: upsert meeting: message id is required")
	}
	if m.ExtractedAt.IsZero() {
		m.ExtractedAt = time.Now().UTC()
	}
	newID := uuid.New().String()
	m.ID = newID

	data, err := json.Marshal(m)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal meeting")
	}

	var id string
	err = s.pool.QueryRow(ctx,
		`INSERT INTO meetings (id, message_id, data, extracted_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (message_id) DO UPDATE SET data = EXCLUDED.data, extracted_at = EXCLUDED.extracted_at
		 RETURNING id`,
		newID, m.MessageID, data, m.ExtractedAt,
	).Scan(&id)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert meeting for message %s", m.MessageID)
	}
	m.ID = id
	return &m, nil
}

func (s *PostgresStore) ListMeetings(ctx context.Context, filter ListFilter) ([]model.Meeting, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, message_id, data FROM meetings ORDER BY extracted_at DESC LIMIT $1 OFFSET $2`,
		listLimit(filter.Limit), filter.Offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list meetings")
	}
	defer rows.Close()

	meetings := []model.Meeting{}
	for rows.Next() {
		m, err := scanPgMeeting(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: list meetings")
		}
		meetings = append(meetings, *m)
	}
	return meetings, eris.Wrap(rows.Err(), "postgres: list meetings iterate")
}

// Budgets

func (s *PostgresStore) GetBudget(ctx context.Context, id string) (*model.Budget, error) {
	b, err := scanPgBudget(s.pool.QueryRow(ctx, `SELECT id, meeting_id, data FROM budgets WHERE id = $1`, id))
	return b, eris.Wrapf(err, "postgres: get budget %s", id)
}

func (s *PostgresStore) GetBudgetByMeeting(ctx context.Context, meetingID string) (*model.Budget, error) {
	b, err := scanPgBudget(s.pool.QueryRow(ctx, `SELECT id, meeting_id, data FROM budgets WHERE meeting_id = $1`, meetingID))
	return b, eris.Wrapf(err, "postgres: get budget for meeting %s", meetingID)
}

func (s *PostgresStore) UpsertBudget(ctx context.Context, b model.Budget) (*model.Budget, error) {
	if b.MeetingID == "" {
		return nil, eris.New("postgres: upsert budget: meeting id is required")
	}
	if b.DesignedAt.IsZero() {
		b.DesignedAt = time.Now().UTC()
	}
	newID := uuid.New().String()
	b.ID = newID

	data, err := json.Marshal(b)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal budget")
	}

	var id string
	err = s.pool.QueryRow(ctx,
		`INSERT INTO budgets (id, meeting_id, data, total_budget, designed_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (meeting_id) DO UPDATE SET
		   data = EXCLUDED.data, total_budget = EXCLUDED.total_budget, designed_at = EXCLUDED.designed_at
		 RETURNING id`,
		newID, b.MeetingID, data, b.TotalBudget, b.DesignedAt,
	).Scan(&id)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert budget for meeting %s", b.MeetingID)
	}
	b.ID = id
	return &b, nil
}

func (s *PostgresStore) ListBudgets(ctx context.Context, filter ListFilter) ([]model.Budget, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, meeting_id, data FROM budgets ORDER BY designed_at DESC LIMIT $1 OFFSET $2`,
		listLimit(filter.Limit), filter.Offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list budgets")
	}
	defer rows.Close()

	budgets := []model.Budget{}
	for rows.Next() {
		b, err := scanPgBudget(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: list budgets")
		}
		budgets = append(budgets, *b)
	}
	return budgets, eris.Wrap(rows.Err(), "postgres: list budgets iterate")
}

// Allocations

func (s *PostgresStore) CreateAllocation(ctx context.Context, a model.Allocation) (*model.Allocation, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.AllocatedAt.IsZero() {
		a.AllocatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO allocations (`+allocationColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.BudgetID, a.AllocatedTo, a.Category, a.AllocatedAmount, a.ActualSpent,
		a.AllocatedAt, a.AllocatedBy, a.Notes,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert allocation for budget %s", a.BudgetID)
	}
	return &a, nil
}

func (s *PostgresStore) GetAllocation(ctx context.Context, id string) (*model.Allocation, error) {
	a, err := scanPgAllocation(s.pool.QueryRow(ctx, `SELECT `+allocationColumns+` FROM allocations WHERE id = $1`, id))
	return a, eris.Wrapf(err, "postgres: get allocation %s", id)
}

func (s *PostgresStore) ListAllocations(ctx context.Context, budgetID string) ([]model.Allocation, error) {
	query := `SELECT ` + allocationColumns + ` FROM allocations`
	args := []any{}
	if budgetID != "" {
		query += ` WHERE budget_id = $1`
		args = append(args, budgetID)
	}
	query += ` ORDER BY allocated_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list allocations")
	}
	defer rows.Close()

	allocs := []model.Allocation{}
	for rows.Next() {
		a, err := scanPgAllocation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: list allocations")
		}
		allocs = append(allocs, *a)
	}
	return allocs, eris.Wrap(rows.Err(), "postgres: list allocations iterate")
}

func (s *PostgresStore) UpdateAllocationSpent(ctx context.Context, id string, spent float64) (*model.Allocation, error) {
	a, err := scanPgAllocation(s.pool.QueryRow(ctx,
		`UPDATE allocations SET actual_spent = $1 WHERE id = $2 RETURNING `+allocationColumns,
		spent, id,
	))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: update allocation spent %s", id)
	}
	if a == nil {
		return nil, eris.Wrapf(ErrNotFound, "allocation %s", id)
	}
	return a, nil
}

func (s *PostgresStore) SumAllocations(ctx context.Context) (*AllocationTotals, error) {
	var t AllocationTotals
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(allocated_amount), 0), COALESCE(SUM(actual_spent), 0) FROM allocations`,
	).Scan(&t.Count, &t.Allocated, &t.Spent)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: sum allocations")
	}
	return &t, nil
}

// Dead letter queue

func (s *PostgresStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	dlqEntryDefaults(&entry, uuid.New().String(), time.Now().UTC())
	_, err := s.pool.Exec(ctx,
		`INSERT INTO dead_letter_queue (`+dlqColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
		   error = $4, error_type = $5, retry_count = $6, next_retry_at = $8, last_failed_at = $10`,
		entry.ID, entry.SourceID, string(entry.Stage), entry.Error, entry.ErrorType,
		entry.RetryCount, entry.MaxRetries, entry.NextRetryAt, entry.CreatedAt, entry.LastFailedAt,
	)
	return eris.Wrap(err, "postgres: enqueue dlq")
}

func (s *PostgresStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT ` + dlqColumns + ` FROM dead_letter_queue
	          WHERE next_retry_at <= now() AND retry_count < max_retries`
	query, args := appendPgDLQFilter(query, filter)
	query += fmt.Sprintf(` ORDER BY next_retry_at ASC LIMIT $%d`, len(args)+1)
	args = append(args, listLimit(filter.Limit))
	return s.queryDLQ(ctx, "dequeue", query, args)
}

func (s *PostgresStore) ListDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT ` + dlqColumns + ` FROM dead_letter_queue WHERE true`
	query, args := appendPgDLQFilter(query, filter)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, listLimit(filter.Limit))
	return s.queryDLQ(ctx, "list", query, args)
}

func appendPgDLQFilter(query string, filter resilience.DLQFilter) (string, []any) {
	args := []any{}
	if filter.ErrorType != "" {
		args = append(args, filter.ErrorType)
		query += fmt.Sprintf(` AND error_type = $%d`, len(args))
	}
	if filter.Stage != "" {
		args = append(args, string(filter.Stage))
		query += fmt.Sprintf(` AND stage = $%d`, len(args))
	}
	return query, args
}

func (s *PostgresStore) queryDLQ(ctx context.Context, op, query string, args []any) ([]resilience.DLQEntry, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: %s dlq", op)
	}
	defer rows.Close()

	entries := []resilience.DLQEntry{}
	for rows.Next() {
		var e resilience.DLQEntry
		var stage string
		if err := rows.Scan(&e.ID, &e.SourceID, &stage, &e.Error, &e.ErrorType,
			&e.RetryCount, &e.MaxRetries, &e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dlq entry")
		}
		e.Stage = model.Stage(stage)
		entries = append(entries, e)
	}
	return entries, eris.Wrapf(rows.Err(), "postgres: %s dlq iterate", op)
}

func (s *PostgresStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE dead_letter_queue
		 SET retry_count = retry_count + 1, next_retry_at = $1, error = $2, last_failed_at = now()
		 WHERE id = $3`,
		nextRetryAt, lastErr, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: increment dlq retry %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "dlq_entry %s", id)
	}
	return nil
}

func (s *PostgresStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM dead_letter_queue WHERE id = $1`, id)
	return eris.Wrap(err, "postgres: remove dlq")
}

func (s *PostgresStore) CountDLQ(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dead_letter_queue`).Scan(&count)
	return count, eris.Wrap(err, "postgres: count dlq")
}

// Stats

func (s *PostgresStore) CountStageStatuses(ctx context.Context) (StageCounts, error) {
	rows, err := s.pool.Query(ctx, stageCountsQuery)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count stage statuses")
	}
	defer rows.Close()

	counts := newStageCounts()
	for rows.Next() {
		var stage, status string
		var n int
		if err := rows.Scan(&stage, &status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan stage count")
		}
		counts[model.Stage(stage)][model.StageStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: count stage statuses iterate")
}

// helpers

func jsonbOrNil(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

// The scanPg* helpers return (nil, nil) on pgx.ErrNoRows.

func scanPgMessage(row pgx.Row) (*model.Message, error) {
	var m model.Message
	var extraction, design, allocation string
	var raw []byte
	err := row.Scan(&m.ID, &m.MessageID, &m.ChatID, &m.SenderID, &m.SenderName, &m.Text,
		&m.DateReceived, &raw, &extraction, &design, &allocation, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.ExtractionStatus = model.StageStatus(extraction)
	m.DesignStatus = model.StageStatus(design)
	m.AllocationStatus = model.StageStatus(allocation)
	if len(raw) > 0 {
		m.RawPayload = json.RawMessage(raw)
	}
	return &m, nil
}

func scanPgMeeting(row pgx.Row) (*model.Meeting, error) {
	var id, messageID string
	var data []byte
	err := row.Scan(&id, &messageID, &data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m model.Meeting
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrap(err, "unmarshal meeting")
	}
	m.ID, m.MessageID = id, messageID
	return &m, nil
}

func scanPgBudget(row pgx.Row) (*model.Budget, error) {
	var id, meetingID string
	var data []byte
	err := row.Scan(&id, &meetingID, &data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var b model.Budget
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, eris.Wrap(err, "unmarshal budget")
	}
	b.ID, b.MeetingID = id, meetingID
	return &b, nil
}

func scanPgAllocation(row pgx.Row) (*model.Allocation, error) {
	var a model.Allocation
	err := row.Scan(&a.ID, &a.BudgetID, &a.AllocatedTo, &a.Category, &a.AllocatedAmount,
		&a.ActualSpent, &a.AllocatedAt, &a.AllocatedBy, &a.Notes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
