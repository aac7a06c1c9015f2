package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sells-group/labsync/internal/model"
	"github.com/sells-group/labsync/internal/resilience"
)

// Collection names.
const (
	collMessages    = "messages"
	collMeetings    = "meetings"
	collBudgets     = "budgets"
	collAllocations = "allocations"
	collDLQ         = "dead_letter_queue"
)

// MongoStore implements Store on a MongoDB database.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongo connects to uri and uses the named database.
func NewMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	if database == "" {
		database = "labsync"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, eris.Wrap(err, "mongo: connect")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, eris.Wrap(err, "mongo: ping")
	}
	return &MongoStore{client: client, db: client.Database(database)}, nil
}

func (s *MongoStore) coll(name string) *mongo.Collection { return s.db.Collection(name) }

// Migrate creates the uniqueness indexes the data model relies on.
func (s *MongoStore) Migrate(ctx context.Context) error {
	unique := map[string]string{
		collMessages: "message_id",
		collMeetings: "message_id",
		collBudgets:  "meeting_id",
	}
	for coll, key := range unique {
		_, err := s.coll(coll).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: key, Value: 1}},
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			return eris.Wrapf(err, "mongo: create %s.%s index", coll, key)
		}
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.client.Ping(ctx, nil), "mongo: ping")
}

func (s *MongoStore) Close() error {
	return eris.Wrap(s.client.Disconnect(context.Background()), "mongo: disconnect")
}

// Messages

func (s *MongoStore) UpsertMessage(ctx context.Context, msg model.Message) (*model.Message, bool, error) {
	newID := uuid.New().String()
	prepareMessage(&msg, newID, time.Now().UTC())

	update := bson.M{
		"$set": bson.M{
			"chat_id":       msg.ChatID,
			"sender_id":     msg.SenderID,
			"sender_name":   msg.SenderName,
			"text":          msg.Text,
			"date_received": msg.DateReceived.UTC(),
			"raw_payload":   []byte(msg.RawPayload),
			"updated_at":    msg.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"_id":               newID,
			"extraction_status": msg.ExtractionStatus,
			"design_status":     msg.DesignStatus,
			"allocation_status": msg.AllocationStatus,
			"created_at":        msg.CreatedAt,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var out model.Message
	err := s.coll(collMessages).FindOneAndUpdate(ctx, bson.M{"message_id": msg.MessageID}, update, opts).Decode(&out)
	if err != nil {
		return nil, false, eris.Wrapf(err, "mongo: upsert message %s", msg.MessageID)
	}
	return &out, out.ID == newID, nil
}

func (s *MongoStore) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	var m model.Message
	ok, err := findOne(ctx, s.coll(collMessages), bson.M{"_id": id}, &m)
	if err != nil || !ok {
		return nil, eris.Wrapf(err, "mongo: get message %s", id)
	}
	return &m, nil
}

func (s *MongoStore) GetMessageByExternalID(ctx context.Context, messageID string) (*model.Message, error) {
	var m model.Message
	ok, err := findOne(ctx, s.coll(collMessages), bson.M{"message_id": messageID}, &m)
	if err != nil || !ok {
		return nil, eris.Wrapf(err, "mongo: get message by external id %s", messageID)
	}
	return &m, nil
}

func (s *MongoStore) ListMessages(ctx context.Context, filter MessageFilter) ([]model.Message, error) {
	q := bson.M{}
	if filter.Stage != "" && filter.Status != "" {
		col, err := statusColumn(filter.Stage)
		if err != nil {
			return nil, err
		}
		q[col] = filter.Status
	}
	if filter.NotStage != "" && filter.NotStatus != "" {
		col, err := statusColumn(filter.NotStage)
		if err != nil {
			return nil, err
		}
		if _, dup := q[col]; dup {
			q["$and"] = bson.A{bson.M{col: bson.M{"$ne": filter.NotStatus}}}
		} else {
			q[col] = bson.M{"$ne": filter.NotStatus}
		}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(listLimit(filter.Limit))).
		SetSkip(int64(filter.Offset))

	msgs := []model.Message{}
	if err := findAll(ctx, s.coll(collMessages), q, opts, &msgs); err != nil {
		return nil, eris.Wrap(err, "mongo: list messages")
	}
	return msgs, nil
}

func (s *MongoStore) UpdateStageStatus(ctx context.Context, id string, stage model.Stage, status model.StageStatus) error {
	col, err := statusColumn(stage)
	if err != nil {
		return err
	}
	res, err := s.coll(collMessages).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{col: status, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return eris.Wrapf(err, "mongo: update %s status %s", stage, id)
	}
	if res.MatchedCount == 0 {
		return eris.Wrapf(ErrNotFound, "message %s", id)
	}
	return nil
}

// Meetings

func (s *MongoStore) GetMeeting(ctx context.Context, id string) (*model.Meeting, error) {
	var m model.Meeting
	ok, err := findOne(ctx, s.coll(collMeetings), bson.M{"_id": id}, &m)
	if err != nil || !ok {
		return nil, eris.Wrapf(err, "mongo: get meeting %s", id)
	}
	return &m, nil
}

func (s *MongoStore) GetMeetingByMessage(ctx context.Context, messageID string) (*model.Meeting, error) {
	var m model.Meeting
	ok, err := findOne(ctx, s.coll(collMeetings), bson.M{"message_id": messageID}, &m)
	if err != nil || !ok {
		return nil, eris.Wrapf(err, "mongo: get meeting for message %s", messageID)
	}
	return &m, nil
}

func (s *MongoStore) UpsertMeeting(ctx context.Context, m model.Meeting) (*model.Meeting, error) {
	if m.MessageID == "" {
		return nil, eris.New("mongo: upsert meeting: message id is required")
	}
	if m.ExtractedAt.IsZero() {
		m.ExtractedAt = time.Now().UTC()
	}
	var out model.Meeting
	if err := s.upsertKeyed(ctx, collMeetings, "message_id", m.MessageID, m, &out); err != nil {
		return nil, eris.Wrapf(err, "mongo: upsert meeting for message %s", m.MessageID)
	}
	return &out, nil
}

func (s *MongoStore) ListMeetings(ctx context.Context, filter ListFilter) ([]model.Meeting, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "extracted_at", Value: -1}}).
		SetLimit(int64(listLimit(filter.Limit))).
		SetSkip(int64(filter.Offset))

	meetings := []model.Meeting{}
	if err := findAll(ctx, s.coll(collMeetings), bson.M{}, opts, &meetings); err != nil {
		return nil, eris.Wrap(err, "mongo: list meetings")
	}
	return meetings, nil
}

// Budgets

func (s *MongoStore) GetBudget(ctx context.Context, id string) (*model.Budget, error) {
	var b model.Budget
	ok, err := findOne(ctx, s.coll(collBudgets), bson.M{"_id": id}, &b)
	if err != nil || !ok {
		return nil, eris.Wrapf(err, "mongo: get budget %s", id)
	}
	return &b, nil
}

func (s *MongoStore) GetBudgetByMeeting(ctx context.Context, meetingID string) (*model.Budget, error) {
	var b model.Budget
	ok, err := findOne(ctx, s.coll(collBudgets), bson.M{"meeting_id": meetingID}, &b)
	if err != nil || !ok {
		return nil, eris.Wrapf(err, "mongo: get budget for meeting %s", meetingID)
	}
	return &b, nil
}

func (s *MongoStore) UpsertBudget(ctx context.Context, b model.Budget) (*model.Budget, error) {
	if b.MeetingID == "" {
		return nil, eris.New("mongo: upsert budget: meeting id is required")
	}
	if b.DesignedAt.IsZero() {
		b.DesignedAt = time.Now().UTC()
	}
	var out model.Budget
	if err := s.upsertKeyed(ctx, collBudgets, "meeting_id", b.MeetingID, b, &out); err != nil {
		return nil, eris.Wrapf(err, "mongo: upsert budget for meeting %s", b.MeetingID)
	}
	return &out, nil
}

func (s *MongoStore) ListBudgets(ctx context.Context, filter ListFilter) ([]model.Budget, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "designed_at", Value: -1}}).
		SetLimit(int64(listLimit(filter.Limit))).
		SetSkip(int64(filter.Offset))

	budgets := []model.Budget{}
	if err := findAll(ctx, s.coll(collBudgets), bson.M{}, opts, &budgets); err != nil {
		return nil, eris.Wrap(err, "mongo: list budgets")
	}
	return budgets, nil
}

// Allocations

func (s *MongoStore) CreateAllocation(ctx context.Context, a model.Allocation) (*model.Allocation, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.AllocatedAt.IsZero() {
		a.AllocatedAt = time.Now().UTC()
	}
	if _, err := s.coll(collAllocations).InsertOne(ctx, a); err != nil {
		return nil, eris.Wrapf(err, "mongo: insert allocation for budget %s", a.BudgetID)
	}
	return &a, nil
}

func (s *MongoStore) GetAllocation(ctx context.Context, id string) (*model.Allocation, error) {
	var a model.Allocation
	ok, err := findOne(ctx, s.coll(collAllocations), bson.M{"_id": id}, &a)
	if err != nil || !ok {
		return nil, eris.Wrapf(err, "mongo: get allocation %s", id)
	}
	return &a, nil
}

func (s *MongoStore) ListAllocations(ctx context.Context, budgetID string) ([]model.Allocation, error) {
	q := bson.M{}
	if budgetID != "" {
		q["budget_id"] = budgetID
	}
	opts := options.Find().SetSort(bson.D{{Key: "allocated_at", Value: -1}})

	allocs := []model.Allocation{}
	if err := findAll(ctx, s.coll(collAllocations), q, opts, &allocs); err != nil {
		return nil, eris.Wrap(err, "mongo: list allocations")
	}
	return allocs, nil
}

func (s *MongoStore) UpdateAllocationSpent(ctx context.Context, id string, spent float64) (*model.Allocation, error) {
	var a model.Allocation
	err := s.coll(collAllocations).FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"actual_spent": spent}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, eris.Wrapf(ErrNotFound, "allocation %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "mongo: update allocation spent %s", id)
	}
	return &a, nil
}

func (s *MongoStore) SumAllocations(ctx context.Context) (*AllocationTotals, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "allocated", Value: bson.D{{Key: "$sum", Value: "$allocated_amount"}}},
			{Key: "spent", Value: bson.D{{Key: "$sum", Value: "$actual_spent"}}},
		}}},
	}
	cur, err := s.coll(collAllocations).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, eris.Wrap(err, "mongo: sum allocations")
	}
	var out []struct {
		Count     int     `bson:"count"`
		Allocated float64 `bson:"allocated"`
		Spent     float64 `bson:"spent"`
	}
	if err := cur.All(ctx, &out); err != nil {
		return nil, eris.Wrap(err, "mongo: decode allocation totals")
	}
	t := &AllocationTotals{}
	if len(out) > 0 {
		t.Count, t.Allocated, t.Spent = out[0].Count, out[0].Allocated, out[0].Spent
	}
	return t, nil
}

// Dead letter queue

func (s *MongoStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	dlqEntryDefaults(&entry, uuid.New().String(), time.Now().UTC())
	_, err := s.coll(collDLQ).UpdateOne(ctx,
		bson.M{"_id": entry.ID},
		bson.M{
			"$set": bson.M{
				"error":          entry.Error,
				"error_type":     entry.ErrorType,
				"retry_count":    entry.RetryCount,
				"next_retry_at":  entry.NextRetryAt,
				"last_failed_at": entry.LastFailedAt,
			},
			"$setOnInsert": bson.M{
				"source_id":   entry.SourceID,
				"stage":       entry.Stage,
				"max_retries": entry.MaxRetries,
				"created_at":  entry.CreatedAt,
			},
		},
		options.Update().SetUpsert(true),
	)
	return eris.Wrap(err, "mongo: enqueue dlq")
}

func (s *MongoStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	q := dlqQuery(filter)
	q["next_retry_at"] = bson.M{"$lte": time.Now().UTC()}
	q["$expr"] = bson.M{"$lt": bson.A{"$retry_count", "$max_retries"}}
	opts := options.Find().
		SetSort(bson.D{{Key: "next_retry_at", Value: 1}}).
		SetLimit(int64(listLimit(filter.Limit)))

	entries := []resilience.DLQEntry{}
	if err := findAll(ctx, s.coll(collDLQ), q, opts, &entries); err != nil {
		return nil, eris.Wrap(err, "mongo: dequeue dlq")
	}
	return entries, nil
}

func (s *MongoStore) ListDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(listLimit(filter.Limit)))

	entries := []resilience.DLQEntry{}
	if err := findAll(ctx, s.coll(collDLQ), dlqQuery(filter), opts, &entries); err != nil {
		return nil, eris.Wrap(err, "mongo: list dlq")
	}
	return entries, nil
}

func dlqQuery(filter resilience.DLQFilter) bson.M {
	q := bson.M{}
	if filter.ErrorType != "" {
		q["error_type"] = filter.ErrorType
	}
	if filter.Stage != "" {
		q["stage"] = filter.Stage
	}
	return q
}

func (s *MongoStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	res, err := s.coll(collDLQ).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"retry_count": 1},
			"$set": bson.M{"next_retry_at": nextRetryAt, "error": lastErr, "last_failed_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return eris.Wrapf(err, "mongo: increment dlq retry %s", id)
	}
	if res.MatchedCount == 0 {
		return eris.Wrapf(ErrNotFound, "dlq_entry %s", id)
	}
	return nil
}

func (s *MongoStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.coll(collDLQ).DeleteOne(ctx, bson.M{"_id": id})
	return eris.Wrap(err, "mongo: remove dlq")
}

func (s *MongoStore) CountDLQ(ctx context.Context) (int, error) {
	n, err := s.coll(collDLQ).CountDocuments(ctx, bson.M{})
	return int(n), eris.Wrap(err, "mongo: count dlq")
}

// Stats

func (s *MongoStore) CountStageStatuses(ctx context.Context) (StageCounts, error) {
	counts := newStageCounts()
	for _, stage := range model.Stages {
		col, _ := statusColumn(stage)
		cur, err := s.coll(collMessages).Aggregate(ctx, mongo.Pipeline{
			{{Key: "$group", Value: bson.D{
				{Key: "_id", Value: "$" + col},
				{Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}},
			}}},
		})
		if err != nil {
			return nil, eris.Wrapf(err, "mongo: count %s statuses", stage)
		}
		var groups []struct {
			Status string `bson:"_id"`
			N      int    `bson:"n"`
		}
		if err := cur.All(ctx, &groups); err != nil {
			return nil, eris.Wrapf(err, "mongo: decode %s statuses", stage)
		}
		for _, g := range groups {
			counts[stage][model.StageStatus(g.Status)] = g.N
		}
	}
	return counts, nil
}

// helpers

// upsertKeyed replaces every field of doc on the record matching key=value,
// keeping the existing _id or assigning a fresh one on insert.
func (s *MongoStore) upsertKeyed(ctx context.Context, coll, key, value string, doc, out any) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return eris.Wrap(err, "marshal")
	}
	var fields bson.M
	if err := bson.Unmarshal(raw, &fields); err != nil {
		return eris.Wrap(err, "unmarshal")
	}
	delete(fields, "_id")

	update := bson.M{
		"$set":         fields,
		"$setOnInsert": bson.M{"_id": uuid.New().String()},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	return s.coll(coll).FindOneAndUpdate(ctx, bson.M{key: value}, update, opts).Decode(out)
}

// findOne decodes the first match into out. It reports false when nothing
// matched.
func findOne(ctx context.Context, coll *mongo.Collection, filter bson.M, out any) (bool, error) {
	err := coll.FindOne(ctx, filter).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func findAll(ctx context.Context, coll *mongo.Collection, filter bson.M, opts *options.FindOptions, out any) error {
	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}
