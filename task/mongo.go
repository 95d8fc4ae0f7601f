package task

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore persists tasks and summary references in MongoDB. Collection
// names match the original deployment so existing data stays readable.
type MongoStore struct {
	client   *mongo.Client
	tasks    *mongo.Collection
	messages *mongo.Collection
}

// NewMongoStore connects to MongoDB at uri and uses the named database.
// The caller is responsible for calling Close.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	db := client.Database(database)
	return &MongoStore{
		client:   client,
		tasks:    db.Collection("user_tasks"),
		messages: db.Collection("daily_task_messages"),
	}, nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// InsertTasks persists a batch of new tasks with InsertMany, which writes
// documents in order and stops at the first failure.
func (s *MongoStore) InsertTasks(ctx context.Context, tasks []*Task) error {
	if len(tasks) == 0 {
		return nil
	}
	now := time.Now().UTC()
	docs := make([]any, 0, len(tasks))
	for _, t := range tasks {
		if t.ID == "" {
			t.ID = uuid.New().String()
		}
		t.CreatedAt = now
		docs = append(docs, t)
	}
	if _, err := s.tasks.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert tasks: %w", err)
	}
	return nil
}

// ListTasks returns all tasks for an owner and date in insertion order.
// ObjectIDs are monotonic per client, so sorting on _id preserves it.
func (s *MongoStore) ListTasks(ctx context.Context, owner, date string) ([]*Task, error) {
	cur, err := s.tasks.Find(ctx,
		bson.M{"user_id": owner, "date_today": date},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	var tasks []*Task
	if err := cur.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	return tasks, nil
}

// MarkCompleted sets the completion flag on the tasks with the given IDs.
func (s *MongoStore) MarkCompleted(ctx context.Context, owner, date string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.tasks.UpdateMany(ctx,
		bson.M{"user_id": owner, "date_today": date, "task_id": bson.M{"$in": ids}},
		bson.M{"$set": bson.M{"completed": true}})
	if err != nil {
		return 0, fmt.Errorf("mark completed: %w", err)
	}
	return res.MatchedCount, nil
}

// InsertSummaryRef records a newly posted summary message.
func (s *MongoStore) InsertSummaryRef(ctx context.Context, ref *SummaryRef) error {
	ref.CreatedAt = time.Now().UTC()
	if _, err := s.messages.InsertOne(ctx, ref); err != nil {
		return fmt.Errorf("insert summary ref: %w", err)
	}
	return nil
}

// ListSummaryRefs returns all summary references in insertion order.
func (s *MongoStore) ListSummaryRefs(ctx context.Context, owner, date string) ([]*SummaryRef, error) {
	cur, err := s.messages.Find(ctx,
		bson.M{"user_id": owner, "date_today": date},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list summary refs: %w", err)
	}
	var refs []*SummaryRef
	if err := cur.All(ctx, &refs); err != nil {
		return nil, fmt.Errorf("decode summary refs: %w", err)
	}
	return refs, nil
}

// LatestSummaryRef returns the most recently inserted reference.
func (s *MongoStore) LatestSummaryRef(ctx context.Context, owner, date string) (*SummaryRef, error) {
	var r SummaryRef
	err := s.messages.FindOne(ctx,
		bson.M{"user_id": owner, "date_today": date},
		options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}})).Decode(&r)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNoSummary
	}
	if err != nil {
		return nil, fmt.Errorf("latest summary ref: %w", err)
	}
	return &r, nil
}

// DeleteSummaryRefsExcept removes every reference whose message ID differs
// from keep.
func (s *MongoStore) DeleteSummaryRefsExcept(ctx context.Context, owner, date, keep string) (int64, error) {
	res, err := s.messages.DeleteMany(ctx,
		bson.M{"user_id": owner, "date_today": date, "task_message": bson.M{"$ne": keep}})
	if err != nil {
		return 0, fmt.Errorf("delete summary refs: %w", err)
	}
	return res.DeletedCount, nil
}
