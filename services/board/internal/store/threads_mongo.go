package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/board-platform/services/board/internal/domain"
)

const threadsCollection = "threads"

// MongoThreadStore keeps one document per thread with messages and comments
// embedded, so every Save is a single-document replace.
type MongoThreadStore struct {
	coll *mongo.Collection
}

func NewMongoThreadStore(db *mongo.Database) *MongoThreadStore {
	return &MongoThreadStore{coll: db.Collection(threadsCollection)}
}

// EnsureIndexes creates the listing indexes. Safe to call on every start.
func (s *MongoThreadStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "updated", Value: -1}}},
		{Keys: bson.D{{Key: "country", Value: 1}, {Key: "language", Value: 1}, {Key: "updated", Value: -1}}},
	})
	return err
}

func (s *MongoThreadStore) Create(ctx context.Context, t domain.Thread) error {
	if _, err := s.coll.InsertOne(ctx, t); err != nil {
		return fmt.Errorf("%w: insert thread: %w", domain.ErrStorage, err)
	}
	return nil
}

func (s *MongoThreadStore) Get(ctx context.Context, id string) (domain.Thread, error) {
	var t domain.Thread
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Thread{}, fmt.Errorf("%w: thread %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.Thread{}, fmt.Errorf("%w: find thread: %w", domain.ErrStorage, err)
	}
	return t, nil
}

func (s *MongoThreadStore) Save(ctx context.Context, t domain.Thread) error {
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": t.ID}, t)
	if err != nil {
		return fmt.Errorf("%w: replace thread: %w", domain.ErrStorage, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: thread %s", domain.ErrNotFound, t.ID)
	}
	return nil
}

func (s *MongoThreadStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("%w: delete thread: %w", domain.ErrStorage, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: thread %s", domain.ErrNotFound, id)
	}
	return nil
}

func (s *MongoThreadStore) List(ctx context.Context, f ListFilter) ([]domain.Thread, error) {
	query := bson.M{}
	if f.Country != "" {
		query["country"] = f.Country
	}
	if f.Language != "" {
		query["language"] = f.Language
	}

	opts := options.Find().
		SetProjection(bson.M{"messages": 0}).
		SetSort(bson.D{{Key: "updated", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(max(f.Offset, 0)))
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cur, err := s.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: list threads: %w", domain.ErrStorage, err)
	}
	out := []domain.Thread{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("%w: decode threads: %w", domain.ErrStorage, err)
	}
	return out, nil
}

func (s *MongoThreadStore) Ping(ctx context.Context) error {
	return s.coll.Database().Client().Ping(ctx, nil)
}
