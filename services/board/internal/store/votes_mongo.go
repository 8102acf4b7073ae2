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

const votesCollection = "user_votes"

type voteDoc struct {
	User    string      `bson:"user"`
	Content string      `bson:"content"`
	Vote    domain.Vote `bson:"vote"`
}

// MongoVoteLedger stores one document per (user, content), backed by a
// unique compound index.
type MongoVoteLedger struct {
	coll *mongo.Collection
}

func NewMongoVoteLedger(db *mongo.Database) *MongoVoteLedger {
	return &MongoVoteLedger{coll: db.Collection(votesCollection)}
}

func (l *MongoVoteLedger) EnsureIndexes(ctx context.Context) error {
	_, err := l.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user", Value: 1}, {Key: "content", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("user_content_unique"),
	})
	return err
}

func (l *MongoVoteLedger) FindVote(ctx context.Context, user, content string) (domain.Vote, bool, error) {
	var doc voteDoc
	err := l.coll.FindOne(ctx, bson.M{"user": user, "content": content}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.VoteNone, false, nil
	}
	if err != nil {
		return domain.VoteNone, false, fmt.Errorf("%w: find vote: %w", domain.ErrStorage, err)
	}
	return doc.Vote, true, nil
}

func (l *MongoVoteLedger) FindVotes(ctx context.Context, user string, contentIDs []string) (map[string]domain.Vote, error) {
	out := make(map[string]domain.Vote, len(contentIDs))
	if len(contentIDs) == 0 {
		return out, nil
	}
	cur, err := l.coll.Find(ctx, bson.M{"user": user, "content": bson.M{"$in": contentIDs}})
	if err != nil {
		return nil, fmt.Errorf("%w: find votes: %w", domain.ErrStorage, err)
	}
	var docs []voteDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: decode votes: %w", domain.ErrStorage, err)
	}
	for _, d := range docs {
		out[d.Content] = d.Vote
	}
	return out, nil
}

func (l *MongoVoteLedger) RecordVote(ctx context.Context, user, content string, next, previous domain.Vote) error {
	if !next.Valid() {
		return fmt.Errorf("%w: vote must be 1 or -1", domain.ErrValidation)
	}
	if previous == next {
		return nil
	}
	filter := bson.M{"user": user, "content": content}
	update := bson.M{"$set": bson.M{"vote": next}}
	opts := options.Update()
	if previous == domain.VoteNone {
		// An entry written by a concurrent request is overwritten rather
		// than tripping the unique index.
		opts.SetUpsert(true)
	}
	if _, err := l.coll.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("%w: record vote: %w", domain.ErrStorage, err)
	}
	return nil
}

func (l *MongoVoteLedger) Ping(ctx context.Context) error {
	return l.coll.Database().Client().Ping(ctx, nil)
}
