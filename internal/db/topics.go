package db

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"inkwell/internal/models"
)

type TopicRepository struct {
	db *DB
}

func NewTopicRepository(db *DB) *TopicRepository {
	return &TopicRepository{db: db}
}

// GetOrCreate resolves a topic by slug, creating it on first reference. The
// upsert is atomic, so two concurrent references to a new topic produce a
// single document; only the insert records the creator.
func (r *TopicRepository) GetOrCreate(ctx context.Context, name, slug string, userID bson.ObjectID) (*models.Topic, error) {
	filter := bson.M{"slug": slug}
	update := bson.M{"$setOnInsert": bson.M{
		"name":       name,
		"user_id":    userID,
		"created_at": time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var topic models.Topic
	if err := r.db.topics().FindOneAndUpdate(ctx, filter, update, opts).Decode(&topic); err != nil {
		return nil, fmt.Errorf("get-or-create topic %q: %w", slug, err)
	}

	return &topic, nil
}

func (r *TopicRepository) FindByIDs(ctx context.Context, ids []bson.ObjectID) ([]*models.Topic, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	cursor, err := r.db.topics().Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("querying topics: %w", err)
	}
	defer cursor.Close(ctx)

	var topics []*models.Topic
	if err := cursor.All(ctx, &topics); err != nil {
		return nil, fmt.Errorf("decoding topics: %w", err)
	}
	return topics, nil
}

func (r *TopicRepository) List(ctx context.Context, query string, limit, offset int64) ([]*models.Topic, int64, error) {
	filter := bson.M{}
	if query != "" {
		filter["name"] = bson.M{"$regex": regexp.QuoteMeta(query), "$options": "i"}
	}

	count, err := r.db.topics().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("counting topics: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetLimit(limit).
		SetSkip(offset)

	cursor, err := r.db.topics().Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("querying topics: %w", err)
	}
	defer cursor.Close(ctx)

	var topics []*models.Topic
	if err := cursor.All(ctx, &topics); err != nil {
		return nil, 0, fmt.Errorf("decoding topics: %w", err)
	}

	return topics, count, nil
}
