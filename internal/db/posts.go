package db

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"inkwell/internal/models"
)

type PostRepository struct {
	db *DB
}

func NewPostRepository(db *DB) *PostRepository {
	return &PostRepository{db: db}
}

// Create inserts the post. A slug collision surfaces as ErrDuplicate so the
// caller can retry with a different slug.
func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	now := time.Now().UTC()
	post.CreatedAt = now
	post.UpdatedAt = now

	result, err := r.db.posts().InsertOne(ctx, post)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("creating post: %w", err)
	}

	post.ID = result.InsertedID.(bson.ObjectID)
	return nil
}

func (r *PostRepository) FindBySlug(ctx context.Context, slug string) (*models.Post, error) {
	var p models.Post
	err := r.db.posts().FindOne(ctx, bson.M{"slug": slug}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying post: %w", err)
	}
	return &p, nil
}

func (r *PostRepository) FindByID(ctx context.Context, id bson.ObjectID) (*models.Post, error) {
	var p models.Post
	err := r.db.posts().FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying post: %w", err)
	}
	return &p, nil
}

// Update applies the given $set fields to the post.
func (r *PostRepository) Update(ctx context.Context, id bson.ObjectID, set bson.M) error {
	set["updated_at"] = time.Now().UTC()
	result, err := r.db.posts().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("updating post: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostRepository) Delete(ctx context.Context, id bson.ObjectID) error {
	result, err := r.db.posts().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("deleting post: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListFilter describes a public post listing. Only published posts are ever
// returned; unpublished drafts are reachable solely through FindBySlug plus
// the visibility policy.
type ListFilter struct {
	AuthorID *bson.ObjectID
	TopicIDs []bson.ObjectID
	Query    string
	Limit    int64
	Offset   int64
}

func (r *PostRepository) List(ctx context.Context, f ListFilter) ([]*models.Post, int64, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"publish_at": bson.M{"$ne": nil, "$lte": now},
	}
	if f.AuthorID != nil {
		filter["author_id"] = *f.AuthorID
	}
	if len(f.TopicIDs) > 0 {
		filter["topic_ids"] = bson.M{"$in": f.TopicIDs}
	}
	if f.Query != "" {
		filter["title"] = bson.M{"$regex": regexp.QuoteMeta(f.Query), "$options": "i"}
	}

	count, err := r.db.posts().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("counting posts: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "publish_at", Value: -1}}).
		SetLimit(f.Limit).
		SetSkip(f.Offset)

	cursor, err := r.db.posts().Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("querying posts: %w", err)
	}
	defer cursor.Close(ctx)

	var posts []*models.Post
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, 0, fmt.Errorf("decoding posts: %w", err)
	}

	return posts, count, nil
}

// IncTotalComments adjusts the denormalized comment counter.
func (r *PostRepository) IncTotalComments(ctx context.Context, id bson.ObjectID, delta int64) error {
	return r.inc(ctx, id, "total_comments", delta)
}

// IncTotalReactions adjusts the denormalized reaction counter.
func (r *PostRepository) IncTotalReactions(ctx context.Context, id bson.ObjectID, delta int64) error {
	return r.inc(ctx, id, "total_reactions", delta)
}

func (r *PostRepository) inc(ctx context.Context, id bson.ObjectID, field string, delta int64) error {
	_, err := r.db.posts().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{field: delta}})
	if err != nil {
		return fmt.Errorf("incrementing %s: %w", field, err)
	}
	return nil
}
