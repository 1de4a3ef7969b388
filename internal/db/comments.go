package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"inkwell/internal/models"
)

var (
	// ErrReplyCapReached reports that a comment's embedded reply list is
	// already at its configured capacity.
	ErrReplyCapReached = errors.New("reply list is full")

	// ErrNoReplyMatch reports that no reply matched both the given id and
	// the acting user; the caller treats it as a permission failure.
	ErrNoReplyMatch = errors.New("no reply matched id and owner")
)

type CommentRepository struct {
	db *DB
}

func NewCommentRepository(db *DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	now := time.Now().UTC()
	comment.CreatedAt = now
	comment.UpdatedAt = now
	if comment.Replies == nil {
		comment.Replies = []models.Reply{}
	}

	result, err := r.db.comments().InsertOne(ctx, comment)
	if err != nil {
		return fmt.Errorf("creating comment: %w", err)
	}

	comment.ID = result.InsertedID.(bson.ObjectID)
	return nil
}

func (r *CommentRepository) FindByID(ctx context.Context, id, postID bson.ObjectID) (*models.Comment, error) {
	var c models.Comment
	err := r.db.comments().FindOne(ctx, bson.M{"_id": id, "post_id": postID}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying comment: %w", err)
	}
	return &c, nil
}

func (r *CommentRepository) ListByPost(ctx context.Context, postID bson.ObjectID, limit, offset int64) ([]*models.Comment, int64, error) {
	filter := bson.M{"post_id": postID}

	count, err := r.db.comments().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("counting comments: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit).
		SetSkip(offset)

	cursor, err := r.db.comments().Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("querying comments: %w", err)
	}
	defer cursor.Close(ctx)

	var comments []*models.Comment
	if err := cursor.All(ctx, &comments); err != nil {
		return nil, 0, fmt.Errorf("decoding comments: %w", err)
	}

	return comments, count, nil
}

func (r *CommentRepository) UpdateDescription(ctx context.Context, id bson.ObjectID, description string) error {
	result, err := r.db.comments().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"description": description,
		"updated_at":  time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("updating comment: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CommentRepository) Delete(ctx context.Context, id bson.ObjectID) error {
	result, err := r.db.comments().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("deleting comment: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CommentRepository) DeleteByPost(ctx context.Context, postID bson.ObjectID) error {
	if _, err := r.db.comments().DeleteMany(ctx, bson.M{"post_id": postID}); err != nil {
		return fmt.Errorf("deleting comments for post: %w", err)
	}
	return nil
}

// AppendReply pushes a reply onto the comment only while the list holds fewer
// than maxReplies entries. The size guard and the append are one conditional
// update, so concurrent appends can never overflow the cap.
func (r *CommentRepository) AppendReply(ctx context.Context, commentID, postID bson.ObjectID, reply *models.Reply, maxReplies int) error {
	filter := bson.M{
		"_id":     commentID,
		"post_id": postID,
		fmt.Sprintf("replies.%d", maxReplies-1): bson.M{"$exists": false},
	}
	update := bson.M{
		"$push": bson.M{"replies": reply},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}

	result, err := r.db.comments().UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("appending reply: %w", err)
	}
	if result.ModifiedCount == 1 {
		return nil
	}

	// No match: either the comment is missing or the list is full.
	if _, err := r.FindByID(ctx, commentID, postID); err != nil {
		return err
	}
	return ErrReplyCapReached
}

// UpdateReply rewrites a reply's description where both the reply id and the
// owning user match. A non-match is ErrNoReplyMatch; the comment itself not
// existing is ErrNotFound.
func (r *CommentRepository) UpdateReply(ctx context.Context, commentID, postID, replyID, userID bson.ObjectID, description string) error {
	filter := bson.M{
		"_id":     commentID,
		"post_id": postID,
		"replies": bson.M{"$elemMatch": bson.M{"id": replyID, "user_id": userID}},
	}
	update := bson.M{"$set": bson.M{
		"replies.$[reply].description": description,
		"replies.$[reply].updated_at":  time.Now().UTC(),
	}}
	opts := options.UpdateOne().SetArrayFilters([]interface{}{bson.M{"reply.id": replyID}})

	result, err := r.db.comments().UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("updating reply: %w", err)
	}
	if result.ModifiedCount == 1 {
		return nil
	}

	if _, err := r.FindByID(ctx, commentID, postID); err != nil {
		return err
	}
	return ErrNoReplyMatch
}

// RemoveReply pulls a reply where both the reply id and the owning user
// match, with the same error contract as UpdateReply.
func (r *CommentRepository) RemoveReply(ctx context.Context, commentID, postID, replyID, userID bson.ObjectID) error {
	member := bson.M{"id": replyID, "user_id": userID}
	filter := bson.M{
		"_id":     commentID,
		"post_id": postID,
		"replies": bson.M{"$elemMatch": member},
	}
	update := bson.M{"$pull": bson.M{"replies": member}}

	result, err := r.db.comments().UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("removing reply: %w", err)
	}
	if result.ModifiedCount == 1 {
		return nil
	}

	if _, err := r.FindByID(ctx, commentID, postID); err != nil {
		return err
	}
	return ErrNoReplyMatch
}
