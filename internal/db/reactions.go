package db

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ErrReactionCapReached reports that the post already has the maximum number
// of distinct reacting users.
var ErrReactionCapReached = errors.New("reaction set is full")

type ReactionRepository struct {
	db *DB
}

func NewReactionRepository(db *DB) *ReactionRepository {
	return &ReactionRepository{db: db}
}

// Add records userID as a reactor on the post. The membership add, the size
// guard and the first-reaction insert are a single conditional upsert, so two
// concurrent adds against a nearly-full set cannot overflow the cap.
//
// The returned bool is true when the user was newly added and false when the
// user had already reacted ("already reacted" is success, not an error).
func (r *ReactionRepository) Add(ctx context.Context, postID, userID bson.ObjectID, maxUsers int) (bool, error) {
	filter := bson.M{
		"post_id": postID,
		fmt.Sprintf("user_ids.%d", maxUsers-1): bson.M{"$exists": false},
	}
	update := bson.M{"$addToSet": bson.M{"user_ids": userID}}

	result, err := r.db.reactions().UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		// A full set fails the size guard, and the upsert then trips the
		// unique post_id index instead of inserting a second document.
		if mongo.IsDuplicateKeyError(err) {
			member, memberErr := r.Has(ctx, postID, userID)
			if memberErr != nil {
				return false, memberErr
			}
			if member {
				return false, nil
			}
			return false, ErrReactionCapReached
		}
		return false, fmt.Errorf("adding reaction: %w", err)
	}

	if result.UpsertedID != nil || result.ModifiedCount == 1 {
		return true, nil
	}
	// Matched but unmodified: already a member.
	return false, nil
}

// Remove deletes userID from the post's reactor set. The returned bool is
// false when the user had not reacted.
func (r *ReactionRepository) Remove(ctx context.Context, postID, userID bson.ObjectID) (bool, error) {
	filter := bson.M{"post_id": postID, "user_ids": userID}
	update := bson.M{"$pull": bson.M{"user_ids": userID}}

	result, err := r.db.reactions().UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("removing reaction: %w", err)
	}
	return result.ModifiedCount == 1, nil
}

// Has reports whether userID has reacted to the post.
func (r *ReactionRepository) Has(ctx context.Context, postID, userID bson.ObjectID) (bool, error) {
	count, err := r.db.reactions().CountDocuments(ctx, bson.M{"post_id": postID, "user_ids": userID})
	if err != nil {
		return false, fmt.Errorf("checking reaction membership: %w", err)
	}
	return count > 0, nil
}

// Count returns the number of distinct reacting users on the post.
func (r *ReactionRepository) Count(ctx context.Context, postID bson.ObjectID) (int, error) {
	var doc struct {
		UserIDs []bson.ObjectID `bson:"user_ids"`
	}
	err := r.db.reactions().FindOne(ctx, bson.M{"post_id": postID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("querying reaction: %w", err)
	}
	return len(doc.UserIDs), nil
}

func (r *ReactionRepository) DeleteByPost(ctx context.Context, postID bson.ObjectID) error {
	if _, err := r.db.reactions().DeleteMany(ctx, bson.M{"post_id": postID}); err != nil {
		return fmt.Errorf("deleting reactions for post: %w", err)
	}
	return nil
}
