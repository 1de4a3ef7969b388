package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"inkwell/internal/models"
)

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.JoiningDate = now
	user.UpdatedAt = now

	result, err := r.db.users().InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("creating user: %w", err)
	}

	user.ID = result.InsertedID.(bson.ObjectID)
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id bson.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

// FindByIDAndEpoch resolves a user only when the given session epoch is still
// current. A mismatch covers both "user deleted" and "session invalidated".
func (r *UserRepository) FindByIDAndEpoch(ctx context.Context, id bson.ObjectID, epoch string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id, "random_str": epoch})
}

func (r *UserRepository) FindByIDs(ctx context.Context, ids []bson.ObjectID) (map[bson.ObjectID]*models.User, error) {
	users := make(map[bson.ObjectID]*models.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	cursor, err := r.db.users().Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var u models.User
		if err := cursor.Decode(&u); err != nil {
			return nil, fmt.Errorf("decoding user: %w", err)
		}
		users[u.ID] = &u
	}

	return users, cursor.Err()
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id bson.ObjectID, fullName *string, image *string) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if fullName != nil {
		set["full_name"] = *fullName
	}
	if image != nil {
		set["image"] = *image
	}

	return r.updateOne(ctx, id, bson.M{"$set": set})
}

func (r *UserRepository) SetLastLogin(ctx context.Context, id bson.ObjectID, at time.Time) error {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"last_login": at.UTC()}})
}

func (r *UserRepository) SetPassword(ctx context.Context, id bson.ObjectID, hash string) error {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{
		"password":   hash,
		"updated_at": time.Now().UTC(),
	}})
}

// RotateSessionEpoch regenerates the user's session epoch, invalidating every
// previously issued token at its next validation.
func (r *UserRepository) RotateSessionEpoch(ctx context.Context, id bson.ObjectID) (string, error) {
	epoch := models.NewSessionEpoch()
	err := r.updateOne(ctx, id, bson.M{"$set": bson.M{
		"random_str": epoch,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return "", err
	}
	return epoch, nil
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	err := r.db.users().FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) updateOne(ctx context.Context, id bson.ObjectID, update bson.M) error {
	result, err := r.db.users().UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
