package db

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")
)

type DB struct {
	client   *mongo.Client
	database *mongo.Database
}

func Connect(ctx context.Context, uri, name string) (*DB, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	d := &DB{
		client:   client,
		database: client.Database(name),
	}
	if err := d.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("creating indexes: %w", err)
	}

	return d, nil
}

func (db *DB) Close(ctx context.Context) error {
	return db.client.Disconnect(ctx)
}

func (db *DB) Ping(ctx context.Context) error {
	return db.client.Ping(ctx, readpref.Primary())
}

// Drop removes every collection of the backing database.
func (db *DB) Drop(ctx context.Context) error {
	return db.database.Drop(ctx)
}

func (db *DB) users() *mongo.Collection     { return db.database.Collection("user") }
func (db *DB) posts() *mongo.Collection     { return db.database.Collection("post") }
func (db *DB) topics() *mongo.Collection    { return db.database.Collection("topic") }
func (db *DB) comments() *mongo.Collection  { return db.database.Collection("comment") }
func (db *DB) reactions() *mongo.Collection { return db.database.Collection("reaction") }

func (db *DB) ensureIndexes(ctx context.Context) error {
	indexes := map[*mongo.Collection][]mongo.IndexModel{
		db.users(): {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		db.posts(): {
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "author_id", Value: 1}}},
			{Keys: bson.D{{Key: "publish_at", Value: 1}}},
			{Keys: bson.D{{Key: "topic_ids", Value: 1}}},
		},
		db.topics(): {
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		db.comments(): {
			{Keys: bson.D{{Key: "post_id", Value: 1}}},
		},
		// The unique post_id index backs the capped conditional upsert in
		// ReactionRepository.Add: an upsert racing against a full set fails
		// with a duplicate key instead of inserting a second document.
		db.reactions(): {
			{Keys: bson.D{{Key: "post_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}

	for coll, models := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("indexes for %s: %w", coll.Name(), err)
		}
	}

	return nil
}
