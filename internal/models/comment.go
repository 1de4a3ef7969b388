package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type Comment struct {
	ID     bson.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID bson.ObjectID `bson:"user_id" json:"user_id"`
	PostID bson.ObjectID `bson:"post_id" json:"post_id"`

	Description string  `bson:"description" json:"description"`
	Replies     []Reply `bson:"replies" json:"replies"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Reply is embedded in its parent comment document and addressed by its own
// id within the ordered list.
type Reply struct {
	ID     bson.ObjectID `bson:"id" json:"id"`
	UserID bson.ObjectID `bson:"user_id" json:"user_id"`

	Description string `bson:"description" json:"description"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
