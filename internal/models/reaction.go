package models

import "go.mongodb.org/mongo-driver/v2/bson"

// Reaction holds the set of users who reacted to a post. There is at most one
// document per post; membership in UserIDs is the reaction itself.
type Reaction struct {
	ID      bson.ObjectID   `bson:"_id,omitempty" json:"id"`
	PostID  bson.ObjectID   `bson:"post_id" json:"post_id"`
	UserIDs []bson.ObjectID `bson:"user_ids" json:"user_ids"`
}
