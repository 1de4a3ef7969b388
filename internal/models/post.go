package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type Post struct {
	ID       bson.ObjectID `bson:"_id,omitempty" json:"id"`
	AuthorID bson.ObjectID `bson:"author_id" json:"author_id"`

	Title            string  `bson:"title" json:"title"`
	Slug             string  `bson:"slug" json:"slug"`
	ShortDescription string  `bson:"short_description,omitempty" json:"short_description,omitempty"`
	Description      string  `bson:"description,omitempty" json:"description,omitempty"`
	CoverImage       *string `bson:"cover_image,omitempty" json:"cover_image,omitempty"`

	// PublishAt in the future keeps the post hidden from everyone but its
	// author. nil means unpublished.
	PublishAt *time.Time `bson:"publish_at,omitempty" json:"publish_at,omitempty"`

	TotalComments  int64 `bson:"total_comments" json:"total_comments"`
	TotalReactions int64 `bson:"total_reactions" json:"total_reactions"`

	TopicIDs []bson.ObjectID `bson:"topic_ids,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Published reports whether the post is visible to the public at the given
// instant.
func (p *Post) Published(now time.Time) bool {
	return p.PublishAt != nil && !p.PublishAt.After(now)
}

type Topic struct {
	ID     bson.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID *bson.ObjectID `bson:"user_id,omitempty" json:"-"`

	Name string `bson:"name" json:"name"`
	Slug string `bson:"slug" json:"slug"`

	CreatedAt time.Time `bson:"created_at" json:"-"`
}
