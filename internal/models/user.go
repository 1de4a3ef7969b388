package models

import (
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type User struct {
	ID       bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Username string        `bson:"username" json:"username"`
	FullName string        `bson:"full_name" json:"full_name"`
	Image    *string       `bson:"image,omitempty" json:"image,omitempty"`

	IsActive    bool       `bson:"is_active" json:"is_active"`
	JoiningDate time.Time  `bson:"joining_date" json:"joining_date"`
	LastLogin   *time.Time `bson:"last_login,omitempty" json:"-"`

	// Password is absent for accounts provisioned through external identity
	// providers.
	Password *string `bson:"password,omitempty" json:"-"`

	// RandomStr is the session epoch: every issued token embeds the value
	// current at issue time, and rotating it invalidates all of them at once.
	RandomStr string `bson:"random_str" json:"-"`

	UpdatedAt time.Time `bson:"updated_at" json:"-"`
}

// NewSessionEpoch returns a fresh opaque session epoch value.
func NewSessionEpoch() string {
	return uuid.NewString()
}
