// Package policy holds the per-resource ownership and visibility rules.
// All functions are pure decisions over already-fetched documents; handlers
// translate a false into 403 and a missing resource into 404.
package policy

import (
	"time"

	"inkwell/internal/models"
)

// CanModifyPost reports whether actor may mutate the post. Only the owning
// author may.
func CanModifyPost(post *models.Post, actor *models.User) bool {
	return actor != nil && actor.ID == post.AuthorID
}

func CanModifyComment(comment *models.Comment, actor *models.User) bool {
	return actor != nil && actor.ID == comment.UserID
}

func CanModifyReply(reply *models.Reply, actor *models.User) bool {
	return actor != nil && actor.ID == reply.UserID
}

// CanViewPost reports whether actor may read the post. Published posts are
// public; unpublished or scheduled posts are visible only to their author.
func CanViewPost(post *models.Post, actor *models.User, now time.Time) bool {
	if post.Published(now) {
		return true
	}
	return actor != nil && actor.ID == post.AuthorID
}
