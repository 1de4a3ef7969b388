package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"
	"go.mongodb.org/mongo-driver/v2/bson"

	"inkwell/internal/db"
	"inkwell/internal/models"
	"inkwell/internal/policy"
)

type CommentHandler struct {
	comments    *db.CommentRepository
	posts       *db.PostRepository
	users       *db.UserRepository
	sanitizer   *bluemonday.Policy
	replyCap    int
	maxPageSize int
}

func NewCommentHandler(
	comments *db.CommentRepository,
	posts *db.PostRepository,
	users *db.UserRepository,
	replyCap int,
	maxPageSize int,
) *CommentHandler {
	return &CommentHandler{
		comments:    comments,
		posts:       posts,
		users:       users,
		sanitizer:   bluemonday.UGCPolicy(),
		replyCap:    replyCap,
		maxPageSize: maxPageSize,
	}
}

type CommentRequest struct {
	Description string `json:"description" validate:"required,max=10000"`
}

type ReplyOut struct {
	ID          bson.ObjectID  `json:"id"`
	User        *PublicUserOut `json:"user,omitempty"`
	Description string         `json:"description"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type CommentOut struct {
	ID          bson.ObjectID  `json:"id"`
	User        *PublicUserOut `json:"user,omitempty"`
	Description string         `json:"description"`
	Replies     []ReplyOut     `json:"replies"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func toCommentOut(c *models.Comment, users map[bson.ObjectID]*models.User) CommentOut {
	replies := make([]ReplyOut, 0, len(c.Replies))
	for _, reply := range c.Replies {
		replies = append(replies, ReplyOut{
			ID:          reply.ID,
			User:        toPublicUserOut(users[reply.UserID]),
			Description: reply.Description,
			CreatedAt:   reply.CreatedAt,
			UpdatedAt:   reply.UpdatedAt,
		})
	}
	return CommentOut{
		ID:          c.ID,
		User:        toPublicUserOut(users[c.UserID]),
		Description: c.Description,
		Replies:     replies,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func objectIDParam(r *http.Request, name string) (bson.ObjectID, error) {
	id, err := bson.ObjectIDFromHex(chi.URLParam(r, name))
	if err != nil {
		return bson.ObjectID{}, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// POST /api/v1/posts/{postID}/comments
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)

	postID, err := objectIDParam(r, "postID")
	if err != nil {
		validationError(w, err.Error())
		return
	}

	var req CommentRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		validationError(w, err.Error())
		return
	}

	if _, err := h.posts.FindByID(r.Context(), postID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			notFound(w, "Object not found")
			return
		}
		slog.Error("error finding post", "error", err)
		internalError(w)
		return
	}

	comment := &models.Comment{
		UserID:      user.ID,
		PostID:      postID,
		Description: h.sanitizer.Sanitize(req.Description),
	}
	if err := h.comments.Create(r.Context(), comment); err != nil {
		slog.Error("error creating comment", "error", err)
		internalError(w)
		return
	}

	if err := h.posts.IncTotalComments(r.Context(), postID, 1); err != nil {
		slog.Error("error incrementing comment counter", "error", err, "post_id", postID.Hex())
	}

	users := map[bson.ObjectID]*models.User{user.ID: user}
	writeJSON(w, http.StatusCreated, toCommentOut(comment, users))
}

// GET /api/v1/posts/{postID}/comments
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	postID, err := objectIDParam(r, "postID")
	if err != nil {
		validationError(w, err.Error())
		return
	}

	limit, offset, err := parsePagination(r, h.maxPageSize)
	if err != nil {
		validationError(w, err.Error())
		return
	}

	comments, count, err := h.comments.ListByPost(r.Context(), postID, limit, offset)
	if err != nil {
		slog.Error("error listing comments", "error", err)
		internalError(w)
		return
	}

	// One batched lookup resolves the comment authors and every embedded
	// reply author.
	seen := map[bson.ObjectID]struct{}{}
	var userIDs []bson.ObjectID
	for _, c := range comments {
		for _, id := range append([]bson.ObjectID{c.UserID}, replyUserIDs(c)...) {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				userIDs = append(userIDs, id)
			}
		}
	}
	users, err := h.users.FindByIDs(r.Context(), userIDs)
	if err != nil {
		slog.Error("error resolving comment users", "error", err)
		internalError(w)
		return
	}

	results := make([]CommentOut, 0, len(comments))
	for _, c := range comments {
		results = append(results, toCommentOut(c, users))
	}

	writeJSON(w, http.StatusOK, ListResponse{Count: count, Results: results})
}

func replyUserIDs(c *models.Comment) []bson.ObjectID {
	ids := make([]bson.ObjectID, 0, len(c.Replies))
	for _, reply := range c.Replies {
		ids = append(ids, reply.UserID)
	}
	return ids
}

// PUT /api/v1/posts/{postID}/comments/{commentID}
func (h *CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)

	postID, commentID, ok := h.commentPath(w, r)
	if !ok {
		return
	}

	var req CommentRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		validationError(w, err.Error())
		return
	}

	comment, err := h.comments.FindByID(r.Context(), commentID, postID)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Object not found")
		return
	}
	if err != nil {
		slog.Error("error finding comment", "error", err)
		internalError(w)
		return
	}

	if !policy.CanModifyComment(comment, user) {
		forbidden(w, "You don't have access to update this comment")
		return
	}

	description := h.sanitizer.Sanitize(req.Description)
	if err := h.comments.UpdateDescription(r.Context(), commentID, description); err != nil {
		slog.Error("error updating comment", "error", err, "comment_id", commentID.Hex())
		internalError(w)
		return
	}

	comment.Description = description
	users := map[bson.ObjectID]*models.User{user.ID: user}
	writeJSON(w, http.StatusOK, toCommentOut(comment, users))
}

// DELETE /api/v1/posts/{postID}/comments/{commentID}
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)

	postID, commentID, ok := h.commentPath(w, r)
	if !ok {
		return
	}

	comment, err := h.comments.FindByID(r.Context(), commentID, postID)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Object not found")
		return
	}
	if err != nil {
		slog.Error("error finding comment", "error", err)
		internalError(w)
		return
	}

	if !policy.CanModifyComment(comment, user) {
		forbidden(w, "You don't have access to delete this comment")
		return
	}

	if err := h.comments.Delete(r.Context(), commentID); err != nil && !errors.Is(err, db.ErrNotFound) {
		slog.Error("error deleting comment", "error", err, "comment_id", commentID.Hex())
		internalError(w)
		return
	}

	if err := h.posts.IncTotalComments(r.Context(), postID, -1); err != nil {
		slog.Error("error decrementing comment counter", "error", err, "post_id", postID.Hex())
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Deleted"})
}

type ReplyRequest struct {
	Description string `json:"description" validate:"required,max=10000"`
}

// POST /api/v1/posts/{postID}/comments/{commentID}/replies
func (h *CommentHandler) CreateReply(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)

	postID, commentID, ok := h.commentPath(w, r)
	if !ok {
		return
	}

	var req ReplyRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		validationError(w, err.Error())
		return
	}

	now := time.Now().UTC()
	reply := &models.Reply{
		ID:          bson.NewObjectID(),
		UserID:      user.ID,
		Description: h.sanitizer.Sanitize(req.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := h.comments.AppendReply(r.Context(), commentID, postID, reply, h.replyCap)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Object not found")
		return
	}
	if errors.Is(err, db.ErrReplyCapReached) {
		validationError(w, fmt.Sprintf("Comment cannot hold more than %d replies", h.replyCap))
		return
	}
	if err != nil {
		slog.Error("error appending reply", "error", err, "comment_id", commentID.Hex())
		internalError(w)
		return
	}

	writeJSON(w, http.StatusCreated, ReplyOut{
		ID:          reply.ID,
		User:        toPublicUserOut(user),
		Description: reply.Description,
		CreatedAt:   reply.CreatedAt,
		UpdatedAt:   reply.UpdatedAt,
	})
}

// PUT /api/v1/posts/{postID}/comments/{commentID}/replies/{replyID}
//
// The ownership check and the mutation are one conditional update in the
// store; a zero-match result on an existing comment means the actor does not
// own the reply (or it is gone), which is a permission failure.
func (h *CommentHandler) UpdateReply(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)

	postID, commentID, replyID, ok := h.replyPath(w, r)
	if !ok {
		return
	}

	var req ReplyRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		validationError(w, err.Error())
		return
	}

	description := h.sanitizer.Sanitize(req.Description)
	err := h.comments.UpdateReply(r.Context(), commentID, postID, replyID, user.ID, description)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Object not found")
		return
	}
	if errors.Is(err, db.ErrNoReplyMatch) {
		forbidden(w, "You don't have permission to update this reply")
		return
	}
	if err != nil {
		slog.Error("error updating reply", "error", err, "reply_id", replyID.Hex())
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Updated"})
}

// DELETE /api/v1/posts/{postID}/comments/{commentID}/replies/{replyID}
func (h *CommentHandler) DeleteReply(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)

	postID, commentID, replyID, ok := h.replyPath(w, r)
	if !ok {
		return
	}

	err := h.comments.RemoveReply(r.Context(), commentID, postID, replyID, user.ID)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Object not found")
		return
	}
	if errors.Is(err, db.ErrNoReplyMatch) {
		forbidden(w, "You don't have permission to delete this reply")
		return
	}
	if err != nil {
		slog.Error("error removing reply", "error", err, "reply_id", replyID.Hex())
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Deleted"})
}

func (h *CommentHandler) commentPath(w http.ResponseWriter, r *http.Request) (postID, commentID bson.ObjectID, ok bool) {
	postID, err := objectIDParam(r, "postID")
	if err != nil {
		validationError(w, err.Error())
		return postID, commentID, false
	}
	commentID, err = objectIDParam(r, "commentID")
	if err != nil {
		validationError(w, err.Error())
		return postID, commentID, false
	}
	return postID, commentID, true
}

func (h *CommentHandler) replyPath(w http.ResponseWriter, r *http.Request) (postID, commentID, replyID bson.ObjectID, ok bool) {
	postID, commentID, ok = h.commentPath(w, r)
	if !ok {
		return postID, commentID, replyID, false
	}
	replyID, err := objectIDParam(r, "replyID")
	if err != nil {
		validationError(w, err.Error())
		return postID, commentID, replyID, false
	}
	return postID, commentID, replyID, true
}
