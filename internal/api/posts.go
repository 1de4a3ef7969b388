package api

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gosimple/slug"
	"github.com/microcosm-cc/bluemonday"
	"go.mongodb.org/mongo-driver/v2/bson"

	"inkwell/internal/db"
	"inkwell/internal/models"
	"inkwell/internal/policy"
)

const (
	shortDescriptionLen = 200
	slugAttempts        = 8
)

type PostHandler struct {
	posts       *db.PostRepository
	topics      *db.TopicRepository
	comments    *db.CommentRepository
	reactions   *db.ReactionRepository
	users       *db.UserRepository
	sanitizer   *bluemonday.Policy
	maxPageSize int
}

func NewPostHandler(
	posts *db.PostRepository,
	topics *db.TopicRepository,
	comments *db.CommentRepository,
	reactions *db.ReactionRepository,
	users *db.UserRepository,
	maxPageSize int,
) *PostHandler {
	return &PostHandler{
		posts:       posts,
		topics:      topics,
		comments:    comments,
		reactions:   reactions,
		users:       users,
		sanitizer:   bluemonday.UGCPolicy(),
		maxPageSize: maxPageSize,
	}
}

type PostCreateRequest struct {
	Title            string     `json:"title" validate:"required,max=255"`
	ShortDescription *string    `json:"short_description" validate:"omitempty,max=512"`
	Description      *string    `json:"description"`
	CoverImage       *string    `json:"cover_image" validate:"omitempty,max=1024"`
	PublishAt        *time.Time `json:"publish_at"`
	PublishNow       bool       `json:"publish_now"`
	Topics           []string   `json:"topics" validate:"omitempty,max=10,dive,required,max=127"`
}

type PostListOut struct {
	ID               bson.ObjectID  `json:"id"`
	Author           *PublicUserOut `json:"author,omitempty"`
	Title            string         `json:"title"`
	Slug             string         `json:"slug"`
	ShortDescription string         `json:"short_description,omitempty"`
	CoverImage       *string        `json:"cover_image,omitempty"`
	PublishAt        *time.Time     `json:"publish_at,omitempty"`
	TotalComments    int64          `json:"total_comments"`
	TotalReactions   int64          `json:"total_reactions"`
}

type PostDetailsOut struct {
	PostListOut
	Description string          `json:"description,omitempty"`
	Topics      []*models.Topic `json:"topics"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func toPostListOut(p *models.Post, author *models.User) PostListOut {
	return PostListOut{
		ID:               p.ID,
		Author:           toPublicUserOut(author),
		Title:            p.Title,
		Slug:             p.Slug,
		ShortDescription: p.ShortDescription,
		CoverImage:       p.CoverImage,
		PublishAt:        p.PublishAt,
		TotalComments:    p.TotalComments,
		TotalReactions:   p.TotalReactions,
	}
}

// POST /api/v1/posts
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)

	var req PostCreateRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		validationError(w, err.Error())
		return
	}

	now := time.Now().UTC()
	if req.PublishAt != nil && req.PublishAt.Before(now) {
		writeFieldError(w, http.StatusBadRequest, ErrCodeValidation, "Please choose a future date", "publish_at")
		return
	}
	if req.PublishNow {
		req.PublishAt = &now
	}

	topics, err := h.resolveTopics(r, req.Topics, user.ID)
	if err != nil {
		slog.Error("error resolving topics", "error", err)
		internalError(w)
		return
	}

	description := ""
	if req.Description != nil {
		description = h.sanitizer.Sanitize(*req.Description)
	}
	short := ""
	if req.ShortDescription != nil {
		short = *req.ShortDescription
	}
	if short == "" {
		short = shortDescription(description)
	}

	topicIDs := make([]bson.ObjectID, len(topics))
	for i, t := range topics {
		topicIDs[i] = t.ID
	}

	post := &models.Post{
		AuthorID:         user.ID,
		Title:            req.Title,
		ShortDescription: short,
		Description:      description,
		CoverImage:       req.CoverImage,
		PublishAt:        req.PublishAt,
		TopicIDs:         topicIDs,
	}

	if err := h.createWithUniqueSlug(r, post); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			writeFieldError(w, http.StatusBadRequest, ErrCodeValidation, "Could not derive a unique slug from title", "title")
			return
		}
		slog.Error("error creating post", "error", err)
		internalError(w)
		return
	}

	out := PostDetailsOut{
		PostListOut: toPostListOut(post, user),
		Description: post.Description,
		Topics:      topics,
		CreatedAt:   post.CreatedAt,
		UpdatedAt:   post.UpdatedAt,
	}
	writeJSON(w, http.StatusCreated, out)
}

// createWithUniqueSlug derives the slug from the title and retries inserts
// with a random suffix while the slug index reports a collision.
func (h *PostHandler) createWithUniqueSlug(r *http.Request, post *models.Post) error {
	base := slug.Make(post.Title)
	if base == "" {
		base = post.AuthorID.Hex()
	}

	for i := 0; i < slugAttempts; i++ {
		candidate := base
		if i > 0 {
			suffix, err := randSlugSuffix(i)
			if err != nil {
				return err
			}
			candidate = fmt.Sprintf("%s-%s", base, suffix)
		}

		post.Slug = candidate
		err := h.posts.Create(r.Context(), post)
		if errors.Is(err, db.ErrDuplicate) {
			continue
		}
		return err
	}

	return db.ErrDuplicate
}

func randSlugSuffix(length int) (string, error) {
	b := make([]byte, (length+1)/2+1)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b)[:length+1], nil
}

func shortDescription(description string) string {
	runes := []rune(description)
	if len(runes) <= shortDescriptionLen {
		return description
	}
	return string(runes[:shortDescriptionLen])
}

func (h *PostHandler) resolveTopics(r *http.Request, names []string, userID bson.ObjectID) ([]*models.Topic, error) {
	topics := make([]*models.Topic, 0, len(names))
	for _, name := range names {
		topicSlug := slug.Make(name)
		if topicSlug == "" {
			continue
		}
		topic, err := h.topics.GetOrCreate(r.Context(), name, topicSlug, userID)
		if err != nil {
			return nil, err
		}
		topics = append(topics, topic)
	}
	return topics, nil
}

// GET /api/v1/posts
//
// Public listing: only published posts, regardless of who asks. Drafts and
// scheduled posts are reachable solely through their slug by the author.
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r, h.maxPageSize)
	if err != nil {
		validationError(w, err.Error())
		return
	}

	filter := db.ListFilter{
		Query:  r.URL.Query().Get("q"),
		Limit:  limit,
		Offset: offset,
	}

	if raw := r.URL.Query().Get("author_id"); raw != "" {
		id, err := bson.ObjectIDFromHex(raw)
		if err != nil {
			writeFieldError(w, http.StatusBadRequest, ErrCodeValidation, "Invalid author id", "author_id")
			return
		}
		filter.AuthorID = &id
	}
	for _, raw := range r.URL.Query()["topics"] {
		id, err := bson.ObjectIDFromHex(raw)
		if err != nil {
			writeFieldError(w, http.StatusBadRequest, ErrCodeValidation, "Invalid topic id", "topics")
			return
		}
		filter.TopicIDs = append(filter.TopicIDs, id)
	}

	posts, count, err := h.posts.List(r.Context(), filter)
	if err != nil {
		slog.Error("error listing posts", "error", err)
		internalError(w)
		return
	}

	authorIDs := make([]bson.ObjectID, 0, len(posts))
	for _, p := range posts {
		authorIDs = append(authorIDs, p.AuthorID)
	}
	authors, err := h.users.FindByIDs(r.Context(), authorIDs)
	if err != nil {
		slog.Error("error resolving post authors", "error", err)
		internalError(w)
		return
	}

	results := make([]PostListOut, 0, len(posts))
	for _, p := range posts {
		results = append(results, toPostListOut(p, authors[p.AuthorID]))
	}

	writeJSON(w, http.StatusOK, ListResponse{Count: count, Results: results})
}

// GET /api/v1/posts/{slug}
//
// A missing post is 404; an existing but not-yet-published post read by
// anyone other than its author is 403. The two are distinct outcomes.
func (h *PostHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.FindBySlug(r.Context(), chi.URLParam(r, "slug"))
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Object not found")
		return
	}
	if err != nil {
		slog.Error("error finding post", "error", err)
		internalError(w)
		return
	}

	actor := CurrentUser(r)
	if !policy.CanViewPost(post, actor, time.Now().UTC()) {
		forbidden(w, "You don't have permission to get this object")
		return
	}

	author, err := h.users.FindByID(r.Context(), post.AuthorID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		slog.Error("error resolving post author", "error", err)
		internalError(w)
		return
	}

	topics, err := h.topics.FindByIDs(r.Context(), post.TopicIDs)
	if err != nil {
		slog.Error("error resolving post topics", "error", err)
		internalError(w)
		return
	}
	if topics == nil {
		topics = []*models.Topic{}
	}

	out := PostDetailsOut{
		PostListOut: toPostListOut(post, author),
		Description: post.Description,
		Topics:      topics,
		CreatedAt:   post.CreatedAt,
		UpdatedAt:   post.UpdatedAt,
	}
	writeJSON(w, http.StatusOK, out)
}

type PostUpdateRequest struct {
	Title            *string    `json:"title" validate:"omitempty,max=255"`
	ShortDescription *string    `json:"short_description" validate:"omitempty,max=512"`
	Description      *string    `json:"description"`
	CoverImage       *string    `json:"cover_image" validate:"omitempty,max=1024"`
	PublishAt        *time.Time `json:"publish_at"`
	PublishNow       bool       `json:"publish_now"`
	Topics           []string   `json:"topics" validate:"omitempty,max=10,dive,required,max=127"`
}

// PATCH /api/v1/posts/{slug}
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)

	var req PostUpdateRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		validationError(w, err.Error())
		return
	}

	post, err := h.posts.FindBySlug(r.Context(), chi.URLParam(r, "slug"))
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Object not found")
		return
	}
	if err != nil {
		slog.Error("error finding post", "error", err)
		internalError(w)
		return
	}

	if !policy.CanModifyPost(post, user) {
		forbidden(w, "You don't have access to update this post")
		return
	}

	now := time.Now().UTC()
	if req.PublishAt != nil && (post.PublishAt == nil || !post.PublishAt.Equal(*req.PublishAt)) {
		if req.PublishAt.Before(now) {
			writeFieldError(w, http.StatusBadRequest, ErrCodeValidation, "Please choose a future date", "publish_at")
			return
		}
	}
	if req.PublishNow {
		req.PublishAt = &now
	}

	set := bson.M{}
	if req.Title != nil {
		set["title"] = *req.Title
	}
	if req.Description != nil {
		description := h.sanitizer.Sanitize(*req.Description)
		set["description"] = description
		if req.ShortDescription == nil {
			set["short_description"] = shortDescription(description)
		}
	}
	if req.ShortDescription != nil {
		set["short_description"] = *req.ShortDescription
	}
	if req.CoverImage != nil {
		set["cover_image"] = *req.CoverImage
	}
	if req.PublishAt != nil {
		set["publish_at"] = *req.PublishAt
	}
	if len(req.Topics) > 0 {
		topics, err := h.resolveTopics(r, req.Topics, user.ID)
		if err != nil {
			slog.Error("error resolving topics", "error", err)
			internalError(w)
			return
		}
		topicIDs := make([]bson.ObjectID, len(topics))
		for i, t := range topics {
			topicIDs[i] = t.ID
		}
		set["topic_ids"] = topicIDs
	}

	if err := h.posts.Update(r.Context(), post.ID, set); err != nil {
		slog.Error("error updating post", "error", err, "post_id", post.ID.Hex())
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Post updated"})
}

// DELETE /api/v1/posts/{slug}
//
// Deleting a post cascades to its comments and reactions.
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)

	post, err := h.posts.FindBySlug(r.Context(), chi.URLParam(r, "slug"))
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Object not found")
		return
	}
	if err != nil {
		slog.Error("error finding post", "error", err)
		internalError(w)
		return
	}

	if !policy.CanModifyPost(post, user) {
		forbidden(w, "You don't have access to delete this post")
		return
	}

	if err := h.comments.DeleteByPost(r.Context(), post.ID); err != nil {
		slog.Error("error deleting post comments", "error", err, "post_id", post.ID.Hex())
		internalError(w)
		return
	}
	if err := h.reactions.DeleteByPost(r.Context(), post.ID); err != nil {
		slog.Error("error deleting post reactions", "error", err, "post_id", post.ID.Hex())
		internalError(w)
		return
	}
	if err := h.posts.Delete(r.Context(), post.ID); err != nil && !errors.Is(err, db.ErrNotFound) {
		slog.Error("error deleting post", "error", err, "post_id", post.ID.Hex())
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Deleted"})
}
