package api

import (
	"log/slog"
	"net/http"

	"github.com/gosimple/slug"

	"inkwell/internal/db"
)

type TopicHandler struct {
	topics      *db.TopicRepository
	maxPageSize int
}

func NewTopicHandler(topics *db.TopicRepository, maxPageSize int) *TopicHandler {
	return &TopicHandler{topics: topics, maxPageSize: maxPageSize}
}

type TopicRequest struct {
	Name string `json:"name" validate:"required,max=127"`
}

// POST /api/v1/topics
//
// Topic creation is get-or-create: referencing an existing name returns the
// existing topic rather than failing.
func (h *TopicHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)

	var req TopicRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		validationError(w, err.Error())
		return
	}

	topicSlug := slug.Make(req.Name)
	if topicSlug == "" {
		writeFieldError(w, http.StatusBadRequest, ErrCodeValidation, "Name produces an empty slug", "name")
		return
	}

	topic, err := h.topics.GetOrCreate(r.Context(), req.Name, topicSlug, user.ID)
	if err != nil {
		slog.Error("error creating topic", "error", err, "slug", topicSlug)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusCreated, topic)
}

// GET /api/v1/topics
func (h *TopicHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r, h.maxPageSize)
	if err != nil {
		validationError(w, err.Error())
		return
	}

	topics, count, err := h.topics.List(r.Context(), r.URL.Query().Get("q"), limit, offset)
	if err != nil {
		slog.Error("error listing topics", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{Count: count, Results: topics})
}
