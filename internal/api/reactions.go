package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"inkwell/internal/db"
)

type ReactionHandler struct {
	reactions   *db.ReactionRepository
	posts       *db.PostRepository
	reactionCap int
}

func NewReactionHandler(reactions *db.ReactionRepository, posts *db.PostRepository, reactionCap int) *ReactionHandler {
	return &ReactionHandler{reactions: reactions, posts: posts, reactionCap: reactionCap}
}

// POST /api/v1/posts/{postID}/reactions
//
// Reacting twice is not an error; the membership add is a single conditional
// upsert so the per-post cap holds under concurrent requests.
func (h *ReactionHandler) Add(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)

	postID, err := objectIDParam(r, "postID")
	if err != nil {
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

	added, err := h.reactions.Add(r.Context(), postID, user.ID, h.reactionCap)
	if errors.Is(err, db.ErrReactionCapReached) {
		validationError(w, fmt.Sprintf("Post cannot have more than %d reactions", h.reactionCap))
		return
	}
	if err != nil {
		slog.Error("error adding reaction", "error", err, "post_id", postID.Hex())
		internalError(w)
		return
	}

	if added {
		if err := h.posts.IncTotalReactions(r.Context(), postID, 1); err != nil {
			slog.Error("error incrementing reaction counter", "error", err, "post_id", postID.Hex())
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Reaction added"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Already reacted"})
}

// DELETE /api/v1/posts/{postID}/reactions
func (h *ReactionHandler) Remove(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)

	postID, err := objectIDParam(r, "postID")
	if err != nil {
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

	removed, err := h.reactions.Remove(r.Context(), postID, user.ID)
	if err != nil {
		slog.Error("error removing reaction", "error", err, "post_id", postID.Hex())
		internalError(w)
		return
	}

	if removed {
		if err := h.posts.IncTotalReactions(r.Context(), postID, -1); err != nil {
			slog.Error("error decrementing reaction counter", "error", err, "post_id", postID.Hex())
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Reaction deleted"})
}
