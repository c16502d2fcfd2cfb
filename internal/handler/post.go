package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/catgram/internal/auth"
	"github.com/sakif/catgram/internal/service"
)

// PostHandler handles HTTP requests for cat photo posts.
type PostHandler struct {
	service *service.PostService
	logger  *slog.Logger
}

func NewPostHandler(svc *service.PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{
		service: svc,
		logger:  logger,
	}
}

// HandleList returns the feed.
//
// HTTP: GET /api/posts?sort=upvotes&direction=desc&q=milo&user_id=abc
//
// Unknown sort keys fall back to newest first. The feed never errors; an
// empty array is a valid answer.
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	posts := h.service.List(r.Context(), service.PostQuery{
		SortBy:    query.Get("sort"),
		Direction: query.Get("direction"),
		Search:    query.Get("q"),
		UserID:    query.Get("user_id"),
	})
	writeJSON(w, http.StatusOK, posts)
}

// HandleGetByID returns a single post.
//
// HTTP: GET /api/posts/{id}
func (h *PostHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	post, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleCreate publishes a post as the signed-in user.
//
// HTTP: POST /api/posts  {"title": "...", "content": "...", "image_url": "..."}
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.PostInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.logger.Warn("invalid post JSON", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	post, err := h.service.Create(r.Context(), auth.IdentityFromContext(r.Context()), in)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// HandleUpdate replaces the editable fields of the caller's own post.
//
// HTTP: PUT /api/posts/{id}
func (h *PostHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in service.PostInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.logger.Warn("invalid post JSON", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	post, err := h.service.Update(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleDelete removes the caller's own post and its comments.
//
// HTTP: DELETE /api/posts/{id}
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUpvote adds one upvote and returns the updated post.
//
// HTTP: POST /api/posts/{id}/upvote
func (h *PostHandler) HandleUpvote(w http.ResponseWriter, r *http.Request) {
	post, err := h.service.Upvote(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}
