package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/catgram/internal/auth"
	"github.com/sakif/catgram/internal/service"
)

type CommentHandler struct {
	service *service.CommentService
	logger  *slog.Logger
}

func NewCommentHandler(svc *service.CommentService, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{
		service: svc,
		logger:  logger,
	}
}

// HandleList returns a post's comments, newest first.
//
// HTTP: GET /api/posts/{id}/comments
func (h *CommentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.ListByPost(r.Context(), chi.URLParam(r, "id")))
}

// HandleCreate comments on a post.
//
// HTTP: POST /api/posts/{id}/comments  {"content": "..."}
func (h *CommentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		h.logger.Warn("invalid comment JSON", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	comment, err := h.service.Create(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"), body.Content)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// HandleDelete removes the caller's own comment.
//
// HTTP: DELETE /api/comments/{id}
func (h *CommentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
