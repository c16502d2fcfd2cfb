package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/catgram/internal/apperror"
	"github.com/sakif/catgram/internal/auth"
	"github.com/sakif/catgram/internal/service"
)

type ProfileHandler struct {
	service *service.ProfileService
	logger  *slog.Logger
}

func NewProfileHandler(svc *service.ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		service: svc,
		logger:  logger,
	}
}

// HandleGetOwn returns the caller's profile, creating it on first visit.
//
// HTTP: GET /api/profile
func (h *ProfileHandler) HandleGetOwn(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.Ensure(r.Context(), auth.IdentityFromContext(r.Context()))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// HandleUpdateOwn changes the caller's username and bio.
//
// HTTP: PUT /api/profile  {"username": "...", "bio": "..."}
func (h *ProfileHandler) HandleUpdateOwn(w http.ResponseWriter, r *http.Request) {
	var in service.ProfileInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.logger.Warn("invalid profile JSON", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	profile, err := h.service.Update(r.Context(), auth.IdentityFromContext(r.Context()), in)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// HandleStats returns post, upvote and comment totals for the caller.
//
// HTTP: GET /api/profile/stats
func (h *ProfileHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if identity == nil {
		writeError(w, apperror.Unauthorized("sign in to view your stats"))
		return
	}

	stats, err := h.service.Stats(r.Context(), identity.ID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleGet returns another user's public profile.
//
// HTTP: GET /api/profiles/{id}
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
