package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"geo-challenge/internal/model"
)

// StatsService reports per-user activity.
type StatsService interface {
	Stats(ctx context.Context, userID string) (*model.UserStats, error)
}

// UserHandler serves per-user views.
type UserHandler struct {
	stats StatsService
}

// NewUserHandler creates a new UserHandler instance.
func NewUserHandler(stats StatsService) *UserHandler {
	return &UserHandler{stats: stats}
}

// Stats handles GET /users/{id}/stats.
func (h *UserHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Stats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
