// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strings"
)

// StreakDependencies defines the interface for streak lookups.
type StreakDependencies interface {
	StreakOf(ctx context.Context, userID string) (int64, error)
}

// StreakHandler handles streak requests.
type StreakHandler struct {
	deps StreakDependencies
}

// NewStreakHandler creates a new streak handler.
func NewStreakHandler(deps StreakDependencies) *StreakHandler {
	return &StreakHandler{deps: deps}
}

// streakResponse mirrors the response for GET /leaderboard/streak/{userId}.
type streakResponse struct {
	UserID string `json:"userId"`
	Streak int64  `json:"streak"`
}

// HandleGetStreak handles GET /leaderboard/streak/{userId} requests.
// A user with no entry reports a streak of 0.
func (h *StreakHandler) HandleGetStreak(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	userID := strings.TrimPrefix(r.URL.Path, "/leaderboard/streak/")
	if userID == "" || strings.Contains(userID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	count, err := h.deps.StreakOf(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, streakResponse{UserID: userID, Streak: count})
}
