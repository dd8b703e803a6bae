// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// UpdateDependencies defines the interface for score update operations.
type UpdateDependencies interface {
	UpdateScore(ctx context.Context, userID string, delta float64) error
}

// UpdateHandler handles score update requests.
type UpdateHandler struct {
	deps UpdateDependencies
}

// NewUpdateHandler creates a new update handler.
func NewUpdateHandler(deps UpdateDependencies) *UpdateHandler {
	return &UpdateHandler{deps: deps}
}

// updateRequest mirrors the request body for POST /leaderboard/update/{userId}.
type updateRequest struct {
	ScoreDelta float64 `json:"scoreDelta"`
}

// HandleUpdateScore handles POST /leaderboard/update/{userId} requests.
// The delta is applied as-is; there is no range validation on it.
func (h *UpdateHandler) HandleUpdateScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	userID := strings.TrimPrefix(r.URL.Path, "/leaderboard/update/")
	if userID == "" || strings.Contains(userID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	var req updateRequest
	if r.Body != nil {
		// A missing or empty body means a zero delta, matching the
		// tolerant request handling of the surrounding services.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := h.deps.UpdateScore(r.Context(), userID, req.ScoreDelta); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}
