// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clouddev/leaderboard/internal/adapters/repository"
	"github.com/clouddev/leaderboard/internal/app"
	"github.com/clouddev/leaderboard/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	UpdateScore(ctx context.Context, userID string, delta float64) error
	TopN(ctx context.Context, n int) ([]types.RankedEntry, error)
	RankOf(ctx context.Context, userID string) (types.RankedEntry, error)
	StreakOf(ctx context.Context, userID string) (int64, error)
}

// Entry mirrors the read shape returned by ranking queries.
type Entry = types.RankedEntry

// Server wires HTTP routes for the leaderboard API.
type Server struct {
	updateHandler      *UpdateHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	streakHandler      *StreakHandler
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxTopLimit int) *Server {
	return &Server{
		updateHandler:      NewUpdateHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxTopLimit),
		rankHandler:        NewRankHandler(deps),
		streakHandler:      NewStreakHandler(deps),
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/leaderboard/update/", MetricsMiddleware(s.updateHandler.HandleUpdateScore, "update"))
	mux.HandleFunc("/leaderboard/top/", MetricsMiddleware(s.leaderboardHandler.HandleGetTop, "top"))
	mux.HandleFunc("/leaderboard/rank/", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
	mux.HandleFunc("/leaderboard/streak/", MetricsMiddleware(s.streakHandler.HandleGetStreak, "streak"))
}

type ackResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps service error kinds to transport status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidUserID):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, repository.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, repository.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
