package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/inception-project/taskd/internal/api/shared"
	"github.com/inception-project/taskd/internal/platform/postgres"
)

// History list limits.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// HistoryLister reads finished runs.
type HistoryLister interface {
	ListByUser(ctx context.Context, username string, limit int) ([]postgres.Run, error)
}

// HistoryHandler serves the caller's run history.
type HistoryHandler struct {
	history HistoryLister
}

// NewHistoryHandler creates a new HistoryHandler
func NewHistoryHandler(history HistoryLister) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// ListMyRuns handles GET /api/tasks/history?limit=N.
func (h *HistoryHandler) ListMyRuns(w http.ResponseWriter, r *http.Request) {
	username, ok := shared.GetUsername(r.Context())
	if !ok {
		HandleAPIError(w, r, ErrUnauthenticated, "")
		return
	}

	limit, err := limitParam(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	runs, err := h.history.ListByUser(r.Context(), username, limit)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load run history")
		return
	}
	if runs == nil {
		runs = []postgres.Run{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, RunListResponse{Runs: runs})
}

func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return DefaultHistoryLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > MaxHistoryLimit {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLimit, raw)
	}
	return limit, nil
}
