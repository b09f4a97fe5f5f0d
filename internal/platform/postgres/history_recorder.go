package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/inception-project/taskd/internal/events"
	"github.com/inception-project/taskd/internal/task"
)

// RunRecorder persists a finished run.
type RunRecorder interface {
	Record(ctx context.Context, run Run) (int64, error)
}

// HistoryRecorder records the final snapshot of every task.ended event.
type HistoryRecorder struct {
	store   RunRecorder
	timeout time.Duration
	logger  *slog.Logger
}

// NewHistoryRecorder creates a recorder writing to store. Each write is
// bounded by timeout.
func NewHistoryRecorder(store RunRecorder, timeout time.Duration, logger *slog.Logger) *HistoryRecorder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HistoryRecorder{
		store:   store,
		timeout: timeout,
		logger:  logger.With("component", "history_recorder"),
	}
}

// HandleEvent implements events.EventHandler.
func (r *HistoryRecorder) HandleEvent(ctx context.Context, event *events.Event) error {
	if event.Type != events.TypeTaskEnded {
		return nil
	}

	var snapshot task.Snapshot
	if err := event.UnmarshalPayload(&snapshot); err != nil {
		return fmt.Errorf("failed to decode task.ended payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.store.Record(ctx, RunFromSnapshot(snapshot)); err != nil {
		return fmt.Errorf("failed to record run of task %s: %w", snapshot.Handle, err)
	}
	r.logger.Debug("recorded task run",
		"task_id", snapshot.Handle.ID,
		"task_kind", snapshot.Kind,
		"state", snapshot.State)
	return nil
}

var _ events.EventHandler = (*HistoryRecorder)(nil)
