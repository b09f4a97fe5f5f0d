package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/inception-project/taskd/internal/task"
)

// Run is one finished task as recorded in task_runs.
type Run struct {
	ID          int64             `json:"id"`
	TaskID      int64             `json:"task_id"`
	User        string            `json:"user,omitempty"`
	Project     task.Project      `json:"project"`
	Kind        string            `json:"kind"`
	Title       string            `json:"title"`
	State       task.State        `json:"state"`
	Progress    int               `json:"progress"`
	MaxProgress int               `json:"max_progress"`
	Messages    []task.LogMessage `json:"messages"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	EndedAt     *time.Time        `json:"ended_at,omitempty"`
}

// RunFromSnapshot converts the final snapshot of a task into a Run.
func RunFromSnapshot(s task.Snapshot) Run {
	messages := s.Messages
	if messages == nil {
		messages = []task.LogMessage{}
	}
	return Run{
		TaskID:      s.Handle.ID,
		User:        s.User,
		Project:     s.Project,
		Kind:        s.Kind,
		Title:       s.Title,
		State:       s.State,
		Progress:    s.Progress,
		MaxProgress: s.MaxProgress,
		Messages:    messages,
		CreatedAt:   s.CreateTime,
		StartedAt:   s.StartTime,
		EndedAt:     s.EndTime,
	}
}

// HistoryStore persists task runs.
type HistoryStore struct {
	db     DBTX
	logger *slog.Logger
}

// NewHistoryStore creates a HistoryStore backed by db.
func NewHistoryStore(db DBTX, logger *slog.Logger) *HistoryStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryStore{
		db:     db,
		logger: logger.With("component", "history_store"),
	}
}

// WithTx returns a HistoryStore that runs its queries in tx.
func (s *HistoryStore) WithTx(tx *sql.Tx) *HistoryStore {
	return &HistoryStore{db: tx, logger: s.logger}
}

// Record inserts run and returns its row id.
func (s *HistoryStore) Record(ctx context.Context, run Run) (int64, error) {
	messages, err := json.Marshal(run.Messages)
	if err != nil {
		return 0, fmt.Errorf("failed to encode run messages: %w", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO task_runs (
			task_id, username, project_id, project_name, kind, title, state,
			progress, max_progress, messages, created_at, started_at, ended_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`,
		run.TaskID,
		nullString(run.User),
		run.Project.ID,
		run.Project.Name,
		run.Kind,
		run.Title,
		string(run.State),
		run.Progress,
		run.MaxProgress,
		messages,
		run.CreatedAt.UTC(),
		nullTime(run.StartedAt),
		nullTime(run.EndedAt),
	).Scan(&id)
	if err != nil {
		s.logger.Error("failed to record task run",
			"error", err,
			"task_id", run.TaskID,
			"task_kind", run.Kind)
		return 0, MapError(err)
	}

	s.logger.Debug("task run recorded",
		"run_id", id,
		"task_id", run.TaskID,
		"state", run.State)
	return id, nil
}

// Get returns the run with the given row id.
func (s *HistoryStore) Get(ctx context.Context, id int64) (*Run, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+` WHERE id = $1`, id)
	run, err := scanRun(row)
	if err != nil {
		return nil, MapError(err)
	}
	return run, nil
}

// ListByUser returns the most recently ended runs of user, newest first.
func (s *HistoryStore) ListByUser(ctx context.Context, user string, limit int) ([]Run, error) {
	return s.list(ctx, selectRuns+`
		WHERE username = $1
		ORDER BY ended_at DESC NULLS LAST, id DESC
		LIMIT $2`, user, limit)
}

// ListByProject returns the most recently ended runs in a project, newest first.
func (s *HistoryStore) ListByProject(ctx context.Context, projectID int64, limit int) ([]Run, error) {
	return s.list(ctx, selectRuns+`
		WHERE project_id = $1
		ORDER BY ended_at DESC NULLS LAST, id DESC
		LIMIT $2`, projectID, limit)
}

// DeleteByProject removes the history of a project and returns the number
// of rows deleted.
func (s *HistoryStore) DeleteByProject(ctx context.Context, projectID int64) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM task_runs WHERE project_id = $1`, projectID)
	if err != nil {
		return 0, MapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

const selectRuns = `
	SELECT id, task_id, username, project_id, project_name, kind, title, state,
		progress, max_progress, messages, created_at, started_at, ended_at
	FROM task_runs`

func (s *HistoryStore) list(ctx context.Context, query string, args ...any) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, MapError(err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run       Run
		user      sql.NullString
		state     string
		messages  []byte
		startedAt sql.NullTime
		endedAt   sql.NullTime
	)
	err := row.Scan(
		&run.ID,
		&run.TaskID,
		&user,
		&run.Project.ID,
		&run.Project.Name,
		&run.Kind,
		&run.Title,
		&state,
		&run.Progress,
		&run.MaxProgress,
		&messages,
		&run.CreatedAt,
		&startedAt,
		&endedAt,
	)
	if err != nil {
		return nil, err
	}
	run.User = user.String
	run.State = task.State(state)
	if startedAt.Valid {
		run.StartedAt = &startedAt.Time
	}
	if endedAt.Valid {
		run.EndedAt = &endedAt.Time
	}
	if err := json.Unmarshal(messages, &run.Messages); err != nil {
		return nil, fmt.Errorf("failed to decode run messages: %w", err)
	}
	return &run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
