package kinds

import (
	"context"
	"errors"
	"fmt"

	"github.com/inception-project/taskd/internal/task"
)

// HistoryPruner deletes the run history of a project.
type HistoryPruner interface {
	DeleteByProject(ctx context.Context, projectID int64) (int64, error)
}

// PruneHistoryTask deletes the recorded run history of its project. A
// second prune for the same project is redundant while one is enqueued.
type PruneHistoryTask struct {
	*task.Base

	pruner HistoryPruner
}

// NewPruneHistoryTask creates a PruneHistoryTask for project.
func NewPruneHistoryTask(project task.Project, trigger string, opts ...task.Option) *PruneHistoryTask {
	return &PruneHistoryTask{Base: task.NewBase(project, trigger, opts...)}
}

func newPruneHistoryTaskFromRequest(req task.Request) (task.Task, error) {
	return NewPruneHistoryTask(req.Project, req.Trigger, req.Options()...), nil
}

// SetHistoryPruner implements prunerAware.
func (t *PruneHistoryTask) SetHistoryPruner(p HistoryPruner) { t.pruner = p }

// Matches implements task.Matcher.
func (t *PruneHistoryTask) Matches(other task.Task) task.MatchResult {
	if o, ok := other.(*PruneHistoryTask); ok && o.Project().ID == t.Project().ID {
		return task.DiscardOrQueueThis
	}
	return task.NoMatch
}

// Execute implements task.Task.
func (t *PruneHistoryTask) Execute(ctx context.Context) error {
	if t.pruner == nil {
		return errors.New("history store is not configured")
	}
	m := t.Monitor()
	m.SetProgress(0, 1)
	deleted, err := t.pruner.DeleteByProject(ctx, t.Project().ID)
	if err != nil {
		return fmt.Errorf("failed to prune history: %w", err)
	}
	m.SetProgressWithMessage(1, 1, task.Info(fmt.Sprintf("deleted %d runs", deleted)))
	return nil
}
