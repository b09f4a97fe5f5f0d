package kinds

import (
	"context"
	"errors"

	"github.com/inception-project/taskd/internal/task"
)

// ErrHistoryDisabled is returned when a task needs the history store but
// none is configured.
var ErrHistoryDisabled = errors.New("run history is disabled")

type executorAware interface {
	SetExecutor(e SyncExecutor)
}

type prunerAware interface {
	SetHistoryPruner(p HistoryPruner)
}

// Wiring attaches collaborators to tasks before their first execution.
// Fields may be nil; tasks needing a missing collaborator fail to wire.
type Wiring struct {
	Executor SyncExecutor
	History  HistoryPruner
}

// Autowire implements task.Autowirer.
func (w *Wiring) Autowire(_ context.Context, t task.Task) error {
	if a, ok := t.(executorAware); ok {
		if w.Executor == nil {
			return errors.New("no executor configured")
		}
		a.SetExecutor(w.Executor)
	}
	if a, ok := t.(prunerAware); ok {
		if w.History == nil {
			return ErrHistoryDisabled
		}
		a.SetHistoryPruner(w.History)
	}
	return nil
}

var _ task.Autowirer = (*Wiring)(nil)
