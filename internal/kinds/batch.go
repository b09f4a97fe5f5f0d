package kinds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inception-project/taskd/internal/task"
)

// SyncExecutor runs a task on the calling goroutine. *task.Scheduler
// implements it.
type SyncExecutor interface {
	ExecuteSync(ctx context.Context, t task.Task) error
}

// BatchTask runs a number of ProgressTask parts one after another as
// sub-tasks. The parts are not reported on their own; the batch monitor
// counts finished parts.
type BatchTask struct {
	*task.Base

	parts     int
	steps     int
	stepDelay time.Duration
	executor  SyncExecutor
}

// NewBatchTask creates a BatchTask of parts sub-tasks with steps each.
func NewBatchTask(project task.Project, trigger string, parts, steps int, stepDelay time.Duration, opts ...task.Option) *BatchTask {
	return &BatchTask{
		Base:      task.NewBase(project, trigger, opts...),
		parts:     parts,
		steps:     steps,
		stepDelay: stepDelay,
	}
}

func newBatchTaskFromRequest(req task.Request) (task.Task, error) {
	p, delay, opts, err := decodeStepPayload(req.Payload)
	if err != nil {
		return nil, err
	}
	parts := p.Parts
	if parts == 0 {
		parts = 3
	}
	if parts < 0 || parts > maxParts {
		return nil, fmt.Errorf("%w: parts must be between 1 and %d", task.ErrInvalidRequest, maxParts)
	}
	steps := p.Steps
	if steps <= 0 || steps > maxSteps {
		steps = defaultSteps
	}
	return NewBatchTask(req.Project, req.Trigger, parts, steps, delay, append(req.Options(), opts...)...), nil
}

// SetExecutor implements executorAware.
func (t *BatchTask) SetExecutor(e SyncExecutor) { t.executor = e }

// Execute implements task.Task.
func (t *BatchTask) Execute(ctx context.Context) error {
	if t.executor == nil {
		return errors.New("batch task has no executor")
	}

	m := t.Monitor()
	m.SetProgress(0, t.parts)
	for i := 1; i <= t.parts; i++ {
		if t.IsCancelled() {
			return context.Canceled
		}
		part := NewProgressTask(t.Project(), fmt.Sprintf("%s (part %d)", t.Trigger(), i),
			t.steps, t.stepDelay,
			task.WithUser(t.User()),
			task.WithParent(t))
		if err := t.executor.ExecuteSync(ctx, part); err != nil {
			return fmt.Errorf("part %d of %d failed: %w", i, t.parts, err)
		}
		m.SetProgress(i, t.parts)
	}
	m.AddMessage(task.Info(fmt.Sprintf("completed %d parts", t.parts)))
	return nil
}
