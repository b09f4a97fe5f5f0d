package kinds

import (
	"context"
	"fmt"
	"time"

	"github.com/inception-project/taskd/internal/task"
)

// ProgressTask advances its monitor through a fixed number of timed
// steps. Equivalent tasks of the same user and project supersede each
// other while enqueued.
type ProgressTask struct {
	*task.Base

	steps     int
	stepDelay time.Duration
}

// NewProgressTask creates a ProgressTask with the given number of steps.
func NewProgressTask(project task.Project, trigger string, steps int, stepDelay time.Duration, opts ...task.Option) *ProgressTask {
	return &ProgressTask{
		Base:      task.NewBase(project, trigger, opts...),
		steps:     steps,
		stepDelay: stepDelay,
	}
}

func newProgressTaskFromRequest(req task.Request) (task.Task, error) {
	p, delay, opts, err := decodeStepPayload(req.Payload)
	if err != nil {
		return nil, err
	}
	steps := p.Steps
	if steps == 0 {
		steps = defaultSteps
	}
	if steps < 0 || steps > maxSteps {
		return nil, fmt.Errorf("%w: steps must be between 1 and %d", task.ErrInvalidRequest, maxSteps)
	}
	return NewProgressTask(req.Project, req.Trigger, steps, delay, append(req.Options(), opts...)...), nil
}

// Steps returns the number of steps.
func (t *ProgressTask) Steps() int { return t.steps }

// Execute implements task.Task.
func (t *ProgressTask) Execute(ctx context.Context) error {
	m := t.Monitor()
	m.SetProgress(0, t.steps)
	for i := 1; i <= t.steps; i++ {
		if t.IsCancelled() {
			return context.Canceled
		}
		if err := sleep(ctx, t.stepDelay); err != nil {
			return err
		}
		m.SetProgress(i, t.steps)
	}
	m.AddMessage(task.Info(fmt.Sprintf("completed %d steps", t.steps)))
	return nil
}
