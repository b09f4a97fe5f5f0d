package task

import (
	"context"
	"fmt"

	"github.com/inception-project/taskd/internal/redact"
)

// execute runs the lifecycle of t on the calling goroutine: RUNNING,
// Execute, then COMPLETED on success. An error or panic while the monitor
// is still RUNNING ends in FAILED, or CANCELLED when the task was
// cancelled or ctx is done. The failure message shown to clients is
// redacted. The monitor is destroyed however Execute exits, except when
// t was already executed.
func execute(ctx context.Context, t Task) (err error) {
	b := t.base()
	m := b.monitor

	// A second execution must leave the first run's monitor alone.
	if !b.started.CompareAndSwap(false, true) {
		return fmt.Errorf("task %s was already executed", b.handle)
	}
	defer m.Destroy()

	if b.IsCancelled() {
		m.SetState(StateCancelled)
		return context.Canceled
	}

	execCtx, release := b.executionContext(ctx)
	defer release()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
		if err == nil || m.State() != StateRunning {
			return
		}
		if b.IsCancelled() || ctx.Err() != nil {
			m.SetState(StateCancelled)
			return
		}
		m.AddMessage(Error(redact.Error(err)))
		m.SetState(StateFailed)
	}()

	m.SetState(StateRunning)
	err = t.Execute(execCtx)
	if err == nil && m.State() == StateRunning {
		m.SetState(StateCompleted)
	}
	return err
}
