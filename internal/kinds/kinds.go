package kinds

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/inception-project/taskd/internal/task"
)

// Registered kind names.
const (
	KindProgress     = "progress"
	KindBatch        = "batch"
	KindPruneHistory = "prune-history"
)

const (
	defaultSteps     = 10
	maxSteps         = 1000
	defaultStepDelay = 100 * time.Millisecond
	maxParts         = 100
)

// Register adds the factories of all built-in kinds to registry.
func Register(registry *task.Registry) {
	registry.Register(KindProgress, newProgressTaskFromRequest)
	registry.Register(KindBatch, newBatchTaskFromRequest)
	registry.Register(KindPruneHistory, newPruneHistoryTaskFromRequest)
}

// stepPayload is shared by the kinds that advance in timed steps.
type stepPayload struct {
	Steps     int    `json:"steps"`
	Parts     int    `json:"parts"`
	StepDelay string `json:"step_delay"`
	Debounce  string `json:"debounce"`
	Title     string `json:"title"`
}

func decodeStepPayload(raw json.RawMessage) (stepPayload, time.Duration, []task.Option, error) {
	var p stepPayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return p, 0, nil, fmt.Errorf("%w: invalid payload: %v", task.ErrInvalidRequest, err)
		}
	}

	delay := defaultStepDelay
	if p.StepDelay != "" {
		d, err := time.ParseDuration(p.StepDelay)
		if err != nil || d < 0 {
			return p, 0, nil, fmt.Errorf("%w: invalid step_delay %q", task.ErrInvalidRequest, p.StepDelay)
		}
		delay = d
	}

	var opts []task.Option
	if p.Debounce != "" {
		d, err := time.ParseDuration(p.Debounce)
		if err != nil || d < 0 {
			return p, 0, nil, fmt.Errorf("%w: invalid debounce %q", task.ErrInvalidRequest, p.Debounce)
		}
		opts = append(opts, task.WithDebounce(d))
	}
	if p.Title != "" {
		opts = append(opts, task.WithTitle(p.Title))
	}
	return p, delay, opts, nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
