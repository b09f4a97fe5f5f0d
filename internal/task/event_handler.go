package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/inception-project/taskd/internal/events"
)

// Enqueuer accepts tasks for scheduling.
type Enqueuer interface {
	Enqueue(t Task) Admission
}

// FactoryEventHandler implements the events.EventHandler interface to turn
// task.request events into tasks and hand them to the scheduler.
type FactoryEventHandler struct {
	registry *Registry
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewFactoryEventHandler creates a new event handler that builds tasks with
// registry and enqueues them with enqueuer.
func NewFactoryEventHandler(registry *Registry, enqueuer Enqueuer, logger *slog.Logger) *FactoryEventHandler {
	return &FactoryEventHandler{
		registry: registry,
		enqueuer: enqueuer,
		logger:   logger.With("component", "task_factory_event_handler"),
	}
}

// HandleEvent processes task.request events. Other event types are ignored.
func (h *FactoryEventHandler) HandleEvent(ctx context.Context, event *events.Event) error {
	if event.Type != events.TypeTaskRequest {
		h.logger.Debug("ignoring event with unsupported type",
			"event_type", event.Type,
			"event_id", event.ID)
		return nil
	}

	var req Request
	if err := event.UnmarshalPayload(&req); err != nil {
		h.logger.Error("failed to unmarshal payload", "error", err, "event_id", event.ID)
		return fmt.Errorf("%w: failed to unmarshal payload: %v", ErrInvalidRequest, err)
	}

	if _, _, err := h.submit(req, "event_id", event.ID); err != nil {
		return err
	}
	return nil
}

// Submit builds the task described by req and enqueues it. It is the
// synchronous counterpart of a task.request event.
func (h *FactoryEventHandler) Submit(req Request) (Task, Admission, error) {
	return h.submit(req)
}

func (h *FactoryEventHandler) submit(req Request, attrs ...any) (Task, Admission, error) {
	t, err := h.registry.Create(req)
	if err != nil {
		h.logger.Error("failed to create task", append([]any{
			"error", err,
			"task_kind", req.Kind,
			"project_id", req.Project.ID}, attrs...)...)
		return nil, AdmissionRejected, err
	}

	admission := h.enqueuer.Enqueue(t)
	h.logger.Info("task request processed", append([]any{
		"task_id", t.Handle(),
		"task_kind", req.Kind,
		"user", req.User,
		"project_id", req.Project.ID,
		"admission", admission.String()}, attrs...)...)
	return t, admission, nil
}

// Ensure FactoryEventHandler implements events.EventHandler
var _ events.EventHandler = (*FactoryEventHandler)(nil)
