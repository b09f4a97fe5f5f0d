package task

import (
	"context"
	"log/slog"

	"github.com/inception-project/taskd/internal/events"
)

// EventNotifier publishes monitor changes as task.update and task.ended
// events.
type EventNotifier struct {
	emitter events.EventEmitter
	logger  *slog.Logger
}

// NewEventNotifier creates a notifier emitting through emitter.
func NewEventNotifier(emitter events.EventEmitter, logger *slog.Logger) *EventNotifier {
	return &EventNotifier{
		emitter: emitter,
		logger:  logger.With("component", "task_event_notifier"),
	}
}

// Notify implements Notifier.
func (n *EventNotifier) Notify(s Snapshot) {
	n.emit(events.TypeTaskUpdate, s)
}

// Ended implements Notifier.
func (n *EventNotifier) Ended(s Snapshot) {
	n.emit(events.TypeTaskEnded, s)
}

func (n *EventNotifier) emit(eventType string, s Snapshot) {
	event, err := events.NewEvent(eventType, s)
	if err != nil {
		n.logger.Error("failed to build monitor event",
			"error", err,
			"task_id", s.Handle,
			"event_type", eventType)
		return
	}
	if err := n.emitter.EmitEvent(context.Background(), event); err != nil {
		n.logger.Warn("monitor event not fully delivered",
			"error", err,
			"task_id", s.Handle,
			"event_type", eventType)
	}
}

var _ Notifier = (*EventNotifier)(nil)
