package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/inception-project/taskd/internal/events"
	"github.com/inception-project/taskd/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockEnqueuer records the tasks it is given
type MockEnqueuer struct {
	EnqueueFn func(t Task) Admission
	Tasks     []Task
}

func (m *MockEnqueuer) Enqueue(t Task) Admission {
	m.Tasks = append(m.Tasks, t)
	if m.EnqueueFn != nil {
		return m.EnqueueFn(t)
	}
	return AdmissionScheduled
}

func TestFactoryEventHandler_HandleEvent(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	registry := NewRegistry()
	registry.Register("mock", func(req Request) (Task, error) {
		return NewMockTask(req.Project, req.Trigger, req.Options()...), nil
	})

	t.Run("successfully handle task request", func(t *testing.T) {
		enqueuer := &MockEnqueuer{}
		handler := NewFactoryEventHandler(registry, enqueuer, logger)

		event, err := events.NewEvent(events.TypeTaskRequest, Request{
			Kind:    "mock",
			User:    "alice",
			Project: projectA,
			Trigger: "api",
		})
		require.NoError(t, err)

		require.NoError(t, handler.HandleEvent(context.Background(), event))
		require.Len(t, enqueuer.Tasks, 1)
		assert.Equal(t, "alice", enqueuer.Tasks[0].User())
		assert.Equal(t, projectA.ID, enqueuer.Tasks[0].Project().ID)
	})

	t.Run("ignore other event types", func(t *testing.T) {
		enqueuer := &MockEnqueuer{}
		handler := NewFactoryEventHandler(registry, enqueuer, logger)

		event, err := events.NewEvent(events.TypeTaskUpdate, Snapshot{})
		require.NoError(t, err)

		assert.NoError(t, handler.HandleEvent(context.Background(), event))
		assert.Empty(t, enqueuer.Tasks)
	})

	t.Run("invalid payload", func(t *testing.T) {
		enqueuer := &MockEnqueuer{}
		handler := NewFactoryEventHandler(registry, enqueuer, logger)

		event, err := events.NewEvent(events.TypeTaskRequest, "not an object")
		require.NoError(t, err)

		err = handler.HandleEvent(context.Background(), event)
		assert.ErrorIs(t, err, ErrInvalidRequest)
		assert.Empty(t, enqueuer.Tasks)
	})

	t.Run("unknown kind", func(t *testing.T) {
		enqueuer := &MockEnqueuer{}
		handler := NewFactoryEventHandler(registry, enqueuer, logger)

		event, err := events.NewEvent(events.TypeTaskRequest, Request{Kind: "missing", Project: projectA})
		require.NoError(t, err)

		err = handler.HandleEvent(context.Background(), event)
		assert.True(t, errors.Is(err, ErrUnknownKind))
		assert.Empty(t, enqueuer.Tasks)
	})

	t.Run("rejected admission is not an error", func(t *testing.T) {
		enqueuer := &MockEnqueuer{EnqueueFn: func(Task) Admission { return AdmissionRejected }}
		handler := NewFactoryEventHandler(registry, enqueuer, logger)

		event, err := events.NewEvent(events.TypeTaskRequest, Request{Kind: "mock", Project: projectA})
		require.NoError(t, err)

		assert.NoError(t, handler.HandleEvent(context.Background(), event))
		assert.Len(t, enqueuer.Tasks, 1)
	})
}

func TestFactoryEventHandler_Submit(t *testing.T) {
	logBuf, log := logger.NewTestLogger(t)

	registry := NewRegistry()
	registry.Register("mock", func(req Request) (Task, error) {
		return NewMockTask(req.Project, req.Trigger, req.Options()...), nil
	})

	enqueuer := &MockEnqueuer{EnqueueFn: func(Task) Admission { return AdmissionQueued }}
	handler := NewFactoryEventHandler(registry, enqueuer, log)

	created, admission, err := handler.Submit(Request{Kind: "mock", User: "bob", Project: projectB, Trigger: "api"})
	require.NoError(t, err)
	assert.Equal(t, AdmissionQueued, admission)
	assert.Equal(t, "bob", created.User())
	assert.Same(t, created, enqueuer.Tasks[0])
	logger.AssertLogField(t, logBuf, "task request processed", "admission", "queued")
	logger.AssertLogField(t, logBuf, "task request processed", "user", "bob")

	created, admission, err = handler.Submit(Request{Kind: "missing", Project: projectB})
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.Nil(t, created)
	assert.Equal(t, AdmissionRejected, admission)
	assert.Len(t, enqueuer.Tasks, 1)
	logger.AssertLogField(t, logBuf, "failed to create task", "task_kind", "missing")
}
