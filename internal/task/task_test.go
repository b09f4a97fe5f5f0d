package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBase(t *testing.T) {
	parent := NewMockTask(projectA, "parent")
	task := NewMockTask(projectB, "trigger", WithUser("alice"), WithParent(parent), WithTitle("title"))

	assert.Equal(t, "alice", task.User())
	assert.Equal(t, projectB, task.Project())
	assert.Equal(t, "trigger", task.Trigger())
	assert.Same(t, parent, task.Parent())
	assert.NotNil(t, task.Monitor())
	assert.Equal(t, task.Handle(), task.Monitor().Handle())
	assert.Equal(t, "MockTask", Kind(task))
}

func TestHandles_AreUnique(t *testing.T) {
	seen := make(map[Handle]bool)
	for i := 0; i < 100; i++ {
		h := NewMockTask(projectA, "t").Handle()
		require.False(t, seen[h], "duplicate handle %s", h)
		seen[h] = true
	}
}

func TestDebounce(t *testing.T) {
	var now atomic.Pointer[time.Time]
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	now.Store(&start)
	clock := func() time.Time { return *now.Load() }

	task := NewMockTask(projectA, "t", WithDebounce(2*time.Second), withClock(clock))
	assert.Equal(t, start.Add(2*time.Second), task.RunnableAfter())
	assert.False(t, task.IsReadyToStart())

	edge := start.Add(2 * time.Second)
	now.Store(&edge)
	assert.False(t, task.IsReadyToStart(), "ready strictly after the deadline")

	later := start.Add(2*time.Second + time.Millisecond)
	now.Store(&later)
	assert.True(t, task.IsReadyToStart())
}

func TestNoDebounce_IsReadyImmediately(t *testing.T) {
	task := NewMockTask(projectA, "t")
	assert.True(t, task.RunnableAfter().IsZero())
	assert.True(t, task.IsReadyToStart())
}

func TestCancel(t *testing.T) {
	task := NewMockTask(projectA, "t")
	assert.False(t, task.IsCancelled())

	task.Cancel()
	task.Cancel()
	assert.True(t, task.IsCancelled())
}

func TestExecute_Success(t *testing.T) {
	rec := &recordingNotifier{}
	task := NewMockTask(projectA, "t")
	task.Monitor().attach(rec, Kind(task))

	task.ExecuteFn = func(ctx context.Context, m *MockTask) error {
		assert.Equal(t, StateRunning, m.Monitor().State())
		m.Monitor().SetProgress(1, 1)
		return nil
	}

	require.NoError(t, execute(context.Background(), task))

	snap := task.Monitor().Snapshot()
	assert.Equal(t, StateCompleted, snap.State)
	assert.True(t, snap.Destroyed)
	assert.Len(t, rec.EndedSnapshots(), 1)
}

func TestExecute_TaskOwnsTerminalState(t *testing.T) {
	task := NewMockTask(projectA, "t")
	task.ExecuteFn = func(ctx context.Context, m *MockTask) error {
		m.Monitor().SetState(StateCancelled)
		return nil
	}

	require.NoError(t, execute(context.Background(), task))
	assert.Equal(t, StateCancelled, task.Monitor().State())
}

func TestExecute_Failure(t *testing.T) {
	task := NewMockTask(projectA, "t")
	task.ExecuteFn = func(context.Context, *MockTask) error {
		return assert.AnError
	}

	err := execute(context.Background(), task)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, StateFailed, task.Monitor().State())
	assert.Contains(t, task.Monitor().Messages(), Error(assert.AnError.Error()))
	assert.True(t, task.Monitor().IsDestroyed())
}

func TestExecute_FailureMessageIsRedacted(t *testing.T) {
	task := NewMockTask(projectA, "t")
	task.ExecuteFn = func(context.Context, *MockTask) error {
		return errors.New("failed to connect to postgres://taskd:hunter22@db:5432/taskd")
	}

	require.Error(t, execute(context.Background(), task))
	messages := task.Monitor().Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, LevelError, messages[0].Level)
	assert.NotContains(t, messages[0].Message, "hunter22")
}

func TestExecute_Panic(t *testing.T) {
	task := NewMockTask(projectA, "t")
	task.ExecuteFn = func(context.Context, *MockTask) error {
		panic("boom")
	}

	err := execute(context.Background(), task)
	assert.ErrorIs(t, err, ErrTaskPanicked)
	assert.Equal(t, StateFailed, task.Monitor().State())
	assert.True(t, task.Monitor().IsDestroyed())
}

func TestExecute_CancelledWhileRunning(t *testing.T) {
	task := NewMockTask(projectA, "t")
	task.ExecuteFn = func(ctx context.Context, m *MockTask) error {
		m.Cancel()
		<-ctx.Done()
		return ctx.Err()
	}

	err := execute(context.Background(), task)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateCancelled, task.Monitor().State())
}

func TestExecute_CancelledBeforeStart(t *testing.T) {
	var ran atomic.Bool
	task := NewMockTask(projectA, "t")
	task.ExecuteFn = func(context.Context, *MockTask) error {
		ran.Store(true)
		return nil
	}
	task.Cancel()

	err := execute(context.Background(), task)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran.Load())
	assert.Equal(t, StateCancelled, task.Monitor().State())
}

func TestExecute_OnlyOnce(t *testing.T) {
	var runs atomic.Int32
	task := NewMockTask(projectA, "t")
	task.ExecuteFn = func(context.Context, *MockTask) error {
		runs.Add(1)
		return nil
	}

	require.NoError(t, execute(context.Background(), task))
	assert.Error(t, execute(context.Background(), task))
	assert.Equal(t, int32(1), runs.Load())
}

func TestExecute_SecondCallLeavesRunningMonitor(t *testing.T) {
	g := newGate()
	rec := &recordingNotifier{}
	task := NewMockTask(projectA, "t", WithUser("alice"))
	task.Monitor().attach(rec, "MockTask")
	task.ExecuteFn = func(context.Context, *MockTask) error {
		g.wait()
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- execute(context.Background(), task) }()
	waitClosed(t, g.started, "first execution")

	assert.Error(t, execute(context.Background(), task))
	assert.False(t, task.Monitor().IsDestroyed())
	assert.Equal(t, StateRunning, task.Monitor().State())
	assert.Empty(t, rec.EndedSnapshots())

	g.open()
	require.NoError(t, <-done)
	assert.Equal(t, StateCompleted, task.Monitor().State())
	ended := rec.EndedSnapshots()
	require.Len(t, ended, 1)
	assert.Equal(t, StateCompleted, ended[0].State)
}
