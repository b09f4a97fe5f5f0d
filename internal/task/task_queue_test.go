package task

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func TestNewTaskQueue(t *testing.T) {
	q := NewTaskQueue[int](5)
	assert.Equal(t, 5, q.Cap())
	assert.Equal(t, 0, q.Len())

	// Non-positive sizes fall back to one slot
	assert.Equal(t, 1, NewTaskQueue[int](0).Cap())
	assert.Equal(t, 1, NewTaskQueue[int](-3).Cap())
}

func TestTaskQueue_FIFO(t *testing.T) {
	q := NewTaskQueue[int](3)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, 1))
	require.NoError(t, q.Enqueue(ctx, 2))
	require.NoError(t, q.TryEnqueue(3))
	assert.Equal(t, []int{1, 2, 3}, q.Items())

	for want := 1; want <= 3; want++ {
		got, ok := q.Dequeue()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestTaskQueue_TryEnqueue(t *testing.T) {
	q := NewTaskQueue[string](1)

	require.NoError(t, q.TryEnqueue("a"))
	err := q.TryEnqueue("b")
	assert.ErrorIs(t, err, ErrPoolFull)

	q.Close()
	assert.ErrorIs(t, q.TryEnqueue("c"), ErrPoolClosed)
}

func TestTaskQueue_EnqueueBlocksWhileFull(t *testing.T) {
	q := NewTaskQueue[int](1)
	require.NoError(t, q.TryEnqueue(1))

	done := make(chan error, 1)
	go func() {
		done <- q.Enqueue(context.Background(), 2)
	}()

	select {
	case <-done:
		t.Fatal("Enqueue returned while the queue was full")
	case <-time.After(50 * time.Millisecond):
	}

	got, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, 1, got)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Enqueue did not resume after room became available")
	}
	assert.Equal(t, []int{2}, q.Items())
}

func TestTaskQueue_EnqueueContextCancelled(t *testing.T) {
	q := NewTaskQueue[int](1)
	require.NoError(t, q.TryEnqueue(1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- q.Enqueue(ctx, 2)
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Enqueue did not observe context cancellation")
	}
	assert.Equal(t, 1, q.Len())
}

func TestTaskQueue_RemoveFunc(t *testing.T) {
	q := NewTaskQueue[int](6)
	for i := 1; i <= 6; i++ {
		require.NoError(t, q.TryEnqueue(i))
	}

	removed := q.RemoveFunc(func(i int) bool { return i%2 == 0 })
	assert.Equal(t, []int{2, 4, 6}, removed)
	assert.Equal(t, []int{1, 3, 5}, q.Items())

	assert.Empty(t, q.RemoveFunc(func(int) bool { return false }))
}

func TestTaskQueue_Close(t *testing.T) {
	q := NewTaskQueue[int](3)
	require.NoError(t, q.TryEnqueue(1))
	require.NoError(t, q.TryEnqueue(2))

	dropped := q.Close()
	assert.Equal(t, []int{1, 2}, dropped)

	_, ok := q.Dequeue()
	assert.False(t, ok)
	assert.ErrorIs(t, q.Enqueue(context.Background(), 3), ErrPoolClosed)

	// Second close is a no-op
	assert.Nil(t, q.Close())
}

func TestTaskQueue_CloseWakesDequeue(t *testing.T) {
	q := NewTaskQueue[int](1)

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Dequeue()
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Dequeue was not woken by Close")
	}
}

func TestTaskQueue_ConcurrentEnqueue(t *testing.T) {
	const producers, perProducer = 10, 20
	q := NewTaskQueue[int](producers * perProducer)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				assert.NoError(t, q.Enqueue(context.Background(), p*perProducer+i))
			}
		}(p)
	}
	wg.Wait()

	assert.Equal(t, producers*perProducer, q.Len())
}
