package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFIFO(t *testing.T) {
	q := NewMemory(8)
	defer q.Close()
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "a"))
	require.NoError(t, q.Enqueue(ctx, "b"))

	first, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	second, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "a", first)
	assert.Equal(t, "b", second)
}

func TestMemoryDequeueTimeout(t *testing.T) {
	q := NewMemory(8)
	defer q.Close()

	start := time.Now()
	id, err := q.Dequeue(context.Background(), 20*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestMemoryEnqueueBlocksWhenFull(t *testing.T) {
	q := NewMemory(1)
	defer q.Close()
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "a"))

	blocked, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := q.Enqueue(blocked, "b")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryClose(t *testing.T) {
	q := NewMemory(8)
	require.NoError(t, q.Close())

	assert.ErrorIs(t, q.Enqueue(context.Background(), "a"), ErrClosed)
	_, err := q.Dequeue(context.Background(), time.Second)
	assert.ErrorIs(t, err, ErrClosed)
	assert.False(t, q.Ready(context.Background()))

	// Closing twice is fine.
	require.NoError(t, q.Close())
}

func TestMemoryCloseUnblocksPendingEnqueue(t *testing.T) {
	q := NewMemory(1)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "a"))

	// A goroutine blocked on a full queue must come back with ErrClosed when
	// the queue shuts down underneath it, never panic.
	errs := make(chan error, 1)
	go func() {
		errs <- q.Enqueue(ctx, "b")
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Close())

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("enqueue still blocked after close")
	}
}

func TestMemoryDequeueHonorsContext(t *testing.T) {
	q := NewMemory(8)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := q.Dequeue(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
