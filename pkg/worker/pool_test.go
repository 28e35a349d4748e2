package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getbindu/bindu/pkg/protocol"
	"github.com/getbindu/bindu/pkg/scheduler"
	"github.com/getbindu/bindu/pkg/storage"
)

type recordingNotifier struct {
	updates chan *protocol.Task
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{updates: make(chan *protocol.Task, 16)}
}

func (n *recordingNotifier) TaskUpdated(_ context.Context, task *protocol.Task) {
	n.updates <- task
}

func submit(t *testing.T, store storage.Storage, text string) *protocol.Task {
	t.Helper()
	task, err := store.SubmitTask(context.Background(), uuid.NewString(), protocol.Message{
		MessageID: uuid.NewString(),
		Role:      protocol.RoleUser,
		Parts:     []protocol.Part{protocol.TextPart(text)},
	})
	require.NoError(t, err)
	return task
}

func testPool(store storage.Storage, handler Handler, notifier Notifier, cfg Config) *Pool {
	cfg.InitialInterval = time.Millisecond
	cfg.MaxInterval = 2 * time.Millisecond
	return NewPool(cfg, store, scheduler.NewMemory(8), handler, notifier)
}

func TestProcessCompletesWithTextAnswer(t *testing.T) {
	store := storage.NewMemory(storage.Options{})
	task := submit(t, store, "hello")

	var seenTurns []Turn
	handler := func(_ context.Context, history []Turn) (any, error) {
		seenTurns = history
		return "hi there", nil
	}
	notifier := newRecordingNotifier()
	pool := testPool(store, handler, notifier, Config{})

	pool.process(context.Background(), task.ID)

	require.Len(t, seenTurns, 1)
	assert.Equal(t, Turn{Role: "user", Content: "hello"}, seenTurns[0])

	loaded, err := store.LoadTask(context.Background(), task.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, protocol.TaskStateCompleted, loaded.Status.State)
	require.Len(t, loaded.History, 2)
	assert.Equal(t, protocol.RoleAssistant, loaded.History[1].Role)
	assert.Equal(t, "hi there", loaded.History[1].Text())
	assert.NotEmpty(t, loaded.History[1].MessageID)

	update := <-notifier.updates
	assert.Equal(t, protocol.TaskStateCompleted, update.Status.State)
}

func TestProcessPausesOnInputRequired(t *testing.T) {
	store := storage.NewMemory(storage.Options{})
	task := submit(t, store, "hello")

	handler := func(_ context.Context, _ []Turn) (any, error) {
		return map[string]any{"state": "input-required", "prompt": "What is your name?"}, nil
	}
	pool := testPool(store, handler, nil, Config{})

	pool.process(context.Background(), task.ID)

	loaded, err := store.LoadTask(context.Background(), task.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, protocol.TaskStateInputRequired, loaded.Status.State)
	require.Len(t, loaded.History, 2)
	assert.Equal(t, "What is your name?", loaded.History[1].Text())
}

func TestProcessCompletesWithStructuredAnswer(t *testing.T) {
	store := storage.NewMemory(storage.Options{})
	task := submit(t, store, "hello")

	handler := func(_ context.Context, _ []Turn) (any, error) {
		return map[string]any{"answer": 42}, nil
	}
	pool := testPool(store, handler, nil, Config{})

	pool.process(context.Background(), task.ID)

	loaded, err := store.LoadTask(context.Background(), task.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, protocol.TaskStateCompleted, loaded.Status.State)
	require.Len(t, loaded.History, 2)
	require.Len(t, loaded.History[1].Parts, 1)
	assert.Equal(t, protocol.PartTypeData, loaded.History[1].Parts[0].Type)
}

func TestProcessFailsAfterRetries(t *testing.T) {
	store := storage.NewMemory(storage.Options{})
	task := submit(t, store, "hello")

	var calls atomic.Int32
	handler := func(_ context.Context, _ []Turn) (any, error) {
		calls.Add(1)
		return nil, errors.New("model unavailable")
	}
	pool := testPool(store, handler, nil, Config{MaxRetries: 2})

	pool.process(context.Background(), task.ID)

	assert.Equal(t, int32(3), calls.Load())

	loaded, err := store.LoadTask(context.Background(), task.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, protocol.TaskStateFailed, loaded.Status.State)
	assert.Equal(t, "model unavailable", loaded.Metadata[protocol.MetadataKeyError])
	// Failed attempts leave no partial output in the history.
	assert.Len(t, loaded.History, 1)
}

func TestProcessRetrySucceedsWithoutDuplicates(t *testing.T) {
	store := storage.NewMemory(storage.Options{})
	task := submit(t, store, "hello")

	var calls atomic.Int32
	handler := func(_ context.Context, _ []Turn) (any, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("transient")
		}
		return "ok", nil
	}
	pool := testPool(store, handler, nil, Config{MaxRetries: 3})

	pool.process(context.Background(), task.ID)

	assert.Equal(t, int32(2), calls.Load())
	loaded, err := store.LoadTask(context.Background(), task.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, protocol.TaskStateCompleted, loaded.Status.State)
	assert.Len(t, loaded.History, 2)
}

func TestProcessDropsTaskNotInSubmittedState(t *testing.T) {
	store := storage.NewMemory(storage.Options{})
	task := submit(t, store, "hello")
	_, err := store.UpdateTask(context.Background(), task.ID, storage.Update{
		NewState: protocol.TaskStateWorking,
	})
	require.NoError(t, err)

	handler := func(_ context.Context, _ []Turn) (any, error) {
		t.Fatal("handler must not run for a task already being worked")
		return nil, nil
	}
	pool := testPool(store, handler, nil, Config{})

	pool.process(context.Background(), task.ID)

	loaded, err := store.LoadTask(context.Background(), task.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, protocol.TaskStateWorking, loaded.Status.State)
}

func TestProcessDropsUnknownTask(t *testing.T) {
	store := storage.NewMemory(storage.Options{})
	pool := testPool(store, func(_ context.Context, _ []Turn) (any, error) {
		t.Fatal("handler must not run")
		return nil, nil
	}, nil, Config{})

	pool.process(context.Background(), uuid.NewString())
}

func TestDuplicateDequeueInvokesHandlerOnce(t *testing.T) {
	store := storage.NewMemory(storage.Options{})
	task := submit(t, store, "hello")

	var calls atomic.Int32
	release := make(chan struct{})
	handler := func(_ context.Context, _ []Turn) (any, error) {
		calls.Add(1)
		<-release
		return "done", nil
	}
	pool := testPool(store, handler, nil, Config{})

	// The queue is at-least-once: the same id can reach two workers. Both
	// load the task in "submitted"; only one may claim it.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.process(context.Background(), task.ID)
		}()
	}
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	loaded, err := store.LoadTask(context.Background(), task.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, protocol.TaskStateCompleted, loaded.Status.State)
	assert.Len(t, loaded.History, 2)
}

func TestCancelDiscardsHandlerOutput(t *testing.T) {
	store := storage.NewMemory(storage.Options{})
	task := submit(t, store, "hello")

	started := make(chan struct{})
	handler := func(ctx context.Context, _ []Turn) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	pool := testPool(store, handler, nil, Config{})

	done := make(chan struct{})
	go func() {
		pool.process(context.Background(), task.ID)
		close(done)
	}()

	<-started
	// The cancel write happens first, then the worker signal fires.
	_, err := store.UpdateTask(context.Background(), task.ID, storage.Update{
		NewState: protocol.TaskStateCanceled,
	})
	require.NoError(t, err)
	pool.Cancel(task.ID)
	<-done

	loaded, err := store.LoadTask(context.Background(), task.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, protocol.TaskStateCanceled, loaded.Status.State)
	// The user message is the only history entry; no assistant output leaked.
	assert.Len(t, loaded.History, 1)
}

func TestShutdownLeavesInterruptedTaskWorking(t *testing.T) {
	store := storage.NewMemory(storage.Options{})
	task := submit(t, store, "hello")

	started := make(chan struct{})
	handler := func(ctx context.Context, _ []Turn) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	pool := testPool(store, handler, nil, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool.process(ctx, task.ID)
		close(done)
	}()

	<-started
	// Shutdown cancels the loop context; nobody asked for tasks/cancel.
	cancel()
	<-done

	loaded, err := store.LoadTask(context.Background(), task.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, protocol.TaskStateWorking, loaded.Status.State)
	assert.Len(t, loaded.History, 1)
}

func TestPoolRunDrainsQueue(t *testing.T) {
	store := storage.NewMemory(storage.Options{})
	queue := scheduler.NewMemory(8)
	notifier := newRecordingNotifier()

	handler := func(_ context.Context, history []Turn) (any, error) {
		return "done: " + history[0].Content, nil
	}
	pool := NewPool(Config{Concurrency: 2, DequeueTimeout: 10 * time.Millisecond},
		store, queue, handler, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- pool.Run(ctx) }()

	task1 := submit(t, store, "one")
	task2 := submit(t, store, "two")
	require.NoError(t, queue.Enqueue(ctx, task1.ID))
	require.NoError(t, queue.Enqueue(ctx, task2.ID))

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case update := <-notifier.updates:
			assert.Equal(t, protocol.TaskStateCompleted, update.Status.State)
			seen[update.ID] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for task completion")
		}
	}
	assert.True(t, seen[task1.ID])
	assert.True(t, seen[task2.ID])

	cancel()
	require.NoError(t, <-runDone)
}

func TestClassify(t *testing.T) {
	out := classify("plain answer")
	assert.Equal(t, protocol.TaskStateCompleted, out.state)
	require.Len(t, out.messages, 1)
	assert.Equal(t, "plain answer", out.messages[0].Text())

	out = classify(map[string]any{"state": "auth-required", "prompt": "log in"})
	assert.Equal(t, protocol.TaskStateAuthRequired, out.state)
	require.Len(t, out.messages, 1)
	assert.Equal(t, "log in", out.messages[0].Text())

	// A directive without a prompt produces no assistant message.
	out = classify(map[string]any{"state": "input-required"})
	assert.Equal(t, protocol.TaskStateInputRequired, out.state)
	assert.Empty(t, out.messages)

	// An unknown state key is treated as a structured answer.
	out = classify(map[string]any{"state": "bogus"})
	assert.Equal(t, protocol.TaskStateCompleted, out.state)

	out = classify(42)
	assert.Equal(t, protocol.TaskStateCompleted, out.state)
	require.Len(t, out.messages, 1)
	assert.Equal(t, protocol.PartTypeData, out.messages[0].Parts[0].Type)
}
