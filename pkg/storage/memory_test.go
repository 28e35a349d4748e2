package storage

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getbindu/bindu/pkg/protocol"
)

func userMessage(text string) protocol.Message {
	return protocol.Message{
		MessageID: uuid.NewString(),
		Role:      protocol.RoleUser,
		Parts:     []protocol.Part{protocol.TextPart(text)},
	}
}

func TestSubmitTaskRoundTrip(t *testing.T) {
	store := NewMemory(Options{})
	ctx := context.Background()
	contextID := uuid.NewString()

	task, err := store.SubmitTask(ctx, contextID, userMessage("hello"))
	require.NoError(t, err)
	assert.Equal(t, protocol.TaskStateSubmitted, task.Status.State)
	assert.Equal(t, contextID, task.ContextID)
	assert.Equal(t, protocol.TaskKindTask, task.Kind)

	loaded, err := store.LoadTask(ctx, task.ID, 0)
	require.NoError(t, err)
	require.Len(t, loaded.History, 1)
	assert.Equal(t, "hello", loaded.History[0].Text())
	// Message IDs are stamped with the resolved task and context.
	assert.Equal(t, task.ID, loaded.History[0].TaskID)
	assert.Equal(t, contextID, loaded.History[0].ContextID)

	// The context was created implicitly.
	cx, err := store.GetContext(ctx, contextID)
	require.NoError(t, err)
	assert.Equal(t, contextID, cx.ContextID)
}

func TestSubmitTaskStampsConfiguredKind(t *testing.T) {
	store := NewMemory(Options{Kind: protocol.TaskKindWorkflow})
	task, err := store.SubmitTask(context.Background(), uuid.NewString(), userMessage("hi"))
	require.NoError(t, err)
	assert.Equal(t, protocol.TaskKindWorkflow, task.Kind)
}

func TestLoadTaskNotFound(t *testing.T) {
	store := NewMemory(Options{})
	_, err := store.LoadTask(context.Background(), uuid.NewString(), 0)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestLoadTaskTruncatesHistory(t *testing.T) {
	store := NewMemory(Options{})
	ctx := context.Background()

	task, err := store.SubmitTask(ctx, uuid.NewString(), userMessage("one"))
	require.NoError(t, err)
	_, err = store.UpdateTask(ctx, task.ID, Update{
		NewMessages: []protocol.Message{userMessage("two"), userMessage("three")},
	})
	require.NoError(t, err)

	loaded, err := store.LoadTask(ctx, task.ID, 2)
	require.NoError(t, err)
	require.Len(t, loaded.History, 2)
	assert.Equal(t, "two", loaded.History[0].Text())
	assert.Equal(t, "three", loaded.History[1].Text())

	full, err := store.LoadTask(ctx, task.ID, 0)
	require.NoError(t, err)
	assert.Len(t, full.History, 3)
}

func TestUpdateTaskTransitions(t *testing.T) {
	store := NewMemory(Options{})
	ctx := context.Background()

	task, err := store.SubmitTask(ctx, uuid.NewString(), userMessage("go"))
	require.NoError(t, err)

	working, err := store.UpdateTask(ctx, task.ID, Update{NewState: protocol.TaskStateWorking})
	require.NoError(t, err)
	assert.Equal(t, protocol.TaskStateWorking, working.Status.State)
	assert.True(t, working.Status.Timestamp.After(task.Status.Timestamp) ||
		working.Status.Timestamp.Equal(task.Status.Timestamp))

	// submitted -> completed skips working and must be rejected.
	fresh, err := store.SubmitTask(ctx, uuid.NewString(), userMessage("go"))
	require.NoError(t, err)
	_, err = store.UpdateTask(ctx, fresh.ID, Update{NewState: protocol.TaskStateCompleted})
	require.Error(t, err)
	assert.True(t, IsInvalidTransition(err))
}

func TestUpdateTaskTerminalIsImmutable(t *testing.T) {
	store := NewMemory(Options{})
	ctx := context.Background()

	task, err := store.SubmitTask(ctx, uuid.NewString(), userMessage("go"))
	require.NoError(t, err)
	_, err = store.UpdateTask(ctx, task.ID, Update{NewState: protocol.TaskStateWorking})
	require.NoError(t, err)
	_, err = store.UpdateTask(ctx, task.ID, Update{NewState: protocol.TaskStateCompleted})
	require.NoError(t, err)

	// Any further mutation fails, including plain appends.
	_, err = store.UpdateTask(ctx, task.ID, Update{
		NewMessages: []protocol.Message{userMessage("late")},
	})
	assert.True(t, IsInvalidTransition(err))

	loaded, err := store.LoadTask(ctx, task.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, protocol.TaskStateCompleted, loaded.Status.State)
	assert.Len(t, loaded.History, 1)
}

func TestUpdateTaskMergesMetadata(t *testing.T) {
	store := NewMemory(Options{})
	ctx := context.Background()

	task, err := store.SubmitTask(ctx, uuid.NewString(), userMessage("go"))
	require.NoError(t, err)
	_, err = store.UpdateTask(ctx, task.ID, Update{
		NewState:      protocol.TaskStateWorking,
		MetadataMerge: map[string]any{"a": 1},
	})
	require.NoError(t, err)
	updated, err := store.UpdateTask(ctx, task.ID, Update{
		MetadataMerge: map[string]any{"b": 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Metadata["a"])
	assert.Equal(t, 2, updated.Metadata["b"])
}

func TestSnapshotsAreIsolated(t *testing.T) {
	store := NewMemory(Options{})
	ctx := context.Background()

	task, err := store.SubmitTask(ctx, uuid.NewString(), userMessage("go"))
	require.NoError(t, err)
	task.History[0].Parts[0].Text = "mutated"
	task.Status.State = protocol.TaskStateFailed

	loaded, err := store.LoadTask(ctx, task.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "go", loaded.History[0].Text())
	assert.Equal(t, protocol.TaskStateSubmitted, loaded.Status.State)
}

func TestListTasksFilterAndOrder(t *testing.T) {
	store := NewMemory(Options{})
	ctx := context.Background()
	contextID := uuid.NewString()

	first, err := store.SubmitTask(ctx, contextID, userMessage("first"))
	require.NoError(t, err)
	second, err := store.SubmitTask(ctx, contextID, userMessage("second"))
	require.NoError(t, err)
	_, err = store.SubmitTask(ctx, uuid.NewString(), userMessage("other"))
	require.NoError(t, err)

	// Touch the first task so it becomes the most recently updated.
	_, err = store.UpdateTask(ctx, first.ID, Update{NewState: protocol.TaskStateWorking})
	require.NoError(t, err)

	tasks, err := store.ListTasks(ctx, TaskFilter{ContextID: contextID})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, first.ID, tasks[0].ID)
	assert.Equal(t, second.ID, tasks[1].ID)

	working, err := store.ListTasks(ctx, TaskFilter{State: protocol.TaskStateWorking})
	require.NoError(t, err)
	require.Len(t, working, 1)
	assert.Equal(t, first.ID, working[0].ID)

	limited, err := store.ListTasks(ctx, TaskFilter{ContextID: contextID, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, second.ID, limited[0].ID)

	n, err := store.CountTasks(ctx, TaskFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Counting honors the same filters as the listing.
	n, err = store.CountTasks(ctx, TaskFilter{ContextID: contextID})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestClearContextCascades(t *testing.T) {
	store := NewMemory(Options{})
	ctx := context.Background()
	contextID := uuid.NewString()

	task, err := store.SubmitTask(ctx, contextID, userMessage("go"))
	require.NoError(t, err)
	require.NoError(t, store.SaveFeedback(ctx, task.ID, map[string]any{"rating": 5}))
	require.NoError(t, store.SaveWebhook(ctx, task.ID, protocol.PushConfig{URL: "http://example.com"}))

	require.NoError(t, store.ClearContext(ctx, contextID))

	_, err = store.LoadTask(ctx, task.ID, 0)
	assert.ErrorIs(t, err, ErrTaskNotFound)
	_, err = store.GetContext(ctx, contextID)
	assert.ErrorIs(t, err, ErrContextNotFound)
	cfg, err := store.LoadWebhook(ctx, task.ID)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	assert.ErrorIs(t, store.ClearContext(ctx, contextID), ErrContextNotFound)
}

func TestWebhookLifecycle(t *testing.T) {
	store := NewMemory(Options{})
	ctx := context.Background()

	task, err := store.SubmitTask(ctx, uuid.NewString(), userMessage("go"))
	require.NoError(t, err)

	require.NoError(t, store.SaveWebhook(ctx, task.ID,
		protocol.PushConfig{URL: "http://example.com/hook", Token: "tok"}))
	cfg, err := store.LoadWebhook(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "http://example.com/hook", cfg.URL)

	require.NoError(t, store.DeleteWebhook(ctx, task.ID))
	cfg, err = store.LoadWebhook(ctx, task.ID)
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestFeedbackSurvivesTerminalState(t *testing.T) {
	store := NewMemory(Options{})
	ctx := context.Background()

	task, err := store.SubmitTask(ctx, uuid.NewString(), userMessage("go"))
	require.NoError(t, err)
	_, err = store.UpdateTask(ctx, task.ID, Update{NewState: protocol.TaskStateWorking})
	require.NoError(t, err)
	_, err = store.UpdateTask(ctx, task.ID, Update{NewState: protocol.TaskStateCompleted})
	require.NoError(t, err)

	require.NoError(t, store.SaveFeedback(ctx, task.ID, map[string]any{"rating": 4}))
	fb, err := store.GetFeedback(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, fb, 1)
	assert.Equal(t, 4, fb[0].Payload["rating"])

	assert.ErrorIs(t, store.SaveFeedback(ctx, uuid.NewString(), nil), ErrTaskNotFound)
}

func TestContextHistoryAccumulatesAcrossTasks(t *testing.T) {
	store := NewMemory(Options{ContextHistory: true})
	ctx := context.Background()
	contextID := uuid.NewString()

	first, err := store.SubmitTask(ctx, contextID, userMessage("one"))
	require.NoError(t, err)
	_, err = store.UpdateTask(ctx, first.ID, Update{
		NewState:    protocol.TaskStateWorking,
		NewMessages: []protocol.Message{{Role: protocol.RoleAssistant, Parts: []protocol.Part{protocol.TextPart("two")}}},
	})
	require.NoError(t, err)
	_, err = store.SubmitTask(ctx, contextID, userMessage("three"))
	require.NoError(t, err)

	cx, err := store.GetContext(ctx, contextID)
	require.NoError(t, err)
	require.Len(t, cx.MessageHistory, 3)
	assert.Equal(t, "one", cx.MessageHistory[0].Text())
	assert.Equal(t, "two", cx.MessageHistory[1].Text())
	assert.Equal(t, "three", cx.MessageHistory[2].Text())
}

func TestConcurrentUpdatesStayConsistent(t *testing.T) {
	store := NewMemory(Options{})
	ctx := context.Background()

	task, err := store.SubmitTask(ctx, uuid.NewString(), userMessage("go"))
	require.NoError(t, err)
	_, err = store.UpdateTask(ctx, task.ID, Update{NewState: protocol.TaskStateWorking})
	require.NoError(t, err)

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.UpdateTask(ctx, task.ID, Update{
				NewMessages: []protocol.Message{userMessage("m")},
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	loaded, err := store.LoadTask(ctx, task.ID, 0)
	require.NoError(t, err)
	assert.Len(t, loaded.History, writers+1)
}

func TestCanTransitionTable(t *testing.T) {
	assert.True(t, CanTransition(protocol.TaskStateSubmitted, protocol.TaskStateWorking))
	assert.True(t, CanTransition(protocol.TaskStateWorking, protocol.TaskStateInputRequired))
	assert.True(t, CanTransition(protocol.TaskStateInputRequired, protocol.TaskStateSubmitted))
	assert.True(t, CanTransition(protocol.TaskStateAuthRequired, protocol.TaskStateWorking))
	// Same-state writes are legal only while the task is still queued.
	assert.True(t, CanTransition(protocol.TaskStateSubmitted, protocol.TaskStateSubmitted))
	assert.False(t, CanTransition(protocol.TaskStateWorking, protocol.TaskStateWorking))
	assert.False(t, CanTransition(protocol.TaskStateInputRequired, protocol.TaskStateInputRequired))

	assert.False(t, CanTransition(protocol.TaskStateSubmitted, protocol.TaskStateCompleted))
	assert.False(t, CanTransition(protocol.TaskStateCompleted, protocol.TaskStateWorking))
	assert.False(t, CanTransition(protocol.TaskStateCanceled, protocol.TaskStateSubmitted))
	assert.False(t, CanTransition(protocol.TaskStateFailed, protocol.TaskStateFailed+"x"))
}

func TestDuplicateClaimAndPauseRejected(t *testing.T) {
	store := NewMemory(Options{})
	ctx := context.Background()

	task, err := store.SubmitTask(ctx, uuid.NewString(), userMessage("go"))
	require.NoError(t, err)

	// A second resume append while the task is still queued is fine.
	_, err = store.UpdateTask(ctx, task.ID, Update{
		NewState:    protocol.TaskStateSubmitted,
		NewMessages: []protocol.Message{userMessage("more context")},
	})
	require.NoError(t, err)

	_, err = store.UpdateTask(ctx, task.ID, Update{NewState: protocol.TaskStateWorking})
	require.NoError(t, err)

	// A second worker claiming the same task loses.
	_, err = store.UpdateTask(ctx, task.ID, Update{NewState: protocol.TaskStateWorking})
	assert.True(t, IsInvalidTransition(err))

	_, err = store.UpdateTask(ctx, task.ID, Update{
		NewState:    protocol.TaskStateInputRequired,
		NewMessages: []protocol.Message{userMessage("what city?")},
	})
	require.NoError(t, err)

	// A duplicate pause write leaves no second prompt behind.
	_, err = store.UpdateTask(ctx, task.ID, Update{
		NewState:    protocol.TaskStateInputRequired,
		NewMessages: []protocol.Message{userMessage("what city?")},
	})
	assert.True(t, IsInvalidTransition(err))

	loaded, err := store.LoadTask(ctx, task.ID, 0)
	require.NoError(t, err)
	assert.Len(t, loaded.History, 3)
}
