// Copyright 2025 The Bindu Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package manager dispatches the A2A JSON-RPC method set onto storage and
// scheduler operations, enforcing the protocol invariants and the closed
// error taxonomy.
package manager

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/getbindu/bindu/pkg/protocol"
	"github.com/getbindu/bindu/pkg/scheduler"
	"github.com/getbindu/bindu/pkg/storage"
)

// Canceler fires a cooperative cancellation signal for an in-flight task.
// The worker pool implements it.
type Canceler interface {
	Cancel(taskID string)
}

// Config toggles optional protocol behavior.
type Config struct {
	// PushEnabled gates tasks/pushNotification/set. When false the method
	// fails with PushNotSupported.
	PushEnabled bool
}

// Manager translates JSON-RPC requests into storage and scheduler calls.
type Manager struct {
	cfg      Config
	store    storage.Storage
	queue    scheduler.Scheduler
	canceler Canceler
	logger   *slog.Logger
}

// New wires a manager. canceler may be nil when no worker pool runs in this
// process.
func New(cfg Config, store storage.Storage, queue scheduler.Scheduler, canceler Canceler) *Manager {
	return &Manager{
		cfg:      cfg,
		store:    store,
		queue:    queue,
		canceler: canceler,
		logger:   slog.Default().With("component", "manager"),
	}
}

// Dispatch routes one JSON-RPC request to its method handler and wraps the
// outcome in a response envelope. It never panics on malformed input.
func (m *Manager) Dispatch(ctx context.Context, req *protocol.Request) *protocol.Response {
	if req.JSONRPC != "2.0" || req.Method == "" {
		return protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest)
	}

	var (
		result any
		err    error
	)
	switch req.Method {
	case protocol.MethodMessageSend:
		result, err = m.messageSend(ctx, req.Params)
	case protocol.MethodTasksGet:
		result, err = m.tasksGet(ctx, req.Params)
	case protocol.MethodTasksCancel:
		result, err = m.tasksCancel(ctx, req.Params)
	case protocol.MethodTasksList:
		result, err = m.tasksList(ctx, req.Params)
	case protocol.MethodTasksFeedback:
		result, err = m.tasksFeedback(ctx, req.Params)
	case protocol.MethodContextsList:
		result, err = m.contextsList(ctx)
	case protocol.MethodContextsClear:
		result, err = m.contextsClear(ctx, req.Params)
	case protocol.MethodPushSet:
		result, err = m.pushSet(ctx, req.Params)
	default:
		return protocol.NewErrorResponse(req.ID, protocol.ErrMethodNotFound)
	}

	if err != nil {
		return protocol.NewErrorResponse(req.ID, m.toProtocolError(err))
	}
	return protocol.NewResponse(req.ID, result)
}

// toProtocolError maps internal errors onto the closed taxonomy. Anything
// unrecognized becomes InternalError without leaking detail.
func (m *Manager) toProtocolError(err error) *protocol.Error {
	var perr *protocol.Error
	if errors.As(err, &perr) {
		return perr
	}
	if errors.Is(err, storage.ErrTaskNotFound) {
		return protocol.ErrTaskNotFound
	}
	if errors.Is(err, storage.ErrContextNotFound) {
		return protocol.ErrTaskNotFound.WithData("context not found")
	}
	if storage.IsInvalidTransition(err) {
		return protocol.ErrInvalidStateTransition.WithData(err.Error())
	}
	m.logger.Error("Internal error", "error", err)
	return protocol.ErrInternal
}

func unmarshalParams[T any](raw json.RawMessage) (*T, error) {
	var params T
	if len(raw) == 0 {
		return nil, protocol.ErrInvalidParams
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, protocol.ErrInvalidParams.WithData(err.Error())
	}
	return &params, nil
}

// resolveContextID returns a usable context id. Malformed input never errors:
// anything that is not a well-formed UUID gets a fresh one minted.
func resolveContextID(candidate string) string {
	if _, err := uuid.Parse(candidate); err == nil {
		return candidate
	}
	return uuid.NewString()
}

func (m *Manager) messageSend(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := unmarshalParams[protocol.MessageSendParams](raw)
	if err != nil {
		return nil, err
	}
	msg := params.Message
	if len(msg.Parts) == 0 {
		return nil, protocol.ErrInvalidParams.WithData("message has no parts")
	}
	if msg.Role == "" {
		msg.Role = protocol.RoleUser
	}
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}

	// An explicit task id resumes that task when it is still open.
	if params.TaskID != "" {
		task, err := m.store.LoadTask(ctx, params.TaskID, 0)
		if err == nil && !task.Status.State.IsTerminal() {
			return m.resumeTask(ctx, task, msg)
		}
		if err != nil && !errors.Is(err, storage.ErrTaskNotFound) {
			return nil, err
		}
		// Unknown or terminal task: fall through to a fresh one.
	}

	contextID := resolveContextID(params.ContextID)

	// A bare context id resumes the context's most recent paused task, which
	// is how multi-turn input-required conversations continue.
	if params.TaskID == "" && params.ContextID == contextID {
		if task := m.pausedTask(ctx, contextID); task != nil {
			return m.resumeTask(ctx, task, msg)
		}
	}

	task, err := m.store.SubmitTask(ctx, contextID, msg)
	if err != nil {
		return nil, err
	}
	// Enqueue is the last step: a task is never enqueued and then reported
	// as an error.
	if err := m.queue.Enqueue(ctx, task.ID); err != nil {
		return nil, err
	}
	return task, nil
}

// pausedTask finds the most recently updated task in the context waiting on
// input or auth, if any.
func (m *Manager) pausedTask(ctx context.Context, contextID string) *protocol.Task {
	for _, state := range []protocol.TaskState{
		protocol.TaskStateInputRequired,
		protocol.TaskStateAuthRequired,
	} {
		tasks, err := m.store.ListTasks(ctx, storage.TaskFilter{
			State:     state,
			ContextID: contextID,
			Limit:     1,
		})
		if err == nil && len(tasks) > 0 {
			return tasks[0]
		}
	}
	return nil
}

// resumeTask appends the inbound message, moves the task back to submitted
// and re-enqueues it.
func (m *Manager) resumeTask(ctx context.Context, task *protocol.Task, msg protocol.Message) (any, error) {
	updated, err := m.store.UpdateTask(ctx, task.ID, storage.Update{
		NewState:    protocol.TaskStateSubmitted,
		NewMessages: []protocol.Message{msg},
	})
	if err != nil {
		return nil, err
	}
	if err := m.queue.Enqueue(ctx, updated.ID); err != nil {
		return nil, err
	}
	return updated, nil
}

func (m *Manager) tasksGet(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := unmarshalParams[protocol.TaskQueryParams](raw)
	if err != nil {
		return nil, err
	}
	if params.TaskID == "" {
		return nil, protocol.ErrInvalidParams.WithData("taskId is required")
	}
	return m.store.LoadTask(ctx, params.TaskID, params.HistoryLength)
}

func (m *Manager) tasksCancel(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := unmarshalParams[protocol.TaskIDParams](raw)
	if err != nil {
		return nil, err
	}
	if params.TaskID == "" {
		return nil, protocol.ErrInvalidParams.WithData("taskId is required")
	}

	task, err := m.store.UpdateTask(ctx, params.TaskID, storage.Update{
		NewState: protocol.TaskStateCanceled,
	})
	if err != nil {
		return nil, err
	}
	// The storage write is synchronous; the worker signal is best-effort and
	// the transition guard discards any late handler output.
	if m.canceler != nil {
		m.canceler.Cancel(params.TaskID)
	}
	return task, nil
}

func (m *Manager) tasksList(ctx context.Context, raw json.RawMessage) (any, error) {
	// Params are optional on tasks/list; absent means no filter.
	params := &protocol.TaskListParams{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, params); err != nil {
			return nil, protocol.ErrInvalidParams.WithData(err.Error())
		}
	}

	tasks, err := m.store.ListTasks(ctx, storage.TaskFilter{
		State:     params.State,
		ContextID: params.ContextID,
		Limit:     params.Limit,
		Offset:    params.Offset,
	})
	if err != nil {
		return nil, err
	}
	// Total is the full filtered population, not the returned page.
	total, err := m.store.CountTasks(ctx, storage.TaskFilter{
		State:     params.State,
		ContextID: params.ContextID,
	})
	if err != nil {
		return nil, err
	}
	// The listing is metadata only; history stays behind tasks/get.
	for _, task := range tasks {
		task.History = nil
	}
	return &protocol.TaskList{Tasks: tasks, Total: total}, nil
}

func (m *Manager) tasksFeedback(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := unmarshalParams[protocol.TaskFeedbackParams](raw)
	if err != nil {
		return nil, err
	}
	if params.TaskID == "" {
		return nil, protocol.ErrInvalidParams.WithData("taskId is required")
	}
	if err := m.store.SaveFeedback(ctx, params.TaskID, params.Payload); err != nil {
		return nil, err
	}
	return map[string]any{"taskId": params.TaskID, "received": true}, nil
}

func (m *Manager) contextsList(ctx context.Context) (any, error) {
	contexts, err := m.store.ListContexts(ctx)
	if err != nil {
		return nil, err
	}
	return &protocol.ContextList{Contexts: contexts, Total: len(contexts)}, nil
}

func (m *Manager) contextsClear(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := unmarshalParams[protocol.ContextIDParams](raw)
	if err != nil {
		return nil, err
	}
	if params.ContextID == "" {
		return nil, protocol.ErrInvalidParams.WithData("contextId is required")
	}
	if err := m.store.ClearContext(ctx, params.ContextID); err != nil {
		return nil, err
	}
	return map[string]any{"contextId": params.ContextID, "cleared": true}, nil
}

func (m *Manager) pushSet(ctx context.Context, raw json.RawMessage) (any, error) {
	if !m.cfg.PushEnabled {
		return nil, protocol.ErrPushNotSupported
	}
	params, err := unmarshalParams[protocol.PushConfigParams](raw)
	if err != nil {
		return nil, err
	}
	if params.TaskID == "" || params.Config.URL == "" {
		return nil, protocol.ErrInvalidParams.WithData("taskId and pushNotificationConfig.url are required")
	}
	// Registration requires the task to exist.
	if _, err := m.store.LoadTask(ctx, params.TaskID, 1); err != nil {
		return nil, err
	}
	if err := m.store.SaveWebhook(ctx, params.TaskID, params.Config); err != nil {
		return nil, err
	}
	return &params.Config, nil
}
