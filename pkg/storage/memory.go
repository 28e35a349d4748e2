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

package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/getbindu/bindu/pkg/protocol"
)

// Options configure task creation and history accumulation, shared by both
// backends.
type Options struct {
	// Kind stamps new tasks with the deployment's kind (task, team,
	// workflow). Defaults to task.
	Kind protocol.TaskKind

	// ContextHistory enables the cross-task message history on contexts.
	ContextHistory bool
}

func (o Options) kind() protocol.TaskKind {
	if o.Kind == "" {
		return protocol.TaskKindTask
	}
	return o.Kind
}

// Memory is the in-process reference backend: maps guarded by one
// reader-writer lock. Deterministic; used for tests and single-process
// deployments.
type Memory struct {
	mu       sync.RWMutex
	opts     Options
	tasks    map[string]*protocol.Task
	contexts map[string]*protocol.Context
	feedback map[string][]protocol.Feedback
	webhooks map[string]protocol.PushConfig
}

// NewMemory creates an empty in-memory store.
func NewMemory(opts Options) *Memory {
	return &Memory{
		opts:     opts,
		tasks:    make(map[string]*protocol.Task),
		contexts: make(map[string]*protocol.Context),
		feedback: make(map[string][]protocol.Feedback),
		webhooks: make(map[string]protocol.PushConfig),
	}
}

func (m *Memory) SubmitTask(_ context.Context, contextID string, msg protocol.Message) (*protocol.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	cx, ok := m.contexts[contextID]
	if !ok {
		cx = &protocol.Context{
			ContextID:   contextID,
			ContextData: make(map[string]any),
			CreatedAt:   now,
		}
		m.contexts[contextID] = cx
	}
	cx.UpdatedAt = now

	task := &protocol.Task{
		ID:        uuid.NewString(),
		ContextID: contextID,
		Kind:      m.opts.kind(),
		Status:    protocol.TaskStatus{State: protocol.TaskStateSubmitted, Timestamp: now},
		History:   []protocol.Message{},
		Artifacts: []protocol.Artifact{},
		Metadata:  make(map[string]any),
		CreatedAt: now,
		UpdatedAt: now,
	}
	msg.TaskID = task.ID
	msg.ContextID = contextID
	task.History = append(task.History, msg)
	if m.opts.ContextHistory {
		cx.MessageHistory = append(cx.MessageHistory, msg)
	}
	m.tasks[task.ID] = task

	return task.Clone(), nil
}

func (m *Memory) UpdateTask(_ context.Context, taskID string, up Update) (*protocol.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}

	from := task.Status.State
	if from.IsTerminal() {
		return nil, &TransitionError{From: from, To: up.NewState}
	}
	if up.NewState != "" && !CanTransition(from, up.NewState) {
		return nil, &TransitionError{From: from, To: up.NewState}
	}

	now := time.Now().UTC()
	if up.NewState != "" && up.NewState != from {
		task.Status = protocol.TaskStatus{State: up.NewState, Timestamp: now}
	}
	for _, msg := range up.NewMessages {
		msg.TaskID = task.ID
		msg.ContextID = task.ContextID
		task.History = append(task.History, msg)
		if m.opts.ContextHistory {
			if cx, ok := m.contexts[task.ContextID]; ok {
				cx.MessageHistory = append(cx.MessageHistory, msg)
				cx.UpdatedAt = now
			}
		}
	}
	task.Artifacts = append(task.Artifacts, up.NewArtifacts...)
	for k, v := range up.MetadataMerge {
		task.Metadata[k] = v
	}
	task.UpdatedAt = now

	return task.Clone(), nil
}

func (m *Memory) LoadTask(_ context.Context, taskID string, historyLength int) (*protocol.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	task, ok := m.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	cp := task.Clone()
	if historyLength > 0 && len(cp.History) > historyLength {
		cp.History = cp.History[len(cp.History)-historyLength:]
	}
	return cp, nil
}

func (m *Memory) ListTasks(_ context.Context, f TaskFilter) ([]*protocol.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*protocol.Task
	for _, task := range m.tasks {
		if f.State != "" && task.Status.State != f.State {
			continue
		}
		if f.ContextID != "" && task.ContextID != f.ContextID {
			continue
		}
		out = append(out, task.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []*protocol.Task{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	if out == nil {
		out = []*protocol.Task{}
	}
	return out, nil
}

func (m *Memory) CountTasks(_ context.Context, f TaskFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, task := range m.tasks {
		if f.State != "" && task.Status.State != f.State {
			continue
		}
		if f.ContextID != "" && task.ContextID != f.ContextID {
			continue
		}
		n++
	}
	return n, nil
}

func (m *Memory) GetContext(_ context.Context, contextID string) (*protocol.Context, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cx, ok := m.contexts[contextID]
	if !ok {
		return nil, ErrContextNotFound
	}
	return cx.Clone(), nil
}

func (m *Memory) ListContexts(_ context.Context) ([]*protocol.Context, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*protocol.Context, 0, len(m.contexts))
	for _, cx := range m.contexts {
		out = append(out, cx.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (m *Memory) ClearContext(_ context.Context, contextID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.contexts[contextID]; !ok {
		return ErrContextNotFound
	}
	delete(m.contexts, contextID)
	for id, task := range m.tasks {
		if task.ContextID == contextID {
			delete(m.tasks, id)
			delete(m.feedback, id)
			delete(m.webhooks, id)
		}
	}
	return nil
}

func (m *Memory) SaveFeedback(_ context.Context, taskID string, payload map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[taskID]; !ok {
		return ErrTaskNotFound
	}
	m.feedback[taskID] = append(m.feedback[taskID], protocol.Feedback{
		TaskID:    taskID,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (m *Memory) GetFeedback(_ context.Context, taskID string) ([]protocol.Feedback, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]protocol.Feedback, len(m.feedback[taskID]))
	copy(out, m.feedback[taskID])
	return out, nil
}

func (m *Memory) SaveWebhook(_ context.Context, taskID string, cfg protocol.PushConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhooks[taskID] = cfg
	return nil
}

func (m *Memory) LoadWebhook(_ context.Context, taskID string) (*protocol.PushConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, ok := m.webhooks[taskID]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}

func (m *Memory) DeleteWebhook(_ context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.webhooks, taskID)
	return nil
}

func (m *Memory) Ready(context.Context) bool { return true }

func (m *Memory) Close() error { return nil }

// Compile-time interface compliance check
var _ Storage = (*Memory)(nil)
