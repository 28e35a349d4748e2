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

// Package storage persists tasks, contexts, message history and feedback
// behind one interface with two backends: an in-process reference backend and
// PostgreSQL with per-DID schema isolation.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/getbindu/bindu/pkg/protocol"
)

// Sentinel errors returned by Storage implementations.
var (
	// ErrTaskNotFound is returned when a task id is unknown.
	ErrTaskNotFound = errors.New("task not found")

	// ErrContextNotFound is returned when a context id is unknown.
	ErrContextNotFound = errors.New("context not found")
)

// TransitionError reports an illegal task state change.
type TransitionError struct {
	From protocol.TaskState
	To   protocol.TaskState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: %s -> %s", e.From, e.To)
}

// IsInvalidTransition reports whether err is a TransitionError.
func IsInvalidTransition(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}

// allowedTransitions is the task state machine enforced by every backend.
// Terminal states allow nothing.
var allowedTransitions = map[protocol.TaskState][]protocol.TaskState{
	protocol.TaskStateSubmitted: {
		protocol.TaskStateWorking,
		protocol.TaskStateCanceled,
		protocol.TaskStateFailed,
		protocol.TaskStateRejected,
	},
	protocol.TaskStateWorking: {
		protocol.TaskStateInputRequired,
		protocol.TaskStateAuthRequired,
		protocol.TaskStateCompleted,
		protocol.TaskStateFailed,
		protocol.TaskStateCanceled,
	},
	protocol.TaskStateInputRequired: {
		protocol.TaskStateSubmitted,
		protocol.TaskStateWorking,
		protocol.TaskStateCanceled,
		protocol.TaskStateFailed,
	},
	protocol.TaskStateAuthRequired: {
		protocol.TaskStateSubmitted,
		protocol.TaskStateWorking,
		protocol.TaskStateCanceled,
		protocol.TaskStateFailed,
	},
}

// CanTransition reports whether from -> to is a legal state change. The only
// same-state write allowed is submitted -> submitted, so a resume landing on
// a task that is already queued can still append its message. Any other
// same-state write lost a race (two workers claiming "working", a duplicate
// pause) and must fail so the loser's output is discarded.
func CanTransition(from, to protocol.TaskState) bool {
	if from == to {
		return from == protocol.TaskStateSubmitted
	}
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Update describes an atomic task mutation. Zero-valued fields leave the
// corresponding task field untouched; messages and artifacts append, metadata
// merges key by key.
type Update struct {
	NewState      protocol.TaskState
	NewMessages   []protocol.Message
	NewArtifacts  []protocol.Artifact
	MetadataMerge map[string]any
}

// TaskFilter selects tasks for ListTasks. Zero values mean "any".
type TaskFilter struct {
	State     protocol.TaskState
	ContextID string
	Limit     int
	Offset    int
}

// Storage is the durable store of tasks, contexts, feedback and webhook
// configurations. Every successful UpdateTask is linearizable against
// concurrent readers: a reader sees the pre-state or the post-state, never a
// partial merge.
type Storage interface {
	// SubmitTask atomically ensures contextID exists, allocates a task in
	// state "submitted" with history [msg], and returns the snapshot.
	SubmitTask(ctx context.Context, contextID string, msg protocol.Message) (*protocol.Task, error)

	// UpdateTask applies up atomically. It fails with ErrTaskNotFound when
	// the task is gone and with a TransitionError when up would mutate a
	// terminal task or perform an illegal state change.
	UpdateTask(ctx context.Context, taskID string, up Update) (*protocol.Task, error)

	// LoadTask returns the task, optionally truncating history to the last
	// historyLength entries (<= 0 keeps the full history).
	LoadTask(ctx context.Context, taskID string, historyLength int) (*protocol.Task, error)

	// ListTasks returns filtered tasks, most recent first by UpdatedAt.
	ListTasks(ctx context.Context, f TaskFilter) ([]*protocol.Task, error)

	// CountTasks counts the tasks ListTasks would return for f, ignoring
	// Limit and Offset.
	CountTasks(ctx context.Context, f TaskFilter) (int, error)

	GetContext(ctx context.Context, contextID string) (*protocol.Context, error)
	ListContexts(ctx context.Context) ([]*protocol.Context, error)

	// ClearContext cascade-deletes the context, its tasks, their feedback
	// and webhook registrations.
	ClearContext(ctx context.Context, contextID string) error

	// SaveFeedback appends a feedback record; allowed on any state
	// including terminal.
	SaveFeedback(ctx context.Context, taskID string, payload map[string]any) error
	GetFeedback(ctx context.Context, taskID string) ([]protocol.Feedback, error)

	SaveWebhook(ctx context.Context, taskID string, cfg protocol.PushConfig) error
	LoadWebhook(ctx context.Context, taskID string) (*protocol.PushConfig, error)
	DeleteWebhook(ctx context.Context, taskID string) error

	// Ready reports whether the backend can currently serve requests.
	Ready(ctx context.Context) bool

	Close() error
}
