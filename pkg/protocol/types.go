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

// Package protocol defines the A2A wire types exchanged by the Bindu runtime:
// tasks, messages, contexts, agent cards and the JSON-RPC 2.0 envelope.
// Specification: https://a2a-protocol.org/latest/specification/
package protocol

import (
	"encoding/json"
	"time"
)

// ProtocolVersion is the A2A protocol version this runtime speaks.
const ProtocolVersion = "1.0.0"

// TaskState represents the lifecycle state of a task.
type TaskState string

const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateAuthRequired  TaskState = "auth-required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateFailed        TaskState = "failed"
	TaskStateCanceled      TaskState = "canceled"
	TaskStateRejected      TaskState = "rejected"
)

// IsTerminal reports whether no further state transitions are allowed.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateCanceled, TaskStateRejected:
		return true
	}
	return false
}

// IsPending reports whether the task is paused waiting for the client.
func (s TaskState) IsPending() bool {
	return s == TaskStateInputRequired || s == TaskStateAuthRequired
}

// Valid reports whether s is one of the known task states.
func (s TaskState) Valid() bool {
	switch s {
	case TaskStateSubmitted, TaskStateWorking, TaskStateInputRequired,
		TaskStateAuthRequired, TaskStateCompleted, TaskStateFailed,
		TaskStateCanceled, TaskStateRejected:
		return true
	}
	return false
}

// TaskKind is the informational discriminant carried on tasks.
type TaskKind string

const (
	TaskKindTask     TaskKind = "task"
	TaskKindTeam     TaskKind = "team"
	TaskKindWorkflow TaskKind = "workflow"
)

// TaskStatus contains the current state and when it was last changed.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// Task is the unit of work in the A2A protocol: one conversation turn plus
// its state through completion.
type Task struct {
	ID        string         `json:"id"`
	ContextID string         `json:"contextId"`
	Kind      TaskKind       `json:"kind"`
	Status    TaskStatus     `json:"status"`
	History   []Message      `json:"history"`
	Artifacts []Artifact     `json:"artifacts,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Clone returns a deep copy of the task. Storage backends hand out clones so
// callers can never mutate stored state through a returned snapshot.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	cp := *t
	cp.History = make([]Message, len(t.History))
	copy(cp.History, t.History)
	cp.Artifacts = make([]Artifact, len(t.Artifacts))
	copy(cp.Artifacts, t.Artifacts)
	if t.Metadata != nil {
		cp.Metadata = make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single turn in a conversation.
type Message struct {
	MessageID        string         `json:"messageId"`
	TaskID           string         `json:"taskId,omitempty"`
	ContextID        string         `json:"contextId,omitempty"`
	Role             Role           `json:"role"`
	Parts            []Part         `json:"parts"`
	ReferenceTaskIDs []string       `json:"referenceTaskIds,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// Text concatenates the textual parts of the message.
func (m *Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if p.Type == PartTypeText {
			out += p.Text
		}
	}
	return out
}

// PartType discriminates the Part union.
type PartType string

const (
	PartTypeText PartType = "text"
	PartTypeFile PartType = "file"
	PartTypeData PartType = "data"
)

// Part is one piece of message content (union type).
type Part struct {
	Type PartType  `json:"type"`
	Text string    `json:"text,omitempty"`
	File *FilePart `json:"file,omitempty"`
	Data any       `json:"data,omitempty"`
}

// UnmarshalJSON tolerates parts without an explicit type tag: a bare
// {"text": ...} is a text part, {"data": ...} a data part.
func (p *Part) UnmarshalJSON(b []byte) error {
	type alias Part
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	if a.Type == "" {
		switch {
		case a.Text != "":
			a.Type = PartTypeText
		case a.File != nil:
			a.Type = PartTypeFile
		case a.Data != nil:
			a.Type = PartTypeData
		default:
			a.Type = PartTypeText
		}
	}
	*p = Part(a)
	return nil
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Type: PartTypeText, Text: text}
}

// DataPart builds a structured data part.
func DataPart(data any) Part {
	return Part{Type: PartTypeData, Data: data}
}

// FilePart references a file by inline bytes or URI.
type FilePart struct {
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Bytes    []byte `json:"bytes,omitempty"`
	URI      string `json:"uri,omitempty"`
}

// Artifact is an opaque structured output produced by a task.
type Artifact struct {
	ID       string         `json:"artifactId"`
	Name     string         `json:"name,omitempty"`
	Parts    []Part         `json:"parts"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Context groups related tasks sharing conversational memory. It is created
// implicitly on first task submission and destroyed by contexts/clear.
type Context struct {
	ContextID      string         `json:"contextId"`
	ContextData    map[string]any `json:"contextData,omitempty"`
	MessageHistory []Message      `json:"messageHistory,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// Clone returns a deep copy of the context.
func (c *Context) Clone() *Context {
	if c == nil {
		return nil
	}
	cp := *c
	cp.MessageHistory = make([]Message, len(c.MessageHistory))
	copy(cp.MessageHistory, c.MessageHistory)
	if c.ContextData != nil {
		cp.ContextData = make(map[string]any, len(c.ContextData))
		for k, v := range c.ContextData {
			cp.ContextData[k] = v
		}
	}
	return &cp
}

// Feedback is a post-hoc record attached to a task. Feedback stays appendable
// even after the task reaches a terminal state.
type Feedback struct {
	TaskID    string         `json:"taskId"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"createdAt"`
}

// PushConfig is a webhook registration, per task or global. The snapshot of a
// task is POSTed to URL on every terminal transition.
type PushConfig struct {
	URL   string `json:"url"`
	Token string `json:"token,omitempty"`
}

// MetadataKeyError is the reserved metadata key carrying the handler error
// text on failed tasks. The runtime reserves all keys beginning with "_".
const MetadataKeyError = "_error"
