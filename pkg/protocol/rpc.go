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

package protocol

import "encoding/json"

// JSON-RPC 2.0 envelope. All A2A methods travel over HTTP POST to the root
// endpoint with this framing.

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response envelope. Exactly one of Result and
// Error is set.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// NewResponse builds a success response for the given request id.
func NewResponse(id, result any) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Result: result}
}

// NewErrorResponse builds an error response for the given request id.
func NewErrorResponse(id any, err *Error) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Error: err}
}

// A2A method names dispatched by the task manager.
const (
	MethodMessageSend   = "message/send"
	MethodTasksGet      = "tasks/get"
	MethodTasksCancel   = "tasks/cancel"
	MethodTasksList     = "tasks/list"
	MethodTasksFeedback = "tasks/feedback"
	MethodContextsList  = "contexts/list"
	MethodContextsClear = "contexts/clear"
	MethodPushSet       = "tasks/pushNotification/set"
)

// MessageSendParams are the parameters of message/send.
type MessageSendParams struct {
	Message   Message `json:"message"`
	ContextID string  `json:"contextId,omitempty"`
	TaskID    string  `json:"taskId,omitempty"`
}

// TaskQueryParams are the parameters of tasks/get.
type TaskQueryParams struct {
	TaskID        string `json:"taskId"`
	HistoryLength int    `json:"historyLength,omitempty"`
}

// TaskIDParams name a single task (tasks/cancel).
type TaskIDParams struct {
	TaskID string `json:"taskId"`
}

// TaskListParams are the optional filters of tasks/list.
type TaskListParams struct {
	State     TaskState `json:"state,omitempty"`
	ContextID string    `json:"contextId,omitempty"`
	Limit     int       `json:"limit,omitempty"`
	Offset    int       `json:"offset,omitempty"`
}

// TaskFeedbackParams are the parameters of tasks/feedback.
type TaskFeedbackParams struct {
	TaskID  string         `json:"taskId"`
	Payload map[string]any `json:"payload"`
}

// ContextIDParams name a single context (contexts/clear).
type ContextIDParams struct {
	ContextID string `json:"contextId"`
}

// PushConfigParams are the parameters of tasks/pushNotification/set.
type PushConfigParams struct {
	TaskID string     `json:"taskId"`
	Config PushConfig `json:"pushNotificationConfig"`
}

// TaskList is the result shape of tasks/list: task snapshots without history.
type TaskList struct {
	Tasks []*Task `json:"tasks"`
	Total int     `json:"total"`
}

// ContextList is the result shape of contexts/list.
type ContextList struct {
	Contexts []*Context `json:"contexts"`
	Total    int        `json:"total"`
}
