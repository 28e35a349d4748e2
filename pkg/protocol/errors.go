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

import "fmt"

// JSON-RPC 2.0 standard error codes plus the A2A-specific range (-32000..).
const (
	CodeParseError             = -32700
	CodeInvalidRequest         = -32600
	CodeMethodNotFound         = -32601
	CodeInvalidParams          = -32602
	CodeInternalError          = -32603
	CodeTaskNotFound           = -32001
	CodeInvalidStateTransition = -32002
	CodePushNotSupported       = -32003
	CodeSkillNotFound          = -32004
	CodeInvalidToken           = -32005
)

// Error is a JSON-RPC error object. It implements the error interface so
// protocol errors can travel through ordinary error returns and be unwrapped
// at the HTTP boundary.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// WithData returns a copy of the error carrying detail data.
func (e *Error) WithData(data any) *Error {
	return &Error{Code: e.Code, Message: e.Message, Data: data}
}

// The closed error taxonomy surfaced on protocol boundaries.
var (
	ErrParse                  = &Error{Code: CodeParseError, Message: "JSON parse error"}
	ErrInvalidRequest         = &Error{Code: CodeInvalidRequest, Message: "invalid request"}
	ErrMethodNotFound         = &Error{Code: CodeMethodNotFound, Message: "method not found"}
	ErrInvalidParams          = &Error{Code: CodeInvalidParams, Message: "invalid params"}
	ErrInternal               = &Error{Code: CodeInternalError, Message: "internal error"}
	ErrTaskNotFound           = &Error{Code: CodeTaskNotFound, Message: "task not found"}
	ErrInvalidStateTransition = &Error{Code: CodeInvalidStateTransition, Message: "invalid state transition"}
	ErrPushNotSupported       = &Error{Code: CodePushNotSupported, Message: "push notifications not supported"}
	ErrSkillNotFound          = &Error{Code: CodeSkillNotFound, Message: "skill not found"}
	ErrInvalidToken           = &Error{Code: CodeInvalidToken, Message: "invalid token"}
)
