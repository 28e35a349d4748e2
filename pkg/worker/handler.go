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

// Package worker drains the scheduler and drives tasks to a terminal state by
// invoking the user-supplied agent handler.
package worker

import (
	"context"

	"github.com/getbindu/bindu/pkg/protocol"
)

// Turn is one conversation entry as presented to the handler.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Handler is the user-supplied agent function. It receives the task's full
// history, oldest first, and returns a response value. The context carries the
// task's cancellation signal; a cooperative handler checks it at its yield
// points, a non-cooperative one runs to completion and its output is
// discarded after a cancel.
//
// The return value is classified by shape:
//
//   - string: the final answer, task completes.
//   - map with a "state" key of "input-required" or "auth-required": a control
//     directive pausing the task; an optional "prompt" key becomes the
//     assistant message shown to the user.
//   - any other map: a structured final answer, task completes with a data
//     part.
//
// A returned error fails the task after the configured retries.
type Handler func(ctx context.Context, history []Turn) (any, error)

// outcome is the buffered result of one handler invocation: everything is
// held here and written to storage in a single update, so a retried attempt
// can never leave partial output behind.
type outcome struct {
	state    protocol.TaskState
	messages []protocol.Message
	metadata map[string]any
}

// classify maps a handler return value to the task mutation it implies.
func classify(value any) outcome {
	switch v := value.(type) {
	case string:
		return outcome{
			state:    protocol.TaskStateCompleted,
			messages: []protocol.Message{newAssistantText(v)},
		}
	case map[string]any:
		if state, ok := v["state"].(string); ok {
			switch protocol.TaskState(state) {
			case protocol.TaskStateInputRequired, protocol.TaskStateAuthRequired:
				out := outcome{state: protocol.TaskState(state)}
				if prompt, ok := v["prompt"].(string); ok && prompt != "" {
					out.messages = []protocol.Message{newAssistantText(prompt)}
				}
				return out
			}
		}
		return outcome{
			state:    protocol.TaskStateCompleted,
			messages: []protocol.Message{newAssistantData(v)},
		}
	default:
		return outcome{
			state:    protocol.TaskStateCompleted,
			messages: []protocol.Message{newAssistantData(map[string]any{"value": value})},
		}
	}
}

func newAssistantText(text string) protocol.Message {
	return protocol.Message{
		Role:  protocol.RoleAssistant,
		Parts: []protocol.Part{protocol.TextPart(text)},
	}
}

func newAssistantData(data map[string]any) protocol.Message {
	return protocol.Message{
		Role:  protocol.RoleAssistant,
		Parts: []protocol.Part{protocol.DataPart(data)},
	}
}

// project flattens task history into the handler's view. Parts other than
// text are dropped from the projection; the handler sees conversational text
// only.
func project(history []protocol.Message) []Turn {
	turns := make([]Turn, 0, len(history))
	for _, msg := range history {
		turns = append(turns, Turn{Role: string(msg.Role), Content: msg.Text()})
	}
	return turns
}
