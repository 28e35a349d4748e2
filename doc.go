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

// Package bindu turns an agent handler function into a networked, discoverable
// A2A agent service.
//
// Bindu wraps a plain Go function with the full Agent-to-Agent (A2A) protocol
// surface: a JSON-RPC 2.0 endpoint, durable task and context storage, an
// asynchronous scheduler/worker execution loop, webhook push notifications,
// and discovery endpoints (agent card, skills, DID, health, metrics).
//
// # Quick Start
//
// Write a handler and serve it:
//
//	func handler(ctx context.Context, history []worker.Turn) (any, error) {
//	    return "hello from my agent", nil
//	}
//
//	func main() {
//	    cfg, _ := config.Load("agent.yaml")
//	    runtime.Serve(context.Background(), cfg, handler)
//	}
//
// A handler returning a string completes the task with a text answer. A map
// with a "state" key of "input-required" or "auth-required" pauses the task
// until the client replies on the same context. Any other value completes the
// task with structured data.
//
// # Packages
//
// Most applications only need:
//
//	import (
//	    "github.com/getbindu/bindu/pkg/config"
//	    "github.com/getbindu/bindu/pkg/runtime"
//	    "github.com/getbindu/bindu/pkg/worker"
//	)
//
// Storage backends (memory, Postgres with per-identity schema isolation) and
// scheduler backends (memory, Redis) are selected in configuration, not code.
//
// # Architecture
//
//	Client → JSON-RPC endpoint → Task Manager → Scheduler → Worker → Handler
//	                                  ↓                        ↓
//	                               Storage  ←──────────────────┘
//
// Tasks are acknowledged immediately in the "submitted" state and executed
// asynchronously; clients poll tasks/get or register a webhook for the
// terminal result.
package bindu
