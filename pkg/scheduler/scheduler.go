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

// Package scheduler carries task ids from the manager to the worker pool. It
// is a queue of ids, not of payloads: the worker re-reads the authoritative
// task from storage on dequeue.
package scheduler

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned once the scheduler has been shut down.
var ErrClosed = errors.New("scheduler closed")

// Scheduler hands submitted task ids to workers in FIFO order.
type Scheduler interface {
	// Enqueue makes taskID available to exactly one dequeuer.
	Enqueue(ctx context.Context, taskID string) error

	// Dequeue blocks up to timeout for the next task id. It returns
	// ("", nil) on timeout so worker loops can poll their shutdown signal.
	Dequeue(ctx context.Context, timeout time.Duration) (string, error)

	// Ready reports whether the queue can currently accept work.
	Ready(ctx context.Context) bool

	Close() error
}
