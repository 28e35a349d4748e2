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

package scheduler

import (
	"context"
	"sync"
	"time"
)

const defaultQueueSize = 1024

// Memory is the in-process scheduler: a bounded channel. Enqueue blocks when
// the queue is full, which backpressures the RPC handler instead of dropping
// work. Closure is signaled on a separate done channel so a concurrent Close
// can never make an in-flight Enqueue send on a closed channel.
type Memory struct {
	queue chan string
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewMemory creates a bounded in-process queue. size <= 0 uses the default.
func NewMemory(size int) *Memory {
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Memory{
		queue: make(chan string, size),
		done:  make(chan struct{}),
	}
}

func (m *Memory) Enqueue(ctx context.Context, taskID string) error {
	select {
	case <-m.done:
		return ErrClosed
	default:
	}
	select {
	case m.queue <- taskID:
		return nil
	case <-m.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Memory) Dequeue(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case taskID := <-m.queue:
		return taskID, nil
	case <-m.done:
		return "", ErrClosed
	case <-timer.C:
		return "", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *Memory) Ready(context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

// Compile-time interface compliance check
var _ Scheduler = (*Memory)(nil)
