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

package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/getbindu/bindu/pkg/protocol"
	"github.com/getbindu/bindu/pkg/scheduler"
	"github.com/getbindu/bindu/pkg/storage"
)

// Notifier is told about task status changes worth pushing to a webhook.
// Implementations must not block the caller.
type Notifier interface {
	TaskUpdated(ctx context.Context, task *protocol.Task)
}

// Config bounds the pool.
type Config struct {
	// Concurrency is the number of worker loops draining the scheduler.
	Concurrency int

	// DequeueTimeout is how long one loop iteration blocks before
	// re-checking shutdown.
	DequeueTimeout time.Duration

	// MaxRetries bounds handler re-invocations after a failure.
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (c *Config) applyDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.DequeueTimeout <= 0 {
		c.DequeueTimeout = time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = 500 * time.Millisecond
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 10 * time.Second
	}
}

// Pool runs N loops that dequeue task ids, invoke the handler and write the
// buffered result back in one storage update.
type Pool struct {
	cfg      Config
	store    storage.Storage
	queue    scheduler.Scheduler
	handler  Handler
	notifier Notifier
	logger   *slog.Logger

	mu       sync.Mutex
	inflight map[string]*inflightTask
	running  bool
}

// inflightTask tracks one running handler. requested records that the
// cancellation came from tasks/cancel rather than the pool shutting down,
// which need different write-back behavior.
type inflightTask struct {
	cancel    context.CancelFunc
	requested atomic.Bool
}

// NewPool wires a pool. notifier may be nil when push delivery is disabled.
func NewPool(cfg Config, store storage.Storage, queue scheduler.Scheduler, handler Handler, notifier Notifier) *Pool {
	cfg.applyDefaults()
	return &Pool{
		cfg:      cfg,
		store:    store,
		queue:    queue,
		handler:  handler,
		notifier: notifier,
		logger:   slog.Default().With("component", "worker"),
		inflight: make(map[string]*inflightTask),
	}
}

// Run blocks until ctx is canceled, draining the scheduler with
// cfg.Concurrency loops. In-flight handlers get a final grace period through
// their own task contexts.
func (p *Pool) Run(ctx context.Context) error {
	p.mu.Lock()
	p.running = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.cfg.Concurrency; i++ {
		g.Go(func() error {
			return p.loop(gctx)
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Ready reports whether the pool loops are running.
func (p *Pool) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Cancel fires the cancellation signal for an in-flight task. It is a no-op
// when the task is not currently being worked.
func (p *Pool) Cancel(taskID string) {
	p.mu.Lock()
	entry, ok := p.inflight[taskID]
	p.mu.Unlock()
	if ok {
		entry.requested.Store(true)
		entry.cancel()
	}
}

func (p *Pool) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		taskID, err := p.queue.Dequeue(ctx, p.cfg.DequeueTimeout)
		if errors.Is(err, scheduler.ErrClosed) || errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			p.logger.Error("Dequeue failed", "error", err)
			continue
		}
		if taskID == "" {
			continue
		}
		p.process(ctx, taskID)
	}
}

// process drives one task id from the queue. The scheduler is at-least-once;
// the state guard below makes handler invocation at-most-once per submission:
// a task that is not in "submitted" when dequeued is dropped silently.
func (p *Pool) process(ctx context.Context, taskID string) {
	task, err := p.store.LoadTask(ctx, taskID, 0)
	if errors.Is(err, storage.ErrTaskNotFound) {
		p.logger.Debug("Dropping unknown task", "task_id", taskID)
		return
	}
	if err != nil {
		p.logger.Error("Failed to load task", "task_id", taskID, "error", err)
		return
	}
	if task.Status.State != protocol.TaskStateSubmitted {
		p.logger.Debug("Dropping task not in submitted state",
			"task_id", taskID, "state", task.Status.State)
		return
	}

	task, err = p.store.UpdateTask(ctx, taskID, storage.Update{
		NewState: protocol.TaskStateWorking,
	})
	if storage.IsInvalidTransition(err) {
		// Lost the race to a cancel or a concurrent worker.
		p.logger.Debug("Dropping task after transition race", "task_id", taskID)
		return
	}
	if err != nil {
		p.logger.Error("Failed to transition task to working", "task_id", taskID, "error", err)
		return
	}

	taskCtx, cancel := context.WithCancel(ctx)
	entry := &inflightTask{cancel: cancel}
	p.mu.Lock()
	p.inflight[taskID] = entry
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.inflight, taskID)
		p.mu.Unlock()
		cancel()
	}()

	out := p.invoke(taskCtx, task)

	// A handler interrupted by pool shutdown is not a canceled task: no
	// cancel was requested, so nothing is written and the record stays in
	// working for recovery.
	if out.state == protocol.TaskStateCanceled && !entry.requested.Load() {
		p.logger.Debug("Shutdown interrupted task", "task_id", taskID)
		return
	}

	for i := range out.messages {
		out.messages[i].MessageID = uuid.NewString()
	}
	updated, err := p.store.UpdateTask(ctx, taskID, storage.Update{
		NewState:      out.state,
		NewMessages:   out.messages,
		MetadataMerge: out.metadata,
	})
	if storage.IsInvalidTransition(err) {
		// Canceled while the handler ran; its output is discarded.
		p.logger.Debug("Discarding output of canceled task", "task_id", taskID)
		return
	}
	if err != nil {
		p.logger.Error("Failed to record task result", "task_id", taskID, "error", err)
		return
	}

	p.logger.Info("Task processed", "task_id", taskID, "state", updated.Status.State)
	if p.notifier != nil {
		p.notifier.TaskUpdated(ctx, updated)
	}
}

// invoke runs the handler with bounded retries. Output stays buffered until
// the single write-back in process, so a failed attempt leaves no trace in
// the task history.
func (p *Pool) invoke(ctx context.Context, task *protocol.Task) outcome {
	turns := project(task.History)

	var value any
	attempt := func() error {
		var err error
		value, err = p.handler(ctx, turns)
		if errors.Is(err, context.Canceled) {
			return backoff.Permanent(err)
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.cfg.InitialInterval
	bo.MaxInterval = p.cfg.MaxInterval
	err := backoff.Retry(attempt, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(p.cfg.MaxRetries)), ctx))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Either tasks/cancel fired the task context or the pool is
			// shutting down; process tells the two apart.
			return outcome{state: protocol.TaskStateCanceled}
		}
		p.logger.Warn("Handler failed", "task_id", task.ID, "error", err)
		return outcome{
			state:    protocol.TaskStateFailed,
			metadata: map[string]any{protocol.MetadataKeyError: err.Error()},
		}
	}
	return classify(value)
}
