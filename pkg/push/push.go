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

// Package push delivers task status webhooks. Delivery is fire-and-forget:
// it never blocks task processing and failures only log.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/getbindu/bindu/pkg/protocol"
	"github.com/getbindu/bindu/pkg/storage"
)

// Config bounds webhook delivery.
type Config struct {
	// Global is used when a task has no per-task registration. Nil means
	// no fallback.
	Global *protocol.PushConfig

	Timeout         time.Duration
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// Delivered is called after each delivery attempt sequence resolves,
	// with the final success. Nil disables reporting.
	Delivered func(ctx context.Context, success bool)
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = time.Second
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 10 * time.Second
	}
}

// Dispatcher resolves each task's webhook registration and POSTs status
// updates to it.
type Dispatcher struct {
	cfg    Config
	store  storage.Storage
	client *http.Client
	logger *slog.Logger

	wg sync.WaitGroup
}

// NewDispatcher wires a dispatcher against the given storage.
func NewDispatcher(cfg Config, store storage.Storage) *Dispatcher {
	cfg.applyDefaults()
	return &Dispatcher{
		cfg:    cfg,
		store:  store,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: slog.Default().With("component", "push"),
	}
}

// TaskUpdated delivers the task snapshot to its webhook once the task
// reaches a terminal state. The POST happens on a background goroutine; the
// caller returns immediately.
func (d *Dispatcher) TaskUpdated(ctx context.Context, task *protocol.Task) {
	if !task.Status.State.IsTerminal() {
		return
	}
	cfg, err := d.store.LoadWebhook(ctx, task.ID)
	if err != nil {
		d.logger.Warn("Failed to load webhook config", "task_id", task.ID, "error", err)
		return
	}
	if cfg == nil {
		cfg = d.cfg.Global
	}
	if cfg == nil || cfg.URL == "" {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		err := d.deliver(context.Background(), *cfg, task)
		if err != nil {
			d.logger.Warn("Webhook delivery failed",
				"task_id", task.ID, "url", cfg.URL, "error", err)
		}
		if d.cfg.Delivered != nil {
			d.cfg.Delivered(context.Background(), err == nil)
		}
	}()
}

// Wait blocks until in-flight deliveries finish. Used on shutdown.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// deliver POSTs the task snapshot, retrying 5xx and transport errors with
// exponential backoff. A 4xx is permanent: the receiver rejected the payload
// and retrying cannot help.
func (d *Dispatcher) deliver(ctx context.Context, cfg protocol.PushConfig, task *protocol.Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		if cfg.Token != "" {
			req.Header.Set("Authorization", "Bearer "+cfg.Token)
		}

		resp, err := d.client.Do(req)
		if err != nil {
			return fmt.Errorf("webhook POST failed: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return backoff.Permanent(fmt.Errorf("webhook rejected with status %d", resp.StatusCode))
		default:
			return fmt.Errorf("webhook returned status %d", resp.StatusCode)
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.cfg.InitialInterval
	bo.MaxInterval = d.cfg.MaxInterval
	return backoff.Retry(attempt, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(d.cfg.MaxRetries)), ctx))
}
