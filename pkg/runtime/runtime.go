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

// Package runtime assembles storage, scheduler, workers, push delivery and
// the HTTP surface into one running agent service. Serve is the single
// programmatic entry point: a configuration plus a handler.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/getbindu/bindu/pkg/auth"
	"github.com/getbindu/bindu/pkg/config"
	"github.com/getbindu/bindu/pkg/did"
	"github.com/getbindu/bindu/pkg/logger"
	"github.com/getbindu/bindu/pkg/manager"
	"github.com/getbindu/bindu/pkg/observability"
	"github.com/getbindu/bindu/pkg/protocol"
	"github.com/getbindu/bindu/pkg/push"
	"github.com/getbindu/bindu/pkg/scheduler"
	"github.com/getbindu/bindu/pkg/server"
	"github.com/getbindu/bindu/pkg/skills"
	"github.com/getbindu/bindu/pkg/storage"
	"github.com/getbindu/bindu/pkg/worker"
)

// Serve runs the agent service until ctx is canceled or SIGINT/SIGTERM
// arrives, then shuts down gracefully: drain HTTP, stop the worker loops,
// wait for in-flight webhook deliveries.
func Serve(ctx context.Context, cfg *config.Config, handler worker.Handler) error {
	if cfg == nil {
		cfg = config.Default()
	}
	if handler == nil {
		return fmt.Errorf("handler is required")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format, nil)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := buildStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	queue, err := buildScheduler(ctx, cfg)
	if err != nil {
		return err
	}
	defer queue.Close()

	metrics, err := observability.InitMetrics(cfg.Agent.Name)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metrics.Shutdown(shutdownCtx)
	}()

	var globalPush *protocol.PushConfig
	if cfg.Push.GlobalURL != "" {
		globalPush = &protocol.PushConfig{URL: cfg.Push.GlobalURL, Token: cfg.Push.GlobalToken}
	}
	dispatcher := push.NewDispatcher(push.Config{
		Global:    globalPush,
		Delivered: metrics.PushDelivered,
	}, store)
	defer dispatcher.Wait()

	var notifier worker.Notifier
	if cfg.Push.Enabled {
		notifier = dispatcher
	}
	notifier = &meteredNotifier{next: notifier, metrics: metrics, agent: cfg.Agent.Name}

	pool := worker.NewPool(worker.Config{
		Concurrency:     cfg.Worker.Concurrency,
		MaxRetries:      cfg.Worker.MaxRetries,
		InitialInterval: cfg.Worker.RetryDelay,
	}, store, queue, handler, notifier)

	mgr := manager.New(manager.Config{PushEnabled: cfg.Push.Enabled}, store, queue, pool)

	var validator *auth.JWTValidator
	if cfg.Auth.Provider == "jwt" {
		validator, err = auth.NewJWTValidator(ctx, cfg.Auth.JWKSURL, cfg.Auth.Issuer, cfg.Auth.Audience)
		if err != nil {
			return err
		}
	}

	registry, err := skills.NewRegistry(cfg.Agent.URL, cfg.Skills)
	if err != nil {
		return err
	}
	resolver := did.NewResolver(cfg.Agent.DID, cfg.Agent.Name, cfg.Agent.URL)

	srv := server.New(*cfg, server.Components{
		Manager:     mgr,
		Storage:     store,
		Scheduler:   queue,
		Skills:      registry,
		DID:         resolver,
		Metrics:     metrics,
		WorkerReady: pool.Ready,
		Validator:   validator,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pool.Run(gctx)
	})
	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	slog.Info("Bindu runtime started",
		"agent", cfg.Agent.Name,
		"storage", cfg.Storage.Backend,
		"scheduler", cfg.Scheduler.Backend,
		"workers", cfg.Worker.Concurrency)

	return g.Wait()
}

func buildStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	opts := storage.Options{
		Kind:           protocol.TaskKind(cfg.Agent.Kind),
		ContextHistory: cfg.Storage.EnableContextHistory,
	}
	switch cfg.Storage.Backend {
	case "postgres":
		return storage.NewPostgres(ctx, storage.PostgresConfig{
			URL:     cfg.Storage.DatabaseURL,
			DID:     cfg.Agent.DID,
			PoolMin: cfg.Storage.PoolMin,
			PoolMax: cfg.Storage.PoolMax,
			Options: opts,
		})
	default:
		return storage.NewMemory(opts), nil
	}
}

func buildScheduler(ctx context.Context, cfg *config.Config) (scheduler.Scheduler, error) {
	switch cfg.Scheduler.Backend {
	case "redis":
		return scheduler.NewRedis(ctx, scheduler.RedisConfig{
			URL:      cfg.Scheduler.RedisURL,
			QueueKey: cfg.Scheduler.QueueKey,
		})
	default:
		return scheduler.NewMemory(cfg.Scheduler.QueueSize), nil
	}
}

// meteredNotifier records terminal-state metrics and forwards to the push
// dispatcher when one is configured.
type meteredNotifier struct {
	next    worker.Notifier
	metrics *observability.Metrics
	agent   string
}

func (n *meteredNotifier) TaskUpdated(ctx context.Context, task *protocol.Task) {
	if task.Status.State.IsTerminal() {
		n.metrics.TaskFinished(ctx, n.agent, string(task.Status.State))
	}
	if n.next != nil {
		n.next.TaskUpdated(ctx, task)
	}
}
