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
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
)

const defaultRedisQueueKey = "bindu:task_queue"

// RedisConfig configures the Redis-backed scheduler.
type RedisConfig struct {
	URL string

	// QueueKey names the Redis list. Deployments sharing one Redis use
	// distinct keys to stay isolated.
	QueueKey string

	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (c *RedisConfig) applyDefaults() {
	if c.QueueKey == "" {
		c.QueueKey = defaultRedisQueueKey
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = 500 * time.Millisecond
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 5 * time.Second
	}
}

// Redis distributes task ids across processes via a Redis list: RPUSH to
// enqueue, BLPOP to dequeue. Multiple worker processes popping the same key
// get each id exactly once.
type Redis struct {
	client *redis.Client
	cfg    RedisConfig
}

// NewRedis connects to Redis, retrying the initial ping with exponential
// backoff to tolerate dependency warmup.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	cfg.applyDefaults()

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.InitialInterval
	bo.MaxInterval = cfg.MaxInterval
	ping := func() error {
		return client.Ping(ctx).Err()
	}
	err = backoff.Retry(ping, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(cfg.MaxRetries)), ctx))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Redis{client: client, cfg: cfg}, nil
}

func (r *Redis) Enqueue(ctx context.Context, taskID string) error {
	op := func() error {
		return r.client.RPush(ctx, r.cfg.QueueKey, taskID).Err()
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.cfg.InitialInterval
	bo.MaxInterval = r.cfg.MaxInterval
	err := backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(r.cfg.MaxRetries)), ctx))
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

func (r *Redis) Dequeue(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := r.client.BLPop(ctx, timeout, r.cfg.QueueKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to dequeue task: %w", err)
	}
	// BLPOP returns [key, value].
	if len(res) != 2 {
		return "", nil
	}
	return res[1], nil
}

func (r *Redis) Ready(ctx context.Context) bool {
	return r.client.Ping(ctx).Err() == nil
}

func (r *Redis) Close() error { return r.client.Close() }

// Compile-time interface compliance check
var _ Scheduler = (*Redis)(nil)
