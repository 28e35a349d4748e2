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

// Package config loads the runtime configuration: YAML files with
// ${VAR:-default} expansion, .env files, and environment overrides on
// well-known keys.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root runtime configuration, read-only after startup.
type Config struct {
	Agent     AgentConfig     `yaml:"agent"`
	Storage   StorageConfig   `yaml:"storage"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Worker    WorkerConfig    `yaml:"worker"`
	Push      PushConfig      `yaml:"push"`
	Auth      AuthConfig      `yaml:"auth"`
	Server    ServerConfig    `yaml:"server"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
	Skills    []SkillConfig   `yaml:"skills"`
}

// AgentConfig describes the agent identity surfaced on the agent card.
type AgentConfig struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Version     string `yaml:"version"`
	URL         string `yaml:"url"`

	// Kind is task, team or workflow. Informational; stamped on tasks.
	Kind string `yaml:"kind"`

	DID    string `yaml:"did"`
	Author string `yaml:"author"`

	InputModes  []string `yaml:"input_modes"`
	OutputModes []string `yaml:"output_modes"`
}

// StorageConfig selects and tunes the storage backend.
type StorageConfig struct {
	// Backend is "memory" or "postgres".
	Backend     string `yaml:"backend"`
	DatabaseURL string `yaml:"database_url"`
	PoolMin     int    `yaml:"pool_min"`
	PoolMax     int    `yaml:"pool_max"`

	// EnableContextHistory accumulates cross-task message history on
	// contexts.
	EnableContextHistory bool `yaml:"enable_context_based_history"`
}

// SchedulerConfig selects and tunes the scheduler backend.
type SchedulerConfig struct {
	// Backend is "memory" or "redis".
	Backend   string `yaml:"backend"`
	RedisURL  string `yaml:"redis_url"`
	QueueSize int    `yaml:"queue_size"`
	QueueKey  string `yaml:"queue_key"`
}

// WorkerConfig bounds the worker pool.
type WorkerConfig struct {
	Concurrency int           `yaml:"concurrency"`
	MaxRetries  int           `yaml:"max_retries"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
}

// PushConfig enables webhook delivery and optionally sets a global target
// used when a task has no per-task registration.
type PushConfig struct {
	Enabled     bool   `yaml:"enabled"`
	GlobalURL   string `yaml:"global_url"`
	GlobalToken string `yaml:"global_token"`
}

// AuthConfig gates the RPC surface. Provider "none" disables auth.
type AuthConfig struct {
	// Provider is "none" or "jwt".
	Provider string `yaml:"provider"`
	JWKSURL  string `yaml:"jwks_url"`
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
}

// ServerConfig binds the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RateLimitConfig tunes the per-endpoint token buckets. Zero values disable
// limiting for that surface.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`

	// RPCPerMinute limits POST / (the A2A endpoint).
	RPCPerMinute int `yaml:"rpc_per_minute"`

	// DiscoveryPerMinute limits the card, skill and DID endpoints.
	DiscoveryPerMinute int `yaml:"discovery_per_minute"`
}

// LoggingConfig tunes the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SkillConfig declares one advertised skill with its documentation body.
type SkillConfig struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`
	InputModes  []string `yaml:"input_modes"`
	OutputModes []string `yaml:"output_modes"`

	// Documentation is the markdown/YAML body served at
	// /agent/skills/{id}/documentation.
	Documentation string `yaml:"documentation"`
}

// Default returns a runnable single-process configuration: memory storage,
// memory scheduler, no auth, push disabled.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Agent.Name == "" {
		c.Agent.Name = "bindu-agent"
	}
	if c.Agent.Version == "" {
		c.Agent.Version = "0.1.0"
	}
	if c.Agent.Kind == "" {
		c.Agent.Kind = "task"
	}
	if len(c.Agent.InputModes) == 0 {
		c.Agent.InputModes = []string{"text/plain"}
	}
	if len(c.Agent.OutputModes) == 0 {
		c.Agent.OutputModes = []string{"text/plain"}
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "memory"
	}
	if c.Scheduler.Backend == "" {
		c.Scheduler.Backend = "memory"
	}
	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = 4
	}
	if c.Auth.Provider == "" {
		c.Auth.Provider = "none"
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port <= 0 {
		c.Server.Port = 8030
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate rejects configurations that cannot start.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "memory":
	case "postgres":
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("storage backend postgres requires database_url")
		}
	default:
		return fmt.Errorf("unknown storage backend: %s", c.Storage.Backend)
	}

	switch c.Scheduler.Backend {
	case "memory":
	case "redis":
		if c.Scheduler.RedisURL == "" {
			return fmt.Errorf("scheduler backend redis requires redis_url")
		}
	default:
		return fmt.Errorf("unknown scheduler backend: %s", c.Scheduler.Backend)
	}

	switch c.Auth.Provider {
	case "none":
	case "jwt":
		if c.Auth.JWKSURL == "" {
			return fmt.Errorf("auth provider jwt requires jwks_url")
		}
	default:
		return fmt.Errorf("unknown auth provider: %s", c.Auth.Provider)
	}

	seen := make(map[string]bool, len(c.Skills))
	for _, skill := range c.Skills {
		if skill.ID == "" {
			return fmt.Errorf("skill without id")
		}
		if seen[skill.ID] {
			return fmt.Errorf("duplicate skill id: %s", skill.ID)
		}
		seen[skill.ID] = true
	}
	return nil
}

// Load reads a YAML config file, expanding ${VAR} and ${VAR:-default}
// references, then applies .env files, environment overrides, and defaults.
func Load(path string) (*Config, error) {
	loadDotEnv()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := expandEnvVars(string(data))
	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
