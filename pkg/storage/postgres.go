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

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/getbindu/bindu/pkg/protocol"
)

// PostgresConfig configures the PostgreSQL backend.
type PostgresConfig struct {
	URL string

	// DID selects the tenant schema. Empty DID falls back to the "public"
	// schema (single-tenant deployment).
	DID string

	PoolMin   int
	PoolMax   int
	OpTimeout time.Duration

	// Startup connection retry bounds, to tolerate dependency warmup.
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration

	Options
}

func (c *PostgresConfig) applyDefaults() {
	if c.PoolMax <= 0 {
		c.PoolMax = 10
	}
	if c.PoolMin <= 0 {
		c.PoolMin = 2
	}
	if c.OpTimeout <= 0 {
		c.OpTimeout = 30 * time.Second
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

// Postgres stores all four tables inside a schema derived from the
// deployment's DID, giving each tenant full logical separation.
type Postgres struct {
	db     *sql.DB
	schema string
	cfg    PostgresConfig
}

// NewPostgres opens a bounded connection pool, retries the initial ping with
// exponential backoff, and runs the reentrant schema bootstrap.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	cfg.applyDefaults()

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.PoolMax)
	db.SetMaxIdleConns(cfg.PoolMin)
	db.SetConnMaxLifetime(time.Hour)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.InitialInterval
	bo.MaxInterval = cfg.MaxInterval
	ping := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, cfg.OpTimeout)
		defer cancel()
		return db.PingContext(pingCtx)
	}
	err = backoff.Retry(ping, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(cfg.MaxRetries)), ctx))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	schema := "public"
	if cfg.DID != "" {
		schema = SchemaForDID(cfg.DID)
	}

	p := &Postgres{db: db, schema: schema, cfg: cfg}
	if err := p.bootstrap(ctx); err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("Postgres storage ready", "schema", schema)
	return p, nil
}

// bootstrap creates the tenant schema and tables idempotently. Schema
// creation runs in its own transaction, table creation in a second one, so
// concurrent bootstraps of the same schema cannot deadlock each other.
func (p *Postgres) bootstrap(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(ctx, p.cfg.OpTimeout)
	defer cancel()

	if p.schema != "public" {
		tx, err := p.db.BeginTx(opCtx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin schema transaction: %w", err)
		}
		if _, err := tx.ExecContext(opCtx,
			fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %q`, p.schema)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to create schema %s: %w", p.schema, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit schema creation: %w", err)
		}
	}

	tx, err := p.db.BeginTx(opCtx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin table transaction: %w", err)
	}
	for _, stmt := range p.ddl() {
		if _, err := tx.ExecContext(opCtx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to run bootstrap DDL: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit table creation: %w", err)
	}
	return nil
}

func (p *Postgres) ddl() []string {
	s := p.schema
	return []string{
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %q.tasks (
    id UUID PRIMARY KEY,
    context_id UUID NOT NULL,
    kind VARCHAR(16) NOT NULL DEFAULT 'task',
    state VARCHAR(32) NOT NULL,
    state_timestamp TIMESTAMPTZ NOT NULL,
    history JSONB NOT NULL DEFAULT '[]'::jsonb,
    artifacts JSONB NOT NULL DEFAULT '[]'::jsonb,
    metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
)`, s),
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %q.contexts (
    context_id UUID PRIMARY KEY,
    context_data JSONB NOT NULL DEFAULT '{}'::jsonb,
    message_history JSONB NOT NULL DEFAULT '[]'::jsonb,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
)`, s),
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %q.task_feedback (
    id BIGSERIAL PRIMARY KEY,
    task_id UUID NOT NULL,
    payload JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMPTZ NOT NULL
)`, s),
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %q.webhook_configs (
    task_id UUID PRIMARY KEY,
    url TEXT NOT NULL,
    token TEXT,
    created_at TIMESTAMPTZ NOT NULL
)`, s),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_tasks_history ON %q.tasks USING GIN (history)`, s),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_tasks_metadata ON %q.tasks USING GIN (metadata)`, s),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_tasks_artifacts ON %q.tasks USING GIN (artifacts)`, s),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_tasks_context_id ON %q.tasks (context_id)`, s),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_tasks_state ON %q.tasks (state)`, s),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON %q.tasks (created_at DESC)`, s),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_tasks_updated_at ON %q.tasks (updated_at DESC)`, s),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_feedback_task_id ON %q.task_feedback (task_id)`, s),
	}
}

func (p *Postgres) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.cfg.OpTimeout)
}

func (p *Postgres) table(name string) string {
	return fmt.Sprintf("%q.%s", p.schema, sanitizeIdent(name))
}

func (p *Postgres) SubmitTask(ctx context.Context, contextID string, msg protocol.Message) (*protocol.Task, error) {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin submit transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	taskID := uuid.NewString()
	msg.TaskID = taskID
	msg.ContextID = contextID

	historyJSON, err := json.Marshal([]protocol.Message{msg})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal history: %w", err)
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (context_id, context_data, message_history, created_at, updated_at)
VALUES ($1, '{}'::jsonb, '[]'::jsonb, $2, $2)
ON CONFLICT (context_id) DO UPDATE SET updated_at = EXCLUDED.updated_at`,
		p.table("contexts")), contextID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert context: %w", err)
	}

	if p.cfg.ContextHistory {
		if err := p.appendContextHistoryTx(ctx, tx, contextID, historyJSON, now); err != nil {
			return nil, err
		}
	}

	task := &protocol.Task{
		ID:        taskID,
		ContextID: contextID,
		Kind:      p.cfg.kind(),
		Status:    protocol.TaskStatus{State: protocol.TaskStateSubmitted, Timestamp: now},
		History:   []protocol.Message{msg},
		Artifacts: []protocol.Artifact{},
		Metadata:  map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (id, context_id, kind, state, state_timestamp, history, artifacts, metadata, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, '[]'::jsonb, '{}'::jsonb, $5, $5)`,
		p.table("tasks")),
		task.ID, contextID, string(task.Kind), string(task.Status.State), now, historyJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to insert task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit submit: %w", err)
	}
	return task, nil
}

// appendContextHistoryTx appends serialized messages to the context's
// cross-task history inside the caller's transaction.
func (p *Postgres) appendContextHistoryTx(ctx context.Context, tx *sql.Tx, contextID string, messagesJSON []byte, now time.Time) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf(`
UPDATE %s SET message_history = message_history || $2::jsonb, updated_at = $3
WHERE context_id = $1`, p.table("contexts")), contextID, messagesJSON, now)
	if err != nil {
		return fmt.Errorf("failed to append context history: %w", err)
	}
	return nil
}

func (p *Postgres) UpdateTask(ctx context.Context, taskID string, up Update) (*protocol.Task, error) {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin update transaction: %w", err)
	}
	defer tx.Rollback()

	// Row lock serializes concurrent writers on the same task; readers
	// outside the transaction see pre- or post-state only.
	task, err := p.scanTask(tx.QueryRowContext(ctx, fmt.Sprintf(`
SELECT id, context_id, kind, state, state_timestamp, history, artifacts, metadata, created_at, updated_at
FROM %s WHERE id = $1 FOR UPDATE`, p.table("tasks")), taskID))
	if err == sql.ErrNoRows {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task for update: %w", err)
	}

	from := task.Status.State
	if from.IsTerminal() {
		return nil, &TransitionError{From: from, To: up.NewState}
	}
	if up.NewState != "" && !CanTransition(from, up.NewState) {
		return nil, &TransitionError{From: from, To: up.NewState}
	}

	now := time.Now().UTC()
	if up.NewState != "" && up.NewState != from {
		task.Status = protocol.TaskStatus{State: up.NewState, Timestamp: now}
	}
	appended := make([]protocol.Message, 0, len(up.NewMessages))
	for _, msg := range up.NewMessages {
		msg.TaskID = task.ID
		msg.ContextID = task.ContextID
		appended = append(appended, msg)
	}
	task.History = append(task.History, appended...)
	task.Artifacts = append(task.Artifacts, up.NewArtifacts...)
	if task.Metadata == nil {
		task.Metadata = map[string]any{}
	}
	for k, v := range up.MetadataMerge {
		task.Metadata[k] = v
	}
	task.UpdatedAt = now

	historyJSON, err := json.Marshal(task.History)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal history: %w", err)
	}
	artifactsJSON, err := json.Marshal(task.Artifacts)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal artifacts: %w", err)
	}
	metadataJSON, err := json.Marshal(task.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
UPDATE %s SET state = $2, state_timestamp = $3, history = $4, artifacts = $5, metadata = $6, updated_at = $7
WHERE id = $1`, p.table("tasks")),
		task.ID, string(task.Status.State), task.Status.Timestamp,
		historyJSON, artifactsJSON, metadataJSON, now)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	if p.cfg.ContextHistory && len(appended) > 0 {
		appendedJSON, err := json.Marshal(appended)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal appended messages: %w", err)
		}
		if err := p.appendContextHistoryTx(ctx, tx, task.ContextID, appendedJSON, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit update: %w", err)
	}
	return task, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (p *Postgres) scanTask(row rowScanner) (*protocol.Task, error) {
	var (
		task          protocol.Task
		kind, state   string
		historyJSON   []byte
		artifactsJSON []byte
		metadataJSON  []byte
	)
	err := row.Scan(&task.ID, &task.ContextID, &kind, &state, &task.Status.Timestamp,
		&historyJSON, &artifactsJSON, &metadataJSON, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, err
	}
	task.Kind = protocol.TaskKind(kind)
	task.Status.State = protocol.TaskState(state)
	if err := json.Unmarshal(historyJSON, &task.History); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history: %w", err)
	}
	if err := json.Unmarshal(artifactsJSON, &task.Artifacts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal artifacts: %w", err)
	}
	if err := json.Unmarshal(metadataJSON, &task.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return &task, nil
}

func (p *Postgres) LoadTask(ctx context.Context, taskID string, historyLength int) (*protocol.Task, error) {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	task, err := p.scanTask(p.db.QueryRowContext(ctx, fmt.Sprintf(`
SELECT id, context_id, kind, state, state_timestamp, history, artifacts, metadata, created_at, updated_at
FROM %s WHERE id = $1`, p.table("tasks")), taskID))
	if err == sql.ErrNoRows {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	if historyLength > 0 && len(task.History) > historyLength {
		task.History = task.History[len(task.History)-historyLength:]
	}
	return task, nil
}

func (p *Postgres) ListTasks(ctx context.Context, f TaskFilter) ([]*protocol.Task, error) {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`
SELECT id, context_id, kind, state, state_timestamp, history, artifacts, metadata, created_at, updated_at
FROM %s WHERE 1=1`, p.table("tasks"))
	args := []any{}
	if f.State != "" {
		args = append(args, string(f.State))
		query += fmt.Sprintf(" AND state = $%d", len(args))
	}
	if f.ContextID != "" {
		args = append(args, f.ContextID)
		query += fmt.Sprintf(" AND context_id = $%d", len(args))
	}
	query += " ORDER BY updated_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*protocol.Task{}
	for rows.Next() {
		task, err := p.scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (p *Postgres) CountTasks(ctx context.Context, f TaskFilter) (int, error) {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE 1=1`, p.table("tasks"))
	args := []any{}
	if f.State != "" {
		args = append(args, string(f.State))
		query += fmt.Sprintf(" AND state = $%d", len(args))
	}
	if f.ContextID != "" {
		args = append(args, f.ContextID)
		query += fmt.Sprintf(" AND context_id = $%d", len(args))
	}

	var n int
	if err := p.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return n, nil
}

func (p *Postgres) scanContext(row rowScanner) (*protocol.Context, error) {
	var (
		cx          protocol.Context
		dataJSON    []byte
		historyJSON []byte
	)
	err := row.Scan(&cx.ContextID, &dataJSON, &historyJSON, &cx.CreatedAt, &cx.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(dataJSON, &cx.ContextData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal context data: %w", err)
	}
	if err := json.Unmarshal(historyJSON, &cx.MessageHistory); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message history: %w", err)
	}
	return &cx, nil
}

func (p *Postgres) GetContext(ctx context.Context, contextID string) (*protocol.Context, error) {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	cx, err := p.scanContext(p.db.QueryRowContext(ctx, fmt.Sprintf(`
SELECT context_id, context_data, message_history, created_at, updated_at
FROM %s WHERE context_id = $1`, p.table("contexts")), contextID))
	if err == sql.ErrNoRows {
		return nil, ErrContextNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get context: %w", err)
	}
	return cx, nil
}

func (p *Postgres) ListContexts(ctx context.Context) ([]*protocol.Context, error) {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`
SELECT context_id, context_data, message_history, created_at, updated_at
FROM %s ORDER BY updated_at DESC`, p.table("contexts")))
	if err != nil {
		return nil, fmt.Errorf("failed to list contexts: %w", err)
	}
	defer rows.Close()

	contexts := []*protocol.Context{}
	for rows.Next() {
		cx, err := p.scanContext(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan context: %w", err)
		}
		contexts = append(contexts, cx)
	}
	return contexts, rows.Err()
}

func (p *Postgres) ClearContext(ctx context.Context, contextID string) error {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin clear transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
DELETE FROM %s WHERE task_id IN (SELECT id FROM %s WHERE context_id = $1)`,
		p.table("task_feedback"), p.table("tasks")), contextID)
	if err != nil {
		return fmt.Errorf("failed to delete feedback: %w", err)
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
DELETE FROM %s WHERE task_id IN (SELECT id FROM %s WHERE context_id = $1)`,
		p.table("webhook_configs"), p.table("tasks")), contextID)
	if err != nil {
		return fmt.Errorf("failed to delete webhooks: %w", err)
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE context_id = $1`, p.table("tasks")), contextID)
	if err != nil {
		return fmt.Errorf("failed to delete tasks: %w", err)
	}
	res, err := tx.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE context_id = $1`, p.table("contexts")), contextID)
	if err != nil {
		return fmt.Errorf("failed to delete context: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrContextNotFound
	}
	return tx.Commit()
}

func (p *Postgres) SaveFeedback(ctx context.Context, taskID string, payload map[string]any) error {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback payload: %w", err)
	}

	var exists bool
	err = p.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, p.table("tasks")), taskID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check task existence: %w", err)
	}
	if !exists {
		return ErrTaskNotFound
	}

	_, err = p.db.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (task_id, payload, created_at) VALUES ($1, $2, $3)`,
		p.table("task_feedback")), taskID, payloadJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}
	return nil
}

func (p *Postgres) GetFeedback(ctx context.Context, taskID string) ([]protocol.Feedback, error) {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`
SELECT task_id, payload, created_at FROM %s WHERE task_id = $1 ORDER BY created_at`,
		p.table("task_feedback")), taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}
	defer rows.Close()

	out := []protocol.Feedback{}
	for rows.Next() {
		var (
			fb          protocol.Feedback
			payloadJSON []byte
		)
		if err := rows.Scan(&fb.TaskID, &payloadJSON, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		if err := json.Unmarshal(payloadJSON, &fb.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal feedback payload: %w", err)
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}

func (p *Postgres) SaveWebhook(ctx context.Context, taskID string, cfg protocol.PushConfig) error {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	_, err := p.db.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (task_id, url, token, created_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (task_id) DO UPDATE SET url = EXCLUDED.url, token = EXCLUDED.token`,
		p.table("webhook_configs")), taskID, cfg.URL, cfg.Token, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save webhook: %w", err)
	}
	return nil
}

func (p *Postgres) LoadWebhook(ctx context.Context, taskID string) (*protocol.PushConfig, error) {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	var cfg protocol.PushConfig
	err := p.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT url, COALESCE(token, '') FROM %s WHERE task_id = $1`,
		p.table("webhook_configs")), taskID).Scan(&cfg.URL, &cfg.Token)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load webhook: %w", err)
	}
	return &cfg, nil
}

func (p *Postgres) DeleteWebhook(ctx context.Context, taskID string) error {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	_, err := p.db.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE task_id = $1`, p.table("webhook_configs")), taskID)
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	return nil
}

func (p *Postgres) Ready(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.db.PingContext(ctx) == nil
}

func (p *Postgres) Close() error { return p.db.Close() }

// Compile-time interface compliance check
var _ Storage = (*Postgres)(nil)
