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

// Package server exposes the HTTP surface: the A2A JSON-RPC endpoint at the
// root plus discovery, skills, DID, health and metrics endpoints.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/getbindu/bindu/pkg/auth"
	"github.com/getbindu/bindu/pkg/config"
	"github.com/getbindu/bindu/pkg/did"
	"github.com/getbindu/bindu/pkg/manager"
	"github.com/getbindu/bindu/pkg/observability"
	"github.com/getbindu/bindu/pkg/protocol"
	"github.com/getbindu/bindu/pkg/ratelimit"
	"github.com/getbindu/bindu/pkg/scheduler"
	"github.com/getbindu/bindu/pkg/skills"
	"github.com/getbindu/bindu/pkg/storage"
)

// Components are the wired runtime pieces the HTTP surface fronts.
type Components struct {
	Manager   *manager.Manager
	Storage   storage.Storage
	Scheduler scheduler.Scheduler
	Skills    *skills.Registry
	DID       *did.Resolver
	Metrics   *observability.Metrics

	// WorkerReady reports the worker pool's readiness for /health. Nil
	// means no in-process pool (reported as false).
	WorkerReady func() bool

	// Validator gates the RPC endpoint. Nil disables auth.
	Validator *auth.JWTValidator
}

// Server is the HTTP front of the runtime.
type Server struct {
	cfg        config.Config
	components Components
	httpServer *http.Server
	logger     *slog.Logger

	cardMu  sync.RWMutex
	cardURL string
	card    *protocol.AgentCard
}

// New assembles the router and the agent card.
func New(cfg config.Config, components Components) *Server {
	s := &Server{
		cfg:        cfg,
		components: components,
		logger:     slog.Default().With("component", "server"),
	}
	s.setCardURL(cfg.Agent.URL)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	if s.components.Metrics != nil {
		r.Use(observability.MetricsMiddleware(s.components.Metrics))
	}

	var rpcLimiter, discoveryLimiter *ratelimit.Limiter
	if s.cfg.RateLimit.Enabled {
		rpcLimiter = ratelimit.NewLimiter(s.cfg.RateLimit.RPCPerMinute)
		discoveryLimiter = ratelimit.NewLimiter(s.cfg.RateLimit.DiscoveryPerMinute)
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.components.Validator))
		r.Use(ratelimit.Middleware(rpcLimiter))
		r.Post("/", s.handleRPC)
	})

	r.Group(func(r chi.Router) {
		r.Use(ratelimit.Middleware(discoveryLimiter))
		r.Get("/.well-known/agent.json", s.handleAgentCard)
		r.Get("/agent/skills", s.handleSkillList)
		r.Get("/agent/skills/{id}", s.handleSkillGet)
		r.Get("/agent/skills/{id}/documentation", s.handleSkillDocumentation)
		r.Post("/did/resolve", s.handleDIDResolve)
	})

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// Start runs the listener until it fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleRPC is the A2A endpoint: one JSON-RPC request per POST body.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req protocol.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, protocol.NewErrorResponse(nil, protocol.ErrParse))
		return
	}

	resp := s.components.Manager.Dispatch(r.Context(), &req)

	if s.components.Metrics != nil && resp.Error == nil && req.Method == protocol.MethodMessageSend {
		s.components.Metrics.TaskCreated(r.Context(), s.cfg.Agent.Name)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Card())
}

func (s *Server) handleSkillList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"skills": s.components.Skills.List(),
	})
}

func (s *Server) handleSkillGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	skill, ok := s.components.Skills.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound,
			protocol.NewErrorResponse(nil, protocol.ErrSkillNotFound.WithData(id)))
		return
	}
	writeJSON(w, http.StatusOK, skill)
}

func (s *Server) handleSkillDocumentation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, ok := s.components.Skills.Documentation(id)
	if !ok {
		writeJSON(w, http.StatusNotFound,
			protocol.NewErrorResponse(nil, protocol.ErrSkillNotFound.WithData(id)))
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

func (s *Server) handleDIDResolve(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DID string `json:"did"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.DID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "did is required"})
		return
	}
	doc, err := s.components.DID.Resolve(body.DID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "DID not found"})
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	storageReady := s.components.Storage.Ready(ctx)
	schedulerReady := s.components.Scheduler.Ready(ctx)
	workerReady := s.components.WorkerReady != nil && s.components.WorkerReady()

	status := http.StatusOK
	if !storageReady || !schedulerReady {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status": map[bool]string{true: "ok", false: "degraded"}[status == http.StatusOK],
		"components": map[string]bool{
			"storage":   storageReady,
			"scheduler": schedulerReady,
			"worker":    workerReady,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
