// Package server exposes the diagnostics HTTP surface of the memory
// engine: context assembly, turn ingestion, consolidation and decay
// triggers, health metrics, and a websocket event stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/config"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/engine"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/storage"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/pkg/types"
)

// Server is the diagnostics HTTP server. It is a thin JSON shell over
// the engine, not the platform's chat API.
type Server struct {
	engine  *engine.MemoryEngine
	hub     *Hub
	logger  *slog.Logger
	limiter *rate.Limiter
	httpSrv *http.Server
}

func New(cfg config.ServerConfig, eng *engine.MemoryEngine, hub *Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		engine:  eng,
		hub:     hub,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/context", s.handleContext)
	mux.HandleFunc("POST /v1/turns", s.handleAppendTurn)
	mux.HandleFunc("POST /v1/consolidate", s.handleConsolidate)
	mux.HandleFunc("POST /v1/decay", s.handleDecay)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.Handle("GET /ws/events", hub)

	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.rateLimit(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

// Start begins serving. Blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.logger.Info("diagnostics server listening", "addr", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			s.writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type contextRequest struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
	Intent         string `json:"intent,omitempty"`
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	var req contextRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.UserID == "" || req.ConversationID == "" {
		s.writeError(w, http.StatusBadRequest, "user_id and conversation_id are required")
		return
	}

	assembled, err := s.engine.GetContextForTurn(r.Context(), req.UserID, req.ConversationID, req.Message, req.Intent)
	if err != nil {
		s.logger.Error("context assembly failed", "user_id", req.UserID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "context assembly failed")
		return
	}
	s.writeJSON(w, http.StatusOK, assembled)
}

type appendTurnRequest struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	Role           string `json:"role"`
	Content        string `json:"content"`
}

func (s *Server) handleAppendTurn(w http.ResponseWriter, r *http.Request) {
	var req appendTurnRequest
	if !s.decode(w, r, &req) {
		return
	}

	role := types.TurnRole(req.Role)
	if role != types.RoleUser && role != types.RoleAssistant {
		s.writeError(w, http.StatusBadRequest, "role must be user or assistant")
		return
	}

	turn := &types.ConversationTurn{
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		Role:           role,
		Content:        req.Content,
	}
	if err := s.engine.AppendTurn(r.Context(), turn); err != nil {
		if errors.Is(err, storage.ErrInvalidInput) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("failed to append turn", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to append turn")
		return
	}
	s.writeJSON(w, http.StatusCreated, turn)
}

type conversationRequest struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
}

func (s *Server) handleConsolidate(w http.ResponseWriter, r *http.Request) {
	var req conversationRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.UserID == "" || req.ConversationID == "" {
		s.writeError(w, http.StatusBadRequest, "user_id and conversation_id are required")
		return
	}

	result, err := s.engine.Consolidate(r.Context(), req.UserID, req.ConversationID)
	if err != nil {
		s.logger.Error("consolidation failed", "user_id", req.UserID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "consolidation failed")
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDecay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.UserID == "" {
		s.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	report, err := s.engine.ApplyDecay(r.Context(), req.UserID)
	if err != nil {
		s.logger.Error("decay failed", "user_id", req.UserID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "decay failed")
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	report, err := s.engine.HealthMetrics(r.Context(), userID)
	if err != nil {
		s.logger.Error("health metrics failed", "user_id", userID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "health metrics failed")
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
