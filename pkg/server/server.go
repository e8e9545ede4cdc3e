// Package server exposes the assistant over HTTP: chat, confirmation,
// health, and metrics endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/agent"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/config"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/confirm"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/protocol"
)

// Identity headers set by the authenticating proxy in front of this
// service.
const (
	HeaderUserID   = "X-User-Id"
	HeaderLocation = "X-User-Location"
)

// Server hosts the HTTP API.
type Server struct {
	agent *agent.Agent
	gate  *confirm.Gate
	http  *http.Server
}

func New(cfg config.ServerConfig, orchestrator *agent.Agent, gate *confirm.Gate) *Server {
	s := &Server{agent: orchestrator, gate: gate}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(requireIdentity)
		r.Post("/chat", s.handleChat)
		r.Post("/confirm", s.handleConfirm)
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	slog.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// requireIdentity rejects requests without a user id header. Identity is
// established upstream; this service only consumes it.
func requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(HeaderUserID) == "" {
			writeError(w, http.StatusUnauthorized, "missing "+HeaderUserID+" header")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type chatRequest struct {
	Message string            `json:"message"`
	History []historyMessage  `json:"history,omitempty"`
	Model   string            `json:"model,omitempty"`
	Meta    map[string]string `json:"meta,omitempty"`
}

type historyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body chatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	req := agent.Request{
		UserID:        r.Header.Get(HeaderUserID),
		Location:      r.Header.Get(HeaderLocation),
		Message:       body.Message,
		ModelOverride: body.Model,
	}
	for _, msg := range body.History {
		switch msg.Role {
		case "user", "assistant":
			req.History = append(req.History, agentHistoryTurn(msg))
		}
	}

	outcome, err := s.agent.Handle(r.Context(), req)
	if err != nil {
		slog.Error("chat request failed", "user", req.UserID, "error", err)
		writeError(w, http.StatusBadGateway, "failed to process the request")
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

type confirmRequest struct {
	ConfirmationID string `json:"confirmation_id"`
	Confirmed      bool   `json:"confirmed"`
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var body confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.ConfirmationID == "" {
		writeError(w, http.StatusBadRequest, "confirmation_id is required")
		return
	}

	decision := s.gate.Confirm(r.Context(), body.ConfirmationID, r.Header.Get(HeaderUserID), body.Confirmed)
	writeJSON(w, http.StatusOK, decision)
}

func agentHistoryTurn(msg historyMessage) protocol.Message {
	if msg.Role == "assistant" {
		return protocol.Message{Role: protocol.RoleAssistant, Content: msg.Content}
	}
	return protocol.UserMessage(msg.Content)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
