// Package server exposes the orchestrator over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/petasbytes/toolchat/internal/provider"
	"github.com/petasbytes/toolchat/internal/runner"
	"github.com/petasbytes/toolchat/internal/telemetry"
	"github.com/petasbytes/toolchat/internal/windowing"
	"github.com/petasbytes/toolchat/memory"
	"github.com/petasbytes/toolchat/tools"
)

// Turner runs one user turn.
type Turner interface {
	RunTurn(ctx context.Context, text string) (runner.Result, error)
}

// History is the read and reset surface of the conversation log.
type History interface {
	Load(ctx context.Context) ([]memory.Message, error)
	Entries(ctx context.Context) ([]memory.Entry, error)
	Clear(ctx context.Context) error
}

// Catalog lists the tools offered to the model.
type Catalog interface {
	Declarations() []tools.Declaration
}

// Server serializes writers to the single conversation it fronts.
type Server struct {
	turns   Turner
	history History
	catalog Catalog
	logger  *slog.Logger

	// busy is held for the whole of a turn or clear. A second writer gets 409
	// instead of queueing.
	busy sync.Mutex
}

type turnRequest struct {
	Text string `json:"text"`
}

type turnResponse struct {
	Reply  string `json:"reply,omitempty"`
	State  string `json:"state"`
	TurnID string `json:"turn_id,omitempty"`
	Error  string `json:"error,omitempty"`
}

// NewHandler creates the HTTP handler.
func NewHandler(turns Turner, history History, catalog Catalog, logger *slog.Logger) http.Handler {
	s := &Server{turns: turns, history: history, catalog: catalog, logger: logger}

	r := chi.NewRouter()
	r.Post("/turns", s.RunTurn)
	r.Get("/history", s.GetHistory)
	r.Delete("/history", s.ClearHistory)
	r.Get("/tools", s.ListTools)
	r.Method(http.MethodGet, "/metrics", telemetry.MetricsHandler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})
	return r
}

// RunTurn handles POST /turns.
func (s *Server) RunTurn(w http.ResponseWriter, r *http.Request) {
	var body turnRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, turnResponse{State: runner.StateIdle.String(), Error: "invalid request body"})
		s.logger.Warn("RunTurn: invalid request body", "error", err)
		return
	}
	if !s.busy.TryLock() {
		writeJSON(w, http.StatusConflict, turnResponse{State: runner.StateIdle.String(), Error: "a turn is already in progress"})
		return
	}
	defer s.busy.Unlock()

	res, err := s.turns.RunTurn(r.Context(), body.Text)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("turn failed", "turn_id", res.TurnID, "error", err)
		}
		writeJSON(w, status, turnResponse{State: res.State.String(), TurnID: res.TurnID, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, turnResponse{Reply: res.Text, State: res.State.String(), TurnID: res.TurnID})
}

// GetHistory handles GET /history. With ?raw=1 it returns stored entries unrepaired.
func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("raw") == "1" {
		entries, err := s.history.Entries(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": orEmpty(entries)})
		return
	}
	msgs, err := s.history.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": orEmpty(msgs)})
}

// ClearHistory handles DELETE /history.
func (s *Server) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if !s.busy.TryLock() {
		writeError(w, http.StatusConflict, errors.New("a turn is in progress"))
		return
	}
	defer s.busy.Unlock()

	if err := s.history.Clear(r.Context()); err != nil {
		s.logger.Error("clear failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTools handles GET /tools.
func (s *Server) ListTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": s.catalog.Declarations()})
}

func statusFor(err error) int {
	var ge *provider.GatewayError
	switch {
	case errors.Is(err, runner.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(err, runner.ErrToolRoundLimit), errors.Is(err, windowing.ErrOverBudget):
		return http.StatusUnprocessableEntity
	case errors.As(err, &ge):
		return http.StatusBadGateway
	default:
		// Persistence failures and anything unexpected.
		return http.StatusInternalServerError
	}
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}
