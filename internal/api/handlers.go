package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nvandessel/alliance/internal/models"
	"github.com/nvandessel/alliance/internal/ratelimit"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

// HealthResponse is the body of GET / and GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	Version     string `json:"version"`
	Uptime      string `json:"uptime"`
	Simulations int    `json:"simulations"`
}

// RoundRequest selects the simulation to advance.
type RoundRequest struct {
	SimulationID string `json:"simulation_id"`
}

// ChatRequest carries a message for one party.
type ChatRequest struct {
	SimulationID string `json:"simulation_id"`
	Agent        string `json:"agent"`
	Message      string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:      "online",
		Service:     ServiceName,
		Version:     s.version,
		Uptime:      time.Since(s.started).Round(time.Second).String(),
		Simulations: s.svc.Registry().Len(),
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, ratelimit.OpStart, clientKey(r)) {
		return
	}

	var cfg models.SimulationConfig
	if !s.decode(w, r, &cfg) {
		return
	}

	res, err := s.svc.Start(cfg)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRound(w http.ResponseWriter, r *http.Request) {
	var req RoundRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.SimulationID == "" {
		s.handleError(w, r, models.NewValidationError("simulation_id", "required"))
		return
	}
	if !s.allow(w, r, ratelimit.OpRound, req.SimulationID) {
		return
	}

	res, err := s.svc.Round(r.Context(), req.SimulationID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, ratelimit.OpRead, clientKey(r)) {
		return
	}
	st, err := s.svc.Status(chi.URLParam(r, "id"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, ratelimit.OpRead, clientKey(r)) {
		return
	}
	exp, err := s.svc.Export(chi.URLParam(r, "id"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, exp)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Delete(chi.URLParam(r, "id"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, ratelimit.OpRead, clientKey(r)) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.svc.List())
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.SimulationID == "" {
		s.handleError(w, r, models.NewValidationError("simulation_id", "required"))
		return
	}
	party, err := models.ParseParty(req.Agent)
	if err != nil {
		s.handleError(w, r, models.NewValidationError("agent", "must be am or mc"))
		return
	}
	if !s.allow(w, r, ratelimit.OpChat, req.SimulationID) {
		return
	}

	reply, err := s.svc.Chat(r.Context(), req.SimulationID, party, req.Message)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	// Echo the agent as the caller spelled it.
	reply.Agent = req.Agent
	s.writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleArchiveList(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, ratelimit.OpRead, clientKey(r)) {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.handleError(w, r, models.NewValidationError("limit", "must be a non-negative integer"))
			return
		}
		limit = n
	}

	entries, err := s.archive.ListExports(r.Context(), limit)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"count": len(entries), "simulations": entries})
}

func (s *Server) handleArchiveGet(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, ratelimit.OpRead, clientKey(r)) {
		return
	}
	exp, err := s.archive.GetExport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, exp)
}

// decode reads a JSON body into v, writing a 400 on malformed input.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		msg := "invalid JSON format"
		if errors.Is(err, io.EOF) {
			msg = "request body is empty"
		}
		var syntax *json.SyntaxError
		var typ *json.UnmarshalTypeError
		ctx := map[string]any{"error": err.Error()}
		switch {
		case errors.As(err, &typ):
			ctx["field"] = strings.TrimPrefix(typ.Field, ".")
		case errors.As(err, &syntax):
			ctx["offset"] = syntax.Offset
		}
		s.writeError(w, r, http.StatusBadRequest, errTypeValidation, msg, ctx)
		return false
	}
	return true
}
