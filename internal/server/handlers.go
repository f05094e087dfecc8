package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sozercan/cosilium/apimodels"
	"github.com/sozercan/cosilium/internal/analyzer"
)

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req apimodels.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Error("Invalid analysis request", "error", err)
		respondErrorDetails(w, http.StatusInternalServerError, "Invalid request body", err)
		return
	}

	s.logger.Debug("Received analysis request", "task_type", req.TaskType, "context_items", len(req.Context))

	result, err := s.analyzer.Analyze(r.Context(), req)
	if errors.Is(err, analyzer.ErrTaskRequired) {
		respondError(w, http.StatusBadRequest, "Task is required")
		return
	}
	if err != nil {
		s.logger.Error("Analysis request failed", "error", err)
		respondErrorDetails(w, http.StatusInternalServerError, "Analysis failed", err)
		return
	}

	s.logger.Debug("Analysis request completed successfully",
		"session_id", result.SessionID,
		"mode", result.Mode,
		"analyses", len(result.Analyses),
	)

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	storeStatus := "disabled"
	if s.store != nil {
		storeStatus = "ok"
		if err := s.store.Ping(r.Context()); err != nil {
			s.logger.Warn("store ping failed", "error", err)
			storeStatus = "unavailable"
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"mode":        s.analyzer.Mode(),
		"store":       storeStatus,
		"sse_clients": s.sse.ClientCount(),
	})
}

type agentInfo struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Role        string  `json:"role"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	Enabled     bool    `json:"enabled"`
}

func (s *Server) handleAgents(w http.ResponseWriter, _ *http.Request) {
	out := make([]agentInfo, 0, len(s.roster))
	for _, a := range s.roster {
		out = append(out, agentInfo{
			ID:          a.ID,
			Name:        a.Name,
			Role:        a.Role,
			Model:       a.Model(),
			Temperature: a.Temperature(),
			Enabled:     a.Enabled(),
		})
	}
	respondJSON(w, http.StatusOK, out)
}
