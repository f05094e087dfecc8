package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sozercan/cosilium/internal/agents"
	"github.com/sozercan/cosilium/internal/exchange"
	"github.com/sozercan/cosilium/internal/store"
)

const maxImportBytes = 1 << 20

type promptInfo struct {
	AgentID   string     `json:"agent_id"`
	Name      string     `json:"name"`
	Content   string     `json:"content"`
	Source    string     `json:"source"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func (s *Server) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	updated := map[string]time.Time{}
	if s.store != nil {
		overrides, err := s.store.ListPrompts(r.Context())
		if err != nil {
			s.logger.Warn("listing prompt overrides failed", "error", err)
		}
		for _, o := range overrides {
			updated[o.AgentID] = o.UpdatedAt
		}
	}

	out := make([]promptInfo, 0, len(s.roster))
	for _, a := range s.roster {
		content, source := a.SystemPrompt(r.Context())
		info := promptInfo{AgentID: a.ID, Name: a.Name, Content: content, Source: source}
		if t, ok := updated[a.ID]; ok && source == agents.SourceOverride {
			info.UpdatedAt = &t
		}
		out = append(out, info)
	}
	respondJSON(w, http.StatusOK, out)
}

type setPromptRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleSetPrompt(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	agent, ok := s.agentParam(w, r)
	if !ok {
		return
	}

	var req setPromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErrorDetails(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		respondError(w, http.StatusBadRequest, "Prompt content is required")
		return
	}
	if !s.requireStore(w) {
		return
	}

	if err := s.store.SetPrompt(r.Context(), agent.ID, req.Content); err != nil {
		s.logger.Error("prompt update failed", "agent", agent.ID, "error", err)
		respondErrorDetails(w, http.StatusInternalServerError, "Failed to save prompt", err)
		return
	}
	s.promptActivity(r, "update", agent)

	respondJSON(w, http.StatusOK, promptInfo{
		AgentID: agent.ID,
		Name:    agent.Name,
		Content: req.Content,
		Source:  agents.SourceOverride,
	})
}

func (s *Server) handleDeletePrompt(w http.ResponseWriter, r *http.Request) {
	agent, ok := s.agentParam(w, r)
	if !ok {
		return
	}
	if !s.requireStore(w) {
		return
	}

	removed, err := s.store.DeletePrompt(r.Context(), agent.ID)
	if err != nil {
		s.logger.Error("prompt delete failed", "agent", agent.ID, "error", err)
		respondErrorDetails(w, http.StatusInternalServerError, "Failed to delete prompt", err)
		return
	}
	if removed {
		s.promptActivity(r, "reset", agent)
	}

	respondJSON(w, http.StatusOK, map[string]any{"agent_id": agent.ID, "deleted": removed})
}

func (s *Server) agentParam(w http.ResponseWriter, r *http.Request) (*agents.Agent, bool) {
	id := chi.URLParam(r, "agentID")
	agent, ok := s.roster.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Sprintf("Unknown agent %q", id))
		return nil, false
	}
	return agent, true
}

func (s *Server) promptActivity(r *http.Request, action string, agent *agents.Agent) {
	_, err := s.recordActivity(r.Context(), store.Activity{
		Action:       action,
		ResourceType: "prompt",
		ResourceID:   agent.ID,
		ResourceName: agent.Name,
	})
	if err != nil {
		s.logger.Warn("recording prompt activity failed", "agent", agent.ID, "error", err)
	}
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	docType := q.Get("type")
	if docType == "" {
		docType = exchange.TypeFull
	}
	format := q.Get("format")
	if format == "" {
		format = exchange.FormatJSON
	}
	if format != exchange.FormatJSON && format != exchange.FormatYAML {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Unsupported format %q", format))
		return
	}

	doc, err := exchange.Export(r.Context(), s.roster, docType, q.Get("agent_id"))
	if errors.Is(err, exchange.ErrUnsupportedType) {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Unsupported export type %q", docType))
		return
	}
	if err != nil {
		respondErrorDetails(w, http.StatusInternalServerError, "Export failed", err)
		return
	}

	var buf bytes.Buffer
	if err := exchange.Encode(&buf, doc, format); err != nil {
		respondErrorDetails(w, http.StatusInternalServerError, "Export failed", err)
		return
	}

	w.Header().Set("Content-Type", exchange.ContentType(format))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", exchange.Filename(docType, format, doc.ExportedAt)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		respondErrorDetails(w, http.StatusBadRequest, "Invalid import document", err)
		return
	}
	doc, err := exchange.Decode(body, r.Header.Get("Content-Type"))
	if err != nil {
		respondErrorDetails(w, http.StatusBadRequest, "Invalid import document", err)
		return
	}

	validation := exchange.Validate(doc)

	if r.URL.Query().Get("dry_run") == "true" {
		respondJSON(w, http.StatusOK, map[string]any{
			"success":    true,
			"validation": validation,
			"message":    "Validation complete",
		})
		return
	}
	if !validation.Valid {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"success":    false,
			"validation": validation,
			"error":      "Validation failed",
		})
		return
	}
	if !s.requireStore(w) {
		return
	}

	results, err := exchange.Apply(r.Context(), doc, s.store)
	if err != nil {
		respondErrorDetails(w, http.StatusInternalServerError, "Import failed", err)
		return
	}

	if _, err := s.recordActivity(r.Context(), store.Activity{
		Action:       "import",
		ResourceType: "config",
		Details: map[string]any{
			"prompts_imported": results.Prompts.Imported,
			"configs_skipped":  results.Configs.Skipped,
		},
	}); err != nil {
		s.logger.Warn("recording import activity failed", "error", err)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"validation": validation,
		"results":    results,
		"message":    "Import completed",
	})
}
