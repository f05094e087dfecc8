package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sozercan/cosilium/internal/events"
	"github.com/sozercan/cosilium/internal/store"
)

const defaultUsageWindow = 24 * time.Hour

type publishRequest struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (s *Server) handlePublishEvent(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErrorDetails(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Event) == "" || len(req.Data) == 0 || string(req.Data) == "null" {
		respondError(w, http.StatusBadRequest, "Missing event or data")
		return
	}

	s.bus.Publish(events.NewCustomEvent(req.Event, req.Data))
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Event emitted"})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}

	window := defaultUsageWindow
	if raw := r.URL.Query().Get("since"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid since duration")
			return
		}
		window = d
	}

	summary, err := s.store.Usage(r.Context(), time.Now().Add(-window))
	if err != nil {
		s.logger.Error("usage query failed", "error", err)
		respondErrorDetails(w, http.StatusInternalServerError, "Failed to load usage", err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	logs, err := s.store.RecentLogs(r.Context(), store.LogFilter{
		Limit:     limit,
		Level:     q.Get("level"),
		SessionID: q.Get("session_id"),
	})
	if err != nil {
		s.logger.Error("logs query failed", "error", err)
		respondErrorDetails(w, http.StatusInternalServerError, "Failed to load logs", err)
		return
	}
	respondJSON(w, http.StatusOK, logs)
}

func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	items, err := s.store.ListActivity(r.Context(), store.ActivityFilter{
		Limit:        limit,
		ResourceType: q.Get("resource_type"),
		ResourceID:   q.Get("resource_id"),
	})
	if err != nil {
		s.logger.Error("activity query failed", "error", err)
		respondErrorDetails(w, http.StatusInternalServerError, "Failed to load activity", err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

type activityRequest struct {
	SessionID    string         `json:"session_id"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	ResourceName string         `json:"resource_name"`
	Details      map[string]any `json:"details"`
}

func (s *Server) handleCreateActivity(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req activityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErrorDetails(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Action) == "" || strings.TrimSpace(req.ResourceType) == "" {
		respondError(w, http.StatusBadRequest, "Missing action or resource_type")
		return
	}

	a, err := s.recordActivity(r.Context(), store.Activity{
		SessionID:    req.SessionID,
		Action:       req.Action,
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		ResourceName: req.ResourceName,
		Details:      req.Details,
	})
	if err != nil {
		s.logger.Error("activity insert failed", "error", err)
		respondErrorDetails(w, http.StatusInternalServerError, "Failed to record activity", err)
		return
	}
	respondJSON(w, http.StatusCreated, a)
}

// recordActivity stores a when persistence is enabled and announces it on the bus.
func (s *Server) recordActivity(ctx context.Context, a store.Activity) (store.Activity, error) {
	if s.store != nil {
		stored, err := s.store.InsertActivity(ctx, a)
		if err != nil {
			return a, err
		}
		a = stored
	} else {
		a.ID = uuid.NewString()
		a.CreatedAt = time.Now().UTC()
	}

	s.bus.Publish(events.ActivityEvent{
		BaseEvent: events.BaseEvent{
			Type:      events.TypeActivity,
			Time:      a.CreatedAt,
			SessionID: a.SessionID,
		},
		ID:           a.ID,
		Action:       a.Action,
		ResourceType: a.ResourceType,
		ResourceID:   a.ResourceID,
		ResourceName: a.ResourceName,
		Details:      a.Details,
	})
	return a, nil
}

func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid limit %q", raw))
		return 0, false
	}
	return n, true
}
