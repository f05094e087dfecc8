package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sozercan/cosilium/internal/events"
)

// SaveMetric stores one provider call.
func (s *Store) SaveMetric(ctx context.Context, m events.MetricEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metrics (
			id, session_id, agent_id, model, prompt_tokens, completion_tokens,
			total_tokens, cost_usd, latency_ms, status, error_message, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), m.SessionID, m.AgentID, m.Model, m.PromptTokens, m.CompletionTokens,
		m.TotalTokens, m.CostUSD, m.LatencyMS, m.Status, m.ErrorMessage, toMillis(m.Time),
	)
	if err != nil {
		return fmt.Errorf("inserting metric: %w", err)
	}
	return nil
}

// SaveLog stores one log line.
func (s *Store) SaveLog(ctx context.Context, l events.LogEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO logs (id, session_id, agent_id, level, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), l.SessionID, l.AgentID, l.Level, l.Message, toMillis(l.Time),
	)
	if err != nil {
		return fmt.Errorf("inserting log: %w", err)
	}
	return nil
}

// AgentUsage aggregates provider calls.
type AgentUsage struct {
	AgentID          string  `json:"agent_id,omitempty"`
	Calls            int64   `json:"calls"`
	Errors           int64   `json:"errors"`
	Timeouts         int64   `json:"timeouts"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	TotalTokens      int64   `json:"total_tokens"`
	CostUSD          float64 `json:"cost_usd"`
	AvgLatencyMS     float64 `json:"avg_latency_ms"`
}

type UsageSummary struct {
	Since  time.Time    `json:"since"`
	Agents []AgentUsage `json:"agents"`
	Totals AgentUsage   `json:"totals"`
}

// Usage aggregates metrics recorded at or after since, per agent.
func (s *Store) Usage(ctx context.Context, since time.Time) (*UsageSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_id,
			COUNT(*),
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
			SUM(prompt_tokens),
			SUM(completion_tokens),
			SUM(total_tokens),
			SUM(cost_usd),
			AVG(latency_ms)
		FROM metrics
		WHERE created_at >= ?
		GROUP BY agent_id
		ORDER BY agent_id`,
		events.StatusError, events.StatusTimeout, since.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("querying usage: %w", err)
	}
	defer rows.Close()

	summary := &UsageSummary{Since: since.UTC(), Agents: []AgentUsage{}}
	var latencySum float64
	for rows.Next() {
		var u AgentUsage
		if err := rows.Scan(&u.AgentID, &u.Calls, &u.Errors, &u.Timeouts, &u.PromptTokens,
			&u.CompletionTokens, &u.TotalTokens, &u.CostUSD, &u.AvgLatencyMS); err != nil {
			return nil, fmt.Errorf("scanning usage: %w", err)
		}
		summary.Agents = append(summary.Agents, u)

		t := &summary.Totals
		t.Calls += u.Calls
		t.Errors += u.Errors
		t.Timeouts += u.Timeouts
		t.PromptTokens += u.PromptTokens
		t.CompletionTokens += u.CompletionTokens
		t.TotalTokens += u.TotalTokens
		t.CostUSD += u.CostUSD
		latencySum += u.AvgLatencyMS * float64(u.Calls)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating usage: %w", err)
	}
	if summary.Totals.Calls > 0 {
		summary.Totals.AvgLatencyMS = latencySum / float64(summary.Totals.Calls)
	}
	return summary, nil
}

type LogFilter struct {
	Limit     int
	Level     string
	SessionID string
}

// RecentLogs returns log lines newest first.
func (s *Store) RecentLogs(ctx context.Context, f LogFilter) ([]events.LogEvent, error) {
	var (
		where []string
		args  []any
	)
	if f.Level != "" {
		where = append(where, "level = ?")
		args = append(args, f.Level)
	}
	if f.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, f.SessionID)
	}

	query := "SELECT session_id, agent_id, level, message, created_at FROM logs"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, clampLimit(f.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying logs: %w", err)
	}
	defer rows.Close()

	logs := []events.LogEvent{}
	for rows.Next() {
		var (
			l  events.LogEvent
			ms int64
		)
		if err := rows.Scan(&l.SessionID, &l.AgentID, &l.Level, &l.Message, &ms); err != nil {
			return nil, fmt.Errorf("scanning log: %w", err)
		}
		l.Type = events.TypeLog
		l.Time = fromMillis(ms)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
