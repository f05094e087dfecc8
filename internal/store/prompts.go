package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PromptOverride replaces an agent's built-in system prompt.
type PromptOverride struct {
	AgentID   string    `json:"agent_id"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetPrompt returns the override for agentID, if any.
func (s *Store) GetPrompt(ctx context.Context, agentID string) (string, bool, error) {
	var content string
	err := s.db.QueryRowContext(ctx, "SELECT content FROM prompts WHERE agent_id = ?", agentID).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("querying prompt: %w", err)
	}
	return content, true, nil
}

// SetPrompt creates or replaces the override for agentID.
func (s *Store) SetPrompt(ctx context.Context, agentID, content string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prompts (agent_id, content, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(agent_id) DO UPDATE SET
			content = excluded.content,
			updated_at = excluded.updated_at`,
		agentID, content, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upserting prompt: %w", err)
	}
	return nil
}

// DeletePrompt removes the override for agentID and reports whether one existed.
func (s *Store) DeletePrompt(ctx context.Context, agentID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM prompts WHERE agent_id = ?", agentID)
	if err != nil {
		return false, fmt.Errorf("deleting prompt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting prompt: %w", err)
	}
	return n > 0, nil
}

// ListPrompts returns all overrides ordered by agent id.
func (s *Store) ListPrompts(ctx context.Context) ([]PromptOverride, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT agent_id, content, updated_at FROM prompts ORDER BY agent_id")
	if err != nil {
		return nil, fmt.Errorf("querying prompts: %w", err)
	}
	defer rows.Close()

	out := []PromptOverride{}
	for rows.Next() {
		var (
			p  PromptOverride
			ms int64
		)
		if err := rows.Scan(&p.AgentID, &p.Content, &ms); err != nil {
			return nil, fmt.Errorf("scanning prompt: %w", err)
		}
		p.UpdatedAt = fromMillis(ms)
		out = append(out, p)
	}
	return out, rows.Err()
}
