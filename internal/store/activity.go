package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Activity is one entry of the user action feed.
type Activity struct {
	ID           string         `json:"id"`
	SessionID    string         `json:"session_id,omitempty"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id,omitempty"`
	ResourceName string         `json:"resource_name,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

type ActivityFilter struct {
	Limit        int
	ResourceType string
	ResourceID   string
}

// InsertActivity stores a and returns it with its id and timestamp set.
func (s *Store) InsertActivity(ctx context.Context, a Activity) (Activity, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	var details sql.NullString
	if len(a.Details) > 0 {
		raw, err := json.Marshal(a.Details)
		if err != nil {
			return Activity{}, fmt.Errorf("marshaling details: %w", err)
		}
		details = sql.NullString{String: string(raw), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity (id, session_id, action, resource_type, resource_id, resource_name, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SessionID, a.Action, a.ResourceType, a.ResourceID, a.ResourceName, details, toMillis(a.CreatedAt),
	)
	if err != nil {
		return Activity{}, fmt.Errorf("inserting activity: %w", err)
	}
	return a, nil
}

// ListActivity returns entries newest first.
func (s *Store) ListActivity(ctx context.Context, f ActivityFilter) ([]Activity, error) {
	var (
		where []string
		args  []any
	)
	if f.ResourceType != "" {
		where = append(where, "resource_type = ?")
		args = append(args, f.ResourceType)
	}
	if f.ResourceID != "" {
		where = append(where, "resource_id = ?")
		args = append(args, f.ResourceID)
	}

	query := `SELECT id, session_id, action, resource_type, resource_id, resource_name, details, created_at FROM activity`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, clampLimit(f.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying activity: %w", err)
	}
	defer rows.Close()

	out := []Activity{}
	for rows.Next() {
		var (
			a       Activity
			details sql.NullString
			ms      int64
		)
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Action, &a.ResourceType, &a.ResourceID,
			&a.ResourceName, &details, &ms); err != nil {
			return nil, fmt.Errorf("scanning activity: %w", err)
		}
		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &a.Details); err != nil {
				return nil, fmt.Errorf("decoding activity %s details: %w", a.ID, err)
			}
		}
		a.CreatedAt = fromMillis(ms)
		out = append(out, a)
	}
	return out, rows.Err()
}
