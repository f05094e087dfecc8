package events

import (
	"encoding/json"
	"time"
)

// Event types carried on the bus.
const (
	TypeMetric           = "metric"
	TypeLog              = "log"
	TypeAnalysisStart    = "analysis_start"
	TypeAnalysisComplete = "analysis_complete"
	TypeActivity         = "activity"
)

// Metric call statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

// Log levels.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
	LevelSuccess = "success"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	Timestamp() time.Time
	Session() string
}

// BaseEvent provides the fields shared by all events. The type travels
// next to the payload on the wire, so it is not part of the JSON body.
type BaseEvent struct {
	Type      string    `json:"-"`
	Time      time.Time `json:"timestamp"`
	SessionID string    `json:"session_id,omitempty"`
}

func (e BaseEvent) EventType() string    { return e.Type }
func (e BaseEvent) Timestamp() time.Time { return e.Time }
func (e BaseEvent) Session() string      { return e.SessionID }

// NewBaseEvent creates a base event stamped with the current time.
func NewBaseEvent(eventType, sessionID string) BaseEvent {
	return BaseEvent{
		Type:      eventType,
		Time:      time.Now().UTC(),
		SessionID: sessionID,
	}
}

// MetricEvent describes one provider call.
type MetricEvent struct {
	BaseEvent
	AgentID          string  `json:"agent_id"`
	Model            string  `json:"model"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	TotalTokens      int64   `json:"total_tokens"`
	CostUSD          float64 `json:"cost_usd"`
	LatencyMS        int64   `json:"latency_ms"`
	Status           string  `json:"status"`
	ErrorMessage     string  `json:"error_message,omitempty"`
}

// NewMetricEvent creates a metric event for agentID.
func NewMetricEvent(sessionID, agentID, status string) MetricEvent {
	return MetricEvent{
		BaseEvent: NewBaseEvent(TypeMetric, sessionID),
		AgentID:   agentID,
		Status:    status,
	}
}

// LogEvent is a human-readable line for the live log view.
type LogEvent struct {
	BaseEvent
	Level   string `json:"level"`
	Message string `json:"message"`
	AgentID string `json:"agent_id,omitempty"`
}

// NewLogEvent creates a log event.
func NewLogEvent(sessionID, agentID, level, message string) LogEvent {
	return LogEvent{
		BaseEvent: NewBaseEvent(TypeLog, sessionID),
		Level:     level,
		Message:   message,
		AgentID:   agentID,
	}
}

// AnalysisEvent marks the start or the end of an analyze request.
type AnalysisEvent struct {
	BaseEvent
	Status   string  `json:"status"`
	TaskType string  `json:"task_type,omitempty"`
	Mode     string  `json:"mode,omitempty"`
	Agents   int     `json:"agents,omitempty"`
	Tokens   int64   `json:"total_tokens,omitempty"`
	CostUSD  float64 `json:"total_cost,omitempty"`
	Duration int64   `json:"duration_ms,omitempty"`
}

// NewAnalysisEvent creates an analysis_start or analysis_complete event.
func NewAnalysisEvent(eventType, sessionID, status string) AnalysisEvent {
	return AnalysisEvent{
		BaseEvent: NewBaseEvent(eventType, sessionID),
		Status:    status,
	}
}

// ActivityEvent announces a recorded user action.
type ActivityEvent struct {
	BaseEvent
	ID           string         `json:"id"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id,omitempty"`
	ResourceName string         `json:"resource_name,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
}

// CustomEvent is an event posted by a client. Its payload is forwarded as is.
type CustomEvent struct {
	BaseEvent
	Payload json.RawMessage
}

// NewCustomEvent creates a client event of an arbitrary type.
func NewCustomEvent(eventType string, payload json.RawMessage) CustomEvent {
	return CustomEvent{
		BaseEvent: NewBaseEvent(eventType, ""),
		Payload:   payload,
	}
}

// MarshalJSON returns the raw client payload.
func (e CustomEvent) MarshalJSON() ([]byte, error) {
	if len(e.Payload) == 0 {
		return []byte("null"), nil
	}
	return e.Payload, nil
}

// Envelope is the wire shape of an event: its type next to its payload.
type Envelope struct {
	Type string `json:"type"`
	Data Event  `json:"data"`
}

// Encode marshals event into its envelope.
func Encode(event Event) ([]byte, error) {
	return json.Marshal(Envelope{Type: event.EventType(), Data: event})
}
