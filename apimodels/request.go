package apimodels

// Context item types.
const (
	ContextText = "text"
	ContextURL  = "url"
)

type AnalysisRequest struct {
	// Task is the problem statement to analyze
	Task string `json:"task"`

	// TaskType labels the kind of analysis, e.g. "strategy" or "risk"
	TaskType string `json:"task_type"`

	// MaxIterations is echoed back; one round is performed
	MaxIterations int `json:"max_iterations,omitempty"`

	// Context is optional supporting material
	Context []ContextItem `json:"context,omitempty"`

	// SessionID correlates telemetry; generated when empty
	SessionID string `json:"session_id,omitempty"`
}

type ContextItem struct {
	// Type is "text" or "url"
	Type    string `json:"type" yaml:"type"`
	Title   string `json:"title" yaml:"title"`
	Content string `json:"content" yaml:"content"`
}
