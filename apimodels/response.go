package apimodels

// Response modes.
const (
	ModeLive = "live"
	ModeDemo = "demo"
)

type AnalysisResponse struct {
	// One entry per agent that answered
	Analyses []AgentAnalysis `json:"analyses"`

	Synthesis SynthesisResult `json:"synthesis"`

	// Iterations echoes the requested max_iterations
	Iterations int `json:"iterations"`

	// Mode is "live" when real providers answered, "demo" for the canned set
	Mode string `json:"mode"`

	Metrics AnalysisMetrics `json:"metrics"`

	SessionID string `json:"session_id"`
}

type AgentAnalysis struct {
	AgentName   string   `json:"agent_name"`
	AgentID     string   `json:"agent_id"`
	Confidence  float64  `json:"confidence"`
	Analysis    string   `json:"analysis"`
	KeyPoints   []string `json:"key_points"`
	Risks       []string `json:"risks"`
	Assumptions []string `json:"assumptions"`

	// Duration of the provider call in milliseconds
	Duration int64 `json:"duration"`

	// Tokens is the total token count
	Tokens           int64 `json:"tokens"`
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`

	// Cost in USD
	Cost  float64 `json:"cost"`
	Model string  `json:"model"`
}

type SynthesisResult struct {
	Summary         string           `json:"summary"`
	Conclusions     []Conclusion     `json:"conclusions"`
	Recommendations []Recommendation `json:"recommendations"`

	// ConsensusLevel is the mean agent confidence in [0, 1]
	ConsensusLevel float64 `json:"consensus_level"`
}

type Conclusion struct {
	Conclusion string `json:"conclusion"`
	// Probability label, e.g. "80%"
	Probability            string `json:"probability"`
	FalsificationCondition string `json:"falsification_condition"`
}

type Recommendation struct {
	Option      string   `json:"option"`
	Description string   `json:"description"`
	Pros        []string `json:"pros"`
	Cons        []string `json:"cons"`
	// Score from 0 to 10
	Score float64 `json:"score"`
}

type AnalysisMetrics struct {
	TotalTokens     int64   `json:"total_tokens"`
	TotalCost       float64 `json:"total_cost"`
	DurationMS      int64   `json:"duration_ms"`
	AgentsSucceeded int     `json:"agents_succeeded"`
	AgentsFailed    int     `json:"agents_failed"`
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
