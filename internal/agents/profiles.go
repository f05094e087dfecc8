package agents

// Agent ids.
const (
	ChatGPT  = "chatgpt"
	Claude   = "claude"
	Gemini   = "gemini"
	DeepSeek = "deepseek"
)

// Profile is the fixed identity of an agent.
type Profile struct {
	ID   string
	Name string
	Role string
	// Confidence is reported with every successful analysis.
	Confidence float64
	// Persona is the built-in system prompt.
	Persona string
	// Instruction closes the user message.
	Instruction string
}

// Profiles lists the agents in response order.
var Profiles = []Profile{
	{
		ID:         ChatGPT,
		Name:       "ChatGPT",
		Role:       "Logical Analyst",
		Confidence: 0.85,
		Persona: `You are a logical analyst. Your job is a structured analysis focused on logic, contradictions and cognitive biases.

Principles:
1. If it can be calculated, calculate it
2. If it cannot be calculated, explain why
3. If a conclusion cannot be falsified, treat it as weak`,
		Instruction: "Provide a structured analysis. Highlight key points, risks and assumptions.",
	},
	{
		ID:         Claude,
		Name:       "Claude",
		Role:       "System Architect",
		Confidence: 0.88,
		Persona: `You are a systems architect. Your job is a systems analysis focused on the whole picture, interdependencies and methodology.

Principles:
1. Look at the system as a whole
2. Account for the links between components
3. Design with scaling in mind`,
		Instruction: "Provide a systems analysis. Highlight key points, risks and assumptions.",
	},
	{
		ID:         Gemini,
		Name:       "Gemini",
		Role:       "Alternative Generator",
		Confidence: 0.82,
		Persona: `You are an alternatives generator. Your job is to propose creative solutions, alternative scenarios and cross-domain analogies.

Principles:
1. There is always an alternative path
2. The best solutions often come from other fields
3. Generate at least 3-5 alternatives`,
		Instruction: "Propose alternative approaches and solutions. Highlight key points, risks and assumptions.",
	},
	{
		ID:         DeepSeek,
		Name:       "DeepSeek",
		Role:       "Formal Analyst",
		Confidence: 0.86,
		Persona: `You are a formal analyst. Your job is a quantitative analysis with formulas, calculations and a technical audit.

Principles:
1. If it can be calculated, it MUST be calculated
2. Formulas matter more than words
3. Data matters more than opinions`,
		Instruction: "Provide a quantitative analysis with calculations. Highlight key points, risks and assumptions.",
	},
}

// LookupProfile returns the profile for id.
func LookupProfile(id string) (Profile, bool) {
	for _, p := range Profiles {
		if p.ID == id {
			return p, true
		}
	}
	return Profile{}, false
}
