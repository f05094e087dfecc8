package analyzer

import (
	"fmt"

	"github.com/sozercan/cosilium/apimodels"
	"github.com/sozercan/cosilium/internal/agents"
)

// MockAnalyses returns the canned demo set, one analysis per agent. Costs and
// token counts are fixed, not computed.
func MockAnalyses(task, taskType string) []apimodels.AgentAnalysis {
	base := fmt.Sprintf(`Task analysis: "%s..."

**Context**: analysis type is %s

**Key observations**:
1. The task needs a comprehensive approach that weighs many factors
2. There are both obvious and hidden risks
3. Time and resource constraints must be taken into account

**Analysis**:
Several aspects matter here. First, define the main goals and success criteria. Second, assess the available resources and constraints.

**Conclusions**:
A phased approach with regular review of intermediate results is recommended.`, firstRunes(task, 100), taskType)

	return []apimodels.AgentAnalysis{
		{
			AgentName:  "ChatGPT",
			AgentID:    agents.ChatGPT,
			Confidence: 0.85,
			Analysis:   base + "\n\n**Logical analysis**:\nFrom a logical standpoint the task holds several potential contradictions that must be resolved before a decision is made.",
			KeyPoints: []string{
				"The task needs a structured approach",
				"Potential logical contradictions were found",
				"The assumptions need further validation",
			},
			Risks: []string{
				"Underestimating implementation complexity",
				"Possible hidden dependencies",
			},
			Assumptions: []string{
				"The required resources are available",
				"The timeline is realistic",
			},
			Duration:         2500,
			Tokens:           1250,
			PromptTokens:     450,
			CompletionTokens: 800,
			Cost:             0.0125,
			Model:            "gpt-4o",
		},
		{
			AgentName:  "Claude",
			AgentID:    agents.Claude,
			Confidence: 0.88,
			Analysis:   base + "\n\n**Systems analysis**:\nSeen as a system, the task splits into several interrelated components that influence each other.",
			KeyPoints: []string{
				"The systems view revealed the key interdependencies",
				"The solution architecture should be modular",
				"Integration with existing processes matters",
			},
			Risks: []string{
				"Complexity of integrating the components",
				"Potential bottlenecks in the architecture",
			},
			Assumptions: []string{
				"The existing infrastructure supports the solution",
				"The team has the required skills",
			},
			Duration:         3200,
			Tokens:           1480,
			PromptTokens:     520,
			CompletionTokens: 960,
			Cost:             0.022,
			Model:            "claude-3-5-sonnet-20241022",
		},
		{
			AgentName:  "Gemini",
			AgentID:    agents.Gemini,
			Confidence: 0.82,
			Analysis:   base + "\n\n**Alternative approaches**:\n1. A traditional phased approach\n2. Agile with short iterations\n3. A hybrid combining both",
			KeyPoints: []string{
				"There are at least 3 alternative approaches",
				"Each approach has its own trade-offs",
				"A hybrid solution is recommended",
			},
			Risks: []string{
				"Choosing a suboptimal approach",
				"Resistance to change",
			},
			Assumptions: []string{
				"The methodology can be chosen freely",
				"The team is open to experiments",
			},
			Duration:         2100,
			Tokens:           980,
			PromptTokens:     380,
			CompletionTokens: 600,
			Cost:             0.005,
			Model:            "gemini-2.0-flash",
		},
		{
			AgentName:  "DeepSeek",
			AgentID:    agents.DeepSeek,
			Confidence: 0.86,
			Analysis:   base + "\n\n**Quantitative analysis**:\n- Effort estimate: 120-180 person-hours\n- ROI forecast: 150-200% over 12 months\n- Probability of success: 75-85%",
			KeyPoints: []string{
				"A cost estimate was calculated",
				"ROI is positive if the timeline holds",
				"The probability of success is above average",
			},
			Risks: []string{
				"Budget overrun of 20-30%",
				"Schedule slip of 2-4 weeks",
			},
			Assumptions: []string{
				"The input data for the estimates is current",
				"There are no hidden costs",
			},
			Duration:         1800,
			Tokens:           850,
			PromptTokens:     330,
			CompletionTokens: 520,
			Cost:             0.0017,
			Model:            "deepseek-chat",
		},
	}
}

// firstRunes returns at most n runes of s.
func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
