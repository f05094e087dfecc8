package analyzer

import (
	"fmt"
	"math"

	"github.com/sozercan/cosilium/apimodels"
)

// Synthesize builds the consensus block. Only ConsensusLevel is derived from
// the analyses (the mean confidence); the text is a fixed template that
// interpolates the task and that mean. It does not reconcile agent content.
func Synthesize(analyses []apimodels.AgentAnalysis, task string) apimodels.SynthesisResult {
	consensus := ConsensusLevel(analyses)

	summary := fmt.Sprintf(`Comprehensive analysis of "%s..." completed by %d independent agents.

Overall consensus: %d%%

**Key findings**:
The agents agree that the task needs a structured approach with clear implementation stages. Potential risks were identified that can be mitigated with proper planning.

**Recommended path**: a hybrid approach with agile elements that adapts to change along the way.`,
		firstRunes(task, 50), len(analyses), int(math.Round(consensus*100)))

	return apimodels.SynthesisResult{
		Summary: summary,
		Conclusions: []apimodels.Conclusion{
			{
				Conclusion:             "The task is achievable within the given scope with 75-85% probability",
				Probability:            "80%",
				FalsificationCondition: "Critical technical constraints are discovered",
			},
			{
				Conclusion:             "A phased approach with checkpoints is recommended",
				Probability:            "90%",
				FalsificationCondition: "Single-batch delivery is required",
			},
			{
				Conclusion:             "ROI is positive if the timeline holds",
				Probability:            "75%",
				FalsificationCondition: "The timeline overruns the estimate by more than 50%",
			},
		},
		Recommendations: []apimodels.Recommendation{
			{
				Option:      "Hybrid approach",
				Description: "Waterfall planning combined with agile iterations for maximum flexibility",
				Pros:        []string{"Flexibility", "Control", "Adaptability"},
				Cons:        []string{"Requires experience", "Harder to manage"},
				Score:       8.5,
			},
			{
				Option:      "Phased delivery",
				Description: "The classic approach with clear stages and milestones",
				Pros:        []string{"Easy to manage", "Clear boundaries", "Predictability"},
				Cons:        []string{"Low flexibility", "Long feedback loop"},
				Score:       7.2,
			},
			{
				Option:      "MVP + iterations",
				Description: "Ship a minimal product quickly and improve it iteratively",
				Pros:        []string{"Fast start", "Early feedback", "Low upfront risk"},
				Cons:        []string{"Technical debt", "Likely refactoring"},
				Score:       7.8,
			},
		},
		ConsensusLevel: consensus,
	}
}

// ConsensusLevel is the mean confidence of the analyses, 0 when there are none.
func ConsensusLevel(analyses []apimodels.AgentAnalysis) float64 {
	if len(analyses) == 0 {
		return 0
	}
	var sum float64
	for _, a := range analyses {
		sum += a.Confidence
	}
	return sum / float64(len(analyses))
}
