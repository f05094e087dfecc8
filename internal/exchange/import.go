package exchange

import (
	"context"
	"fmt"
	"strings"

	"github.com/sozercan/cosilium/internal/agents"
)

// Validation lists problems as "path: message" entries. Errors block an
// import; warnings do not.
type Validation struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Summary  Summary  `json:"summary"`
}

// Summary counts the valid entries per section.
type Summary struct {
	Prompts int `json:"prompts"`
	Configs int `json:"configs"`
}

// Results reports what an import changed.
type Results struct {
	Prompts Counts `json:"prompts"`
	Configs Counts `json:"configs"`
}

type Counts struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
}

// PromptWriter stores prompt overrides.
type PromptWriter interface {
	SetPrompt(ctx context.Context, agentID, content string) error
}

func (v *Validation) errorf(path, format string, args ...any) {
	v.Errors = append(v.Errors, path+": "+fmt.Sprintf(format, args...))
}

func (v *Validation) warnf(path, format string, args ...any) {
	v.Warnings = append(v.Warnings, path+": "+fmt.Sprintf(format, args...))
}

// Validate checks doc without changing anything.
func Validate(doc *Document) Validation {
	v := Validation{Errors: []string{}, Warnings: []string{}}

	switch {
	case doc.Version == "":
		v.warnf("version", "missing, assuming %s", Version)
	case doc.Version != Version:
		v.errorf("version", "unsupported version %q", doc.Version)
	}

	if doc.Type != "" && !ValidType(doc.Type) {
		v.errorf("type", "unsupported type %q", doc.Type)
	}

	for i, p := range doc.Data.Prompts {
		path := fmt.Sprintf("data.prompts[%d]", i)
		ok := checkAgent(&v, path, p.AgentID)
		if p.PromptType != "" && p.PromptType != PromptTypeSystem {
			v.errorf(path+".prompt_type", "unsupported prompt type %q", p.PromptType)
			ok = false
		}
		if strings.TrimSpace(p.Content) == "" {
			v.errorf(path+".content", "must not be blank")
			ok = false
		}
		if ok {
			v.Summary.Prompts++
		}
	}

	for i, c := range doc.Data.AgentConfigs {
		path := fmt.Sprintf("data.agent_configs[%d]", i)
		ok := checkAgent(&v, path, c.AgentID)
		if strings.TrimSpace(c.Model) == "" {
			v.errorf(path+".model", "is required")
			ok = false
		}
		if c.Temperature < 0 || c.Temperature > 2 {
			v.errorf(path+".temperature", "must be within [0, 2], got %g", c.Temperature)
			ok = false
		}
		if c.MaxTokens < 0 {
			v.errorf(path+".max_tokens", "must not be negative")
			ok = false
		}
		if ok {
			v.Summary.Configs++
		}
	}

	if len(doc.Data.Prompts) == 0 && len(doc.Data.AgentConfigs) == 0 {
		v.warnf("data", "document is empty")
	}

	v.Valid = len(v.Errors) == 0
	return v
}

func checkAgent(v *Validation, path, agentID string) bool {
	if agentID == "" {
		v.errorf(path+".agent_id", "is required")
		return false
	}
	if _, ok := agents.LookupProfile(agentID); !ok {
		v.errorf(path+".agent_id", "unknown agent %q", agentID)
		return false
	}
	return true
}

// Apply stores the prompt overrides of a validated document. Agent configs
// come from the configuration file and are only counted as skipped.
func Apply(ctx context.Context, doc *Document, w PromptWriter) (Results, error) {
	var res Results
	for _, p := range doc.Data.Prompts {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := w.SetPrompt(ctx, p.AgentID, p.Content); err != nil {
			res.Prompts.Errors++
			continue
		}
		res.Prompts.Imported++
	}
	res.Configs.Skipped = len(doc.Data.AgentConfigs)
	return res, nil
}
