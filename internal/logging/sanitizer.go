package logging

import "regexp"

const redacted = "[REDACTED]"

// Sanitizer redacts credentials from log text.
type Sanitizer struct {
	patterns []*regexp.Regexp
}

func NewSanitizer() *Sanitizer {
	patterns := []string{
		// Anthropic, before the generic OpenAI pattern
		`sk-ant-[a-zA-Z0-9_-]{20,}`,
		// OpenAI and DeepSeek
		`sk-[A-Za-z0-9_-]{20,}`,
		// Google AI
		`AIza[a-zA-Z0-9_-]{35}`,
		// Google key in a query string
		`([?&]key=)[^&\s"']+`,
		`(?i)bearer\s+[a-zA-Z0-9._-]{20,}`,
		`(?i)x-api-key["'\s:=]+[a-zA-Z0-9_-]{20,}`,
		`(?i)api[_-]?key["'\s:=]+[a-zA-Z0-9_-]{20,}`,
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return &Sanitizer{patterns: compiled}
}

// Sanitize redacts credentials in s.
func (s *Sanitizer) Sanitize(input string) string {
	result := input
	for _, pattern := range s.patterns {
		if pattern.NumSubexp() > 0 {
			result = pattern.ReplaceAllString(result, "${1}"+redacted)
			continue
		}
		result = pattern.ReplaceAllString(result, redacted)
	}
	return result
}
