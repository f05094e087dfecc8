package llm

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const maxErrorBody = 200

// StatusError is returned when a provider answers with a non-2xx status.
type StatusError struct {
	Provider   string
	StatusCode int
	// Body is the start of the response body.
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

func newStatusError(provider string, status int, body []byte) *StatusError {
	return &StatusError{
		Provider:   provider,
		StatusCode: status,
		Body:       truncate(strings.TrimSpace(string(body)), maxErrorBody),
	}
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
