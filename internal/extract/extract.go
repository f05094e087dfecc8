// Package extract pulls short bullet-style summaries out of free-form model output.
// The heuristics are best-effort: they feed UI summary fields, not decisions.
package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxKeyPoints   = 5
	maxFallback    = 3
	maxRisks       = 3
	maxAssumptions = 3

	minLineLen     = 20
	minCleanedLen  = 10
	minSentenceLen = 20
)

var (
	keyPointCue   = regexp.MustCompile(`(?i)ключев|key point|важн|основн`)
	riskCue       = regexp.MustCompile(`(?i)риск|угроз|опасн|risk|threat|danger`)
	assumptionCue = regexp.MustCompile(`(?i)допущен|предполож|assumption|assume|если|при условии`)

	bulletLine   = regexp.MustCompile(`^[-•*]\s+(.+)`)
	numberedLine = regexp.MustCompile(`^[0-9]+[.)]\s+(.+)`)
	bulletPrefix = regexp.MustCompile(`^[-•*]\s+`)
	numberPrefix = regexp.MustCompile(`^[0-9]+[.)]\s+`)
	listMarker   = regexp.MustCompile(`^[-•*0-9.)]+\s*`)

	sentenceSplit = regexp.MustCompile(`[.!?]+`)
)

// KeyPoints returns up to five list items that follow a "key points"-style heading.
// When no such section exists it falls back to the first three long sentences.
func KeyPoints(text string) []string {
	var points []string
	inSection := false

	for _, line := range strings.Split(text, "\n") {
		if keyPointCue.MatchString(line) {
			inSection = true
			continue
		}
		if inSection && bulletLine.MatchString(line) {
			points = append(points, strings.TrimSpace(bulletPrefix.ReplaceAllString(line, "")))
			if len(points) >= maxKeyPoints {
				break
			}
		}
		if inSection && numberedLine.MatchString(line) {
			points = append(points, strings.TrimSpace(numberPrefix.ReplaceAllString(line, "")))
			if len(points) >= maxKeyPoints {
				break
			}
		}
		if len(points) > 0 && strings.TrimSpace(line) == "" {
			inSection = false
		}
	}

	if len(points) == 0 {
		return firstSentences(text, maxFallback)
	}
	return points
}

// Risks returns up to three lines mentioning risks, threats or dangers.
func Risks(text string) []string {
	return scanLines(text, riskCue, maxRisks)
}

// Assumptions returns up to three lines stating assumptions or preconditions.
func Assumptions(text string) []string {
	return scanLines(text, assumptionCue, maxAssumptions)
}

func scanLines(text string, cue *regexp.Regexp, limit int) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if !cue.MatchString(line) || utf8.RuneCountInString(line) <= minLineLen {
			continue
		}
		cleaned := strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		if utf8.RuneCountInString(cleaned) <= minCleanedLen {
			continue
		}
		out = append(out, cleaned)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func firstSentences(text string, n int) []string {
	var out []string
	for _, s := range sentenceSplit.Split(text, -1) {
		s = strings.TrimSpace(s)
		if utf8.RuneCountInString(s) <= minSentenceLen {
			continue
		}
		out = append(out, s)
		if len(out) == n {
			break
		}
	}
	return out
}
