// Package cost estimates the USD price of a provider call from its token usage.
package cost

import "strings"

// Pricing is the price per one million tokens.
type Pricing struct {
	Input  float64
	Output float64
}

// Prices per 1M tokens as published by the providers.
var prices = map[string]Pricing{
	// OpenAI
	"gpt-4o":      {Input: 2.50, Output: 10.00},
	"gpt-4o-mini": {Input: 0.15, Output: 0.60},
	"gpt-4.1":     {Input: 2.00, Output: 8.00},
	"gpt-4-turbo": {Input: 10.00, Output: 30.00},

	// Anthropic
	"claude-3-5-sonnet-20241022": {Input: 3.00, Output: 15.00},
	"claude-3-5-haiku-20241022":  {Input: 0.80, Output: 4.00},
	"claude-3-haiku-20240307":    {Input: 0.25, Output: 1.25},
	"claude-sonnet-4-20250514":   {Input: 3.00, Output: 15.00},

	// Google
	"gemini-2.0-flash": {Input: 0.10, Output: 0.40},
	"gemini-2.5-flash": {Input: 0.30, Output: 2.50},
	"gemini-2.5-pro":   {Input: 1.25, Output: 10.00},

	// DeepSeek
	"deepseek-chat":     {Input: 0.14, Output: 0.28},
	"deepseek-reasoner": {Input: 0.55, Output: 2.19},
}

// Lookup returns the pricing for model. Versioned identifiers such as
// "gpt-4o-2024-08-06" resolve to the longest known prefix.
func Lookup(model string) (Pricing, bool) {
	model = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(model)), "models/")
	if p, ok := prices[model]; ok {
		return p, true
	}

	var (
		best    Pricing
		bestLen int
	)
	for name, p := range prices {
		if strings.HasPrefix(model, name) && len(name) > bestLen {
			best, bestLen = p, len(name)
		}
	}
	return best, bestLen > 0
}

// Calculate returns the cost in USD. Unknown models cost nothing and
// negative token counts are treated as zero.
func Calculate(model string, promptTokens, completionTokens int64) float64 {
	p, ok := Lookup(model)
	if !ok {
		return 0
	}
	promptTokens = max(promptTokens, 0)
	completionTokens = max(completionTokens, 0)

	return (float64(promptTokens)*p.Input + float64(completionTokens)*p.Output) / 1_000_000
}
