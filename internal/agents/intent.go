package agents

import (
	"strings"

	"github.com/mohammad-safakhou/chimera/internal/state"
)

// Confidence is the fixed confidence attached to every classified intent.
const Confidence = 0.85

var (
	contactKeywords = []string{"email me", "send me", "contact me", "reach out", "call me", "phone me", "get in touch", "@"}
	demoKeywords    = []string{"demo", "demonstration", "meeting", "schedule", "call", "appointment", "book", "talk to", "see it in action", "live version", "preview"}
	pricingKeywords = []string{"price", "pricing", "cost", "how much", "pay", "payment", "plan", "$", "fee", "investment", "budget", "rate", "charge"}
)

// ClassifyIntent maps a message to an intent by keyword, checking contact,
// demo and pricing in that order and defaulting to question.
func ClassifyIntent(message string) state.Intent {
	lower := strings.ToLower(message)
	switch {
	case containsAny(lower, contactKeywords):
		return state.IntentContact
	case containsAny(lower, demoKeywords):
		return state.IntentDemo
	case containsAny(lower, pricingKeywords):
		return state.IntentPricing
	default:
		return state.IntentQuestion
	}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
