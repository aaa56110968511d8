package agents

import (
	"regexp"
	"strings"

	"github.com/mohammad-safakhou/chimera/internal/state"
)

var (
	reEmail     = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`)
	reCompanies = []*regexp.Regexp{
		regexp.MustCompile(`(?:at|from|work at)\s+([A-Z][a-zA-Z\s]+(?:Corp|Inc|LLC|Ltd|Company))`),
		regexp.MustCompile(`([A-Z][a-z]+\s+(?:Corp|Inc|LLC|Ltd))`),
	}
	// Only the lead-in is case-insensitive; names must be capitalised.
	reName  = regexp.MustCompile(`(?i:my name is|i'm|i am)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`)
	rePhone = regexp.MustCompile(`\b\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`)

	urgentWords   = []string{"asap", "urgent", "immediately"}
	nearTermWords = []string{"next week", "next month"}
)

// ExtractEntities scans the whole conversation for contact details and timeline hints.
func ExtractEntities(messages []state.Message) state.Entities {
	parts := make([]string, len(messages))
	for i, m := range messages {
		parts[i] = m.Content
	}
	text := strings.Join(parts, " ")

	var e state.Entities
	e.Email = reEmail.FindString(text)
	for _, re := range reCompanies {
		if m := re.FindStringSubmatch(text); m != nil {
			e.Company = strings.TrimSpace(m[1])
			break
		}
	}
	if m := reName.FindStringSubmatch(text); m != nil {
		e.Name = strings.TrimSpace(m[1])
	}
	e.Phone = rePhone.FindString(text)

	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, urgentWords):
		e.Timeline = "urgent"
	case containsAny(lower, nearTermWords):
		e.Timeline = "near-term"
	}
	return e
}
