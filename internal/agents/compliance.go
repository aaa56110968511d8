package agents

import (
	"context"
	"log"
	"regexp"
	"strings"

	"github.com/mohammad-safakhou/chimera/internal/capability"
	"github.com/mohammad-safakhou/chimera/internal/helpers"
	"github.com/mohammad-safakhou/chimera/internal/state"
	"github.com/mohammad-safakhou/chimera/internal/supervisor"
)

// Compliance flags.
const (
	FlagMarkupRemoved      = "markup_removed"
	FlagSSNRemoved         = "ssn_removed"
	FlagCreditCardRemoved  = "credit_card_removed"
	FlagPasswordRemoved    = "password_removed"
	FlagProfanityFiltered  = "profanity_filtered"
	SeverityCritical       = "critical"
	SeverityMedium         = "medium"
	redactedMarker         = "[REDACTED]"
	passwordRedactedMarker = "[PASSWORD REDACTED]"
)

var (
	ssnPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
		regexp.MustCompile(`\b\d{9}\b`),
		regexp.MustCompile(`\b\d{3}\s\d{2}\s\d{4}\b`),
	}
	creditCardPattern = regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`)
	passwordPatterns  = []*regexp.Regexp{
		regexp.MustCompile(`(?i)password\s*[:=]\s*\S+`),
		regexp.MustCompile(`(?i)pwd\s*[:=]\s*\S+`),
	}
	profanity = compileWords("badword1", "badword2")
)

func compileWords(words ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(words))
	for i, w := range words {
		out[i] = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(w))
	}
	return out
}

// Compliance redacts sensitive data and markup from the outgoing reply.
type Compliance struct {
	logger *log.Logger
}

func NewCompliance(d Deps) *Compliance { return &Compliance{logger: d.logger("[COMPLIANCE] ")} }

func (c *Compliance) Name() capability.Agent { return capability.Compliance }

func (c *Compliance) Process(_ context.Context, view supervisor.View) (state.Update, error) {
	out, flags := Scrub(view.State.ComplianceView().SanitizedOutput)
	u := state.Update{SanitizedOutput: state.Ptr(out), ComplianceFlags: flags}
	if len(flags) > 0 {
		severity := SeverityMedium
		if containsFlag(flags, FlagSSNRemoved) {
			severity = SeverityCritical
		}
		c.logger.Printf("issues found: %s (%s)", strings.Join(flags, ", "), severity)
		u.AnalyticsEvents = []state.Event{state.NewEvent(EventComplianceIssue, "flags", flags, "severity", severity)}
	}
	return u, nil
}

// Scrub applies every redaction rule in order and returns the cleaned text
// with the de-duplicated flags raised.
func Scrub(text string) (string, []string) {
	flags := []string{}
	raise := func(f string) {
		if !containsFlag(flags, f) {
			flags = append(flags, f)
		}
	}

	if plain := helpers.PlainText(text); plain != strings.TrimSpace(text) {
		text = plain
		raise(FlagMarkupRemoved)
	}
	for _, re := range ssnPatterns {
		if re.MatchString(text) {
			text = re.ReplaceAllLiteralString(text, redactedMarker)
			raise(FlagSSNRemoved)
		}
	}
	if creditCardPattern.MatchString(text) {
		text = creditCardPattern.ReplaceAllLiteralString(text, redactedMarker)
		raise(FlagCreditCardRemoved)
	}
	for _, re := range passwordPatterns {
		if re.MatchString(text) {
			text = re.ReplaceAllLiteralString(text, passwordRedactedMarker)
			raise(FlagPasswordRemoved)
		}
	}
	for _, re := range profanity {
		if re.MatchString(text) {
			text = re.ReplaceAllLiteralString(text, "***")
			raise(FlagProfanityFiltered)
		}
	}
	return text, flags
}

func containsFlag(flags []string, f string) bool {
	for _, x := range flags {
		if x == f {
			return true
		}
	}
	return false
}
