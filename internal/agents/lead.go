package agents

import (
	"context"
	"log"
	"strings"

	"github.com/mohammad-safakhou/chimera/internal/capability"
	"github.com/mohammad-safakhou/chimera/internal/state"
	"github.com/mohammad-safakhou/chimera/internal/supervisor"
)

// LeadSource tags CRM records created by the assistant.
const LeadSource = "chimera_chatbot"

// Lead scores a contact with a BANT heuristic and prepares the CRM record.
type Lead struct {
	logger *log.Logger
}

func NewLead(d Deps) *Lead { return &Lead{logger: d.logger("[LEAD] ")} }

func (l *Lead) Name() capability.Agent { return capability.Lead }

func (l *Lead) Process(_ context.Context, view supervisor.View) (state.Update, error) {
	in := view.State.LeadView()
	if in.Entities.Email == "" {
		l.logger.Printf("no email yet, skipping qualification")
		return state.Update{}, nil
	}
	score := ScoreBANT(in.Entities, in.Messages)
	tier := Qualify(score)
	l.logger.Printf("score %d/100 (%s) for %s", score, tier, state.MaskEmail(in.Entities.Email))

	name := in.Entities.Name
	if name == "" {
		name = "Unknown"
	}
	return state.Update{
		LeadData:   &state.LeadData{Score: score, Qualification: tier},
		LeadStatus: state.Ptr(tier),
		CRMPayload: &state.CRMPayload{
			Email:         in.Entities.Email,
			Name:          name,
			Company:       in.Entities.Company,
			Phone:         in.Entities.Phone,
			Source:        LeadSource,
			LeadScore:     score,
			Qualification: tier,
		},
		AnalyticsEvents: []state.Event{state.NewEvent(EventLeadQualified, "qualification", tier, "score", score)},
	}, nil
}

// ScoreBANT rates budget, authority, need and timeline signals on a 0-100 scale.
func ScoreBANT(e state.Entities, messages []state.Message) int {
	parts := make([]string, len(messages))
	for i, m := range messages {
		parts[i] = m.Content
	}
	convo := strings.ToLower(strings.Join(parts, " "))

	score := 0
	if containsAny(convo, []string{"budget", "invest", "spend"}) {
		score += 20
	}
	if e.Company != "" {
		score += 10
	}
	if containsAny(convo, []string{"i need", "we need"}) {
		score += 15
	}
	if containsAny(convo, []string{"problem", "issue", "help"}) {
		score += 20
	}
	switch e.Timeline {
	case "urgent":
		score += 25
	case "near-term":
		score += 15
	}
	if e.Email != "" {
		score += 15
	}
	if e.Phone != "" {
		score += 10
	}
	return min(score, 100)
}

// Qualify maps a score to hot (>=75), warm (>=50) or cold.
func Qualify(score int) string {
	switch {
	case score >= 75:
		return "hot"
	case score >= 50:
		return "warm"
	default:
		return "cold"
	}
}
