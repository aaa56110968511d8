// Package agents holds the specialist collaborators the supervisor routes a
// turn through. Each one reads only its typed view of the state and returns a
// partial update.
package agents

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/mohammad-safakhou/chimera/config"
	"github.com/mohammad-safakhou/chimera/internal/crm"
	"github.com/mohammad-safakhou/chimera/internal/knowledge"
	"github.com/mohammad-safakhou/chimera/internal/llm"
	"github.com/mohammad-safakhou/chimera/internal/supervisor"
)

// Analytics event names.
const (
	EventMessageReceived  = "message_received"
	EventLeadQualified    = "lead_qualified"
	EventDemoSlotsShown   = "demo_slots_shown"
	EventComplianceIssue  = "compliance_issue_detected"
	EventCRMSyncSuccess   = "crm_sync_success"
	EventCRMSyncFailed    = "crm_sync_failed"
	EventCalendarDeferred = "calendar_booking_deferred"
)

// Deps are the collaborators' external dependencies. Nil Knowledge or Model
// degrade gracefully; a nil CRM logs the payload instead of sending it.
type Deps struct {
	Knowledge knowledge.Searcher
	Model     llm.ChatModel
	CRM       crm.Pusher
	LLM       config.LLMConfig
	Scheduler config.SchedulerConfig
	Output    io.Writer
	Now       func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Deps) logger(prefix string) *log.Logger {
	out := d.Output
	if out == nil {
		out = os.Stdout
	}
	return log.New(out, prefix, log.LstdFlags)
}

// All builds every collaborator in registry order.
func All(d Deps) ([]supervisor.Agent, error) {
	sched, err := NewScheduler(d)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	if d.CRM == nil {
		d.CRM = crm.New(config.CRMConfig{}, d.logger("[CRM] "))
	}
	return []supervisor.Agent{
		NewConversation(d),
		NewLead(d),
		sched,
		NewStylist(d),
		NewCompliance(d),
		NewIntegration(d),
		NewAnalytics(d),
	}, nil
}
