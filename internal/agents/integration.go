package agents

import (
	"context"
	"log"

	"github.com/mohammad-safakhou/chimera/internal/capability"
	"github.com/mohammad-safakhou/chimera/internal/crm"
	"github.com/mohammad-safakhou/chimera/internal/state"
	"github.com/mohammad-safakhou/chimera/internal/supervisor"
)

// Integration pushes qualified leads to the CRM. Delivery failures become
// analytics events, never errors.
type Integration struct {
	crm    crm.Pusher
	logger *log.Logger
}

func NewIntegration(d Deps) *Integration {
	return &Integration{crm: d.CRM, logger: d.logger("[INTEGRATION] ")}
}

func (i *Integration) Name() capability.Agent { return capability.Integration }

func (i *Integration) Process(ctx context.Context, view supervisor.View) (state.Update, error) {
	in := view.State.IntegrationView()
	events := []state.Event{}
	if p := in.CRMPayload; p != nil {
		if err := i.push(ctx, *p); err != nil {
			i.logger.Printf("crm push for %s failed: %v", state.MaskEmail(p.Email), err)
			events = append(events, state.NewEvent(EventCRMSyncFailed))
		} else {
			events = append(events, state.NewEvent(EventCRMSyncSuccess, "email", p.Email))
		}
	}
	if len(in.MeetingSlots) > 0 {
		events = append(events, state.NewEvent(EventCalendarDeferred, "slots_count", len(in.MeetingSlots)))
	}
	if len(events) == 0 {
		return state.Update{}, nil
	}
	return state.Update{AnalyticsEvents: events}, nil
}

func (i *Integration) push(ctx context.Context, p state.CRMPayload) error {
	if i.crm == nil {
		i.logger.Printf("no crm client, dropping payload for %s", state.MaskEmail(p.Email))
		return nil
	}
	return i.crm.Push(ctx, p)
}
