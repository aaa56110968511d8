package agents

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/mohammad-safakhou/chimera/internal/capability"
	"github.com/mohammad-safakhou/chimera/internal/state"
	"github.com/mohammad-safakhou/chimera/internal/supervisor"
)

// Analytics summarises the session's event log into conversation metrics.
type Analytics struct {
	now    func() time.Time
	logger *log.Logger
}

func NewAnalytics(d Deps) *Analytics {
	return &Analytics{now: d.now, logger: d.logger("[ANALYTICS] ")}
}

func (a *Analytics) Name() capability.Agent { return capability.Analytics }

func (a *Analytics) Process(_ context.Context, view supervisor.View) (state.Update, error) {
	in := view.State.AnalyticsView()
	m := Summarize(in.SessionID, in.AnalyticsEvents, a.now().UTC())
	a.logger.Printf("session %s: %d events %v", m.SessionID, m.TotalEvents, m.EventTypes)
	return state.Update{ConversationMetrics: &m}, nil
}

// Summarize counts events and lists their distinct names in sorted order.
func Summarize(sessionID string, events []state.Event, at time.Time) state.Metrics {
	seen := make(map[string]struct{}, len(events))
	types := []string{}
	for _, ev := range events {
		if _, ok := seen[ev.Name]; ok {
			continue
		}
		seen[ev.Name] = struct{}{}
		types = append(types, ev.Name)
	}
	sort.Strings(types)
	return state.Metrics{SessionID: sessionID, TotalEvents: len(events), EventTypes: types, LoggedAt: at}
}
