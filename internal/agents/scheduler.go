package agents

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/mohammad-safakhou/chimera/config"
	"github.com/mohammad-safakhou/chimera/internal/capability"
	"github.com/mohammad-safakhou/chimera/internal/state"
	"github.com/mohammad-safakhou/chimera/internal/supervisor"
)

const (
	introUrgent  = "I see you need a demo soon! Here are my earliest times:"
	introDefault = "I'd be happy to schedule a demo! Here are available times:"
	slotsClosing = "Which time works best? Reply with the number (1, 2, 3, etc.)."
)

// Scheduler proposes demo slots from a cron availability expression.
type Scheduler struct {
	expr   *cronexpr.Expression
	cfg    config.SchedulerConfig
	loc    *time.Location
	now    func() time.Time
	logger *log.Logger
}

func NewScheduler(d Deps) (*Scheduler, error) {
	cfg := d.Scheduler.Normalize()
	expr, err := cronexpr.Parse(cfg.Availability)
	if err != nil {
		return nil, fmt.Errorf("availability %q: %w", cfg.Availability, err)
	}
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("time zone %q: %w", cfg.TimeZone, err)
	}
	return &Scheduler{expr: expr, cfg: cfg, loc: loc, now: d.now, logger: d.logger("[SCHEDULER] ")}, nil
}

func (s *Scheduler) Name() capability.Agent { return capability.Scheduler }

func (s *Scheduler) Process(_ context.Context, view supervisor.View) (state.Update, error) {
	in := view.State.SchedulerView()
	slots := s.Slots(s.now())
	if len(slots) == 0 {
		s.logger.Printf("no availability in the next %d days", s.cfg.HorizonDays)
		return state.Update{}, nil
	}
	intro := introDefault
	if in.Entities.Timeline == "urgent" {
		intro = introUrgent
	}
	reply := intro + "\n\n" + FormatSlots(slots) + "\n\n" + slotsClosing
	s.logger.Printf("offering %d slots", len(slots))
	return state.Update{
		MeetingSlots:     slots,
		ProvisionalReply: state.Ptr(reply),
		AnalyticsEvents:  []state.Event{state.NewEvent(EventDemoSlotsShown, "slots_count", len(slots))},
	}, nil
}

// Slots lists availability from the start of tomorrow up to the horizon.
func (s *Scheduler) Slots(now time.Time) []state.MeetingSlot {
	now = now.In(s.loc)
	start := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, s.loc)
	end := start.AddDate(0, 0, s.cfg.HorizonDays)

	var out []state.MeetingSlot
	// Next is exclusive, so step back one second to include midnight itself.
	for t := s.expr.Next(start.Add(-time.Second)); !t.IsZero() && t.Before(end); t = s.expr.Next(t) {
		out = append(out, state.MeetingSlot{
			ID:       fmt.Sprintf("slot_%d", len(out)+1),
			Start:    t,
			Display:  t.Format("Monday, January 02 at 3:04 PM"),
			Duration: s.cfg.DurationMinutes,
		})
		if len(out) >= s.cfg.MaxSlots {
			break
		}
	}
	return out
}

// FormatSlots renders numbered slot lines for the reply.
func FormatSlots(slots []state.MeetingSlot) string {
	lines := make([]string, len(slots))
	for i, sl := range slots {
		lines[i] = fmt.Sprintf("%d. %s (%d min)", i+1, sl.Display, sl.Duration)
	}
	return strings.Join(lines, "\n")
}
