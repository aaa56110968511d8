package supervisor

import (
	"context"
	"log"
	"os"

	"github.com/mohammad-safakhou/chimera/internal/audit"
	"github.com/mohammad-safakhou/chimera/internal/capability"
	"github.com/mohammad-safakhou/chimera/internal/state"
)

// Decision is the verdict for one attempted field write.
type Decision struct {
	Field   state.Field
	Allowed bool
}

// MergeReport describes what one merge applied and what it blocked.
type MergeReport struct {
	Agent     capability.Agent
	Decisions []Decision
	Merged    int
	Blocked   int
}

// BlockedFields lists the fields the agent tried but was not allowed to write.
func (r MergeReport) BlockedFields() []state.Field {
	var out []state.Field
	for _, d := range r.Decisions {
		if !d.Allowed {
			out = append(out, d.Field)
		}
	}
	return out
}

// Apply merges u into a copy of s, keeping only the fields agent may write.
// analytics_events is appended rather than replaced. s is never modified; on
// error the returned state equals s.
func Apply(registry *capability.Registry, s state.State, agent capability.Agent, u state.Update) (state.State, MergeReport, error) {
	writable, err := registry.Writable(agent)
	if err != nil {
		return s, MergeReport{Agent: agent}, err
	}
	out := s.Clone()
	report := MergeReport{Agent: agent}
	for _, f := range u.Fields() {
		if !writable.Has(f) {
			report.Decisions = append(report.Decisions, Decision{Field: f, Allowed: false})
			report.Blocked++
			continue
		}
		if f == state.FieldAnalyticsEvents {
			out.AppendEvents(u.AnalyticsEvents...)
		} else {
			u.Assign(&out, f)
		}
		report.Decisions = append(report.Decisions, Decision{Field: f, Allowed: true})
		report.Merged++
	}
	return out, report, nil
}

// Merger applies updates and records every merge and blocked write.
type Merger struct {
	registry *capability.Registry
	sink     audit.Sink
	logger   *log.Logger
}

func NewMerger(registry *capability.Registry, sink audit.Sink, logger *log.Logger) *Merger {
	if registry == nil {
		registry = capability.Default()
	}
	if sink == nil {
		sink = audit.Discard{}
	}
	if logger == nil {
		logger = log.New(os.Stdout, "[SUPERVISOR] ", log.LstdFlags)
	}
	return &Merger{registry: registry, sink: sink, logger: logger}
}

// Merge applies u on behalf of agent. An unknown agent leaves s unchanged.
func (m *Merger) Merge(ctx context.Context, s state.State, agent capability.Agent, u state.Update) (state.State, MergeReport, error) {
	out, report, err := Apply(m.registry, s, agent, u)
	if err != nil {
		return s, report, err
	}
	for _, f := range report.BlockedFields() {
		m.logger.Printf("blocked write: agent %s attempted %s for session %s", agent, f, s.SessionID)
	}
	decisions := make([]audit.Decision, len(report.Decisions))
	for i, d := range report.Decisions {
		decisions[i] = audit.Decision{Field: string(d.Field), Allowed: d.Allowed}
	}
	m.sink.Record(ctx, audit.Record{
		Kind:      audit.KindMerge,
		SessionID: s.SessionID,
		Agent:     string(agent),
		Checksum:  m.registry.Checksum(),
		Merge:     &audit.Merge{Decisions: decisions, Merged: report.Merged, Blocked: report.Blocked},
	})
	recordMerge(ctx, agent, report.Merged, report.Blocked)
	return out, report, nil
}
