package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/mohammad-safakhou/chimera/config"
	"github.com/mohammad-safakhou/chimera/internal/audit"
	"github.com/mohammad-safakhou/chimera/internal/capability"
	"github.com/mohammad-safakhou/chimera/internal/state"
)

// PreviousAgent is written to previous_agent after every pass.
const PreviousAgent = "supervisor"

var supervisorTracer trace.Tracer = otel.Tracer("chimera/internal/supervisor")

// Supervisor drives the phase state machine for one conversation turn.
type Supervisor struct {
	registry *capability.Registry
	agents   map[capability.Agent]Agent
	filter   *Filter
	invoker  *Invoker
	merger   *Merger
	sink     audit.Sink
	logger   *log.Logger

	maxIterations int
	concurrent    bool
	maxConcurrent int
}

// New builds a supervisor over the given agent implementations. A nil
// registry selects the built-in capability schema.
func New(cfg config.SupervisorConfig, registry *capability.Registry, sink audit.Sink, logger *log.Logger, agents ...Agent) (*Supervisor, error) {
	cfg = cfg.Normalize()
	if registry == nil {
		registry = capability.Default()
	}
	if sink == nil {
		sink = audit.Discard{}
	}
	if logger == nil {
		logger = log.New(os.Stdout, "[SUPERVISOR] ", log.LstdFlags)
	}
	byName := make(map[capability.Agent]Agent, len(agents))
	for _, a := range agents {
		if a == nil {
			continue
		}
		name := a.Name()
		if _, err := registry.Contract(name); err != nil {
			return nil, err
		}
		if _, dup := byName[name]; dup {
			return nil, fmt.Errorf("agent %s registered twice", name)
		}
		byName[name] = a
	}
	return &Supervisor{
		registry:      registry,
		agents:        byName,
		filter:        NewFilter(registry, sink),
		invoker:       NewInvoker(cfg.AgentTimeout, sink, logger),
		merger:        NewMerger(registry, sink, logger),
		sink:          sink,
		logger:        logger,
		maxIterations: cfg.MaxIterations,
		concurrent:    cfg.ConcurrentIndependent,
		maxConcurrent: cfg.MaxConcurrentAgents,
	}, nil
}

// Registry exposes the capability schema in use.
func (s *Supervisor) Registry() *capability.Registry { return s.registry }

// MaxIterations is the per-turn pass cap.
func (s *Supervisor) MaxIterations() int { return s.maxIterations }

func (s *Supervisor) meta(st state.State) Meta {
	return Meta{SessionID: st.SessionID, Checksum: s.registry.Checksum()}
}

// Step runs one agent through Filter, Invoke and Merge. Agent failures are
// isolated: the state is returned unchanged (an empty merge is still recorded)
// and the *AgentError is returned for the caller to observe. Unknown or
// unimplemented agents return an error wrapping capability.ErrUnknownAgent.
func (s *Supervisor) Step(ctx context.Context, st state.State, name capability.Agent) (state.State, MergeReport, error) {
	impl, ok := s.agents[name]
	if !ok {
		return st, MergeReport{Agent: name}, fmt.Errorf("%w: no implementation for %q", capability.ErrUnknownAgent, name)
	}
	ctx, span := supervisorTracer.Start(ctx, "supervisor.agent",
		trace.WithAttributes(
			attribute.String("agent", string(name)),
			attribute.String("session.id", st.SessionID),
		))
	defer span.End()

	view, err := s.filter.Project(ctx, st, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return st, MergeReport{Agent: name}, err
	}
	update, invokeErr := s.invoker.Invoke(ctx, impl, view, s.meta(st))
	if invokeErr != nil {
		span.RecordError(invokeErr)
		span.SetStatus(codes.Error, invokeErr.Error())
	}
	out, report, err := s.merger.Merge(ctx, st, name, update)
	if err != nil {
		return st, report, err
	}
	span.SetAttributes(attribute.Int("merge.merged", report.Merged), attribute.Int("merge.blocked", report.Blocked))
	return out, report, invokeErr
}

// Pass performs one supervisor pass. Only routing failures are returned;
// agent failures are absorbed.
func (s *Supervisor) Pass(ctx context.Context, st state.State) (state.State, error) {
	ctx, span := supervisorTracer.Start(ctx, "supervisor.pass",
		trace.WithAttributes(
			attribute.String("session.id", st.SessionID),
			attribute.String("phase", string(st.SupervisorPhase)),
			attribute.Int("iteration", st.IterationCount),
		))
	defer span.End()

	if st.IterationCount >= s.maxIterations {
		out := st.Clone()
		out.NextAction = state.ActionAnalytics
		s.logger.Printf("iteration cap %d reached for session %s; terminating", s.maxIterations, st.SessionID)
		s.recordPass(ctx, st, Routing{Mode: ModeCapped, Next: st.SupervisorPhase}, out.NextAction)
		return out, nil
	}

	routing, err := Route(st)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return st, err
	}
	span.SetAttributes(attribute.String("mode", string(routing.Mode)), attribute.StringSlice("agents", agentNames(routing.Agents)))

	out := st
	switch routing.Mode {
	case ModeSequential:
		out = s.runSequential(ctx, out, routing.Agents)
	case ModeParallel:
		out = s.runGroup(ctx, out, routing.Agents)
	}

	out = out.Clone()
	out.SupervisorPhase = routing.Next
	out.PreviousAgent = PreviousAgent
	out.IterationCount++
	if routing.Mode == ModeDone {
		out.NextAction = state.ActionAnalytics
	} else {
		out.NextAction = state.ActionSupervisor
	}
	s.recordPass(ctx, st, routing, out.NextAction)
	return out, nil
}

// Run loops Pass until the terminal action is reached.
func (s *Supervisor) Run(ctx context.Context, st state.State) (state.State, error) {
	out := st
	for !out.Terminal() {
		if err := ctx.Err(); err != nil {
			return out, fmt.Errorf("supervisor run: %w", err)
		}
		next, err := s.Pass(ctx, out)
		if err != nil {
			return out, err
		}
		out = next
	}
	return out, nil
}

func (s *Supervisor) runSequential(ctx context.Context, st state.State, agents []capability.Agent) state.State {
	out := st
	for _, name := range agents {
		next, _, err := s.Step(ctx, out, name)
		if err != nil && errors.Is(err, capability.ErrUnknownAgent) {
			s.logger.Printf("skipping agent %q: %v", name, err)
			continue
		}
		out = next
	}
	return out
}

// runGroup executes an independence-labelled group. Members are ordered along
// dependency edges; they run concurrently only when enabled and every pair is
// independent. Merges always happen one at a time in group order.
func (s *Supervisor) runGroup(ctx context.Context, st state.State, agents []capability.Agent) state.State {
	known := make([]capability.Agent, 0, len(agents))
	for _, name := range agents {
		if _, ok := s.agents[name]; !ok {
			s.logger.Printf("skipping agent %q: %v", name, capability.ErrUnknownAgent)
			continue
		}
		known = append(known, name)
	}
	ordered, err := s.registry.Order(known)
	if err != nil {
		s.logger.Printf("ordering group %v: %v; falling back to declared order", known, err)
		ordered = known
	}
	if !s.concurrent || len(ordered) < 2 || !s.independent(ordered) {
		return s.runSequential(ctx, st, ordered)
	}
	return s.runConcurrent(ctx, st, ordered)
}

func (s *Supervisor) independent(group []capability.Agent) bool {
	for i := 0; i < len(group); i++ {
		for j := i + 1; j < len(group); j++ {
			if !s.registry.Independent(group[i], group[j]) {
				return false
			}
		}
	}
	return true
}

func (s *Supervisor) runConcurrent(ctx context.Context, st state.State, group []capability.Agent) state.State {
	snapshot := st.Clone()
	meta := s.meta(st)
	updates := make([]state.Update, len(group))
	skip := make([]bool, len(group))

	var g errgroup.Group
	g.SetLimit(s.maxConcurrent)
	for i, name := range group {
		i, name := i, name
		g.Go(func() error {
			view, err := s.filter.Project(ctx, snapshot, name)
			if err != nil {
				s.logger.Printf("skipping agent %q: %v", name, err)
				skip[i] = true
				return nil
			}
			updates[i], _ = s.invoker.Invoke(ctx, s.agents[name], view, meta)
			return nil
		})
	}
	_ = g.Wait()

	out := st
	for i, name := range group {
		if skip[i] {
			continue
		}
		next, _, err := s.merger.Merge(ctx, out, name, updates[i])
		if err != nil {
			s.logger.Printf("merge for agent %q: %v", name, err)
			continue
		}
		out = next
	}
	return out
}

func (s *Supervisor) recordPass(ctx context.Context, st state.State, routing Routing, next state.Action) {
	recordPass(ctx, routing.Mode)
	s.sink.Record(ctx, audit.Record{
		Kind:      audit.KindPass,
		SessionID: st.SessionID,
		Checksum:  s.registry.Checksum(),
		Pass: &audit.Pass{
			Iteration:  st.IterationCount,
			Phase:      string(st.SupervisorPhase),
			NextPhase:  string(routing.Next),
			Mode:       string(routing.Mode),
			Agents:     agentNames(routing.Agents),
			NextAction: string(next),
		},
	})
}
