package supervisor

import (
	"errors"
	"fmt"

	"github.com/mohammad-safakhou/chimera/internal/capability"
	"github.com/mohammad-safakhou/chimera/internal/state"
)

// Mode is how a routed agent group executes.
type Mode string

const (
	ModeSequential Mode = "sequential"
	// ModeParallel declares the group has no required ordering beyond the
	// registry's dependency edges.
	ModeParallel Mode = "parallel"
	ModeSkip     Mode = "skip"
	ModeDone     Mode = "done"
	// ModeCapped marks a pass cut short by the iteration cap.
	ModeCapped Mode = "capped"
)

// ErrRouting is returned when the phase controller cannot route a state.
var ErrRouting = errors.New("routing error")

// Routing is the decision for one pass.
type Routing struct {
	Agents []capability.Agent
	Mode   Mode
	Next   state.Phase
}

// Route decides which agents run for the current phase of s.
func Route(s state.State) (Routing, error) {
	switch s.SupervisorPhase {
	case state.PhaseInitialAnalysis:
		demo := s.CurrentIntent == state.IntentDemo
		email := s.Entities.Email != ""
		switch {
		case demo && email:
			return Routing{Agents: []capability.Agent{capability.Lead, capability.Scheduler}, Mode: ModeParallel, Next: state.PhaseResultCollection}, nil
		case demo:
			return Routing{Agents: []capability.Agent{capability.Scheduler}, Mode: ModeSequential, Next: state.PhaseResultCollection}, nil
		case email:
			return Routing{Agents: []capability.Agent{capability.Lead}, Mode: ModeSequential, Next: state.PhaseResultCollection}, nil
		default:
			return Routing{Mode: ModeSkip, Next: state.PhasePostProcessing}, nil
		}
	case state.PhaseResultCollection:
		return Routing{Agents: []capability.Agent{capability.Stylist, capability.Compliance}, Mode: ModeParallel, Next: state.PhaseFinalization}, nil
	case state.PhasePostProcessing, state.PhaseFinalization:
		return Routing{Mode: ModeDone, Next: state.PhaseFinalization}, nil
	default:
		return Routing{}, fmt.Errorf("%w: unknown phase %q", ErrRouting, s.SupervisorPhase)
	}
}

func agentNames(agents []capability.Agent) []string {
	out := make([]string, len(agents))
	for i, a := range agents {
		out[i] = string(a)
	}
	return out
}
