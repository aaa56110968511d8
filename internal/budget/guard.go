package budget

import (
	"context"
	"log"
	"os"

	"github.com/mohammad-safakhou/chimera/internal/llm"
)

// Guard is a ChatModel that refuses calls once the monitor's limits are hit.
// Callers see an ErrExceeded and take their no-model fallback path.
type Guard struct {
	next    llm.ChatModel
	monitor *Monitor
	logger  *log.Logger
}

// Wrap returns next unchanged when cfg has no limits.
func Wrap(next llm.ChatModel, cfg Config, logger *log.Logger) llm.ChatModel {
	if next == nil || cfg.IsZero() {
		return next
	}
	return NewGuard(next, NewMonitor(cfg, nil), logger)
}

// NewGuard wires a model to an existing monitor.
func NewGuard(next llm.ChatModel, monitor *Monitor, logger *log.Logger) *Guard {
	if logger == nil {
		logger = log.New(os.Stdout, "[BUDGET] ", log.LstdFlags)
	}
	return &Guard{next: next, monitor: monitor, logger: logger}
}

// Generate implements llm.ChatModel.
func (g *Guard) Generate(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	if err := g.monitor.Allow(); err != nil {
		g.logger.Printf("rejecting completion: %v", err)
		return "", err
	}
	out, err := g.next.Generate(ctx, prompt, opts)
	g.monitor.Add(EstimateTokens(prompt) + EstimateTokens(out))
	return out, err
}

// Usage exposes the monitor's counters.
func (g *Guard) Usage() Usage { return g.monitor.Usage() }
