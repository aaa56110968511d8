// Package supervisor routes a conversation turn through the specialist agents.
// Every agent sees only the fields it may read (Filter), is isolated from
// failures (Invoker) and can only change the fields it may write (Merge).
package supervisor

import (
	"context"

	"github.com/mohammad-safakhou/chimera/internal/capability"
	"github.com/mohammad-safakhou/chimera/internal/state"
)

// Agent is a single-purpose processing unit with a fixed field contract.
type Agent interface {
	Name() capability.Agent
	Process(ctx context.Context, view View) (state.Update, error)
}

type funcAgent struct {
	name capability.Agent
	fn   func(context.Context, View) (state.Update, error)
}

func (a funcAgent) Name() capability.Agent { return a.name }

func (a funcAgent) Process(ctx context.Context, view View) (state.Update, error) {
	return a.fn(ctx, view)
}

// Func adapts a plain function into an Agent.
func Func(name capability.Agent, fn func(context.Context, View) (state.Update, error)) Agent {
	return funcAgent{name: name, fn: fn}
}
