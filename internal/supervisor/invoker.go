package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"time"

	"github.com/mohammad-safakhou/chimera/internal/audit"
	"github.com/mohammad-safakhou/chimera/internal/capability"
	"github.com/mohammad-safakhou/chimera/internal/state"
)

// AgentError reports an agent failure caught at the invoker boundary.
type AgentError struct {
	Agent capability.Agent
	Err   error
	Panic bool
	Stack []byte
}

func (e *AgentError) Error() string {
	if e.Panic {
		return fmt.Sprintf("agent %s panicked: %v", e.Agent, e.Err)
	}
	return fmt.Sprintf("agent %s failed: %v", e.Agent, e.Err)
}

func (e *AgentError) Unwrap() error { return e.Err }

// IsAgentError reports whether err is (or wraps) an AgentError.
func IsAgentError(err error) bool {
	var ae *AgentError
	return errors.As(err, &ae)
}

// Meta identifies the turn an invocation belongs to in audit records.
type Meta struct {
	SessionID string
	Checksum  string
}

// Invoker calls agents behind a fault-isolation boundary.
type Invoker struct {
	timeout time.Duration
	sink    audit.Sink
	logger  *log.Logger
}

func NewInvoker(timeout time.Duration, sink audit.Sink, logger *log.Logger) *Invoker {
	if sink == nil {
		sink = audit.Discard{}
	}
	if logger == nil {
		logger = log.New(os.Stdout, "[SUPERVISOR] ", log.LstdFlags)
	}
	return &Invoker{timeout: timeout, sink: sink, logger: logger}
}

type invokeResult struct {
	update state.Update
	err    error
}

// Invoke runs agent against view. Errors, panics and timeouts are logged,
// recorded as failures and returned as *AgentError together with an empty
// update, so callers can always continue with the returned value.
func (i *Invoker) Invoke(ctx context.Context, agent Agent, view View, meta Meta) (state.Update, error) {
	name := agent.Name()
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	start := time.Now()
	done := make(chan invokeResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- invokeResult{err: &AgentError{Agent: name, Err: fmt.Errorf("%v", r), Panic: true, Stack: debug.Stack()}}
			}
		}()
		u, err := agent.Process(ctx, view)
		done <- invokeResult{update: u, err: err}
	}()

	var res invokeResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = invokeResult{err: ctx.Err()}
	}
	recordInvocation(ctx, name, time.Since(start), res.err == nil)
	if res.err == nil {
		return res.update, nil
	}

	ae, ok := res.err.(*AgentError)
	if !ok {
		ae = &AgentError{Agent: name, Err: res.err}
	}
	i.logger.Printf("agent %s failed for session %s: %v", name, meta.SessionID, ae.Err)
	i.sink.Record(ctx, audit.Record{
		Kind:      audit.KindFailure,
		SessionID: meta.SessionID,
		Agent:     string(name),
		Checksum:  meta.Checksum,
		Failure:   &audit.Failure{Message: ae.Err.Error(), Panic: ae.Panic},
	})
	return state.Update{}, ae
}
