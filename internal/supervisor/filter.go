package supervisor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mohammad-safakhou/chimera/internal/audit"
	"github.com/mohammad-safakhou/chimera/internal/capability"
	"github.com/mohammad-safakhou/chimera/internal/state"
)

// View is the projection of the shared state handed to one agent.
type View struct {
	Agent  capability.Agent
	Fields state.FieldSet
	State  state.State
}

// Filter projects the shared state down to an agent's readable fields.
type Filter struct {
	registry *capability.Registry
	sink     audit.Sink
}

func NewFilter(registry *capability.Registry, sink audit.Sink) *Filter {
	if registry == nil {
		registry = capability.Default()
	}
	if sink == nil {
		sink = audit.Discard{}
	}
	return &Filter{registry: registry, sink: sink}
}

// Project returns a View holding deep copies of exactly the fields agent may
// read and emits one access record.
func (f *Filter) Project(ctx context.Context, s state.State, agent capability.Agent) (View, error) {
	fields, err := f.registry.Readable(agent)
	if err != nil {
		return View{}, err
	}
	view := View{Agent: agent, Fields: fields, State: s.Project(fields)}

	size, err := projectedSize(view)
	if err != nil {
		return View{}, fmt.Errorf("measure view for %s: %w", agent, err)
	}
	f.sink.Record(ctx, audit.Record{
		Kind:      audit.KindAccess,
		SessionID: s.SessionID,
		Agent:     string(agent),
		Checksum:  f.registry.Checksum(),
		Access:    &audit.Access{Fields: fields.Strings(), Bytes: size},
	})
	recordAccess(ctx, agent, size)
	return view, nil
}

// projectedSize is the JSON size of the readable fields only.
func projectedSize(view View) (int, error) {
	raw, err := json.Marshal(view.State)
	if err != nil {
		return 0, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(raw, &all); err != nil {
		return 0, err
	}
	kept := make(map[string]json.RawMessage, len(view.Fields))
	for _, f := range view.Fields {
		if v, ok := all[string(f)]; ok {
			kept[string(f)] = v
		}
	}
	out, err := json.Marshal(kept)
	if err != nil {
		return 0, err
	}
	return len(out), nil
}
