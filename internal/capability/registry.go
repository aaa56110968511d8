package capability

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mohammad-safakhou/chimera/internal/state"
)

// Agent is the closed set of agent identities known to the supervisor.
type Agent string

const (
	Conversation Agent = "conversation"
	Lead         Agent = "lead"
	Scheduler    Agent = "scheduler"
	Stylist      Agent = "stylist"
	Compliance   Agent = "compliance"
	Integration  Agent = "integration"
	Analytics    Agent = "analytics"
)

// Agents lists every agent in declaration order.
var Agents = []Agent{Conversation, Lead, Scheduler, Stylist, Compliance, Integration, Analytics}

// ErrUnknownAgent is returned for any name outside the enumeration.
var ErrUnknownAgent = errors.New("unknown agent")

// Valid reports whether a belongs to the enumeration.
func (a Agent) Valid() bool {
	for _, x := range Agents {
		if x == a {
			return true
		}
	}
	return false
}

// ParseAgent resolves a name such as "lead" or "lead_agent".
func ParseAgent(name string) (Agent, error) {
	a := Agent(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), "_agent"))
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAgent, name)
	}
	return a, nil
}

// Contract is an agent's input and output field contract.
type Contract struct {
	Agent       Agent          `json:"agent"`
	Description string         `json:"description"`
	Readable    state.FieldSet `json:"readable"`
	Writable    state.FieldSet `json:"writable"`
	DependsOn   []Agent        `json:"depends_on,omitempty"`
}

func (c Contract) clone() Contract {
	out := c
	out.Readable = append(state.FieldSet(nil), c.Readable...)
	out.Writable = append(state.FieldSet(nil), c.Writable...)
	out.DependsOn = append([]Agent(nil), c.DependsOn...)
	return out
}

// DefaultContracts returns the built-in capability table.
func DefaultContracts() []Contract {
	f := state.NewFieldSet
	return []Contract{
		{
			Agent:       Conversation,
			Description: "Answers from the knowledge base, classifies intent and extracts entities",
			Readable:    f(state.FieldSessionID, state.FieldMessages, state.FieldBrandProfile),
			Writable: f(state.FieldCurrentIntent, state.FieldConfidenceScore, state.FieldProvisionalReply,
				state.FieldEntities, state.FieldRetrievedContext, state.FieldContextUsed, state.FieldAnalyticsEvents),
		},
		{
			Agent:       Lead,
			Description: "Scores the lead and prepares the CRM payload",
			Readable:    f(state.FieldEntities, state.FieldMessages),
			Writable:    f(state.FieldLeadData, state.FieldLeadStatus, state.FieldCRMPayload, state.FieldAnalyticsEvents),
		},
		{
			Agent:       Scheduler,
			Description: "Proposes demo slots",
			Readable:    f(state.FieldEntities, state.FieldCurrentIntent),
			Writable:    f(state.FieldMeetingSlots, state.FieldProvisionalReply, state.FieldAnalyticsEvents),
		},
		{
			Agent:       Stylist,
			Description: "Rewrites the reply in the brand voice",
			Readable:    f(state.FieldProvisionalReply, state.FieldBrandProfile),
			Writable:    f(state.FieldSanitizedOutput),
		},
		{
			Agent:       Compliance,
			Description: "Redacts sensitive data from the outgoing reply",
			Readable:    f(state.FieldSanitizedOutput),
			Writable:    f(state.FieldSanitizedOutput, state.FieldComplianceFlags, state.FieldAnalyticsEvents),
			DependsOn:   []Agent{Stylist},
		},
		{
			Agent:       Integration,
			Description: "Pushes qualified leads to the CRM",
			Readable:    f(state.FieldCRMPayload, state.FieldMeetingSlots),
			Writable:    f(state.FieldAnalyticsEvents),
		},
		{
			Agent:       Analytics,
			Description: "Summarises session analytics",
			Readable:    f(state.FieldAnalyticsEvents, state.FieldConversationMetrics, state.FieldSessionID),
			Writable:    f(state.FieldConversationMetrics),
		},
	}
}

// Registry holds validated contracts keyed by agent.
type Registry struct {
	contracts map[Agent]Contract
	checksum  string
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the registry built from DefaultContracts.
func Default() *Registry {
	defaultOnce.Do(func() {
		reg, err := NewRegistry(DefaultContracts(), "", "")
		if err != nil {
			panic(fmt.Sprintf("capability: invalid built-in schema: %v", err))
		}
		defaultReg = reg
	})
	return defaultReg
}

// NewRegistry validates contracts and, when a signing secret is set, verifies
// the schema signature.
func NewRegistry(contracts []Contract, signingSecret, signature string) (*Registry, error) {
	reg := &Registry{contracts: make(map[Agent]Contract, len(contracts))}
	for _, c := range contracts {
		if !c.Agent.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAgent, c.Agent)
		}
		if _, dup := reg.contracts[c.Agent]; dup {
			return nil, fmt.Errorf("duplicate contract for agent %s", c.Agent)
		}
		for _, fs := range []state.FieldSet{c.Readable, c.Writable} {
			for _, f := range fs {
				if !f.Valid() {
					return nil, fmt.Errorf("agent %s: unknown field %q", c.Agent, f)
				}
			}
		}
		for _, dep := range c.DependsOn {
			if !dep.Valid() {
				return nil, fmt.Errorf("agent %s depends on %w: %q", c.Agent, ErrUnknownAgent, dep)
			}
		}
		reg.contracts[c.Agent] = c.clone()
	}
	for _, a := range Agents {
		if _, ok := reg.contracts[a]; !ok {
			return nil, fmt.Errorf("missing contract for agent %s", a)
		}
	}
	if _, err := reg.Order(Agents); err != nil {
		return nil, err
	}
	sum, err := ComputeChecksum(contracts)
	if err != nil {
		return nil, err
	}
	reg.checksum = sum
	if signingSecret != "" {
		expected, err := Sign(sum, signingSecret)
		if err != nil {
			return nil, err
		}
		if !hmac.Equal([]byte(expected), []byte(signature)) {
			return nil, fmt.Errorf("capability schema signature mismatch")
		}
	}
	return reg, nil
}

// Contract returns the contract for agent a.
func (r *Registry) Contract(a Agent) (Contract, error) {
	c, ok := r.contracts[a]
	if !ok {
		return Contract{}, fmt.Errorf("%w: %q", ErrUnknownAgent, a)
	}
	return c.clone(), nil
}

// Readable returns the fields agent a may read.
func (r *Registry) Readable(a Agent) (state.FieldSet, error) {
	c, err := r.Contract(a)
	if err != nil {
		return nil, err
	}
	return c.Readable, nil
}

// Writable returns the fields agent a may write.
func (r *Registry) Writable(a Agent) (state.FieldSet, error) {
	c, err := r.Contract(a)
	if err != nil {
		return nil, err
	}
	return c.Writable, nil
}

// Contracts returns every contract in declaration order.
func (r *Registry) Contracts() []Contract {
	out := make([]Contract, 0, len(r.contracts))
	for _, a := range Agents {
		if c, ok := r.contracts[a]; ok {
			out = append(out, c.clone())
		}
	}
	return out
}

// Checksum fingerprints the schema; it is stamped on audit records.
func (r *Registry) Checksum() string { return r.checksum }

// DependsOn reports whether b must observe a's merged output first.
func (r *Registry) DependsOn(b, a Agent) bool {
	for _, dep := range r.contracts[b].DependsOn {
		if dep == a {
			return true
		}
	}
	return false
}

// Independent reports whether a and b may run against the same snapshot:
// disjoint writable sets (the additive analytics_events excepted) and no
// ordering edge in either direction.
func (r *Registry) Independent(a, b Agent) bool {
	ca, okA := r.contracts[a]
	cb, okB := r.contracts[b]
	if !okA || !okB {
		return false
	}
	if r.DependsOn(a, b) || r.DependsOn(b, a) {
		return false
	}
	wa := ca.Writable.Without(state.FieldAnalyticsEvents)
	wb := cb.Writable.Without(state.FieldAnalyticsEvents)
	if wa.Intersects(wb) {
		return false
	}
	// a reader of b's output is not independent of b either
	return !ca.Readable.Intersects(wb) && !cb.Readable.Intersects(wa)
}

// Order returns group sorted so every dependency precedes its dependents,
// keeping the given order otherwise.
func (r *Registry) Order(group []Agent) ([]Agent, error) {
	in := make(map[Agent]bool, len(group))
	for _, a := range group {
		in[a] = true
	}
	placed := make(map[Agent]bool, len(group))
	out := make([]Agent, 0, len(group))
	for len(out) < len(group) {
		progressed := false
		for _, a := range group {
			if placed[a] {
				continue
			}
			ready := true
			for _, dep := range r.contracts[a].DependsOn {
				if in[dep] && !placed[dep] {
					ready = false
					break
				}
			}
			if ready {
				placed[a] = true
				out = append(out, a)
				progressed = true
				break
			}
		}
		if !progressed {
			return nil, fmt.Errorf("circular agent dependency in %v", group)
		}
	}
	return out, nil
}

// ComputeChecksum returns a deterministic hash of the contract table.
func ComputeChecksum(contracts []Contract) (string, error) {
	sorted := make([]Contract, len(contracts))
	for i, c := range contracts {
		sorted[i] = c.clone()
		sorted[i].Description = ""
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Agent < sorted[j].Agent })
	normalized, err := json.Marshal(sorted)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(normalized)
	return hex.EncodeToString(sum[:]), nil
}

// Sign computes an HMAC signature of a schema checksum.
func Sign(checksum, secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("signing secret is empty")
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(checksum))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// ReadableFields looks agent up in the built-in schema.
func ReadableFields(a Agent) (state.FieldSet, error) { return Default().Readable(a) }

// WritableFields looks agent up in the built-in schema.
func WritableFields(a Agent) (state.FieldSet, error) { return Default().Writable(a) }
