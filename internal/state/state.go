// Package state defines the shared conversation record passed through the
// supervisor pipeline, its field catalogue and partial updates against it.
package state

import (
	"time"
)

// Intent is the classified purpose of the latest user message.
type Intent string

const (
	IntentUnset    Intent = ""
	IntentQuestion Intent = "question"
	IntentDemo     Intent = "demo"
	IntentPricing  Intent = "pricing"
	IntentContact  Intent = "contact"
)

// Phase is a supervisor state machine stage.
type Phase string

const (
	PhaseInitialAnalysis  Phase = "initial_analysis"
	PhaseResultCollection Phase = "result_collection"
	PhasePostProcessing   Phase = "post_processing"
	PhaseFinalization     Phase = "finalization"
)

// Action controls whether the supervisor loop runs another pass.
type Action string

const (
	ActionSupervisor Action = "supervisor"
	ActionAnalytics  Action = "analytics" // terminal
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Entities are contact and lead attributes extracted from the conversation.
type Entities struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Company  string `json:"company,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Timeline string `json:"timeline,omitempty"` // urgent, near-term
}

// Empty reports whether nothing was extracted.
func (e Entities) Empty() bool { return e == Entities{} }

// LeadData is the qualification outcome of the lead agent.
type LeadData struct {
	Score         int    `json:"score"`
	Qualification string `json:"qualification"`
}

// CRMPayload is the record pushed to the CRM for a qualified lead.
type CRMPayload struct {
	Email         string `json:"email"`
	Name          string `json:"name"`
	Company       string `json:"company,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Source        string `json:"source"`
	LeadScore     int    `json:"lead_score"`
	Qualification string `json:"qualification"`
}

// MeetingSlot is a proposed demo time.
type MeetingSlot struct {
	ID       string    `json:"id"`
	Start    time.Time `json:"datetime"`
	Display  string    `json:"display"`
	Duration int       `json:"duration"` // minutes
}

// BrandProfile drives the stylist rewrite.
type BrandProfile struct {
	Tone  string `json:"tone,omitempty"`
	Voice string `json:"voice,omitempty"`
}

// Event is one append-only analytics record.
type Event struct {
	Name  string         `json:"event"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// NewEvent builds an event from alternating key/value pairs.
func NewEvent(name string, kv ...any) Event {
	ev := Event{Name: name}
	if len(kv) >= 2 {
		ev.Attrs = make(map[string]any, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			if k, ok := kv[i].(string); ok {
				ev.Attrs[k] = kv[i+1]
			}
		}
	}
	return ev
}

// Metrics summarises the analytics events of a session.
type Metrics struct {
	SessionID   string    `json:"session_id"`
	TotalEvents int       `json:"total_events"`
	EventTypes  []string  `json:"event_types"`
	LoggedAt    time.Time `json:"logged_at"`
}

// State is the shared conversation record. Optional fields are nil when absent.
type State struct {
	SessionID           string        `json:"session_id"`
	Messages            []Message     `json:"messages"`
	CurrentIntent       Intent        `json:"current_intent"`
	ConfidenceScore     float64       `json:"confidence_score"`
	Entities            Entities      `json:"entities"`
	LeadData            *LeadData     `json:"lead_data,omitempty"`
	LeadStatus          string        `json:"lead_status,omitempty"`
	CRMPayload          *CRMPayload   `json:"crm_payload,omitempty"`
	MeetingSlots        []MeetingSlot `json:"meeting_slots,omitempty"`
	ProvisionalReply    string        `json:"provisional_reply"`
	SanitizedOutput     string        `json:"sanitized_output"`
	BrandProfile        BrandProfile  `json:"brand_profile"`
	ComplianceFlags     []string      `json:"compliance_flags"`
	AnalyticsEvents     []Event       `json:"analytics_events"`
	ConversationMetrics *Metrics      `json:"conversation_metrics,omitempty"`
	RetrievedContext    []string      `json:"retrieved_context"`
	ContextUsed         bool          `json:"context_used"`
	SupervisorPhase     Phase         `json:"supervisor_phase"`
	IterationCount      int           `json:"iteration_count"`
	NextAction          Action        `json:"next_action"`
	PreviousAgent       string        `json:"previous_agent"`
}

// New returns an empty session state ready for its first turn.
func New(sessionID string, brand BrandProfile) State {
	return State{
		SessionID:       sessionID,
		Messages:        []Message{},
		BrandProfile:    brand,
		ComplianceFlags: []string{},
		AnalyticsEvents: []Event{},
		SupervisorPhase: PhaseInitialAnalysis,
		NextAction:      ActionSupervisor,
	}
}

// BeginTurn appends the user message and resets the turn-scoped fields.
// Messages, entities, lead data and analytics events carry over between turns;
// the CRM payload and meeting slots are re-proposed every turn.
func (s State) BeginTurn(text string) State {
	next := s.Clone()
	next.Messages = append(next.Messages, Message{Role: RoleUser, Content: text})
	next.SupervisorPhase = PhaseInitialAnalysis
	next.IterationCount = 0
	next.NextAction = ActionSupervisor
	next.ProvisionalReply = ""
	next.SanitizedOutput = ""
	next.ComplianceFlags = []string{}
	next.MeetingSlots = nil
	next.CRMPayload = nil
	return next
}

// LastUserMessage returns the content of the most recent user message.
func (s State) LastUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

// Reply is the best-effort answer for the current turn.
func (s State) Reply() string {
	if s.SanitizedOutput != "" {
		return s.SanitizedOutput
	}
	return s.ProvisionalReply
}

// Terminal reports whether the supervisor loop has finished.
func (s State) Terminal() bool { return s.NextAction == ActionAnalytics }

// Clone returns a deep copy sharing no memory with s.
func (s State) Clone() State {
	out := s
	out.Messages = cloneSlice(s.Messages)
	if s.LeadData != nil {
		v := *s.LeadData
		out.LeadData = &v
	}
	if s.CRMPayload != nil {
		v := *s.CRMPayload
		out.CRMPayload = &v
	}
	out.MeetingSlots = cloneSlice(s.MeetingSlots)
	out.ComplianceFlags = cloneSlice(s.ComplianceFlags)
	out.AnalyticsEvents = cloneEvents(s.AnalyticsEvents)
	out.ConversationMetrics = cloneMetrics(s.ConversationMetrics)
	out.RetrievedContext = cloneSlice(s.RetrievedContext)
	return out
}

// AppendEvents adds events without touching existing entries.
func (s *State) AppendEvents(events ...Event) {
	if len(events) == 0 {
		return
	}
	s.AnalyticsEvents = append(s.AnalyticsEvents, cloneEvents(events)...)
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func cloneEvents(in []Event) []Event {
	if in == nil {
		return nil
	}
	out := make([]Event, len(in))
	for i, ev := range in {
		out[i] = Event{Name: ev.Name, Attrs: cloneAttrs(ev.Attrs)}
	}
	return out
}

func cloneAttrs(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch t := v.(type) {
		case []string:
			out[k] = cloneSlice(t)
		case []any:
			out[k] = cloneSlice(t)
		case map[string]any:
			out[k] = cloneAttrs(t)
		default:
			out[k] = v
		}
	}
	return out
}

func cloneMetrics(in *Metrics) *Metrics {
	if in == nil {
		return nil
	}
	v := *in
	v.EventTypes = cloneSlice(in.EventTypes)
	return &v
}
