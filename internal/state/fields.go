package state

import (
	"fmt"
	"sort"
	"strings"
)

// Field names a single member of State.
type Field string

const (
	FieldSessionID           Field = "session_id"
	FieldMessages            Field = "messages"
	FieldCurrentIntent       Field = "current_intent"
	FieldConfidenceScore     Field = "confidence_score"
	FieldEntities            Field = "entities"
	FieldLeadData            Field = "lead_data"
	FieldLeadStatus          Field = "lead_status"
	FieldCRMPayload          Field = "crm_payload"
	FieldMeetingSlots        Field = "meeting_slots"
	FieldProvisionalReply    Field = "provisional_reply"
	FieldSanitizedOutput     Field = "sanitized_output"
	FieldBrandProfile        Field = "brand_profile"
	FieldComplianceFlags     Field = "compliance_flags"
	FieldAnalyticsEvents     Field = "analytics_events"
	FieldConversationMetrics Field = "conversation_metrics"
	FieldRetrievedContext    Field = "retrieved_context"
	FieldContextUsed         Field = "context_used"
	FieldSupervisorPhase     Field = "supervisor_phase"
	FieldIterationCount      Field = "iteration_count"
	FieldNextAction          Field = "next_action"
	FieldPreviousAgent       Field = "previous_agent"
)

// AllFields lists every field in declaration order.
var AllFields = []Field{
	FieldSessionID, FieldMessages, FieldCurrentIntent, FieldConfidenceScore,
	FieldEntities, FieldLeadData, FieldLeadStatus, FieldCRMPayload,
	FieldMeetingSlots, FieldProvisionalReply, FieldSanitizedOutput, FieldBrandProfile,
	FieldComplianceFlags, FieldAnalyticsEvents, FieldConversationMetrics,
	FieldRetrievedContext, FieldContextUsed, FieldSupervisorPhase,
	FieldIterationCount, FieldNextAction, FieldPreviousAgent,
}

var fieldIndex = func() map[Field]int {
	m := make(map[Field]int, len(AllFields))
	for i, f := range AllFields {
		m[f] = i
	}
	return m
}()

// Valid reports whether f names a State field.
func (f Field) Valid() bool {
	_, ok := fieldIndex[f]
	return ok
}

// ParseField validates a field name.
func ParseField(name string) (Field, error) {
	f := Field(strings.TrimSpace(name))
	if !f.Valid() {
		return "", fmt.Errorf("unknown state field %q", name)
	}
	return f, nil
}

// FieldSet is an ordered, duplicate-free set of fields.
type FieldSet []Field

// NewFieldSet builds a set in declaration order. Unknown names panic: sets are
// declared statically.
func NewFieldSet(fields ...Field) FieldSet {
	seen := make(map[Field]struct{}, len(fields))
	out := make(FieldSet, 0, len(fields))
	for _, f := range fields {
		if !f.Valid() {
			panic(fmt.Sprintf("state: unknown field %q", f))
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return fieldIndex[out[i]] < fieldIndex[out[j]] })
	return out
}

// Has reports membership.
func (fs FieldSet) Has(f Field) bool {
	for _, x := range fs {
		if x == f {
			return true
		}
	}
	return false
}

// Without returns a copy of fs minus the given fields.
func (fs FieldSet) Without(drop ...Field) FieldSet {
	out := make(FieldSet, 0, len(fs))
	for _, f := range fs {
		skip := false
		for _, d := range drop {
			if f == d {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, f)
		}
	}
	return out
}

// Intersects reports whether fs and other share a field.
func (fs FieldSet) Intersects(other FieldSet) bool {
	for _, f := range fs {
		if other.Has(f) {
			return true
		}
	}
	return false
}

// Strings returns the field names.
func (fs FieldSet) Strings() []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = string(f)
	}
	return out
}

// Has reports whether an optional field currently holds a value. Fields that
// are always defined report true.
func (s State) Has(f Field) bool {
	switch f {
	case FieldLeadData:
		return s.LeadData != nil
	case FieldLeadStatus:
		return s.LeadStatus != ""
	case FieldCRMPayload:
		return s.CRMPayload != nil
	case FieldMeetingSlots:
		return s.MeetingSlots != nil
	case FieldConversationMetrics:
		return s.ConversationMetrics != nil
	default:
		return f.Valid()
	}
}

// Project returns a new State holding deep copies of only the given fields;
// every other field is left at its zero value.
func (s State) Project(fields FieldSet) State {
	src := s.Clone()
	var out State
	for _, f := range fields {
		copyField(&out, &src, f)
	}
	return out
}

func copyField(dst, src *State, f Field) {
	switch f {
	case FieldSessionID:
		dst.SessionID = src.SessionID
	case FieldMessages:
		dst.Messages = src.Messages
	case FieldCurrentIntent:
		dst.CurrentIntent = src.CurrentIntent
	case FieldConfidenceScore:
		dst.ConfidenceScore = src.ConfidenceScore
	case FieldEntities:
		dst.Entities = src.Entities
	case FieldLeadData:
		dst.LeadData = src.LeadData
	case FieldLeadStatus:
		dst.LeadStatus = src.LeadStatus
	case FieldCRMPayload:
		dst.CRMPayload = src.CRMPayload
	case FieldMeetingSlots:
		dst.MeetingSlots = src.MeetingSlots
	case FieldProvisionalReply:
		dst.ProvisionalReply = src.ProvisionalReply
	case FieldSanitizedOutput:
		dst.SanitizedOutput = src.SanitizedOutput
	case FieldBrandProfile:
		dst.BrandProfile = src.BrandProfile
	case FieldComplianceFlags:
		dst.ComplianceFlags = src.ComplianceFlags
	case FieldAnalyticsEvents:
		dst.AnalyticsEvents = src.AnalyticsEvents
	case FieldConversationMetrics:
		dst.ConversationMetrics = src.ConversationMetrics
	case FieldRetrievedContext:
		dst.RetrievedContext = src.RetrievedContext
	case FieldContextUsed:
		dst.ContextUsed = src.ContextUsed
	case FieldSupervisorPhase:
		dst.SupervisorPhase = src.SupervisorPhase
	case FieldIterationCount:
		dst.IterationCount = src.IterationCount
	case FieldNextAction:
		dst.NextAction = src.NextAction
	case FieldPreviousAgent:
		dst.PreviousAgent = src.PreviousAgent
	}
}
