package state

// Update is a partial write returned by an agent. A nil field was not written.
// Slice fields use nil for "not written"; an empty non-nil slice clears the field.
type Update struct {
	SessionID           *string
	Messages            []Message
	CurrentIntent       *Intent
	ConfidenceScore     *float64
	Entities            *Entities
	LeadData            *LeadData
	LeadStatus          *string
	CRMPayload          *CRMPayload
	MeetingSlots        []MeetingSlot
	ProvisionalReply    *string
	SanitizedOutput     *string
	BrandProfile        *BrandProfile
	ComplianceFlags     []string
	AnalyticsEvents     []Event
	ConversationMetrics *Metrics
	RetrievedContext    []string
	ContextUsed         *bool
	SupervisorPhase     *Phase
	IterationCount      *int
	NextAction          *Action
	PreviousAgent       *string
}

// Ptr returns a pointer to v; convenient when building updates.
func Ptr[T any](v T) *T { return &v }

// Fields lists the fields this update attempts to write, in declaration order.
func (u Update) Fields() FieldSet {
	var out FieldSet
	add := func(set bool, f Field) {
		if set {
			out = append(out, f)
		}
	}
	add(u.SessionID != nil, FieldSessionID)
	add(u.Messages != nil, FieldMessages)
	add(u.CurrentIntent != nil, FieldCurrentIntent)
	add(u.ConfidenceScore != nil, FieldConfidenceScore)
	add(u.Entities != nil, FieldEntities)
	add(u.LeadData != nil, FieldLeadData)
	add(u.LeadStatus != nil, FieldLeadStatus)
	add(u.CRMPayload != nil, FieldCRMPayload)
	add(u.MeetingSlots != nil, FieldMeetingSlots)
	add(u.ProvisionalReply != nil, FieldProvisionalReply)
	add(u.SanitizedOutput != nil, FieldSanitizedOutput)
	add(u.BrandProfile != nil, FieldBrandProfile)
	add(u.ComplianceFlags != nil, FieldComplianceFlags)
	add(u.AnalyticsEvents != nil, FieldAnalyticsEvents)
	add(u.ConversationMetrics != nil, FieldConversationMetrics)
	add(u.RetrievedContext != nil, FieldRetrievedContext)
	add(u.ContextUsed != nil, FieldContextUsed)
	add(u.SupervisorPhase != nil, FieldSupervisorPhase)
	add(u.IterationCount != nil, FieldIterationCount)
	add(u.NextAction != nil, FieldNextAction)
	add(u.PreviousAgent != nil, FieldPreviousAgent)
	return out
}

// Empty reports whether the update writes nothing.
func (u Update) Empty() bool { return len(u.Fields()) == 0 }

// Assign overwrites field f of s with the value carried by u. It reports false
// when u does not carry f. Analytics events are replaced here; additive
// semantics are the caller's responsibility.
func (u Update) Assign(s *State, f Field) bool {
	switch f {
	case FieldSessionID:
		if u.SessionID == nil {
			return false
		}
		s.SessionID = *u.SessionID
	case FieldMessages:
		if u.Messages == nil {
			return false
		}
		s.Messages = cloneSlice(u.Messages)
	case FieldCurrentIntent:
		if u.CurrentIntent == nil {
			return false
		}
		s.CurrentIntent = *u.CurrentIntent
	case FieldConfidenceScore:
		if u.ConfidenceScore == nil {
			return false
		}
		s.ConfidenceScore = *u.ConfidenceScore
	case FieldEntities:
		if u.Entities == nil {
			return false
		}
		s.Entities = *u.Entities
	case FieldLeadData:
		if u.LeadData == nil {
			return false
		}
		v := *u.LeadData
		s.LeadData = &v
	case FieldLeadStatus:
		if u.LeadStatus == nil {
			return false
		}
		s.LeadStatus = *u.LeadStatus
	case FieldCRMPayload:
		if u.CRMPayload == nil {
			return false
		}
		v := *u.CRMPayload
		s.CRMPayload = &v
	case FieldMeetingSlots:
		if u.MeetingSlots == nil {
			return false
		}
		s.MeetingSlots = cloneSlice(u.MeetingSlots)
	case FieldProvisionalReply:
		if u.ProvisionalReply == nil {
			return false
		}
		s.ProvisionalReply = *u.ProvisionalReply
	case FieldSanitizedOutput:
		if u.SanitizedOutput == nil {
			return false
		}
		s.SanitizedOutput = *u.SanitizedOutput
	case FieldBrandProfile:
		if u.BrandProfile == nil {
			return false
		}
		s.BrandProfile = *u.BrandProfile
	case FieldComplianceFlags:
		if u.ComplianceFlags == nil {
			return false
		}
		s.ComplianceFlags = cloneSlice(u.ComplianceFlags)
	case FieldAnalyticsEvents:
		if u.AnalyticsEvents == nil {
			return false
		}
		s.AnalyticsEvents = cloneEvents(u.AnalyticsEvents)
	case FieldConversationMetrics:
		if u.ConversationMetrics == nil {
			return false
		}
		s.ConversationMetrics = cloneMetrics(u.ConversationMetrics)
	case FieldRetrievedContext:
		if u.RetrievedContext == nil {
			return false
		}
		s.RetrievedContext = cloneSlice(u.RetrievedContext)
	case FieldContextUsed:
		if u.ContextUsed == nil {
			return false
		}
		s.ContextUsed = *u.ContextUsed
	case FieldSupervisorPhase:
		if u.SupervisorPhase == nil {
			return false
		}
		s.SupervisorPhase = *u.SupervisorPhase
	case FieldIterationCount:
		if u.IterationCount == nil {
			return false
		}
		s.IterationCount = *u.IterationCount
	case FieldNextAction:
		if u.NextAction == nil {
			return false
		}
		s.NextAction = *u.NextAction
	case FieldPreviousAgent:
		if u.PreviousAgent == nil {
			return false
		}
		s.PreviousAgent = *u.PreviousAgent
	default:
		return false
	}
	return true
}
