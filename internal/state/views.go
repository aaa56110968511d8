package state

// Typed agent inputs. Each view names exactly the fields its agent may read;
// the `state` tags are checked against the capability schema in tests.

type ConversationView struct {
	SessionID    string       `state:"session_id"`
	Messages     []Message    `state:"messages"`
	BrandProfile BrandProfile `state:"brand_profile"`
}

type LeadView struct {
	Entities Entities  `state:"entities"`
	Messages []Message `state:"messages"`
}

type SchedulerView struct {
	Entities      Entities `state:"entities"`
	CurrentIntent Intent   `state:"current_intent"`
}

type StylistView struct {
	ProvisionalReply string       `state:"provisional_reply"`
	BrandProfile     BrandProfile `state:"brand_profile"`
}

type ComplianceView struct {
	SanitizedOutput string `state:"sanitized_output"`
}

type IntegrationView struct {
	CRMPayload   *CRMPayload   `state:"crm_payload"`
	MeetingSlots []MeetingSlot `state:"meeting_slots"`
}

type AnalyticsView struct {
	AnalyticsEvents     []Event  `state:"analytics_events"`
	ConversationMetrics *Metrics `state:"conversation_metrics"`
	SessionID           string   `state:"session_id"`
}

func (s State) ConversationView() ConversationView {
	return ConversationView{SessionID: s.SessionID, Messages: s.Messages, BrandProfile: s.BrandProfile}
}

func (s State) LeadView() LeadView {
	return LeadView{Entities: s.Entities, Messages: s.Messages}
}

func (s State) SchedulerView() SchedulerView {
	return SchedulerView{Entities: s.Entities, CurrentIntent: s.CurrentIntent}
}

func (s State) StylistView() StylistView {
	return StylistView{ProvisionalReply: s.ProvisionalReply, BrandProfile: s.BrandProfile}
}

func (s State) ComplianceView() ComplianceView {
	return ComplianceView{SanitizedOutput: s.SanitizedOutput}
}

func (s State) IntegrationView() IntegrationView {
	return IntegrationView{CRMPayload: s.CRMPayload, MeetingSlots: s.MeetingSlots}
}

func (s State) AnalyticsView() AnalyticsView {
	return AnalyticsView{AnalyticsEvents: s.AnalyticsEvents, ConversationMetrics: s.ConversationMetrics, SessionID: s.SessionID}
}
