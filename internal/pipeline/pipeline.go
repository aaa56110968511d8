// Package pipeline handles one user message end to end: load the session,
// run the conversation step and the supervisor, finalize analytics, persist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mohammad-safakhou/chimera/internal/agents"
	"github.com/mohammad-safakhou/chimera/internal/capability"
	"github.com/mohammad-safakhou/chimera/internal/llm"
	"github.com/mohammad-safakhou/chimera/internal/session"
	"github.com/mohammad-safakhou/chimera/internal/state"
	"github.com/mohammad-safakhou/chimera/internal/store"
	"github.com/mohammad-safakhou/chimera/internal/supervisor"
)

// ErrEmptyMessage is returned for blank user input.
var ErrEmptyMessage = errors.New("pipeline: empty message")

var pipelineTracer trace.Tracer = otel.Tracer("chimera/internal/pipeline")

// Sink receives the analytics of every finished turn.
type Sink interface {
	RecordTurn(ctx context.Context, t store.Turn) error
}

// Options configure a Pipeline. Zero values are usable.
type Options struct {
	Brand       state.BrandProfile
	Summarizer  llm.ChatModel
	Sink        Sink
	TurnTimeout time.Duration
	Logger      *log.Logger
}

// Reply is the outcome of one turn as returned to the caller.
type Reply struct {
	SessionID       string              `json:"session_id"`
	Text            string              `json:"response"`
	Intent          state.Intent        `json:"intent,omitempty"`
	Confidence      float64             `json:"confidence"`
	ContextUsed     bool                `json:"context_used"`
	LeadStatus      string              `json:"lead_status,omitempty"`
	LeadScore       int                 `json:"lead_score,omitempty"`
	MeetingSlots    []state.MeetingSlot `json:"meeting_slots,omitempty"`
	ComplianceFlags []string            `json:"compliance_flags,omitempty"`
	Iterations      int                 `json:"iterations"`
}

// Pipeline serialises turns per session and drives them through the supervisor.
type Pipeline struct {
	sup      *supervisor.Supervisor
	sessions session.Store
	opts     Options
	logger   *log.Logger
	locks    *sessionLocks
	turns    *TurnTracker
}

func New(sup *supervisor.Supervisor, sessions session.Store, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[PIPELINE] ", log.LstdFlags)
	}
	return &Pipeline{
		sup:      sup,
		sessions: sessions,
		opts:     opts,
		logger:   logger,
		locks:    newSessionLocks(),
		turns:    NewTurnTracker(logger),
	}
}

// HandleMessage runs one turn. An empty sessionID starts a new session.
func (p *Pipeline) HandleMessage(ctx context.Context, sessionID, text string) (Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, ErrEmptyMessage
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	unlock := p.locks.lock(sessionID)
	defer unlock()

	if p.opts.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.TurnTimeout)
		defer cancel()
	}
	ctx, span := pipelineTracer.Start(ctx, "pipeline.turn", trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	start := time.Now()
	st, err := p.turn(ctx, sessionID, text)
	p.turns.Record(time.Since(start), err == nil, st.CurrentIntent)
	recordTurn(ctx, time.Since(start), err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Reply{}, err
	}
	span.SetAttributes(attribute.String("intent", string(st.CurrentIntent)), attribute.Int("iterations", st.IterationCount))
	return replyFrom(st), nil
}

func (p *Pipeline) turn(ctx context.Context, sessionID, text string) (state.State, error) {
	st, err := p.sessions.Get(ctx, sessionID)
	switch {
	case errors.Is(err, session.ErrNotFound):
		st = state.New(sessionID, p.opts.Brand)
	case err != nil:
		return state.State{}, fmt.Errorf("load session: %w", err)
	}
	seen := len(st.AnalyticsEvents)

	st = st.BeginTurn(text)
	st = p.converse(ctx, st)

	st, err = p.sup.Run(ctx, st)
	if err != nil {
		return st, fmt.Errorf("supervisor: %w", err)
	}
	st = p.finalize(ctx, st)

	reply := st.Reply()
	if reply == "" {
		reply = agents.FallbackReply
	}
	st.Messages = append(st.Messages, state.Message{Role: state.RoleAssistant, Content: reply})

	if err := p.sessions.Save(ctx, st); err != nil {
		return st, fmt.Errorf("save session: %w", err)
	}
	p.persist(ctx, st, text, reply, seen)
	return st, nil
}

// converse runs the conversation step. On failure the turn continues with an
// empty reply, no intent and no entities.
func (p *Pipeline) converse(ctx context.Context, st state.State) state.State {
	out, _, err := p.sup.Step(ctx, st, capability.Conversation)
	if err != nil {
		p.logger.Printf("conversation step failed for %s: %v", st.SessionID, err)
		out = st.Clone()
		out.ProvisionalReply = ""
		out.CurrentIntent = state.IntentUnset
		out.ConfidenceScore = 0
		out.Entities = state.Entities{}
		out.RetrievedContext = []string{}
		out.ContextUsed = false
	}
	out.NextAction = state.ActionSupervisor
	out.PreviousAgent = string(capability.Conversation)
	return out
}

// finalize runs integration then analytics once the supervisor has terminated.
func (p *Pipeline) finalize(ctx context.Context, st state.State) state.State {
	out := st
	for _, name := range []capability.Agent{capability.Integration, capability.Analytics} {
		next, _, err := p.sup.Step(ctx, out, name)
		if err != nil {
			p.logger.Printf("%s step failed for %s: %v", name, st.SessionID, err)
			continue
		}
		out = next
	}
	return out
}

func (p *Pipeline) persist(ctx context.Context, st state.State, text, reply string, seen int) {
	if p.opts.Sink == nil {
		return
	}
	var events []state.Event
	if seen < len(st.AnalyticsEvents) {
		events = st.AnalyticsEvents[seen:]
	}
	turn := store.Turn{
		SessionID:       st.SessionID,
		UserMessage:     text,
		Reply:           reply,
		Intent:          st.CurrentIntent,
		Iterations:      st.IterationCount,
		ComplianceFlags: st.ComplianceFlags,
		Events:          events,
		Metrics:         st.ConversationMetrics,
		Lead:            st.CRMPayload,
	}
	if err := p.opts.Sink.RecordTurn(ctx, turn); err != nil {
		p.logger.Printf("analytics sink for %s: %v", st.SessionID, err)
	}
}

func replyFrom(st state.State) Reply {
	r := Reply{
		SessionID:       st.SessionID,
		Text:            st.Messages[len(st.Messages)-1].Content,
		Intent:          st.CurrentIntent,
		Confidence:      st.ConfidenceScore,
		ContextUsed:     st.ContextUsed,
		LeadStatus:      st.LeadStatus,
		MeetingSlots:    st.MeetingSlots,
		ComplianceFlags: st.ComplianceFlags,
		Iterations:      st.IterationCount,
	}
	if st.LeadData != nil {
		r.LeadScore = st.LeadData.Score
	}
	return r
}

// Session returns the stored state of a session.
func (p *Pipeline) Session(ctx context.Context, id string) (state.State, error) {
	return p.sessions.Get(ctx, id)
}

// Clear deletes a session and reports whether it existed.
func (p *Pipeline) Clear(ctx context.Context, id string) (bool, error) {
	unlock := p.locks.lock(id)
	defer unlock()
	if _, err := p.sessions.Get(ctx, id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := p.sessions.Delete(ctx, id); err != nil {
		return false, err
	}
	return true, nil
}

// Stats summarises every live session.
type Stats struct {
	TotalConversations int          `json:"total_conversations"`
	TotalMessages      int          `json:"total_messages"`
	AverageMessages    float64      `json:"average_messages_per_conversation"`
	ActiveSessions     []string     `json:"active_sessions"`
	Turns              TurnSnapshot `json:"turns"`
}

func (p *Pipeline) Stats(ctx context.Context) (Stats, error) {
	ids, err := p.sessions.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	s := Stats{ActiveSessions: []string{}, Turns: p.turns.Snapshot()}
	for _, id := range ids {
		st, err := p.sessions.Get(ctx, id)
		if errors.Is(err, session.ErrNotFound) {
			continue
		}
		if err != nil {
			return Stats{}, err
		}
		s.TotalConversations++
		s.TotalMessages += len(st.Messages)
		s.ActiveSessions = append(s.ActiveSessions, id)
	}
	if s.TotalConversations > 0 {
		avg := float64(s.TotalMessages) / float64(s.TotalConversations)
		s.AverageMessages = math.Round(avg*100) / 100
	}
	return s, nil
}

const summaryPrompt = `Summarize this sales conversation including:
1. Main topics discussed
2. Customer needs/pain points
3. Products/services of interest
4. Next steps
5. Overall lead quality

Conversation:
%s

Provide a concise summary:`

// NoConversation is the summary of a session without messages.
const NoConversation = "No conversation to summarize."

// Summary asks the language model for a sales summary of a session.
func (p *Pipeline) Summary(ctx context.Context, id string) (string, error) {
	st, err := p.sessions.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if len(st.Messages) == 0 {
		return NoConversation, nil
	}
	if p.opts.Summarizer == nil {
		return "", llm.ErrDisabled
	}
	lines := make([]string, len(st.Messages))
	for i, m := range st.Messages {
		lines[i] = titleRole(m.Role) + ": " + m.Content
	}
	out, err := p.opts.Summarizer.Generate(ctx, fmt.Sprintf(summaryPrompt, strings.Join(lines, "\n")), llm.Options{})
	if err != nil {
		return "", fmt.Errorf("summary generation failed: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func titleRole(role string) string {
	if role == "" {
		return role
	}
	return strings.ToUpper(role[:1]) + role[1:]
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// sessionLocks hands out one mutex per session and forgets it when unused.
type sessionLocks struct {
	mu sync.Mutex
	m  map[string]*sessionLock
}

func newSessionLocks() *sessionLocks { return &sessionLocks{m: make(map[string]*sessionLock)} }

func (l *sessionLocks) lock(id string) func() {
	l.mu.Lock()
	sl, ok := l.m[id]
	if !ok {
		sl = &sessionLock{}
		l.m[id] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()
	return func() {
		sl.mu.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.m, id)
		}
		l.mu.Unlock()
	}
}
