package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mohammad-safakhou/chimera/config"
	"github.com/mohammad-safakhou/chimera/internal/agents"
	"github.com/mohammad-safakhou/chimera/internal/capability"
	"github.com/mohammad-safakhou/chimera/internal/llm"
	"github.com/mohammad-safakhou/chimera/internal/session"
	"github.com/mohammad-safakhou/chimera/internal/state"
	"github.com/mohammad-safakhou/chimera/internal/store"
	"github.com/mohammad-safakhou/chimera/internal/supervisor"
)

var quiet = log.New(io.Discard, "", 0)

type modelFunc func(prompt string) (string, error)

func (f modelFunc) Generate(_ context.Context, prompt string, _ llm.Options) (string, error) {
	return f(prompt)
}

// salesModel answers chat prompts and refuses stylist rewrites so replies
// pass through unchanged.
var salesModel = modelFunc(func(prompt string) (string, error) {
	if strings.HasPrefix(prompt, "Rewrite") {
		return "", errors.New("rewrite unavailable")
	}
	return "Happy to help with that.", nil
})

type captureSink struct {
	mu    sync.Mutex
	turns []store.Turn
}

func (c *captureSink) RecordTurn(_ context.Context, t store.Turn) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, t)
	return nil
}

func testDeps() agents.Deps {
	return agents.Deps{
		Model:     salesModel,
		Scheduler: config.SchedulerConfig{TimeZone: "UTC"},
		Output:    io.Discard,
		Now:       func() time.Time { return time.Date(2024, time.January, 5, 15, 0, 0, 0, time.UTC) },
	}
}

func newTestPipeline(t *testing.T, opts Options, override ...supervisor.Agent) (*Pipeline, session.Store) {
	t.Helper()
	all, err := agents.All(testDeps())
	if err != nil {
		t.Fatalf("agents: %v", err)
	}
	replaced := map[capability.Agent]bool{}
	for _, a := range override {
		replaced[a.Name()] = true
	}
	var wired []supervisor.Agent
	for _, a := range all {
		if !replaced[a.Name()] {
			wired = append(wired, a)
		}
	}
	wired = append(wired, override...)
	sup, err := supervisor.New(config.SupervisorConfig{}, nil, nil, quiet, wired...)
	if err != nil {
		t.Fatalf("supervisor: %v", err)
	}
	sessions, err := session.NewStore(session.StoreInMemory, time.Hour, nil)
	if err != nil {
		t.Fatalf("session store: %v", err)
	}
	if opts.Logger == nil {
		opts.Logger = quiet
	}
	return New(sup, sessions, opts), sessions
}

func TestHandleMessageQuestionSkipsSpecialists(t *testing.T) {
	sink := &captureSink{}
	p, _ := newTestPipeline(t, Options{Sink: sink})
	reply, err := p.HandleMessage(context.Background(), "s-1", "What does Chimera do?")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if reply.Text != "Happy to help with that." {
		t.Fatalf("unexpected reply %q", reply.Text)
	}
	if reply.Intent != state.IntentQuestion || reply.Iterations != 2 {
		t.Fatalf("unexpected intent/iterations: %+v", reply)
	}
	if len(reply.MeetingSlots) != 0 || reply.LeadStatus != "" {
		t.Fatalf("specialists should not run: %+v", reply)
	}
	if len(sink.turns) != 1 {
		t.Fatalf("expected one recorded turn, got %d", len(sink.turns))
	}
	turn := sink.turns[0]
	if turn.UserMessage != "What does Chimera do?" || turn.Metrics == nil {
		t.Fatalf("unexpected turn: %+v", turn)
	}
	if len(turn.Events) != 1 || turn.Events[0].Name != agents.EventMessageReceived {
		t.Fatalf("unexpected events: %+v", turn.Events)
	}
}

func TestHandleMessageDemoWithEmail(t *testing.T) {
	sink := &captureSink{}
	p, sessions := newTestPipeline(t, Options{Sink: sink})
	ctx := context.Background()

	if _, err := p.HandleMessage(ctx, "s-2", "Hi, I'm Jane Doe from Acme Corp, jane@acme.io"); err != nil {
		t.Fatalf("first turn: %v", err)
	}
	reply, err := p.HandleMessage(ctx, "s-2", "Can we book a demo this week?")
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if reply.Intent != state.IntentDemo || reply.Iterations != 3 {
		t.Fatalf("unexpected intent/iterations: %+v", reply)
	}
	if len(reply.MeetingSlots) != 3 || !strings.Contains(reply.Text, "1. Monday, January 08") {
		t.Fatalf("expected slots in reply, got %q", reply.Text)
	}
	if reply.LeadStatus == "" || reply.LeadScore == 0 {
		t.Fatalf("expected lead qualification: %+v", reply)
	}

	st, err := sessions.Get(ctx, "s-2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(st.Messages) != 4 || st.Messages[3].Role != state.RoleAssistant {
		t.Fatalf("unexpected history: %+v", st.Messages)
	}
	if st.Entities.Email != "jane@acme.io" || st.Entities.Company == "" {
		t.Fatalf("entities not carried: %+v", st.Entities)
	}

	if len(sink.turns) != 2 {
		t.Fatalf("expected two turns, got %d", len(sink.turns))
	}
	second := sink.turns[1]
	if second.Lead == nil || second.Lead.Email != "jane@acme.io" {
		t.Fatalf("lead not persisted: %+v", second.Lead)
	}
	names := map[string]bool{}
	for _, ev := range second.Events {
		names[ev.Name] = true
	}
	for _, want := range []string{agents.EventMessageReceived, agents.EventLeadQualified, agents.EventDemoSlotsShown, agents.EventCRMSyncSuccess, agents.EventCalendarDeferred} {
		if !names[want] {
			t.Fatalf("missing event %s in %+v", want, second.Events)
		}
	}
	for _, ev := range second.Events {
		if ev.Name == agents.EventMessageReceived && ev.Attrs["intent"] == string(state.IntentContact) {
			t.Fatalf("first turn events leaked into second: %+v", second.Events)
		}
	}
}

func TestHandleMessageConversationFailure(t *testing.T) {
	broken := supervisor.Func(capability.Conversation, func(context.Context, supervisor.View) (state.Update, error) {
		return state.Update{}, errors.New("model down")
	})
	p, _ := newTestPipeline(t, Options{}, broken)
	reply, err := p.HandleMessage(context.Background(), "s-3", "hello")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if reply.Text != agents.FallbackReply || reply.Intent != state.IntentUnset {
		t.Fatalf("unexpected degraded reply: %+v", reply)
	}
}

func TestHandleMessageConversationFailureDropsEntities(t *testing.T) {
	var calls int
	flaky := supervisor.Func(capability.Conversation, func(context.Context, supervisor.View) (state.Update, error) {
		calls++
		if calls > 1 {
			return state.Update{}, errors.New("model down")
		}
		return state.Update{
			CurrentIntent: state.Ptr(state.IntentQuestion),
			Entities:      &state.Entities{Email: "a@b.com"},
		}, nil
	})
	p, sessions := newTestPipeline(t, Options{}, flaky)
	if _, err := p.HandleMessage(context.Background(), "s-stale", "reach me at a@b.com"); err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	reply, err := p.HandleMessage(context.Background(), "s-stale", "anything new?")
	if err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	if reply.Iterations != 2 {
		t.Fatalf("expected skip route after failed conversation step, got %d iterations", reply.Iterations)
	}
	st, err := sessions.Get(context.Background(), "s-stale")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !st.Entities.Empty() {
		t.Fatalf("expected entities cleared, got %+v", st.Entities)
	}
}

func TestHandleMessageValidation(t *testing.T) {
	p, _ := newTestPipeline(t, Options{})
	if _, err := p.HandleMessage(context.Background(), "s", "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	reply, err := p.HandleMessage(context.Background(), "", "hi there")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if reply.SessionID == "" {
		t.Fatalf("expected generated session id")
	}
}

func TestHandleMessageSerialisesSession(t *testing.T) {
	p, sessions := newTestPipeline(t, Options{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := p.HandleMessage(context.Background(), "shared", fmt.Sprintf("question %d", i)); err != nil {
				t.Errorf("turn %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()
	st, err := sessions.Get(context.Background(), "shared")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(st.Messages) != 16 {
		t.Fatalf("expected 16 messages, got %d", len(st.Messages))
	}
	if n := p.turns.Snapshot().TotalTurns; n != 8 {
		t.Fatalf("expected 8 tracked turns, got %d", n)
	}
	if len(p.locks.m) != 0 {
		t.Fatalf("session locks leaked: %d", len(p.locks.m))
	}
}

func TestStatsAndClear(t *testing.T) {
	p, _ := newTestPipeline(t, Options{})
	ctx := context.Background()
	for _, id := range []string{"a", "a", "b"} {
		if _, err := p.HandleMessage(ctx, id, "hello"); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	stats, err := p.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalConversations != 2 || stats.TotalMessages != 6 || stats.AverageMessages != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(stats.ActiveSessions) != 2 || stats.ActiveSessions[0] != "a" {
		t.Fatalf("unexpected sessions: %v", stats.ActiveSessions)
	}

	ok, err := p.Clear(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("clear existing: %v %v", ok, err)
	}
	ok, err = p.Clear(ctx, "a")
	if err != nil || ok {
		t.Fatalf("clear missing: %v %v", ok, err)
	}
	if _, err := p.Session(ctx, "a"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStatsEmpty(t *testing.T) {
	p, _ := newTestPipeline(t, Options{})
	stats, err := p.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalConversations != 0 || stats.AverageMessages != 0 || stats.ActiveSessions == nil {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestSummary(t *testing.T) {
	var got string
	summarizer := modelFunc(func(prompt string) (string, error) {
		got = prompt
		return "  Warm lead interested in a demo.  ", nil
	})
	p, sessions := newTestPipeline(t, Options{Summarizer: summarizer})
	ctx := context.Background()

	if err := sessions.Save(ctx, state.New("empty", state.BrandProfile{})); err != nil {
		t.Fatalf("save: %v", err)
	}
	out, err := p.Summary(ctx, "empty")
	if err != nil || out != NoConversation {
		t.Fatalf("empty summary: %q %v", out, err)
	}

	if _, err := p.HandleMessage(ctx, "s", "What does it cost?"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	out, err = p.Summary(ctx, "s")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if out != "Warm lead interested in a demo." {
		t.Fatalf("unexpected summary %q", out)
	}
	if !strings.Contains(got, "User: What does it cost?") || !strings.Contains(got, "Assistant: Happy to help") {
		t.Fatalf("unexpected prompt %q", got)
	}
	if _, err := p.Summary(ctx, "missing"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
