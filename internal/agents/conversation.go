package agents

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/mohammad-safakhou/chimera/internal/capability"
	"github.com/mohammad-safakhou/chimera/internal/knowledge"
	"github.com/mohammad-safakhou/chimera/internal/llm"
	"github.com/mohammad-safakhou/chimera/internal/state"
	"github.com/mohammad-safakhou/chimera/internal/supervisor"
)

// SystemPrompt frames every conversation reply.
const SystemPrompt = `You are Chimera, an intelligent AI sales assistant.

Your job:
1. Answer visitor questions using knowledge base context
2. Detect what they want (intent: question, demo, pricing, contact)
3. Extract contact info (name, email, company)
4. Be conversational, helpful, professional

Guidelines:
- Use provided context whenever available
- Keep responses 2-4 sentences
- If you don't know, say so politely
- Maintain friendly, enthusiastic tone
`

// FallbackReply is sent when the language model cannot answer.
const FallbackReply = "I'm having trouble right now. Please try again."

const (
	contextChunks           = 3
	conversationTemperature = 0.7
)

// Conversation answers from the knowledge base, classifies the intent of the
// latest message and extracts entities from the whole conversation.
type Conversation struct {
	kb     knowledge.Searcher
	model  llm.ChatModel
	opts   llm.Options
	logger *log.Logger
}

func NewConversation(d Deps) *Conversation {
	return &Conversation{
		kb:     d.Knowledge,
		model:  d.Model,
		opts:   llm.Options{Model: d.LLM.Model, Temperature: conversationTemperature, MaxTokens: d.LLM.MaxTokens},
		logger: d.logger("[CONVERSATION] "),
	}
}

func (c *Conversation) Name() capability.Agent { return capability.Conversation }

func (c *Conversation) Process(ctx context.Context, view supervisor.View) (state.Update, error) {
	in := view.State.ConversationView()
	if len(in.Messages) == 0 {
		return state.Update{}, errors.New("conversation: no messages")
	}
	last := in.Messages[len(in.Messages)-1].Content

	chunks := c.retrieve(ctx, last)
	reply, err := c.reply(ctx, BuildPrompt(chunks, in.Messages[:len(in.Messages)-1], last))
	if err != nil {
		c.logger.Printf("generation failed: %v", err)
		reply = FallbackReply
	}
	intent := ClassifyIntent(last)
	entities := ExtractEntities(in.Messages)
	c.logger.Printf("intent=%s chunks=%d email=%t", intent, len(chunks), entities.Email != "")

	return state.Update{
		CurrentIntent:    state.Ptr(intent),
		ConfidenceScore:  state.Ptr(Confidence),
		ProvisionalReply: state.Ptr(reply),
		Entities:         &entities,
		RetrievedContext: chunks,
		ContextUsed:      state.Ptr(len(chunks) > 0),
		AnalyticsEvents: []state.Event{state.NewEvent(EventMessageReceived,
			"session_id", in.SessionID, "intent", string(intent), "confidence", Confidence)},
	}, nil
}

func (c *Conversation) retrieve(ctx context.Context, query string) []string {
	if c.kb == nil {
		return []string{}
	}
	chunks, err := c.kb.Search(ctx, query, contextChunks)
	if err != nil {
		c.logger.Printf("knowledge search failed: %v", err)
		return []string{}
	}
	if chunks == nil {
		return []string{}
	}
	return chunks
}

func (c *Conversation) reply(ctx context.Context, prompt string) (string, error) {
	if c.model == nil {
		return "", llm.ErrDisabled
	}
	out, err := c.model.Generate(ctx, prompt, c.opts)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", errors.New("empty completion")
	}
	return out, nil
}

// BuildPrompt assembles the reply prompt from retrieved context, prior
// messages and the latest user message.
func BuildPrompt(chunks []string, history []state.Message, message string) string {
	contextText := "No relevant documents found."
	if len(chunks) > 0 {
		parts := make([]string, len(chunks))
		for i, ch := range chunks {
			parts[i] = fmt.Sprintf("[Context %d]\n%s", i+1, ch)
		}
		contextText = strings.Join(parts, "\n\n")
	}
	historyText := "This is the start of the conversation."
	if len(history) > 0 {
		lines := make([]string, len(history))
		for i, m := range history {
			lines[i] = m.Role + ": " + m.Content
		}
		historyText = strings.Join(lines, "\n")
	}
	var b strings.Builder
	b.WriteString(SystemPrompt)
	b.WriteString("\n\nKnowledge Base Context:\n")
	b.WriteString(contextText)
	b.WriteString("\n\nConversation History:\n")
	b.WriteString(historyText)
	b.WriteString("\n\nUser's Message:\n")
	b.WriteString(message)
	b.WriteString("\n\nYour Task:\nProvide a helpful response (2-4 sentences).\n")
	return b.String()
}
