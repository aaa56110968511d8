package agents

import (
	"context"
	"fmt"
	"log"

	"github.com/mohammad-safakhou/chimera/internal/capability"
	"github.com/mohammad-safakhou/chimera/internal/llm"
	"github.com/mohammad-safakhou/chimera/internal/state"
	"github.com/mohammad-safakhou/chimera/internal/supervisor"
)

const (
	stylistMinChars    = 50
	stylistTemperature = 0.3
	defaultTone        = "professional"
	defaultVoice       = "helpful"
)

const stylistPrompt = `Rewrite this message in %s tone with %s voice.

Original: %s

Requirements:
- Keep all facts unchanged
- Apply tone and voice consistently
- Maintain similar length
- Natural, conversational flow

Rewritten:`

// Stylist rewrites the provisional reply in the brand's tone and voice.
type Stylist struct {
	model  llm.ChatModel
	opts   llm.Options
	logger *log.Logger
}

func NewStylist(d Deps) *Stylist {
	model := d.LLM.StylistModel
	if model == "" {
		model = d.LLM.Model
	}
	return &Stylist{
		model:  d.Model,
		opts:   llm.Options{Model: model, Temperature: stylistTemperature, MaxTokens: d.LLM.MaxTokens},
		logger: d.logger("[STYLIST] "),
	}
}

func (s *Stylist) Name() capability.Agent { return capability.Stylist }

func (s *Stylist) Process(ctx context.Context, view supervisor.View) (state.Update, error) {
	in := view.State.StylistView()
	raw := in.ProvisionalReply
	if len(raw) < stylistMinChars || s.model == nil {
		return state.Update{SanitizedOutput: state.Ptr(raw)}, nil
	}
	tone, voice := in.BrandProfile.Tone, in.BrandProfile.Voice
	if tone == "" {
		tone = defaultTone
	}
	if voice == "" {
		voice = defaultVoice
	}
	styled, err := s.model.Generate(ctx, fmt.Sprintf(stylistPrompt, tone, voice, raw), s.opts)
	if err != nil || styled == "" {
		s.logger.Printf("rewrite failed, keeping original: %v", err)
		styled = raw
	}
	return state.Update{SanitizedOutput: state.Ptr(styled)}, nil
}
