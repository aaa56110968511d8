// Package budget caps language model usage per rolling window so a busy or
// abusive session cannot run up unbounded completion spend.
package budget

import (
	"fmt"
	"time"

	"github.com/mohammad-safakhou/chimera/config"
)

// Config defines the usage guardrails. Nil limits are unbounded.
type Config struct {
	MaxCalls  *int64
	MaxTokens *int64
	Window    time.Duration
}

// FromConfig converts the file configuration; non-positive limits are unset.
func FromConfig(c config.BudgetConfig) Config {
	var out Config
	if c.MaxCalls > 0 {
		v := c.MaxCalls
		out.MaxCalls = &v
	}
	if c.MaxTokens > 0 {
		v := c.MaxTokens
		out.MaxTokens = &v
	}
	out.Window = c.Window
	if out.Window <= 0 {
		out.Window = time.Hour
	}
	return out
}

// Validate ensures the budget values are sane before use.
func (c Config) Validate() error {
	if c.MaxCalls != nil && *c.MaxCalls < 0 {
		return fmt.Errorf("max_calls cannot be negative")
	}
	if c.MaxTokens != nil && *c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens cannot be negative")
	}
	if c.Window < 0 {
		return fmt.Errorf("window cannot be negative")
	}
	return nil
}

// IsZero reports whether no limit is set.
func (c Config) IsZero() bool {
	return c.MaxCalls == nil && c.MaxTokens == nil
}

// Clone produces a deep copy of the config.
func (c Config) Clone() Config {
	clone := Config{Window: c.Window}
	if c.MaxCalls != nil {
		v := *c.MaxCalls
		clone.MaxCalls = &v
	}
	if c.MaxTokens != nil {
		v := *c.MaxTokens
		clone.MaxTokens = &v
	}
	return clone
}

// EstimateTokens approximates the token count of text at four bytes a token.
func EstimateTokens(text string) int64 {
	if text == "" {
		return 0
	}
	return int64(len(text)+3) / 4
}
