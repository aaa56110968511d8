package budget

import (
	"sync"
	"time"
)

// Usage is the consumption inside the current window.
type Usage struct {
	Calls       int64     `json:"calls"`
	Tokens      int64     `json:"tokens"`
	WindowStart time.Time `json:"window_start"`
	Rejected    int64     `json:"rejected"`
}

// Monitor tracks usage against configured limits over a fixed window that
// restarts once it has elapsed.
type Monitor struct {
	config Config
	now    func() time.Time

	mu       sync.Mutex
	start    time.Time
	calls    int64
	tokens   int64
	rejected int64
}

// NewMonitor clones the provided config and starts tracking usage.
func NewMonitor(cfg Config, now func() time.Time) *Monitor {
	if now == nil {
		now = time.Now
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	return &Monitor{config: cfg.Clone(), now: now, start: now()}
}

// Allow reserves one call, failing when the call or token limit has already
// been reached in the current window.
func (m *Monitor) Allow() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roll()
	if m.config.MaxCalls != nil && m.calls >= *m.config.MaxCalls {
		m.rejected++
		return ErrExceeded{Kind: "calls", Usage: m.calls, Limit: *m.config.MaxCalls, ResetIn: m.resetIn()}
	}
	if m.config.MaxTokens != nil && m.tokens >= *m.config.MaxTokens {
		m.rejected++
		return ErrExceeded{Kind: "tokens", Usage: m.tokens, Limit: *m.config.MaxTokens, ResetIn: m.resetIn()}
	}
	m.calls++
	return nil
}

// Add records tokens consumed by a call already admitted by Allow.
func (m *Monitor) Add(tokens int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roll()
	m.tokens += tokens
}

// Usage returns the accumulated metrics of the current window.
func (m *Monitor) Usage() Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roll()
	return Usage{Calls: m.calls, Tokens: m.tokens, WindowStart: m.start, Rejected: m.rejected}
}

// Config returns a clone of the underlying budget config.
func (m *Monitor) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config.Clone()
}

// roll requires m.mu.
func (m *Monitor) roll() {
	now := m.now()
	if now.Sub(m.start) < m.config.Window {
		return
	}
	m.start = now
	m.calls, m.tokens = 0, 0
}

// resetIn requires m.mu.
func (m *Monitor) resetIn() string {
	left := m.config.Window - m.now().Sub(m.start)
	if left < 0 {
		left = 0
	}
	return left.Round(time.Second).String()
}
