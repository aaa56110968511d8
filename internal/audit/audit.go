// Package audit records what the supervisor let each agent see and write.
package audit

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind classifies an audit record.
type Kind string

const (
	KindAccess  Kind = "access"
	KindMerge   Kind = "merge"
	KindFailure Kind = "failure"
	KindPass    Kind = "pass"
)

// Access describes one filtered read.
type Access struct {
	Fields []string `json:"fields"`
	Bytes  int      `json:"bytes"`
}

// Decision is the merge verdict for one attempted field write.
type Decision struct {
	Field   string `json:"field"`
	Allowed bool   `json:"allowed"`
}

// Merge summarises one merge of an agent update.
type Merge struct {
	Decisions []Decision `json:"decisions"`
	Merged    int        `json:"merged"`
	Blocked   int        `json:"blocked"`
}

// Failure is an agent error or recovered panic.
type Failure struct {
	Message string `json:"message"`
	Panic   bool   `json:"panic,omitempty"`
}

// Pass is one supervisor pass.
type Pass struct {
	Iteration  int      `json:"iteration"`
	Phase      string   `json:"phase"`
	NextPhase  string   `json:"next_phase,omitempty"`
	Mode       string   `json:"mode"`
	Agents     []string `json:"agents,omitempty"`
	NextAction string   `json:"next_action"`
}

// Record is one audit entry. Exactly one of the detail pointers is set,
// matching Kind.
type Record struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	At        time.Time `json:"at"`
	SessionID string    `json:"session_id,omitempty"`
	Agent     string    `json:"agent,omitempty"`
	Checksum  string    `json:"schema_checksum,omitempty"`

	Access  *Access  `json:"access,omitempty"`
	Merge   *Merge   `json:"merge,omitempty"`
	Failure *Failure `json:"failure,omitempty"`
	Pass    *Pass    `json:"pass,omitempty"`
}

// EventType is the stream event name for the record.
func (r Record) EventType() string { return "audit." + string(r.Kind) }

func (r Record) stamped() Record {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.At.IsZero() {
		r.At = time.Now().UTC()
	}
	return r
}

// Sink receives audit records. Implementations must be safe for concurrent use.
// A sink failure never aborts a turn; implementations log and continue.
type Sink interface {
	Record(ctx context.Context, rec Record)
}

// Log is an in-memory, append-only sink.
type Log struct {
	mu      sync.RWMutex
	records []Record
}

// NewLog returns an empty Log.
func NewLog() *Log { return &Log{} }

func (l *Log) Record(_ context.Context, rec Record) {
	rec = rec.stamped()
	l.mu.Lock()
	l.records = append(l.records, rec)
	l.mu.Unlock()
}

// Records returns a copy of everything recorded so far.
func (l *Log) Records() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Filter returns the records of the given kind.
func (l *Log) Filter(kind Kind) []Record {
	var out []Record
	for _, rec := range l.Records() {
		if rec.Kind == kind {
			out = append(out, rec)
		}
	}
	return out
}

// Len reports the number of records.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// LoggerSink writes each record as one JSON line.
type LoggerSink struct {
	logger     *log.Logger
	skipAccess bool
}

// NewLoggerSink logs to logger, or to stdout with an "[AUDIT] " prefix when nil.
// Access records are skipped unless logAccess is set.
func NewLoggerSink(logger *log.Logger, logAccess bool) *LoggerSink {
	if logger == nil {
		logger = log.New(os.Stdout, "[AUDIT] ", log.LstdFlags)
	}
	return &LoggerSink{logger: logger, skipAccess: !logAccess}
}

func (s *LoggerSink) Record(_ context.Context, rec Record) {
	if s.skipAccess && rec.Kind == KindAccess {
		return
	}
	raw, err := json.Marshal(rec.stamped())
	if err != nil {
		s.logger.Printf("marshal %s record: %v", rec.Kind, err)
		return
	}
	s.logger.Printf("%s", raw)
}

// Multi fans a record out to every sink.
type Multi []Sink

func (m Multi) Record(ctx context.Context, rec Record) {
	rec = rec.stamped()
	for _, s := range m {
		if s != nil {
			s.Record(ctx, rec)
		}
	}
}

// Discard drops every record.
type Discard struct{}

func (Discard) Record(context.Context, Record) {}
