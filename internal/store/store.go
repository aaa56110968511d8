// Package store persists turn analytics and qualified leads in Postgres.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/mohammad-safakhou/chimera/internal/state"
)

type Store struct {
	DB *sql.DB
}

// Turn is everything persisted after one user message has been handled.
type Turn struct {
	ID              string
	SessionID       string
	UserMessage     string
	Reply           string
	Intent          state.Intent
	Iterations      int
	ComplianceFlags []string
	Events          []state.Event
	Metrics         *state.Metrics
	Lead            *state.CRMPayload
	At              time.Time
}

// LeadRecord is a stored qualified lead.
type LeadRecord struct {
	Email         string    `json:"email"`
	SessionID     string    `json:"session_id"`
	Name          string    `json:"name"`
	Company       string    `json:"company,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Score         int       `json:"score"`
	Qualification string    `json:"qualification"`
	UpdatedAt     time.Time `json:"updated_at"`
}

var (
	metricsOnce    sync.Once
	turnCounter    otelmetric.Int64Counter
	eventCounter   otelmetric.Int64Counter
	metricsInitErr error
)

func initStoreMetrics() {
	meter := otel.Meter("chimera/store")
	var err error
	turnCounter, err = meter.Int64Counter("store_turns_total")
	if err != nil {
		metricsInitErr = err
		return
	}
	eventCounter, err = meter.Int64Counter("store_analytics_events_total")
	if err != nil {
		metricsInitErr = err
	}
}

// NewWithDSN opens and pings a Postgres connection.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// RecordTurn writes the turn, its new analytics events, the session metrics
// and, when present, the lead in one transaction.
func (s *Store) RecordTurn(ctx context.Context, t Turn) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.At.IsZero() {
		t.At = time.Now().UTC()
	}
	flags := t.ComplianceFlags
	if flags == nil {
		flags = []string{}
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO turns (id, session_id, user_message, reply, intent, iterations, compliance_flags, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		t.ID, t.SessionID, t.UserMessage, t.Reply, string(t.Intent), t.Iterations, pq.Array(flags), t.At); err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}

	for _, ev := range t.Events {
		attrs, err := json.Marshal(ev.Attrs)
		if err != nil {
			return fmt.Errorf("encode event %s: %w", ev.Name, err)
		}
		if ev.Attrs == nil {
			attrs = []byte("{}")
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO analytics_events (turn_id, session_id, name, attrs, created_at)
VALUES ($1,$2,$3,$4,$5)`, t.ID, t.SessionID, ev.Name, attrs, t.At); err != nil {
			return fmt.Errorf("insert event %s: %w", ev.Name, err)
		}
	}

	if m := t.Metrics; m != nil {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO conversation_metrics (session_id, total_events, event_types, logged_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (session_id) DO UPDATE SET
  total_events = EXCLUDED.total_events,
  event_types = EXCLUDED.event_types,
  logged_at = EXCLUDED.logged_at`, m.SessionID, m.TotalEvents, pq.Array(m.EventTypes), m.LoggedAt); err != nil {
			return fmt.Errorf("upsert metrics: %w", err)
		}
	}

	if l := t.Lead; l != nil && l.Email != "" {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO leads (email, session_id, name, company, phone, score, qualification, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (email) DO UPDATE SET
  session_id = EXCLUDED.session_id,
  name = EXCLUDED.name,
  company = EXCLUDED.company,
  phone = EXCLUDED.phone,
  score = EXCLUDED.score,
  qualification = EXCLUDED.qualification,
  updated_at = EXCLUDED.updated_at`,
			l.Email, t.SessionID, l.Name, l.Company, l.Phone, l.LeadScore, l.Qualification, t.At); err != nil {
			return fmt.Errorf("upsert lead: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	metricsOnce.Do(initStoreMetrics)
	if metricsInitErr == nil {
		turnCounter.Add(ctx, 1)
		eventCounter.Add(ctx, int64(len(t.Events)), otelmetric.WithAttributes(attribute.String("session", t.SessionID)))
	}
	return nil
}

// ListLeads returns the most recently updated leads first.
func (s *Store) ListLeads(ctx context.Context, limit int) ([]LeadRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT email, session_id, name, company, phone, score, qualification, updated_at
FROM leads
ORDER BY updated_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LeadRecord
	for rows.Next() {
		var l LeadRecord
		if err := rows.Scan(&l.Email, &l.SessionID, &l.Name, &l.Company, &l.Phone, &l.Score, &l.Qualification, &l.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// EventCounts returns how many times each analytics event has been recorded.
func (s *Store) EventCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT name, COUNT(*) FROM analytics_events GROUP BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		out[name] = n
	}
	return out, rows.Err()
}
