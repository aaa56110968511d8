package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mohammad-safakhou/chimera/internal/state"
	"github.com/mohammad-safakhou/chimera/internal/store"
)

func TestStorePostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		tcPostgres.WithDatabase("chimera"),
		tcPostgres.WithUsername("chimera"),
		tcPostgres.WithPassword("chimera"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp")),
	)
	if err != nil {
		t.Fatalf("postgres container: %v", err)
	}
	defer func() { _ = pgC.Terminate(ctx) }()

	host, err := pgC.Host(ctx)
	if err != nil {
		t.Fatalf("postgres host: %v", err)
	}
	port, err := pgC.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("postgres port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://chimera:chimera@%s:%s/chimera?sslmode=disable", host, port.Port())

	m, err := migrate.New("file://../../migrations", dsn)
	if err != nil {
		t.Fatalf("migrate init: %v", err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	_, _ = m.Close()

	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		t.Fatalf("store init: %v", err)
	}
	defer st.Close()

	at := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	lead := &state.CRMPayload{Email: "jane@acme.io", Name: "Jane Doe", Company: "Acme Corp", LeadScore: 55, Qualification: "warm"}
	first := store.Turn{
		SessionID:   "s-1",
		UserMessage: "hi, jane@acme.io",
		Reply:       "Hello Jane",
		Intent:      state.IntentContact,
		Iterations:  3,
		Events: []state.Event{
			state.NewEvent("message_received", "intent", "contact"),
			state.NewEvent("lead_qualified", "qualification", "warm", "score", 55),
		},
		Metrics: &state.Metrics{SessionID: "s-1", TotalEvents: 2, EventTypes: []string{"lead_qualified", "message_received"}, LoggedAt: at},
		Lead:    lead,
		At:      at,
	}
	if err := st.RecordTurn(ctx, first); err != nil {
		t.Fatalf("record first: %v", err)
	}

	upgraded := *lead
	upgraded.LeadScore, upgraded.Qualification = 80, "hot"
	second := store.Turn{
		SessionID:       "s-1",
		UserMessage:     "book a demo asap",
		Reply:           "Here are some times",
		Intent:          state.IntentDemo,
		ComplianceFlags: []string{"markup_removed"},
		Events:          []state.Event{state.NewEvent("message_received"), state.NewEvent("demo_slots_shown", "slots_count", 3)},
		Lead:            &upgraded,
		At:              at.Add(time.Minute),
	}
	if err := st.RecordTurn(ctx, second); err != nil {
		t.Fatalf("record second: %v", err)
	}

	leads, err := st.ListLeads(ctx, 10)
	if err != nil {
		t.Fatalf("list leads: %v", err)
	}
	if len(leads) != 1 || leads[0].Score != 80 || leads[0].Qualification != "hot" {
		t.Fatalf("lead not upserted: %+v", leads)
	}

	counts, err := st.EventCounts(ctx)
	if err != nil {
		t.Fatalf("event counts: %v", err)
	}
	if counts["message_received"] != 2 || counts["lead_qualified"] != 1 || counts["demo_slots_shown"] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}
