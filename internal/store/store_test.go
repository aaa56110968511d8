package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/mohammad-safakhou/chimera/internal/state"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &Store{DB: db}, mock
}

func TestRecordTurn(t *testing.T) {
	st, mock := newMock(t)
	at := time.Date(2024, 1, 5, 15, 0, 0, 0, time.UTC)
	turn := Turn{
		ID:          "turn-1",
		SessionID:   "s-1",
		UserMessage: "I need a demo",
		Reply:       "Here are some times.",
		Intent:      state.IntentDemo,
		Iterations:  3,
		Events: []state.Event{
			state.NewEvent("message_received", "intent", "demo"),
			state.NewEvent("demo_slots_shown"),
		},
		Metrics: &state.Metrics{SessionID: "s-1", TotalEvents: 2, EventTypes: []string{"demo_slots_shown", "message_received"}, LoggedAt: at},
		Lead:    &state.CRMPayload{Email: "ana@acme.io", Name: "Ana", LeadScore: 80, Qualification: "hot"},
		At:      at,
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO turns (id, session_id, user_message, reply, intent, iterations, compliance_flags, created_at)`)).
		WithArgs("turn-1", "s-1", "I need a demo", "Here are some times.", "demo", 3, sqlmock.AnyArg(), at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO analytics_events`)).
		WithArgs("turn-1", "s-1", "message_received", []byte(`{"intent":"demo"}`), at).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO analytics_events`)).
		WithArgs("turn-1", "s-1", "demo_slots_shown", []byte(`{}`), at).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO conversation_metrics`)).
		WithArgs("s-1", 2, sqlmock.AnyArg(), at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO leads`)).
		WithArgs("ana@acme.io", "s-1", "Ana", "", "", 80, "hot", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := st.RecordTurn(context.Background(), turn); err != nil {
		t.Fatalf("RecordTurn: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordTurnRollsBackOnFailure(t *testing.T) {
	st, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO turns`)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO analytics_events`)).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := st.RecordTurn(context.Background(), Turn{SessionID: "s-1", Events: []state.Event{state.NewEvent("x")}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordTurnMinimal(t *testing.T) {
	st, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO turns`)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := st.RecordTurn(context.Background(), Turn{SessionID: "s-2", UserMessage: "hi"}); err != nil {
		t.Fatalf("RecordTurn: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListLeads(t *testing.T) {
	st, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT email, session_id, name, company, phone, score, qualification, updated_at
FROM leads`)).
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows([]string{"email", "session_id", "name", "company", "phone", "score", "qualification", "updated_at"}).
			AddRow("ana@acme.io", "s-1", "Ana", "Acme Inc", "", 80, "hot", now).
			AddRow("bo@beta.io", "s-2", "Unknown", "", "", 30, "cold", now.Add(-time.Hour)))

	leads, err := st.ListLeads(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListLeads: %v", err)
	}
	if len(leads) != 2 || leads[0].Email != "ana@acme.io" || leads[0].Score != 80 || leads[1].Qualification != "cold" {
		t.Fatalf("unexpected leads %+v", leads)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEventCounts(t *testing.T) {
	st, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT name, COUNT(*) FROM analytics_events GROUP BY name`)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "count"}).AddRow("message_received", 4).AddRow("lead_qualified", 1))

	counts, err := st.EventCounts(context.Background())
	if err != nil {
		t.Fatalf("EventCounts: %v", err)
	}
	if counts["message_received"] != 4 || counts["lead_qualified"] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
}
