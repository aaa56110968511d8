package crm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mohammad-safakhou/chimera/config"
	"github.com/mohammad-safakhou/chimera/internal/state"
)

var quiet = log.New(io.Discard, "", 0)

func lead() state.CRMPayload {
	return state.CRMPayload{Email: "ana@acme.io", Name: "Ana", Company: "Acme Inc", Source: "chimera_chatbot", LeadScore: 80, Qualification: "hot"}
}

func newClient(url string, retries int) *Client {
	c := New(config.CRMConfig{Endpoint: url, APIKey: "secret", Retries: retries}, quiet)
	c.backoff = time.Millisecond
	return c
}

func TestPushSendsPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing api key header")
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	if err := newClient(srv.URL, 0).Push(context.Background(), lead()); err != nil {
		t.Fatalf("push: %v", err)
	}
	if got["email"] != "ana@acme.io" || got["lead_score"] != float64(80) {
		t.Fatalf("unexpected body %v", got)
	}
	if _, ok := got["api_key"]; ok {
		t.Fatalf("api key leaked into body: %v", got)
	}
}

func TestPushRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if len(body) == 0 {
			t.Errorf("attempt %d sent an empty body", atomic.LoadInt32(&calls)+1)
		}
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := newClient(srv.URL, 2).Push(context.Background(), lead()); err != nil {
		t.Fatalf("push: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestPushDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad email", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	err := newClient(srv.URL, 3).Push(context.Background(), lead())
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestPushWithoutEndpointSucceeds(t *testing.T) {
	c := New(config.CRMConfig{}, quiet)
	if c.Enabled() {
		t.Fatalf("expected disabled client")
	}
	if err := c.Push(context.Background(), lead()); err != nil {
		t.Fatalf("push: %v", err)
	}
}
