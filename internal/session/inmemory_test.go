package session

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/mohammad-safakhou/chimera/internal/state"
)

func TestInMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore(0)
	st := state.New("a", state.BrandProfile{Tone: "warm"}).BeginTurn("hello")
	if err := s.Save(ctx, st); err != nil {
		t.Fatalf("save: %v", err)
	}
	st.Messages[0].Content = "mutated"

	got, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Messages[0].Content != "hello" {
		t.Fatalf("store aliased caller state: %q", got.Messages[0].Content)
	}
	got.Messages[0].Content = "mutated again"
	again, _ := s.Get(ctx, "a")
	if again.Messages[0].Content != "hello" {
		t.Fatalf("store aliased returned state")
	}
}

func TestInMemoryMissingAndDelete(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore(0)
	if _, err := s.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_ = s.Save(ctx, state.New("x", state.BrandProfile{}))
	if err := s.Delete(ctx, "x"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestInMemoryTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewInMemoryStore(time.Minute)
	s.now = func() time.Time { return now }

	_ = s.Save(ctx, state.New("old", state.BrandProfile{}))
	now = now.Add(30 * time.Second)
	_ = s.Save(ctx, state.New("new", state.BrandProfile{}))
	now = now.Add(45 * time.Second)

	if _, err := s.Get(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected old session expired, got %v", err)
	}
	ids, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"new"}) {
		t.Fatalf("unexpected ids %v", ids)
	}
}

func TestNewStore(t *testing.T) {
	if st, err := NewStore("", 0, nil); err != nil || st == nil {
		t.Fatalf("default store: %v", err)
	}
	st, err := NewStore(StoreInMemory, time.Hour, nil)
	if err != nil {
		t.Fatalf("inmemory store: %v", err)
	}
	if _, ok := st.(*InMemoryStore); !ok {
		t.Fatalf("expected *InMemoryStore, got %T", st)
	}
	if _, err := NewStore(StoreRedis, 0, nil); err == nil {
		t.Fatalf("expected error without redis client")
	}
	if _, err := NewStore("etcd", 0, nil); err == nil {
		t.Fatalf("expected error for unknown store")
	}
}
