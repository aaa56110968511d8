package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/chimera/internal/state"
)

const keyPrefix = "chimera:session:"

// RedisStore keeps each session as a JSON string with a sliding TTL.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func key(id string) string { return keyPrefix + id }

func (s *RedisStore) Get(ctx context.Context, id string) (state.State, error) {
	raw, err := s.rdb.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return state.State{}, ErrNotFound
	}
	if err != nil {
		return state.State{}, fmt.Errorf("session get %s: %w", id, err)
	}
	var st state.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return state.State{}, fmt.Errorf("session decode %s: %w", id, err)
	}
	return st, nil
}

func (s *RedisStore) Save(ctx context.Context, st state.State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("session encode %s: %w", st.SessionID, err)
	}
	if err := s.rdb.Set(ctx, key(st.SessionID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("session save %s: %w", st.SessionID, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, key(id)).Err()
}

func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	var ids []string
	iter := s.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("session list: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}
