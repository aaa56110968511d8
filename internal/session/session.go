// Package session persists conversation state between turns.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/chimera/internal/state"
)

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("session: not found")

// Store keeps one state record per session.
type Store interface {
	Get(ctx context.Context, id string) (state.State, error)
	Save(ctx context.Context, st state.State) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
}

type StoreType string

const (
	StoreInMemory StoreType = "inmemory"
	StoreRedis    StoreType = "redis"
)

// NewStore builds the configured backend. Redis requires a client.
func NewStore(storeType StoreType, ttl time.Duration, rdb *redis.Client) (Store, error) {
	switch storeType {
	case "", StoreInMemory:
		return NewInMemoryStore(ttl), nil
	case StoreRedis:
		if rdb == nil {
			return nil, errors.New("session: redis store requires a redis client")
		}
		return NewRedisStore(rdb, ttl), nil
	default:
		return nil, fmt.Errorf("session: unsupported store type %q", storeType)
	}
}
