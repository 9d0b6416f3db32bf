package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mosaicmart/backoffice/pkg/config"
	"github.com/mosaicmart/backoffice/pkg/logger"
)

const defaultMergeLockTTL = 30 * time.Second

// MergeLocker guards one (user, session) merge against concurrent
// attempts. Acquire never fails hard: when the backend is unreachable
// the lock reports acquired and the merge proceeds unguarded.
type MergeLocker interface {
	Acquire(ctx context.Context, userID uuid.UUID, sessionID string) (release func(context.Context), acquired bool)
}

// lockStore is the slice of the redis client the merge lock needs.
type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	MergeLockKey(userID, sessionID string) string
}

// RedisMergeLock implements MergeLocker with SETNX + TTL. A Redis outage
// degrades to fail-open: duplicate merges become possible but checkout
// keeps working.
type RedisMergeLock struct {
	client lockStore
	ttl    time.Duration
	logg   *logger.Logger
}

// NewRedisMergeLock builds a Redis-backed merge lock.
func NewRedisMergeLock(client lockStore, ttl time.Duration, logg *logger.Logger) (*RedisMergeLock, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required for merge lock")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if ttl <= 0 {
		ttl = defaultMergeLockTTL
	}
	return &RedisMergeLock{client: client, ttl: ttl, logg: logg}, nil
}

func (l *RedisMergeLock) Acquire(ctx context.Context, userID uuid.UUID, sessionID string) (func(context.Context), bool) {
	key := l.client.MergeLockKey(userID.String(), sessionID)
	owner := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, owner, l.ttl)
	if err != nil {
		logCtx := l.logg.WithField(ctx, "lock_key", key)
		l.logg.Warn(logCtx, "merge lock backend unavailable; proceeding without lock")
		return func(context.Context) {}, true
	}
	if !ok {
		return func(context.Context) {}, false
	}

	release := func(ctx context.Context) {
		value, err := l.client.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				l.logg.Warn(l.logg.WithField(ctx, "lock_key", key), "failed to read merge lock owner; leaving TTL to expire it")
			}
			return
		}
		if value != owner {
			return
		}
		if err := l.client.Del(ctx, key); err != nil {
			l.logg.Warn(l.logg.WithField(ctx, "lock_key", key), "failed to delete merge lock; leaving TTL to expire it")
		}
	}
	return release, true
}

// NoopMergeLock always acquires. Used when the merge lock feature is
// disabled by configuration.
type NoopMergeLock struct{}

func (NoopMergeLock) Acquire(context.Context, uuid.UUID, string) (func(context.Context), bool) {
	return func(context.Context) {}, true
}

// NewMergeLocker picks the merge lock implementation from configuration:
// Redis-backed when enabled, a no-op otherwise.
func NewMergeLocker(cfg config.MergeLockConfig, client lockStore, logg *logger.Logger) (MergeLocker, error) {
	if !cfg.Enabled {
		return NoopMergeLock{}, nil
	}
	return NewRedisMergeLock(client, cfg.TTL, logg)
}
