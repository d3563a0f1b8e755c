// Package cache is a Redis read-through decorator for the geography tables
// of a refdata.Store. Fee schedule lookups pass straight through.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"medicare-refprice/core/refdata"
	"medicare-refprice/core/types"
	"medicare-refprice/internal/logging"
)

const keyPrefix = "refprice:geo:"

// missMarker caches a confirmed ErrNotFound
const missMarker = "-"

// Redis must answer well inside one guarded lookup or be skipped
const (
	redisTimeout = 150 * time.Millisecond
	cooldown     = 5 * time.Second
)

// Store wraps a refdata.Store. Redis failures are logged and bypassed;
// after a failure Redis is skipped entirely for a cooldown period.
type Store struct {
	refdata.Store
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger

	// downUntil is the UnixNano time before which Redis is skipped
	downUntil atomic.Int64
	cooldown  time.Duration
}

// New wraps next with a fail-fast Redis client at addr
func New(next refdata.Store, addr string, ttl time.Duration) *Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		MaxRetries:   -1,
		DialTimeout:  redisTimeout,
		ReadTimeout:  redisTimeout,
		WriteTimeout: redisTimeout,
		PoolTimeout:  redisTimeout,
	})
	return NewWithClient(next, rdb, ttl)
}

// NewWithClient wraps next with an existing client
func NewWithClient(next refdata.Store, rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{
		Store:    next,
		redis:    rdb,
		ttl:      ttl,
		logger:   logging.Named("cache"),
		cooldown: cooldown,
	}
}

func (s *Store) available() bool {
	return time.Now().UnixNano() >= s.downUntil.Load()
}

func (s *Store) markDown(op, key string, err error) {
	s.downUntil.Store(time.Now().Add(s.cooldown).UnixNano())
	s.logger.Warn("cache "+op+" failed, bypassing redis",
		zap.String("key", key),
		zap.Duration("cooldown", s.cooldown),
		zap.Error(err),
	)
}

// Close closes the Redis client
func (s *Store) Close() error {
	return s.redis.Close()
}

func (s *Store) Crosswalk(ctx context.Context, zip string) (types.CrosswalkRow, error) {
	return readThrough(ctx, s, "crosswalk:"+zip, func() (types.CrosswalkRow, error) {
		return s.Store.Crosswalk(ctx, zip)
	})
}

func (s *Store) GPCIByLocality(ctx context.Context, locality, state string) (types.GPCIRow, error) {
	return readThrough(ctx, s, "gpci:"+state+"|"+locality, func() (types.GPCIRow, error) {
		return s.Store.GPCIByLocality(ctx, locality, state)
	})
}

func (s *Store) GPCIByZip(ctx context.Context, zip string) (types.GPCIRow, error) {
	return readThrough(ctx, s, "gpci_zip:"+zip, func() (types.GPCIRow, error) {
		return s.Store.GPCIByZip(ctx, zip)
	})
}

func (s *Store) GPCIStateAverage(ctx context.Context, state string) (types.GPCIStateAverage, error) {
	return readThrough(ctx, s, "gpci_state_avg:"+state, func() (types.GPCIStateAverage, error) {
		return s.Store.GPCIStateAverage(ctx, state)
	})
}

func (s *Store) GPCIByState(ctx context.Context, state string) ([]types.GPCIRow, error) {
	return readThrough(ctx, s, "gpci_state:"+state, func() ([]types.GPCIRow, error) {
		return s.Store.GPCIByState(ctx, state)
	})
}

// readThrough serves key from Redis, else loads it and caches the result.
// Lookup errors other than ErrNotFound are never cached.
func readThrough[T any](ctx context.Context, s *Store, key string, load func() (T, error)) (T, error) {
	var zero T
	key = keyPrefix + key

	if !s.available() {
		return load()
	}

	cached, err := s.redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		if cached == missMarker {
			return zero, refdata.ErrNotFound
		}
		var v T
		if json.Unmarshal([]byte(cached), &v) == nil {
			return v, nil
		}
		s.logger.Warn("dropping undecodable cache entry", zap.String("key", key))
	case errors.Is(err, redis.Nil):
	case ctx.Err() != nil:
		return zero, ctx.Err()
	default:
		s.markDown("read", key, err)
		return load()
	}

	v, err := load()
	switch {
	case err == nil:
		data, mErr := json.Marshal(v)
		if mErr == nil {
			s.set(ctx, key, string(data))
		}
		return v, nil
	case refdata.IsNotFound(err):
		s.set(ctx, key, missMarker)
		return zero, err
	default:
		return zero, err
	}
}

func (s *Store) set(ctx context.Context, key, value string) {
	if !s.available() {
		return
	}
	if err := s.redis.Set(ctx, key, value, s.ttl).Err(); err != nil && ctx.Err() == nil {
		s.markDown("write", key, err)
	}
}
