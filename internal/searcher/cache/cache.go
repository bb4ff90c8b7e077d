// Package cache keeps serialized search results in Redis so repeated
// requests skip the engine. Concurrent misses on one key are computed once,
// every store call is bounded by a timeout, and a circuit breaker stops
// consulting the store while it keeps failing.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-core/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/resilience"
)

const keyPrefix = "search:"

// Store is the byte-level backend. A missing key must yield an error
// matching apperrors.ErrNotFound.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

// Stats counts lookups since start-up. Errors are store failures, which
// are also counted as misses.
type Stats struct {
	Hits         int64  `json:"hits"`
	Misses       int64  `json:"misses"`
	Errors       int64  `json:"errors"`
	BreakerState string `json:"breaker_state"`
}

type ResultCache struct {
	store     Store
	ttl       time.Duration
	opTimeout time.Duration
	breaker   *resilience.CircuitBreaker
	group     singleflight.Group
	logger    *slog.Logger
	hits      atomic.Int64
	misses    atomic.Int64
	errors    atomic.Int64
}

func New(store Store, cfg config.CacheConfig, breaker *resilience.CircuitBreaker) *ResultCache {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("result-cache", resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.FailureThreshold,
			SuccessThreshold: cfg.SuccessThreshold,
			OpenTimeout:      cfg.OpenTimeout,
		})
	}
	return &ResultCache{
		store:     store,
		ttl:       cfg.TTL,
		opTimeout: cfg.OperationTimeout,
		breaker:   breaker,
		logger:    slog.Default().With("component", "result-cache"),
	}
}

// Key derives the cache key of a request. req must marshal to the same JSON
// for equivalent requests.
func Key(kind string, req any) (string, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("building cache key: %w", err)
	}
	hash := sha256.Sum256(append([]byte(kind+"|"), raw...))
	return fmt.Sprintf("%s%s:%x", keyPrefix, kind, hash[:16]), nil
}

// GetOrCompute returns the cached value under key, or computes, stores and
// returns it. The boolean reports a cache hit. Cache failures never fail
// the call; only compute errors are returned, and they are not cached.
func GetOrCompute[T any](ctx context.Context, c *ResultCache, key string, compute func() (T, error)) (T, bool, error) {
	var cached T
	if c.get(ctx, key, &cached) {
		return cached, true, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		var again T
		if c.get(ctx, key, &again) {
			return again, nil
		}
		result, err := compute()
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, result)
		return result, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return v.(T), false, nil
}

func (c *ResultCache) get(ctx context.Context, key string, dst any) bool {
	var data []byte
	err := c.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, c.opTimeout, "cache get", func(ctx context.Context) error {
			var err error
			data, err = c.store.Get(ctx, key)
			return err
		})
	}, apperrors.ErrNotFound)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.misses.Add(1)
		return false
	case err != nil:
		c.fail("cache get failed", key, err)
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.fail("cache entry unreadable", key, err)
		return false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "key", key)
	return true
}

func (c *ResultCache) set(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, c.opTimeout, "cache set", func(ctx context.Context) error {
			return c.store.Set(ctx, key, data, c.ttl)
		})
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

func (c *ResultCache) fail(msg, key string, err error) {
	c.misses.Add(1)
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return
	}
	c.errors.Add(1)
	c.logger.Warn(msg, "key", key, "error", err)
}

// Invalidate drops every cached result and returns how many were removed.
func (c *ResultCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.DeletePrefix(ctx, keyPrefix)
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *ResultCache) Stats() Stats {
	return Stats{
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Errors:       c.errors.Load(),
		BreakerState: c.breaker.State().String(),
	}
}
