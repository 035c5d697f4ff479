// Package cache keeps fetched NAV histories in redis so a rebuilt store does
// not hit the source again.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/trogers1052/fund-metrics/internal/models"
)

// KeyPrefix prefixes every history key
const KeyPrefix = "fundnav:history:"

// Source is the upstream the cache decorates
type Source interface {
	ListTopFunds(ctx context.Context, n int) ([]models.Fund, error)
	FetchHistory(ctx context.Context, code string) ([]models.Observation, error)
}

// Client is the subset of the redis client the cache uses
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// HistoryCache serves FetchHistory from redis and falls back to the source.
// Redis failures are logged and never fail a fetch.
type HistoryCache struct {
	next Source
	rdb  Client
	ttl  time.Duration
	log  zerolog.Logger
}

// NewHistoryCache wraps next. A zero ttl keeps entries forever.
func NewHistoryCache(next Source, rdb Client, ttl time.Duration, log zerolog.Logger) *HistoryCache {
	return &HistoryCache{
		next: next,
		rdb:  rdb,
		ttl:  ttl,
		log:  log.With().Str("component", "history_cache").Logger(),
	}
}

// Key returns the redis key of a fund's history
func Key(code string) string {
	return KeyPrefix + code
}

// ListTopFunds is never cached; the ranking changes daily
func (c *HistoryCache) ListTopFunds(ctx context.Context, n int) ([]models.Fund, error) {
	return c.next.ListTopFunds(ctx, n)
}

// FetchHistory returns the cached history of code or fetches and caches it
func (c *HistoryCache) FetchHistory(ctx context.Context, code string) ([]models.Observation, error) {
	key := Key(code)

	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var obs []models.Observation
		if err := json.Unmarshal(data, &obs); err == nil {
			c.log.Debug().Str("code", code).Int("observations", len(obs)).Msg("history cache hit")
			return obs, nil
		}
		c.log.Warn().Str("key", key).Msg("discarding unreadable cache entry")
	case errors.Is(err, redis.Nil):
	default:
		c.log.Warn().Err(err).Str("key", key).Msg("history cache read failed")
	}

	obs, err := c.next.FetchHistory(ctx, code)
	if err != nil {
		return nil, err
	}
	if len(obs) == 0 {
		return obs, nil
	}

	payload, err := json.Marshal(obs)
	if err != nil {
		c.log.Warn().Err(err).Str("code", code).Msg("failed to encode history for cache")
		return obs, nil
	}
	if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("history cache write failed")
	}
	return obs, nil
}
