// Package cellcache is a read-through cache for rendered cell payloads:
// an in-process LRU in front of an optional shared remote tier.
package cellcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/mohammed-shakir/digipin/internal/cache/keys"
	"github.com/mohammed-shakir/digipin/internal/core/observability"
)

type Tier string

const (
	TierLRU   Tier = "lru"
	TierRedis Tier = "redis"
	TierMiss  Tier = "miss"
)

// Remote is the shared tier, satisfied by *redisstore.Client.
type Remote interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

type Config struct {
	Size      int
	TTL       time.Duration
	OpTimeout time.Duration
	Version   string
}

type Cache struct {
	local  *lru.Cache[string, []byte]
	remote Remote
	cfg    Config
	log    *slog.Logger
	group  singleflight.Group
}

// New builds a cache. remote may be nil for an LRU-only cache.
func New(cfg Config, remote Remote, log *slog.Logger) (*Cache, error) {
	if cfg.Size <= 0 {
		cfg.Size = 4096
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 250 * time.Millisecond
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	l, err := lru.New[string, []byte](cfg.Size)
	if err != nil {
		return nil, fmt.Errorf("cellcache: lru: %w", err)
	}
	return &Cache{local: l, remote: remote, cfg: cfg, log: log}, nil
}

type result struct {
	val  []byte
	tier Tier
}

// GetOrCompute returns the payload stored for (kind, code), computing and
// storing it on a miss. Remote failures are logged and treated as misses;
// only compute errors are returned. Concurrent misses for one key share a
// single compute.
func (c *Cache) GetOrCompute(ctx context.Context, kind, code string, compute func() ([]byte, error)) ([]byte, Tier, error) {
	key := keys.Key(kind, code, c.cfg.Version)

	if v, ok := c.local.Get(key); ok {
		observability.IncCacheHit(string(TierLRU))
		return v, TierLRU, nil
	}
	observability.IncCacheMiss(string(TierLRU))

	v, err, _ := c.group.Do(key, func() (any, error) {
		if b, ok := c.getRemote(ctx, key); ok {
			c.local.Add(key, b)
			return result{val: b, tier: TierRedis}, nil
		}
		b, err := compute()
		if err != nil {
			return nil, err
		}
		c.local.Add(key, b)
		c.setRemote(ctx, key, b)
		return result{val: b, tier: TierMiss}, nil
	})
	if err != nil {
		return nil, TierMiss, err
	}
	r := v.(result)
	return r.val, r.tier, nil
}

func (c *Cache) getRemote(ctx context.Context, key string) ([]byte, bool) {
	if c.remote == nil {
		return nil, false
	}
	opCtx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
	defer cancel()

	b, found, err := c.remote.Get(opCtx, key)
	if err != nil {
		c.log.WarnContext(ctx, "remote cache get failed", "key", key, "err", err)
		observability.IncCacheMiss(string(TierRedis))
		return nil, false
	}
	if !found {
		observability.IncCacheMiss(string(TierRedis))
		return nil, false
	}
	observability.IncCacheHit(string(TierRedis))
	return b, true
}

func (c *Cache) setRemote(ctx context.Context, key string, b []byte) {
	if c.remote == nil {
		return
	}
	// the request may finish before the write does
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.OpTimeout)
	defer cancel()
	if err := c.remote.Set(opCtx, key, b, c.cfg.TTL); err != nil && !errors.Is(err, context.Canceled) {
		c.log.WarnContext(ctx, "remote cache set failed", "key", key, "err", err)
	}
}

// Len reports the number of entries held in the local tier.
func (c *Cache) Len() int { return c.local.Len() }
