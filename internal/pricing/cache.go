package pricing

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"marzsell/internal/models"
)

const snapshotKey = "pricing:snapshot"

// Source loads pricing configuration from durable storage.
type Source interface {
	ListTiers() ([]models.PricingTier, error)
	BaseDailyRate() (decimal.Decimal, bool, error)
}

// CombinedSource assembles a Source from the tier and settings stores.
type CombinedSource struct {
	Tiers interface {
		ListTiers() ([]models.PricingTier, error)
	}
	Settings interface {
		BaseDailyRate() (decimal.Decimal, bool, error)
	}
}

func (s CombinedSource) ListTiers() ([]models.PricingTier, error) { return s.Tiers.ListTiers() }
func (s CombinedSource) BaseDailyRate() (decimal.Decimal, bool, error) {
	return s.Settings.BaseDailyRate()
}

// Snapshot is the read-only pricing configuration a computation runs
// against. RateSet distinguishes a configured zero rate from no rate.
type Snapshot struct {
	BaseDailyRate decimal.Decimal      `json:"base_daily_rate"`
	RateSet       bool                 `json:"rate_set"`
	Tiers         []models.PricingTier `json:"tiers"`
}

// Cache is a read-through cache over Source, Redis-backed with an
// in-memory fallback. Every admin write to tiers or the base rate must
// call Invalidate synchronously, so a read after a write never sees the
// old table.
type Cache struct {
	source Source
	rdb    *redis.Client // nil => memory only
	ttl    time.Duration
	logger *zap.Logger

	mu  sync.RWMutex
	mem *Snapshot
}

// NewCache creates a pricing cache. rdb may be nil when Redis is
// unavailable; the cache then serves from memory only.
func NewCache(source Source, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{source: source, rdb: rdb, ttl: ttl, logger: logger}
}

// Snapshot returns the current pricing configuration, loading it from the
// source on a miss.
func (c *Cache) Snapshot(ctx context.Context) (*Snapshot, error) {
	c.mu.RLock()
	snap := c.mem
	c.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}

	if c.rdb != nil {
		raw, err := c.rdb.Get(ctx, snapshotKey).Bytes()
		if err == nil {
			var cached Snapshot
			if err := json.Unmarshal(raw, &cached); err == nil {
				c.store(&cached)
				return &cached, nil
			}
		} else if err != redis.Nil {
			c.logger.Warn("pricing cache redis read failed", zap.Error(err))
		}
	}

	return c.load(ctx)
}

// Invalidate drops the cached snapshot everywhere. Called synchronously by
// every tier or base-rate write.
func (c *Cache) Invalidate(ctx context.Context) {
	c.mu.Lock()
	c.mem = nil
	c.mu.Unlock()

	if c.rdb != nil {
		if err := c.rdb.Del(ctx, snapshotKey).Err(); err != nil {
			c.logger.Warn("pricing cache redis invalidate failed", zap.Error(err))
		}
	}
}

// Quote prices a volume/duration pair against the cached configuration.
func (c *Cache) Quote(ctx context.Context, volumeGB, durationDays int) (int64, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	if !snap.RateSet {
		return 0, ErrNotConfigured
	}
	return ComputePrice(volumeGB, durationDays, snap.BaseDailyRate, snap.Tiers)
}

func (c *Cache) load(ctx context.Context) (*Snapshot, error) {
	tiers, err := c.source.ListTiers()
	if err != nil {
		return nil, err
	}
	rate, rateSet, err := c.source.BaseDailyRate()
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{BaseDailyRate: rate, RateSet: rateSet, Tiers: tiers}
	c.store(snap)

	if c.rdb != nil {
		raw, err := json.Marshal(snap)
		if err == nil {
			if err := c.rdb.Set(ctx, snapshotKey, raw, c.ttl).Err(); err != nil {
				c.logger.Warn("pricing cache redis write failed", zap.Error(err))
			}
		}
	}
	return snap, nil
}

func (c *Cache) store(snap *Snapshot) {
	c.mu.Lock()
	c.mem = snap
	c.mu.Unlock()
}
