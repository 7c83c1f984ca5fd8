// Package redis caches coupon snapshots in Redis in front of the primary
// coupon store.
package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/hotel-booking/internal/domain/coupon"
)

const (
	keyPrefix   = "coupon:"
	idKeyPrefix = "coupon:id:"
)

var _ coupon.Store = (*CouponCache)(nil)

// CouponCache is a read-through cache for coupon.Store. Snapshots are keyed
// by code hash; a secondary id key lets writes that only know the coupon id
// drop the entry. Redis failures degrade to the underlying store.
type CouponCache struct {
	client redis.Cmdable
	store  coupon.Store
	ttl    time.Duration

	lookups metric.Int64Counter
}

// CacheOption configures a CouponCache.
type CacheOption func(*CouponCache)

// WithMeterProvider sets the meter provider for hit/miss counters.
func WithMeterProvider(mp metric.MeterProvider) CacheOption {
	return func(c *CouponCache) { c.initMetrics(mp.Meter("coupon.cache")) }
}

// NewCouponCache wraps store with a Redis cache whose entries live for ttl.
func NewCouponCache(client redis.Cmdable, store coupon.Store, ttl time.Duration, opts ...CacheOption) *CouponCache {
	c := &CouponCache{client: client, store: store, ttl: ttl}
	c.initMetrics(metricnoop.NewMeterProvider().Meter("coupon.cache"))
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *CouponCache) initMetrics(m metric.Meter) {
	var err error
	if c.lookups, err = m.Int64Counter("coupon.cache.lookups",
		metric.WithDescription("Coupon cache lookups by result"),
	); err != nil {
		otel.Handle(err)
	}
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}

	return client, nil
}

// FindByHash serves the snapshot from Redis, loading and caching it from the
// store on a miss. Unknown codes are not cached.
func (c *CouponCache) FindByHash(ctx context.Context, hash string) (*coupon.Coupon, error) {
	lg := zctx.From(ctx)

	data, err := c.client.Get(ctx, keyPrefix+hash).Bytes()
	switch {
	case err == nil:
		cp, err := decodeCoupon(data)
		if err == nil {
			c.record(ctx, "hit")
			return cp, nil
		}
		lg.Warn("Dropping undecodable coupon cache entry", zap.Error(err))
	case errors.Is(err, redis.Nil):
	default:
		lg.Warn("Coupon cache read failed", zap.Error(err))
	}
	c.record(ctx, "miss")

	cp, err := c.store.FindByHash(ctx, hash)
	if err != nil {
		return nil, err
	}

	if err := c.put(ctx, cp); err != nil {
		lg.Warn("Coupon cache write failed", zap.Error(err))
	}
	return cp, nil
}

func (c *CouponCache) put(ctx context.Context, cp *coupon.Coupon) error {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encodeCoupon(e, cp)

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, keyPrefix+cp.CodeHash, e.Bytes(), c.ttl)
		pipe.Set(ctx, idKeyPrefix+cp.ID, cp.CodeHash, c.ttl)
		return nil
	})
	return err
}

// Invalidate drops the cached snapshot of the coupon with the given id.
func (c *CouponCache) Invalidate(ctx context.Context, id string) error {
	hash, err := c.client.Get(ctx, idKeyPrefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return errors.Wrap(err, "get coupon cache index")
	}
	if err := c.client.Del(ctx, keyPrefix+hash, idKeyPrefix+id).Err(); err != nil {
		return errors.Wrap(err, "delete coupon cache entry")
	}
	return nil
}

func (c *CouponCache) invalidate(ctx context.Context, id string) {
	if err := c.Invalidate(ctx, id); err != nil {
		zctx.From(ctx).Warn("Coupon cache invalidation failed",
			zap.String("coupon_id", id),
			zap.Error(err),
		)
	}
}

func (c *CouponCache) record(ctx context.Context, result string) {
	c.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// FindByPrefix is not cached.
func (c *CouponCache) FindByPrefix(ctx context.Context, prefix string) ([]coupon.Coupon, error) {
	return c.store.FindByPrefix(ctx, prefix)
}

// GuestUsage is not cached; per-guest counters must be read fresh.
func (c *CouponCache) GuestUsage(ctx context.Context, couponID string, guestKeys []string) (int, error) {
	return c.store.GuestUsage(ctx, couponID, guestKeys)
}

// IncrementUsage updates the store and drops the cached snapshot, whose
// usage count is now stale. The entry is dropped even when the limit was
// reached, since the snapshot evidently lagged behind.
func (c *CouponCache) IncrementUsage(ctx context.Context, r coupon.Redemption) error {
	err := c.store.IncrementUsage(ctx, r)
	c.invalidate(ctx, r.CouponID)
	return err
}

// ListHashes is not cached.
func (c *CouponCache) ListHashes(ctx context.Context) ([]string, error) {
	return c.store.ListHashes(ctx)
}

// Create inserts into the store; the entry is cached on first lookup.
func (c *CouponCache) Create(ctx context.Context, cp *coupon.Coupon) error {
	return c.store.Create(ctx, cp)
}

// SetActive updates the store and drops the cached snapshot.
func (c *CouponCache) SetActive(ctx context.Context, id string, active bool) (*coupon.Coupon, error) {
	cp, err := c.store.SetActive(ctx, id, active)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, id)
	return cp, nil
}
