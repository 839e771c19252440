// Package healthcache keeps the latest gateway health snapshot in Redis
// so the routing engine can read it without touching Postgres on every
// payment. The monitor refreshes it after each sweep; readers fall back
// to the store when the key is missing or stale.
package healthcache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ArpitSharma4/nexus-gateway/internal/storage"
)

const snapshotKey = "nexus:gateway_health"

// TTL is three monitor intervals: a snapshot older than that means the
// monitor is not running and readers should go to the store.
const defaultTTL = 90 * time.Second

type Cache struct {
	rdb *redis.Client
	ttl time.Duration
	log *logrus.Entry
}

func New(rdb *redis.Client, log *logrus.Logger) *Cache {
	return &Cache{
		rdb: rdb,
		ttl: defaultTTL,
		log: log.WithField("component", "healthcache"),
	}
}

// Put replaces the cached snapshot.
func (c *Cache) Put(ctx context.Context, records []storage.GatewayHealth) error {
	payload, err := msgpack.Marshal(records)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, snapshotKey, payload, c.ttl).Err()
}

// Get returns the cached snapshot and whether it was present. Decode and
// transport failures are logged and reported as a miss so callers always
// have the store fallback.
func (c *Cache) Get(ctx context.Context) ([]storage.GatewayHealth, bool) {
	payload, err := c.rdb.Get(ctx, snapshotKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.WithError(err).Warn("health snapshot read failed")
		}
		return nil, false
	}
	var records []storage.GatewayHealth
	if err := msgpack.Unmarshal(payload, &records); err != nil {
		c.log.WithError(err).Warn("health snapshot decode failed")
		return nil, false
	}
	return records, true
}

// Invalidate drops the snapshot, forcing the next read to the store.
// Used by the admin outage toggle so a kill takes effect immediately.
func (c *Cache) Invalidate(ctx context.Context) error {
	return c.rdb.Del(ctx, snapshotKey).Err()
}

// Store is the fallback the Reader consults on a cache miss.
type Store interface {
	ListGatewayHealth(ctx context.Context) ([]storage.GatewayHealth, error)
}

// Reader serves health snapshots cache-first with a store fallback, so
// the payment path hits Postgres only when the snapshot is missing.
// A nil cache degrades to the store alone.
type Reader struct {
	cache *Cache
	store Store
}

func NewReader(cache *Cache, store Store) *Reader {
	return &Reader{cache: cache, store: store}
}

func (r *Reader) ListGatewayHealth(ctx context.Context) ([]storage.GatewayHealth, error) {
	if r.cache != nil {
		if records, ok := r.cache.Get(ctx); ok {
			return records, nil
		}
	}
	return r.store.ListGatewayHealth(ctx)
}
