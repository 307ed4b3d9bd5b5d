package pricecache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"quote-service/internal/models"
	"quote-service/internal/util"

	"github.com/go-redis/redis/v8"
)

// GlobalBucket is the sentinel region for requests with no postcode.
const GlobalBucket = "GLOBAL"

// RegionBucket derives the cache-partitioning key from a postcode: the
// upper-cased outward code (everything before the first whitespace).
func RegionBucket(postcode string) string {
	trimmed := strings.TrimSpace(postcode)
	if trimmed == "" {
		return GlobalBucket
	}
	if i := strings.IndexFunc(trimmed, unicode.IsSpace); i >= 0 {
		trimmed = trimmed[:i]
	}
	return strings.ToUpper(trimmed)
}

// Status classifies a cache lookup result.
type Status string

const (
	StatusFresh   Status = "fresh"
	StatusStale   Status = "stale"
	StatusMissing Status = "missing"
)

// Classify reports how a looked-up entry should be treated at time now.
// A stale entry is still usable for pricing; only an absent row is missing.
func Classify(entry *models.PriceEntry, now time.Time) Status {
	if entry == nil {
		return StatusMissing
	}
	if !now.Before(entry.TTLExpiresAt) {
		return StatusStale
	}
	return StatusFresh
}

// Client reads and writes price entries in Redis. Entries are stored without
// a Redis expiry: staleness is decided against the entry's own TTL timestamp
// so that stale-but-present prices stay readable.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis price cache client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func entryKey(storeProductID int64, regionBucket string) string {
	return fmt.Sprintf("price:%d:%s", storeProductID, regionBucket)
}

// Get retrieves one price entry; a missing row returns (nil, nil).
func (c *Client) Get(ctx context.Context, storeProductID int64, regionBucket string) (*models.PriceEntry, error) {
	raw, err := c.rdb.Get(ctx, entryKey(storeProductID, regionBucket)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("price cache get failed: %w", err)
	}

	var entry models.PriceEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("price cache entry corrupt: %w", err)
	}
	return &entry, nil
}

// GetBatch retrieves entries for a list of store products in one MGET.
// Products with no cached row are simply absent from the returned map.
func (c *Client) GetBatch(ctx context.Context, storeProductIDs []int64, regionBucket string) (map[int64]*models.PriceEntry, error) {
	entries := make(map[int64]*models.PriceEntry, len(storeProductIDs))
	if len(storeProductIDs) == 0 {
		return entries, nil
	}

	keys := make([]string, len(storeProductIDs))
	for i, id := range storeProductIDs {
		keys[i] = entryKey(id, regionBucket)
	}

	values, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("price cache mget failed: %w", err)
	}

	for i, value := range values {
		if value == nil {
			util.PriceCacheLookupsTotal.WithLabelValues(string(StatusMissing)).Inc()
			continue
		}
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var entry models.PriceEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("price cache entry corrupt for product %d: %w", storeProductIDs[i], err)
		}
		entries[storeProductIDs[i]] = &entry
	}

	return entries, nil
}

// Put writes one price entry. Called by the external refresh process; the
// quoting path never writes.
func (c *Client) Put(ctx context.Context, entry *models.PriceEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal price entry: %w", err)
	}

	key := entryKey(entry.StoreProductID, entry.RegionBucket)
	if err := c.rdb.Set(ctx, key, raw, 0).Err(); err != nil {
		return fmt.Errorf("price cache put failed: %w", err)
	}
	return nil
}
