package pricecache

import (
	"context"
	"fmt"
	"time"

	"quote-service/internal/models"
)

// ProviderRef identifies a product at an external price provider.
type ProviderRef struct {
	Store             string
	ProviderProductID string
}

// RawPrice is the provider-shaped price a ProviderAdapter extracts from
// whatever payload the provider serves. All optional-field scraping lives
// behind the adapter; the quoting core only ever sees normalized entries.
type RawPrice struct {
	Price     float64
	UnitPrice *float64
	PromoText string
	InStock   *bool
	Currency  string
}

// ProviderAdapter fetches the current price of one product from an external
// provider. Implementations are owned by the refresh pipeline.
type ProviderAdapter interface {
	FetchPrice(ctx context.Context, ref ProviderRef) (RawPrice, error)
}

// Normalize turns a raw provider price into a cache entry stamped with the
// fetch time and TTL. Currency defaults to GBP when the provider omits it.
func Normalize(raw RawPrice, storeProductID int64, regionBucket string, now time.Time, ttl time.Duration) models.PriceEntry {
	currency := raw.Currency
	if currency == "" {
		currency = models.Currency
	}
	return models.PriceEntry{
		StoreProductID: storeProductID,
		RegionBucket:   regionBucket,
		Price:          raw.Price,
		UnitPrice:      raw.UnitPrice,
		PromoText:      raw.PromoText,
		InStock:        raw.InStock,
		Currency:       currency,
		FetchedAt:      now,
		TTLExpiresAt:   now.Add(ttl),
	}
}

type entryWriter interface {
	Put(ctx context.Context, entry *models.PriceEntry) error
}

// Refresher fetches a provider price and writes the normalized entry to the
// cache. It is the write-side counterpart of the quoting engine's lookups.
type Refresher struct {
	adapter ProviderAdapter
	cache   entryWriter
	ttl     time.Duration
}

// NewRefresher creates a refresher over one provider adapter
func NewRefresher(adapter ProviderAdapter, cache entryWriter, ttl time.Duration) *Refresher {
	return &Refresher{adapter: adapter, cache: cache, ttl: ttl}
}

// Refresh updates the cached price for one (product, region) pair.
func (r *Refresher) Refresh(ctx context.Context, storeProductID int64, ref ProviderRef, regionBucket string) error {
	raw, err := r.adapter.FetchPrice(ctx, ref)
	if err != nil {
		return fmt.Errorf("provider fetch failed for %s/%s: %w", ref.Store, ref.ProviderProductID, err)
	}

	entry := Normalize(raw, storeProductID, regionBucket, time.Now(), r.ttl)
	if err := r.cache.Put(ctx, &entry); err != nil {
		return fmt.Errorf("failed to cache refreshed price: %w", err)
	}
	return nil
}
