package service

import (
	"context"
	"errors"

	"quote-service/internal/models"
)

// ErrInvalidBasket marks basket input that fails validation before any
// store is queried. The whole request is rejected with it.
var ErrInvalidBasket = errors.New("invalid basket input")

// CatalogStore provides the canonical-item catalog and per-store product
// mappings. Mappings for one canonical item must arrive highest priority
// first with a stable tie-break.
type CatalogStore interface {
	LoadSnapshot(ctx context.Context) ([]models.CanonicalItem, error)
	GetStoreMappings(ctx context.Context, store string, canonicalItemIDs []int64) ([]models.StoreMapping, error)
}

// PriceSource provides TTL-stamped cached prices batched by store product.
// Products with no cached row are absent from the returned map.
type PriceSource interface {
	GetBatch(ctx context.Context, storeProductIDs []int64, regionBucket string) (map[int64]*models.PriceEntry, error)
}

// QuotePublisher is the fire-and-forget audit sink for completed quotes.
type QuotePublisher interface {
	PublishQuoteCompleted(ctx context.Context, event *models.QuoteCompletedEvent) error
}
