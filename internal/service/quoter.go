package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"quote-service/internal/models"
	"quote-service/internal/pricecache"
	"quote-service/internal/util"

	"go.uber.org/zap"
)

// StoreQuoter turns one aggregated basket into a priced quote for a single
// store. Per-item problems become missing entries; it only errors when the
// catalog or price cache itself is unreachable.
type StoreQuoter struct {
	catalog          CatalogStore
	prices           PriceSource
	missingWarnRatio float64
	logger           *zap.Logger
}

// NewStoreQuoter creates a quoter over the catalog and price cache
func NewStoreQuoter(catalogStore CatalogStore, prices PriceSource, missingWarnRatio float64) *StoreQuoter {
	if missingWarnRatio <= 0 {
		missingWarnRatio = 0.2
	}
	return &StoreQuoter{
		catalog:          catalogStore,
		prices:           prices,
		missingWarnRatio: missingWarnRatio,
		logger:           util.Named("quoter"),
	}
}

// QuoteStore prices the aggregated requirements at one store. Catalog and
// cache reads are batched: one mappings query and one cache fetch per store.
func (q *StoreQuoter) QuoteStore(ctx context.Context, store string, agg *AggregateResult, now time.Time, regionBucket string) (*models.StoreQuote, error) {
	ctx, span := util.StartSpan(ctx, "StoreQuoter.QuoteStore")
	defer span.End()

	quote := &models.StoreQuote{
		Store:        store,
		LineItems:    []models.LineItem{},
		MissingItems: append([]models.MissingItem{}, agg.Missing...),
	}

	mappings, err := q.catalog.GetStoreMappings(ctx, store, agg.Order)
	if err != nil {
		return nil, fmt.Errorf("store mappings unavailable for %s: %w", store, err)
	}
	selected := q.selectMappings(mappings)

	productIDs := make([]int64, 0, len(selected))
	for _, id := range agg.Order {
		if m, ok := selected[id]; ok {
			productIDs = append(productIDs, m.Product.ID)
		}
	}

	entries, err := q.prices.GetBatch(ctx, productIDs, regionBucket)
	if err != nil {
		return nil, fmt.Errorf("price cache unavailable for %s: %w", store, err)
	}

	var (
		basketTotal   float64
		consumedTotal float64
		staleCount    int
		lastUpdated   time.Time
	)

	for _, id := range agg.Order {
		req := agg.Requirements[id]

		mapping, ok := selected[id]
		if !ok {
			q.addMissing(quote, req.Item.Name, models.ReasonNoStoreMapping)
			continue
		}
		product := mapping.Product

		if product.PackUnit != req.Item.UnitType {
			util.CatalogUnitMismatchTotal.Inc()
			q.logger.Error("Catalog integrity: pack unit disagrees with canonical unit type",
				zap.String("store", store),
				zap.Int64("canonical_item_id", req.Item.ID),
				zap.Int64("store_product_id", product.ID),
				zap.String("pack_unit", string(product.PackUnit)),
				zap.String("unit_type", string(req.Item.UnitType)))
			q.addMissing(quote, req.Item.Name, models.ReasonUnitMismatch)
			continue
		}

		entry := entries[product.ID]
		status := pricecache.Classify(entry, now)
		if status == pricecache.StatusMissing {
			q.addMissing(quote, req.Item.Name, models.ReasonNoCachedPrice)
			continue
		}
		util.PriceCacheLookupsTotal.WithLabelValues(string(status)).Inc()

		priceSource := models.PriceSourceCached
		if status == pricecache.StatusStale {
			priceSource = models.PriceSourceStale
			staleCount++
			util.StalePriceLinesTotal.Inc()
		}

		// Whole packs only: a partial pack is still a full purchase.
		var packsNeeded int64
		if product.PackSize > 0 {
			packsNeeded = int64(math.Ceil(req.Quantity / product.PackSize))
		}
		lineTotal := float64(packsNeeded) * entry.Price

		unitPrice := entry.UnitPrice
		if unitPrice == nil && product.PackSize > 0 {
			derived := entry.Price / product.PackSize
			unitPrice = &derived
		}

		// What the ingredient actually used would cost, ignoring pack waste.
		consumed := lineTotal
		if unitPrice != nil {
			consumed = req.Quantity * *unitPrice
		}

		if entry.FetchedAt.After(lastUpdated) {
			lastUpdated = entry.FetchedAt
		}

		basketTotal += lineTotal
		consumedTotal += consumed

		quote.LineItems = append(quote.LineItems, models.LineItem{
			CanonicalItemID:  req.Item.ID,
			CanonicalName:    req.Item.Name,
			StoreProductID:   product.ID,
			ProductTitle:     product.Title,
			PackSize:         models.Measure{Value: product.PackSize, Unit: product.PackUnit},
			Required:         models.Measure{Value: req.Quantity, Unit: req.Item.UnitType},
			PacksNeeded:      packsNeeded,
			Price:            entry.Price,
			UnitPrice:        unitPrice,
			LineTotal:        round2(lineTotal),
			ConsumedEstimate: round2(consumed),
			Currency:         entry.Currency,
			PromoText:        entry.PromoText,
			InStock:          entry.InStock,
			ProductURL:       product.ProductURL,
			ImageURL:         product.ImageURL,
			PriceSource:      priceSource,
			FetchedAt:        entry.FetchedAt,
		})
	}

	// Money is rounded only here, at the response boundary.
	quote.BasketTotal = round2(basketTotal)
	quote.ConsumedEstimate = round2(consumedTotal)
	quote.MissingCount = len(quote.MissingItems)
	if !lastUpdated.IsZero() {
		quote.LastUpdated = &lastUpdated
	}

	if total := agg.TotalRequested(); total > 0 {
		if ratio := float64(quote.MissingCount) / float64(total); ratio > q.missingWarnRatio {
			quote.Warnings = append(quote.Warnings, models.WarningBasketIncomplete)
		}
	}
	if staleCount > 0 {
		quote.Warnings = append(quote.Warnings, models.WarningStalePrices)
	}

	return quote, nil
}

// selectMappings picks the winning mapping per canonical item: highest
// priority, ties broken by lowest mapping ID. Deterministic regardless of
// row order.
func (q *StoreQuoter) selectMappings(mappings []models.StoreMapping) map[int64]models.StoreMapping {
	selected := make(map[int64]models.StoreMapping, len(mappings))
	for _, m := range mappings {
		if !m.Product.Active {
			continue
		}
		current, ok := selected[m.CanonicalItemID]
		if !ok || m.Priority > current.Priority ||
			(m.Priority == current.Priority && m.MappingID < current.MappingID) {
			selected[m.CanonicalItemID] = m
		}
	}
	return selected
}

func (q *StoreQuoter) addMissing(quote *models.StoreQuote, name, reason string) {
	util.MissingItemsTotal.WithLabelValues(reason).Inc()
	quote.MissingItems = append(quote.MissingItems, models.MissingItem{IngredientName: name, Reason: reason})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
