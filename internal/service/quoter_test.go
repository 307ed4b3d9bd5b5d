package service

import (
	"context"
	"testing"
	"time"

	"quote-service/internal/catalog"
	"quote-service/internal/models"
	"quote-service/internal/pricecache"
	"quote-service/internal/units"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quoteNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func indexFor(cat *fakeCatalog) *catalog.Index {
	return catalog.NewIndex(cat.items)
}

func aggregateFor(t *testing.T, cat *fakeCatalog, items ...models.QuoteItem) *AggregateResult {
	t.Helper()
	agg, err := NewAggregator(indexFor(cat)).AggregateItems(items)
	require.NoError(t, err)
	return agg
}

func gramsOf(name string, value float64) models.QuoteItem {
	return models.QuoteItem{IngredientName: name, Required: models.Measure{Value: value, Unit: units.Gram}}
}

func countOf(name string, value float64) models.QuoteItem {
	return models.QuoteItem{IngredientName: name, Required: models.Measure{Value: value, Unit: units.Count}}
}

func TestPackRounding(t *testing.T) {
	cat, prices := tescoFixture()
	quoter := NewStoreQuoter(cat, prices, 0.2)

	// 350g over 500g packs needs one whole pack; a partial pack is still a
	// full purchase.
	agg := aggregateFor(t, cat, gramsOf("spaghetti", 350))
	quote, err := quoter.QuoteStore(context.Background(), "tesco", agg, quoteNow, pricecache.GlobalBucket)
	require.NoError(t, err)
	require.Len(t, quote.LineItems, 1)
	assert.Equal(t, int64(1), quote.LineItems[0].PacksNeeded)
	assert.Equal(t, 0.85, quote.LineItems[0].LineTotal)

	agg = aggregateFor(t, cat, gramsOf("spaghetti", 750))
	quote, err = quoter.QuoteStore(context.Background(), "tesco", agg, quoteNow, pricecache.GlobalBucket)
	require.NoError(t, err)
	assert.Equal(t, int64(2), quote.LineItems[0].PacksNeeded)
	assert.Equal(t, 1.70, quote.LineItems[0].LineTotal)
}

func TestPackRoundingExactBoundary(t *testing.T) {
	cat, prices := tescoFixture()
	quoter := NewStoreQuoter(cat, prices, 0.2)

	agg := aggregateFor(t, cat, gramsOf("spaghetti", 1000))
	quote, err := quoter.QuoteStore(context.Background(), "tesco", agg, quoteNow, pricecache.GlobalBucket)
	require.NoError(t, err)

	// Exactly two packs, no over-purchase at the boundary.
	assert.Equal(t, int64(2), quote.LineItems[0].PacksNeeded)
	assert.Equal(t, 1.70, quote.BasketTotal)
}

func TestConsumedEstimateUsesUnitPrice(t *testing.T) {
	cat, prices := tescoFixture()
	quoter := NewStoreQuoter(cat, prices, 0.2)

	agg := aggregateFor(t, cat, gramsOf("spaghetti", 200))
	quote, err := quoter.QuoteStore(context.Background(), "tesco", agg, quoteNow, pricecache.GlobalBucket)
	require.NoError(t, err)
	require.Len(t, quote.LineItems, 1)

	line := quote.LineItems[0]
	// Unit price derived from price/packSize: 0.85/500 per gram.
	require.NotNil(t, line.UnitPrice)
	assert.InDelta(t, 0.0017, *line.UnitPrice, 1e-9)
	assert.Equal(t, 0.34, line.ConsumedEstimate)
	assert.Equal(t, 0.85, line.LineTotal)
	assert.Equal(t, 0.34, quote.ConsumedEstimate)
}

func TestConsumedEstimatePrefersCachedUnitPrice(t *testing.T) {
	cat, prices := tescoFixture()
	cached := 0.002
	prices.entries["GLOBAL"][10].UnitPrice = &cached
	quoter := NewStoreQuoter(cat, prices, 0.2)

	agg := aggregateFor(t, cat, gramsOf("spaghetti", 200))
	quote, err := quoter.QuoteStore(context.Background(), "tesco", agg, quoteNow, pricecache.GlobalBucket)
	require.NoError(t, err)

	assert.Equal(t, 0.40, quote.LineItems[0].ConsumedEstimate)
}

func TestZeroPackSizeIsDefensivelyZeroPacks(t *testing.T) {
	cat, prices := tescoFixture()
	cat.mappings["tesco"][0].Product.PackSize = 0
	quoter := NewStoreQuoter(cat, prices, 0.2)

	agg := aggregateFor(t, cat, gramsOf("spaghetti", 200))
	quote, err := quoter.QuoteStore(context.Background(), "tesco", agg, quoteNow, pricecache.GlobalBucket)
	require.NoError(t, err)
	require.Len(t, quote.LineItems, 1)

	line := quote.LineItems[0]
	assert.Equal(t, int64(0), line.PacksNeeded)
	assert.Equal(t, float64(0), line.LineTotal)
	assert.Nil(t, line.UnitPrice)
	assert.Equal(t, float64(0), line.ConsumedEstimate)
}

func TestPrioritySelection(t *testing.T) {
	cat, prices := tescoFixture()
	// A higher-priority own-brand mapping for spaghetti.
	cat.mappings["tesco"] = append(cat.mappings["tesco"],
		mapping(3, 1, 12, 5, "tesco", "Tesco Finest Spaghetti 500g", 500, units.Gram))
	prices.entries["GLOBAL"][12] = freshEntry(12, 1.10)
	quoter := NewStoreQuoter(cat, prices, 0.2)

	agg := aggregateFor(t, cat, gramsOf("spaghetti", 200))
	quote, err := quoter.QuoteStore(context.Background(), "tesco", agg, quoteNow, pricecache.GlobalBucket)
	require.NoError(t, err)
	require.Len(t, quote.LineItems, 1)
	assert.Equal(t, int64(12), quote.LineItems[0].StoreProductID)
}

func TestPriorityTieBreakIsStable(t *testing.T) {
	cat, prices := tescoFixture()
	// Same priority as the original mapping; the lower mapping ID wins.
	cat.mappings["tesco"] = append(cat.mappings["tesco"],
		mapping(9, 1, 13, 0, "tesco", "Tesco Spaghetti Twin 500g", 500, units.Gram))
	prices.entries["GLOBAL"][13] = freshEntry(13, 0.80)
	quoter := NewStoreQuoter(cat, prices, 0.2)

	agg := aggregateFor(t, cat, gramsOf("spaghetti", 200))

	for i := 0; i < 5; i++ {
		quote, err := quoter.QuoteStore(context.Background(), "tesco", agg, quoteNow, pricecache.GlobalBucket)
		require.NoError(t, err)
		require.Len(t, quote.LineItems, 1)
		assert.Equal(t, int64(10), quote.LineItems[0].StoreProductID)
	}
}

func TestMissingStoreMapping(t *testing.T) {
	cat, prices := tescoFixture()
	quoter := NewStoreQuoter(cat, prices, 0.2)

	agg := aggregateFor(t, cat, gramsOf("spaghetti", 200), countOf("eggs", 2))
	quote, err := quoter.QuoteStore(context.Background(), "asda", agg, quoteNow, pricecache.GlobalBucket)
	require.NoError(t, err)

	assert.Empty(t, quote.LineItems)
	assert.Equal(t, 2, quote.MissingCount)
	for _, m := range quote.MissingItems {
		assert.Equal(t, models.ReasonNoStoreMapping, m.Reason)
	}
	assert.Contains(t, quote.Warnings, models.WarningBasketIncomplete)
}

func TestMissingCachedPrice(t *testing.T) {
	cat, prices := tescoFixture()
	delete(prices.entries["GLOBAL"], 11)
	quoter := NewStoreQuoter(cat, prices, 0.2)

	agg := aggregateFor(t, cat, gramsOf("spaghetti", 200), countOf("eggs", 2))
	quote, err := quoter.QuoteStore(context.Background(), "tesco", agg, quoteNow, pricecache.GlobalBucket)
	require.NoError(t, err)

	require.Len(t, quote.LineItems, 1)
	require.Len(t, quote.MissingItems, 1)
	assert.Equal(t, models.MissingItem{IngredientName: "Eggs", Reason: models.ReasonNoCachedPrice}, quote.MissingItems[0])
	// The priced line still contributes to the basket total.
	assert.Equal(t, 0.85, quote.BasketTotal)
}

func TestUnresolvedItemNeverSilentlyDropped(t *testing.T) {
	cat, prices := tescoFixture()
	quoter := NewStoreQuoter(cat, prices, 0.2)

	agg := aggregateFor(t, cat, gramsOf("spaghetti", 200), countOf("dragonfruit", 1))
	quote, err := quoter.QuoteStore(context.Background(), "tesco", agg, quoteNow, pricecache.GlobalBucket)
	require.NoError(t, err)

	require.Len(t, quote.MissingItems, 1)
	assert.Equal(t, models.MissingItem{IngredientName: "dragonfruit", Reason: models.ReasonNoCanonicalMatch}, quote.MissingItems[0])
	assert.Equal(t, 1, quote.MissingCount)
}

func TestStalePriceStillUsedWithWarning(t *testing.T) {
	cat, prices := tescoFixture()
	prices.entries["GLOBAL"][10] = staleEntry(10, 0.85)
	quoter := NewStoreQuoter(cat, prices, 0.2)

	agg := aggregateFor(t, cat, gramsOf("spaghetti", 200))
	quote, err := quoter.QuoteStore(context.Background(), "tesco", agg, quoteNow, pricecache.GlobalBucket)
	require.NoError(t, err)

	require.Len(t, quote.LineItems, 1)
	assert.Equal(t, models.PriceSourceStale, quote.LineItems[0].PriceSource)
	assert.Equal(t, 0.85, quote.BasketTotal)
	assert.Contains(t, quote.Warnings, models.WarningStalePrices)
	assert.Empty(t, quote.MissingItems)
}

func TestFreshPricesHaveNoWarnings(t *testing.T) {
	cat, prices := tescoFixture()
	quoter := NewStoreQuoter(cat, prices, 0.2)

	agg := aggregateFor(t, cat, gramsOf("spaghetti", 200), countOf("eggs", 2))
	quote, err := quoter.QuoteStore(context.Background(), "tesco", agg, quoteNow, pricecache.GlobalBucket)
	require.NoError(t, err)

	assert.Empty(t, quote.Warnings)
	assert.Equal(t, models.PriceSourceCached, quote.LineItems[0].PriceSource)
}

func TestPackUnitMismatchIsMissingItem(t *testing.T) {
	cat, prices := tescoFixture()
	// Catalog bug: the mapped product is priced per ML for a GRAM item.
	cat.mappings["tesco"][0].Product.PackUnit = units.Ml
	quoter := NewStoreQuoter(cat, prices, 0.2)

	agg := aggregateFor(t, cat, gramsOf("spaghetti", 200))
	quote, err := quoter.QuoteStore(context.Background(), "tesco", agg, quoteNow, pricecache.GlobalBucket)
	require.NoError(t, err)

	assert.Empty(t, quote.LineItems)
	require.Len(t, quote.MissingItems, 1)
	assert.Equal(t, models.ReasonUnitMismatch, quote.MissingItems[0].Reason)
}

func TestLastUpdatedIsMaxFetchedAt(t *testing.T) {
	cat, prices := tescoFixture()
	later := fetchedAt.Add(30 * time.Minute)
	prices.entries["GLOBAL"][11].FetchedAt = later
	quoter := NewStoreQuoter(cat, prices, 0.2)

	agg := aggregateFor(t, cat, gramsOf("spaghetti", 200), countOf("eggs", 2))
	quote, err := quoter.QuoteStore(context.Background(), "tesco", agg, quoteNow, pricecache.GlobalBucket)
	require.NoError(t, err)

	require.NotNil(t, quote.LastUpdated)
	assert.Equal(t, later, *quote.LastUpdated)
}

func TestBackingStoreFailurePropagates(t *testing.T) {
	cat, prices := tescoFixture()
	cat.failStores["tesco"] = true
	quoter := NewStoreQuoter(cat, prices, 0.2)

	agg := aggregateFor(t, cat, gramsOf("spaghetti", 200))
	_, err := quoter.QuoteStore(context.Background(), "tesco", agg, quoteNow, pricecache.GlobalBucket)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store mappings unavailable")
}
