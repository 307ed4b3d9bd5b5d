package service

import (
	"context"
	"fmt"
	"time"

	"quote-service/internal/models"
	"quote-service/internal/units"
)

type fakeCatalog struct {
	items       []models.CanonicalItem
	mappings    map[string][]models.StoreMapping
	failStores  map[string]bool
	snapshotErr error
}

func (f *fakeCatalog) LoadSnapshot(ctx context.Context) ([]models.CanonicalItem, error) {
	if f.snapshotErr != nil {
		return nil, f.snapshotErr
	}
	return f.items, nil
}

func (f *fakeCatalog) GetStoreMappings(ctx context.Context, store string, canonicalItemIDs []int64) ([]models.StoreMapping, error) {
	if f.failStores[store] {
		return nil, fmt.Errorf("catalog unreachable for %s", store)
	}

	wanted := make(map[int64]bool, len(canonicalItemIDs))
	for _, id := range canonicalItemIDs {
		wanted[id] = true
	}

	var out []models.StoreMapping
	for _, m := range f.mappings[store] {
		if wanted[m.CanonicalItemID] && m.Product.Active {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakePrices struct {
	entries map[string]map[int64]*models.PriceEntry
	err     error
}

func (f *fakePrices) GetBatch(ctx context.Context, storeProductIDs []int64, regionBucket string) (map[int64]*models.PriceEntry, error) {
	if f.err != nil {
		return nil, f.err
	}

	out := make(map[int64]*models.PriceEntry)
	for _, id := range storeProductIDs {
		if entry, ok := f.entries[regionBucket][id]; ok {
			out[id] = entry
		}
	}
	return out, nil
}

type fakePublisher struct {
	events chan *models.QuoteCompletedEvent
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{events: make(chan *models.QuoteCompletedEvent, 8)}
}

func (f *fakePublisher) PublishQuoteCompleted(ctx context.Context, event *models.QuoteCompletedEvent) error {
	f.events <- event
	return nil
}

var fetchedAt = time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

func freshEntry(productID int64, price float64) *models.PriceEntry {
	return &models.PriceEntry{
		StoreProductID: productID,
		RegionBucket:   "GLOBAL",
		Price:          price,
		Currency:       models.Currency,
		FetchedAt:      fetchedAt,
		TTLExpiresAt:   fetchedAt.Add(6 * time.Hour),
	}
}

func staleEntry(productID int64, price float64) *models.PriceEntry {
	entry := freshEntry(productID, price)
	entry.TTLExpiresAt = fetchedAt.Add(-time.Hour)
	return entry
}

func mapping(mappingID, canonicalID, productID int64, priority int, store, title string, packSize float64, packUnit units.Family) models.StoreMapping {
	return models.StoreMapping{
		MappingID:       mappingID,
		CanonicalItemID: canonicalID,
		Priority:        priority,
		Product: models.StoreProduct{
			ID:                productID,
			Store:             store,
			ProviderProductID: fmt.Sprintf("prov-%d", productID),
			Title:             title,
			PackSize:          packSize,
			PackUnit:          packUnit,
			Active:            true,
		},
	}
}

// tescoFixture is the spaghetti-and-eggs catalog used across the quoter and
// orchestrator tests: tesco sells spaghetti in 500g packs at 0.85 and eggs
// in 6-packs at 2.40, both freshly cached.
func tescoFixture() (*fakeCatalog, *fakePrices) {
	cat := &fakeCatalog{
		items: []models.CanonicalItem{
			{ID: 1, Name: "Spaghetti", UnitType: units.Gram, Aliases: []string{"dried spaghetti"}},
			{ID: 2, Name: "Eggs", UnitType: units.Count, Aliases: []string{"egg"}},
		},
		mappings: map[string][]models.StoreMapping{
			"tesco": {
				mapping(1, 1, 10, 0, "tesco", "Tesco Spaghetti 500g", 500, units.Gram),
				mapping(2, 2, 11, 0, "tesco", "Tesco Eggs 6 Pack", 6, units.Count),
			},
		},
		failStores: map[string]bool{},
	}

	prices := &fakePrices{
		entries: map[string]map[int64]*models.PriceEntry{
			"GLOBAL": {
				10: freshEntry(10, 0.85),
				11: freshEntry(11, 2.40),
			},
		},
	}

	return cat, prices
}
