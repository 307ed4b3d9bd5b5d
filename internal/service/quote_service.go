package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"quote-service/config"
	"quote-service/internal/catalog"
	"quote-service/internal/models"
	"quote-service/internal/pricecache"
	"quote-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QuoteService orchestrates a full multi-store quote: one aggregation pass
// shared across stores, then an independent quote per store. A backing
// failure for one store never prevents quotes for the others.
type QuoteService struct {
	catalog   CatalogStore
	recipes   *catalog.RecipeCache
	quoter    *StoreQuoter
	publisher QuotePublisher
	cfg       config.BusinessConfig
	logger    *zap.Logger

	// now is the single timestamp source for a request, so every store
	// goroutine classifies staleness against the same instant.
	now func() time.Time
}

// NewQuoteService creates the quote orchestrator
func NewQuoteService(
	catalogStore CatalogStore,
	prices PriceSource,
	recipes *catalog.RecipeCache,
	publisher QuotePublisher,
	cfg config.BusinessConfig,
) *QuoteService {
	return &QuoteService{
		catalog:   catalogStore,
		recipes:   recipes,
		quoter:    NewStoreQuoter(catalogStore, prices, cfg.MissingWarnRatio),
		publisher: publisher,
		cfg:       cfg,
		logger:    util.Named("quote"),
		now:       time.Now,
	}
}

// Quote prices a pre-resolved basket across the requested stores.
func (s *QuoteService) Quote(ctx context.Context, req *models.QuoteRequest) (*models.QuoteResponse, error) {
	ctx, span := util.StartSpan(ctx, "QuoteService.Quote")
	defer span.End()

	util.QuotesRequestedTotal.Inc()
	start := time.Now()
	defer func() {
		util.QuoteLatency.Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	agg, err := s.aggregateItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	resp := s.quoteAll(ctx, req.Stores, req.Postcode, agg)
	s.auditAsync(req.Stores, resp, req)
	return resp, nil
}

// QuoteMenu prices a menu of (recipe, servings) selections across stores.
// Recipes are loaded through the read-through cache in one batch.
func (s *QuoteService) QuoteMenu(ctx context.Context, req *models.MenuQuoteRequest) (*models.QuoteResponse, error) {
	ctx, span := util.StartSpan(ctx, "QuoteService.QuoteMenu")
	defer span.End()

	util.QuotesRequestedTotal.Inc()
	start := time.Now()
	defer func() {
		util.QuoteLatency.Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	ids := make([]int64, len(req.Selections))
	for i, sel := range req.Selections {
		ids[i] = sel.RecipeID
	}
	recipes, err := s.recipes.GetMany(ctx, ids)
	if err != nil {
		// An unknown recipe ID is bad input; anything else is the
		// recipe source failing and must not read as a client error.
		if errors.Is(err, catalog.ErrRecipeNotFound) {
			util.QuotesFailedTotal.WithLabelValues("invalid_basket").Inc()
			return nil, fmt.Errorf("%w: %v", ErrInvalidBasket, err)
		}
		util.QuotesFailedTotal.WithLabelValues("recipes_unavailable").Inc()
		return nil, fmt.Errorf("recipes unavailable: %w", err)
	}

	selections := make([]RecipeSelection, len(req.Selections))
	for i, sel := range req.Selections {
		selections[i] = RecipeSelection{Recipe: recipes[i], Servings: sel.Servings}
	}

	index, err := s.loadIndex(ctx)
	if err != nil {
		return nil, err
	}

	agg, err := NewAggregator(index).AggregateMenu(selections)
	if err != nil {
		util.QuotesFailedTotal.WithLabelValues("invalid_basket").Inc()
		return nil, err
	}

	resp := s.quoteAll(ctx, req.Stores, req.Postcode, agg)
	s.auditAsync(req.Stores, resp, req)
	return resp, nil
}

func (s *QuoteService) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.QuoteTimeoutSeconds > 0 {
		return context.WithTimeout(ctx, time.Duration(s.cfg.QuoteTimeoutSeconds)*time.Second)
	}
	return context.WithCancel(ctx)
}

func (s *QuoteService) loadIndex(ctx context.Context) (*catalog.Index, error) {
	snapshot, err := s.catalog.LoadSnapshot(ctx)
	if err != nil {
		util.QuotesFailedTotal.WithLabelValues("catalog_unavailable").Inc()
		return nil, fmt.Errorf("catalog unavailable: %w", err)
	}
	return catalog.NewIndex(snapshot), nil
}

func (s *QuoteService) aggregateItems(ctx context.Context, items []models.QuoteItem) (*AggregateResult, error) {
	index, err := s.loadIndex(ctx)
	if err != nil {
		return nil, err
	}

	agg, err := NewAggregator(index).AggregateItems(items)
	if err != nil {
		util.QuotesFailedTotal.WithLabelValues("invalid_basket").Inc()
		return nil, err
	}
	return agg, nil
}

// quoteAll fans out one goroutine per store into per-index result slots;
// stores share only read-only inputs, so no locking is needed. A failed
// store yields an error quote in its slot.
func (s *QuoteService) quoteAll(ctx context.Context, stores []string, postcode string, agg *AggregateResult) *models.QuoteResponse {
	bucket := pricecache.RegionBucket(postcode)
	now := s.now()

	quotes := make([]models.StoreQuote, len(stores))
	var wg sync.WaitGroup
	for i, store := range stores {
		wg.Add(1)
		go func(i int, store string) {
			defer wg.Done()

			start := time.Now()
			quote, err := s.quoter.QuoteStore(ctx, store, agg, now, bucket)
			util.StoreQuoteLatency.WithLabelValues(store).Observe(time.Since(start).Seconds())

			if err != nil {
				util.StoreQuotesTotal.WithLabelValues(store, "failed").Inc()
				s.logger.Error("Store quote failed",
					zap.String("store", store),
					zap.Error(err))
				quotes[i] = models.StoreQuote{
					Store:        store,
					LineItems:    []models.LineItem{},
					MissingItems: []models.MissingItem{},
					Error:        "store temporarily unavailable",
				}
				return
			}

			util.StoreQuotesTotal.WithLabelValues(store, "ok").Inc()
			quotes[i] = *quote
		}(i, store)
	}
	wg.Wait()

	var postcodeArea *string
	if postcode != "" {
		postcodeArea = &bucket
	}

	return &models.QuoteResponse{
		Currency: models.Currency,
		Quotes:   quotes,
		Meta: models.QuoteMeta{
			PostcodeArea: postcodeArea,
			TTLHours:     s.cfg.PriceTTLHours,
		},
	}
}

// auditAsync publishes the request/response pair to the audit sink without
// blocking the response. Publish failures are logged and swallowed.
func (s *QuoteService) auditAsync(stores []string, resp *models.QuoteResponse, request interface{}) {
	if s.publisher == nil {
		return
	}

	reqJSON, err := json.Marshal(request)
	if err != nil {
		s.logger.Warn("Failed to marshal quote request for audit", zap.Error(err))
		return
	}
	respJSON, err := json.Marshal(resp)
	if err != nil {
		s.logger.Warn("Failed to marshal quote response for audit", zap.Error(err))
		return
	}

	event := &models.QuoteCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeQuoteCompleted,
			Timestamp: time.Now(),
		},
		RequestID: uuid.New().String(),
		Stores:    stores,
		Request:   reqJSON,
		Response:  respJSON,
	}
	if resp.Meta.PostcodeArea != nil {
		event.PostcodeArea = *resp.Meta.PostcodeArea
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.publisher.PublishQuoteCompleted(ctx, event); err != nil {
			util.QuoteLogFailuresTotal.Inc()
			s.logger.Warn("Failed to publish quote audit event",
				zap.String("request_id", event.RequestID),
				zap.Error(err))
		}
	}()
}

// AllStoresFailed reports whether every quote in a response carries an error.
func AllStoresFailed(resp *models.QuoteResponse) bool {
	if len(resp.Quotes) == 0 {
		return false
	}
	for _, q := range resp.Quotes {
		if q.Error == "" {
			return false
		}
	}
	return true
}
