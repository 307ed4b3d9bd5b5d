package models

import (
	"time"

	"quote-service/internal/units"
)

// Currency is the only currency the catalog is priced in.
const Currency = "GBP"

// CanonicalItem is the single normalized representation of an ingredient
// across all free-text spellings and all stores. Rows are curated catalog
// data and immutable at quote time.
type CanonicalItem struct {
	ID       int64        `db:"id" json:"id"`
	Name     string       `db:"name" json:"name"`
	UnitType units.Family `db:"unit_type" json:"unit_type"`
	Category string       `db:"category" json:"category,omitempty"`
	Aliases  []string     `db:"-" json:"aliases,omitempty"`
}

// StoreProduct is a retailer SKU mapped to a canonical item, with a fixed
// pack size. Inactive products are excluded from quoting.
type StoreProduct struct {
	ID                int64        `db:"id" json:"id"`
	Store             string       `db:"store" json:"store"`
	ProviderProductID string       `db:"provider_product_id" json:"provider_product_id"`
	Title             string       `db:"title" json:"title"`
	PackSize          float64      `db:"pack_size" json:"pack_size"`
	PackUnit          units.Family `db:"pack_unit" json:"pack_unit"`
	ProductURL        string       `db:"product_url" json:"product_url,omitempty"`
	ImageURL          string       `db:"image_url" json:"image_url,omitempty"`
	Active            bool         `db:"active" json:"active"`
}

// StoreMapping is one canonical-item-to-store-product mapping row joined
// with its product. Rows for the same canonical item arrive ordered by
// descending priority with mapping ID as the stable tie-break.
type StoreMapping struct {
	MappingID       int64 `db:"mapping_id"`
	CanonicalItemID int64 `db:"canonical_item_id"`
	Priority        int   `db:"priority"`
	Product         StoreProduct
}

// PriceEntry is one cached price keyed by (store product, region bucket).
// Entries past TTLExpiresAt are stale but still usable for quoting.
type PriceEntry struct {
	StoreProductID int64     `json:"store_product_id"`
	RegionBucket   string    `json:"region_bucket"`
	Price          float64   `json:"price"`
	UnitPrice      *float64  `json:"unit_price,omitempty"`
	PromoText      string    `json:"promo_text,omitempty"`
	InStock        *bool     `json:"in_stock,omitempty"`
	Currency       string    `json:"currency"`
	FetchedAt      time.Time `json:"fetched_at"`
	TTLExpiresAt   time.Time `json:"ttl_expires_at"`
}

// Ingredient is one line of a recipe, in the recipe author's units.
type Ingredient struct {
	ID            int64   `db:"id" json:"id"`
	RecipeID      int64   `db:"recipe_id" json:"recipe_id"`
	Name          string  `db:"name" json:"name"`
	CanonicalName string  `db:"canonical_name" json:"canonical_name"`
	Quantity      float64 `db:"quantity" json:"quantity"`
	Unit          string  `db:"unit" json:"unit"`
}

// Recipe is app-layer menu data consumed by the basket aggregator.
type Recipe struct {
	ID          int64        `db:"id" json:"id"`
	Name        string       `db:"name" json:"name"`
	Servings    float64      `db:"servings" json:"servings"`
	Ingredients []Ingredient `db:"-" json:"ingredients"`
}

// Missing-item reasons surfaced on a StoreQuote.
const (
	ReasonNoCanonicalMatch = "no_canonical_match"
	ReasonUnitMismatch     = "unit_mismatch"
	ReasonNoStoreMapping   = "no_store_mapping"
	ReasonNoCachedPrice    = "no_cached_price"
)

// Store-level warning strings.
const (
	WarningBasketIncomplete = "basket incomplete"
	WarningStalePrices      = "prices may be stale"
)

// Price sources for a line item.
const (
	PriceSourceCached = "cached"
	PriceSourceStale  = "stale"
)

// Measure is a quantity in a canonical unit family.
type Measure struct {
	Value float64      `json:"value"`
	Unit  units.Family `json:"unit" binding:"required"`
}

// MissingItem reports an ingredient that could not be priced and why.
type MissingItem struct {
	IngredientName string `json:"ingredientName"`
	Reason         string `json:"reason"`
}

// LineItem is one priced basket line in a store quote.
type LineItem struct {
	CanonicalItemID  int64     `json:"canonicalItemId"`
	CanonicalName    string    `json:"canonicalName"`
	StoreProductID   int64     `json:"storeProductId"`
	ProductTitle     string    `json:"productTitle"`
	PackSize         Measure   `json:"packSize"`
	Required         Measure   `json:"required"`
	PacksNeeded      int64     `json:"packsNeeded"`
	Price            float64   `json:"price"`
	UnitPrice        *float64  `json:"unitPrice,omitempty"`
	LineTotal        float64   `json:"lineTotal"`
	ConsumedEstimate float64   `json:"consumedEstimate"`
	Currency         string    `json:"currency"`
	PromoText        string    `json:"promoText,omitempty"`
	InStock          *bool     `json:"inStock,omitempty"`
	ProductURL       string    `json:"productUrl,omitempty"`
	ImageURL         string    `json:"imageUrl,omitempty"`
	PriceSource      string    `json:"priceSource"`
	FetchedAt        time.Time `json:"fetchedAt"`
}

// StoreQuote is the per-store result of quoting one aggregated basket.
// Error is set (and the quote otherwise empty) when the store's backing
// reads failed; other stores in the same response are unaffected.
type StoreQuote struct {
	Store            string        `json:"store"`
	BasketTotal      float64       `json:"basketTotal"`
	ConsumedEstimate float64       `json:"consumedEstimate"`
	LastUpdated      *time.Time    `json:"lastUpdated,omitempty"`
	LineItems        []LineItem    `json:"lineItems"`
	MissingItems     []MissingItem `json:"missingItems"`
	MissingCount     int           `json:"missingCount"`
	Warnings         []string      `json:"warnings,omitempty"`
	Error            string        `json:"error,omitempty"`
}

// QuoteItem is one pre-resolved basket line in an API quote request.
type QuoteItem struct {
	IngredientName string  `json:"ingredientName" binding:"required"`
	Required       Measure `json:"required" binding:"required"`
}

// QuoteRequest is the API request for quoting a basket across stores.
type QuoteRequest struct {
	Stores   []string    `json:"stores" binding:"required,min=1"`
	Postcode string      `json:"postcode,omitempty"`
	Items    []QuoteItem `json:"items" binding:"required,min=1,dive"`
}

// MenuSelection references a recipe with an overridden serving count.
type MenuSelection struct {
	RecipeID int64   `json:"recipeId" binding:"required"`
	Servings float64 `json:"servings" binding:"required"`
}

// MenuQuoteRequest quotes a menu of (recipe, servings) selections.
type MenuQuoteRequest struct {
	Stores     []string        `json:"stores" binding:"required,min=1"`
	Postcode   string          `json:"postcode,omitempty"`
	Selections []MenuSelection `json:"selections" binding:"required,min=1,dive"`
}

// QuoteMeta carries request-scoped metadata on a response.
type QuoteMeta struct {
	PostcodeArea *string `json:"postcodeArea"`
	TTLHours     float64 `json:"ttlHours"`
}

// QuoteResponse is the full multi-store response for one quote call.
type QuoteResponse struct {
	Currency string       `json:"currency"`
	Quotes   []StoreQuote `json:"quotes"`
	Meta     QuoteMeta    `json:"meta"`
}

// QuoteLog is one persisted audit row of a request/response pair.
type QuoteLog struct {
	ID           int64     `db:"id"`
	EventID      string    `db:"event_id"`
	RequestID    string    `db:"request_id"`
	Stores       string    `db:"stores"`
	Postcode     string    `db:"postcode"`
	RequestJSON  []byte    `db:"request_json"`
	ResponseJSON []byte    `db:"response_json"`
	CreatedAt    time.Time `db:"created_at"`
}
