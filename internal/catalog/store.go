package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"quote-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Store is the Postgres-backed catalog: canonical items, aliases,
// store-product mappings, recipes, and the quote audit log.
type Store struct {
	db *sqlx.DB
}

// NewStore creates a new catalog store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

type aliasRow struct {
	CanonicalItemID int64  `db:"canonical_item_id"`
	Alias           string `db:"alias"`
}

// LoadSnapshot loads every canonical item with its aliases. The snapshot is
// loaded once per quote request and shared across all stores in the request.
func (s *Store) LoadSnapshot(ctx context.Context) ([]models.CanonicalItem, error) {
	var items []models.CanonicalItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT id, name, unit_type, COALESCE(category, '') AS category FROM canonical_items ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to load canonical items: %w", err)
	}

	var aliases []aliasRow
	err = s.db.SelectContext(ctx, &aliases,
		"SELECT canonical_item_id, alias FROM canonical_aliases ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to load canonical aliases: %w", err)
	}

	byID := make(map[int64]int, len(items))
	for i := range items {
		byID[items[i].ID] = i
	}
	for _, a := range aliases {
		if i, ok := byID[a.CanonicalItemID]; ok {
			items[i].Aliases = append(items[i].Aliases, a.Alias)
		}
	}

	return items, nil
}

// GetStoreMappings returns active mappings for the given canonical items at
// one store, joined with their products, in one batched query. Rows arrive
// ordered by priority (desc) with mapping ID as the stable tie-break, so the
// first row seen for a canonical item is the preferred one.
func (s *Store) GetStoreMappings(ctx context.Context, store string, canonicalItemIDs []int64) ([]models.StoreMapping, error) {
	if len(canonicalItemIDs) == 0 {
		return []models.StoreMapping{}, nil
	}

	query, args, err := sqlx.In(`
		SELECT m.id AS mapping_id, m.canonical_item_id, m.priority,
		       p.id, p.store, p.provider_product_id, p.title,
		       p.pack_size, p.pack_unit,
		       COALESCE(p.product_url, '') AS product_url,
		       COALESCE(p.image_url, '') AS image_url,
		       p.active
		FROM canonical_store_products m
		JOIN store_products p ON p.id = m.store_product_id
		WHERE m.canonical_item_id IN (?) AND p.store = ? AND p.active = true
		ORDER BY m.canonical_item_id, m.priority DESC, m.id ASC`,
		canonicalItemIDs, store)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var mappings []models.StoreMapping
	if err := s.db.SelectContext(ctx, &mappings, query, args...); err != nil {
		return nil, fmt.Errorf("failed to load store mappings for %s: %w", store, err)
	}
	return mappings, nil
}

// GetRecipesByIDs retrieves recipes and their ingredients by ID
func (s *Store) GetRecipesByIDs(ctx context.Context, ids []int64) ([]models.Recipe, error) {
	if len(ids) == 0 {
		return []models.Recipe{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM recipes WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var recipes []models.Recipe
	if err := s.db.SelectContext(ctx, &recipes, query, args...); err != nil {
		return nil, fmt.Errorf("failed to load recipes: %w", err)
	}

	query, args, err = sqlx.In("SELECT * FROM recipe_ingredients WHERE recipe_id IN (?) ORDER BY id", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var ingredients []models.Ingredient
	if err := s.db.SelectContext(ctx, &ingredients, query, args...); err != nil {
		return nil, fmt.Errorf("failed to load recipe ingredients: %w", err)
	}

	byID := make(map[int64]int, len(recipes))
	for i := range recipes {
		byID[recipes[i].ID] = i
	}
	for _, ing := range ingredients {
		if i, ok := byID[ing.RecipeID]; ok {
			recipes[i].Ingredients = append(recipes[i].Ingredients, ing)
		}
	}

	return recipes, nil
}

// RecordQuoteEvent writes the processed-event mark and the audit row in one
// transaction keyed on the event ID. A redelivered event finds its mark
// already present and writes nothing, so the log can never gain a second
// row for the same event even if the worker crashed mid-handling.
func (s *Store) RecordQuoteEvent(ctx context.Context, row *models.QuoteLog, eventType string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		row.EventID, eventType)
	if err != nil {
		return err
	}
	marked, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if marked == 0 {
		return nil
	}

	query := `
		INSERT INTO quote_logs (event_id, request_id, stores, postcode, request_json, response_json)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	if err := tx.GetContext(ctx, row, query,
		row.EventID, row.RequestID, row.Stores, row.Postcode, row.RequestJSON, row.ResponseJSON); err != nil {
		return err
	}

	return tx.Commit()
}

// GetQuoteLogByRequestID retrieves an audit row by request ID
func (s *Store) GetQuoteLogByRequestID(ctx context.Context, requestID string) (*models.QuoteLog, error) {
	var row models.QuoteLog
	err := s.db.GetContext(ctx, &row,
		"SELECT * FROM quote_logs WHERE request_id = $1 ORDER BY created_at DESC LIMIT 1", requestID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("quote log not found: %s", requestID)
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

