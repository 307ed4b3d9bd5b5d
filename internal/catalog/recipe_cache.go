package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"quote-service/internal/models"
)

// ErrRecipeNotFound marks a recipe ID the source does not know. Callers use
// it to tell bad input apart from a source outage.
var ErrRecipeNotFound = errors.New("recipe not found")

// RecipeSource loads recipes in bulk, typically the catalog store.
type RecipeSource interface {
	GetRecipesByIDs(ctx context.Context, ids []int64) ([]models.Recipe, error)
}

// RecipeCache is a read-through cache of recipes by ID, passed explicitly
// into the layers that need it rather than living as process-global state.
// Misses are fetched from the source in one batch and kept for later calls.
type RecipeCache struct {
	mu   sync.RWMutex
	byID map[int64]*models.Recipe
	src  RecipeSource
}

// NewRecipeCache creates a read-through recipe cache over a source
func NewRecipeCache(src RecipeSource) *RecipeCache {
	return &RecipeCache{
		byID: make(map[int64]*models.Recipe),
		src:  src,
	}
}

// Prime seeds the cache with already-loaded recipes.
func (c *RecipeCache) Prime(recipes []models.Recipe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range recipes {
		r := recipes[i]
		c.byID[r.ID] = &r
	}
}

// Get retrieves one recipe, fetching it from the source on a miss.
func (c *RecipeCache) Get(ctx context.Context, id int64) (*models.Recipe, error) {
	recipes, err := c.GetMany(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	return recipes[0], nil
}

// GetMany retrieves recipes in request order, fetching all misses from the
// source in a single batch. An ID the source does not know is an error.
func (c *RecipeCache) GetMany(ctx context.Context, ids []int64) ([]*models.Recipe, error) {
	c.mu.RLock()
	missing := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if _, ok := c.byID[id]; !ok && !seen[id] {
			missing = append(missing, id)
			seen[id] = true
		}
	}
	c.mu.RUnlock()

	if len(missing) > 0 {
		fetched, err := c.src.GetRecipesByIDs(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch recipes: %w", err)
		}
		c.Prime(fetched)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	recipes := make([]*models.Recipe, len(ids))
	for i, id := range ids {
		recipe, ok := c.byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrRecipeNotFound, id)
		}
		recipes[i] = recipe
	}
	return recipes, nil
}
