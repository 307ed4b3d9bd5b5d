package service

import (
	"fmt"

	"quote-service/internal/catalog"
	"quote-service/internal/models"
	"quote-service/internal/units"
	"quote-service/internal/util"

	"go.uber.org/zap"
)

// Requirement is the total quantity of one canonical item needed across the
// whole basket, in the item's canonical unit family.
type Requirement struct {
	Item     *models.CanonicalItem
	Quantity float64
}

// AggregateResult is one aggregated basket shared by every store quote in a
// request. Order preserves first-seen canonical item order so downstream
// output is deterministic.
type AggregateResult struct {
	Requirements map[int64]*Requirement
	Order        []int64
	Missing      []models.MissingItem
}

// TotalRequested is the number of distinct resolution attempts, priced or
// not, used as the denominator for the basket-incomplete ratio.
func (r *AggregateResult) TotalRequested() int {
	return len(r.Order) + len(r.Missing)
}

// RecipeSelection pairs a loaded recipe with the serving count the menu
// requests it at.
type RecipeSelection struct {
	Recipe   *models.Recipe
	Servings float64
}

// Aggregator resolves and sums ingredient requirements across a basket.
// It is pure over the catalog index; per-ingredient resolution failures
// become missing entries, never errors.
type Aggregator struct {
	index  *catalog.Index
	logger *zap.Logger
}

// NewAggregator creates an aggregator over one catalog index
func NewAggregator(index *catalog.Index) *Aggregator {
	return &Aggregator{
		index:  index,
		logger: util.Named("aggregator"),
	}
}

func newAggregateResult() *AggregateResult {
	return &AggregateResult{
		Requirements: make(map[int64]*Requirement),
		Order:        []int64{},
		Missing:      []models.MissingItem{},
	}
}

// AggregateItems aggregates pre-resolved basket lines from the API. Each
// line already carries a canonical unit family; quantities for the same
// canonical item are summed across lines.
func (a *Aggregator) AggregateItems(items []models.QuoteItem) (*AggregateResult, error) {
	result := newAggregateResult()

	for _, item := range items {
		family, ok := units.ParseFamily(string(item.Required.Unit))
		if !ok {
			return nil, fmt.Errorf("%w: unknown unit family %q for %q",
				ErrInvalidBasket, item.Required.Unit, item.IngredientName)
		}
		a.accumulate(result, item.IngredientName, family, item.Required.Value)
	}

	return result, nil
}

// AggregateMenu aggregates recipe ingredients scaled to the requested
// servings. Quantities are summed across all recipes in the menu, not per
// recipe, which is what makes pack sharing across recipes possible.
func (a *Aggregator) AggregateMenu(selections []RecipeSelection) (*AggregateResult, error) {
	result := newAggregateResult()

	for _, sel := range selections {
		recipe := sel.Recipe
		if recipe.Servings <= 0 {
			return nil, fmt.Errorf("%w: recipe %d has non-positive servings", ErrInvalidBasket, recipe.ID)
		}
		// Zero or negative requested servings is caller-controlled scaling,
		// not validated here; a zero requirement still produces a line.
		scale := sel.Servings / recipe.Servings

		for _, ing := range recipe.Ingredients {
			name := ing.CanonicalName
			if name == "" {
				name = ing.Name
			}

			family, normalized, known := units.Normalize(ing.Unit, ing.Quantity)
			if !known {
				util.UnitFallbacksTotal.WithLabelValues(ing.Unit).Inc()
				a.logger.Warn("Unrecognized recipe unit treated as COUNT",
					zap.String("unit", ing.Unit),
					zap.String("ingredient", name),
					zap.Int64("recipe_id", recipe.ID))
			}

			a.accumulate(result, name, family, normalized*scale)
		}
	}

	return result, nil
}

func (a *Aggregator) accumulate(result *AggregateResult, name string, family units.Family, quantity float64) {
	item, ok := a.index.Resolve(name)
	if !ok {
		a.addMissing(result, name, models.ReasonNoCanonicalMatch)
		return
	}

	if item.UnitType != family {
		a.logger.Warn("Ingredient unit family disagrees with catalog",
			zap.String("ingredient", name),
			zap.String("given", string(family)),
			zap.String("expected", string(item.UnitType)))
		a.addMissing(result, name, models.ReasonUnitMismatch)
		return
	}

	req, ok := result.Requirements[item.ID]
	if !ok {
		req = &Requirement{Item: item}
		result.Requirements[item.ID] = req
		result.Order = append(result.Order, item.ID)
	}
	req.Quantity += quantity
}

// addMissing records one missing entry per (name, reason) pair so the same
// unresolved ingredient appearing in several recipes is reported once.
func (a *Aggregator) addMissing(result *AggregateResult, name, reason string) {
	for _, m := range result.Missing {
		if m.IngredientName == name && m.Reason == reason {
			return
		}
	}
	result.Missing = append(result.Missing, models.MissingItem{IngredientName: name, Reason: reason})
}
