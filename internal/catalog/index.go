package catalog

import (
	"strings"

	"quote-service/internal/models"
)

// Index maps normalized ingredient names to canonical items. Both the
// canonical name and every alias are registered under the same trim +
// lower-case normalization; lookups are exact, never fuzzy.
type Index struct {
	byName map[string]*models.CanonicalItem
}

// NewIndex builds a lookup index over a catalog snapshot
func NewIndex(items []models.CanonicalItem) *Index {
	ix := &Index{byName: make(map[string]*models.CanonicalItem, len(items))}
	for i := range items {
		item := &items[i]
		ix.byName[normalizeName(item.Name)] = item
		for _, alias := range item.Aliases {
			ix.byName[normalizeName(alias)] = item
		}
	}
	return ix
}

// Resolve maps a free-text ingredient name to its canonical item.
func (ix *Index) Resolve(name string) (*models.CanonicalItem, bool) {
	item, ok := ix.byName[normalizeName(name)]
	return item, ok
}

// Len reports the number of registered names including aliases.
func (ix *Index) Len() int {
	return len(ix.byName)
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
