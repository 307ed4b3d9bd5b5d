package units

import "strings"

// Family is one of the three canonical measurement families all recipe
// quantities are normalized into.
type Family string

const (
	Gram  Family = "GRAM"
	Ml    Family = "ML"
	Count Family = "COUNT"
)

// ParseFamily parses a canonical family name as it appears on the wire.
func ParseFamily(s string) (Family, bool) {
	switch Family(strings.ToUpper(strings.TrimSpace(s))) {
	case Gram:
		return Gram, true
	case Ml:
		return Ml, true
	case Count:
		return Count, true
	}
	return "", false
}

type conversion struct {
	family Family
	factor float64
}

var table = map[string]conversion{
	"g":      {Gram, 1},
	"gram":   {Gram, 1},
	"grams":  {Gram, 1},
	"kg":     {Gram, 1000},
	"ml":     {Ml, 1},
	"l":      {Ml, 1000},
	"tsp":    {Ml, 5},
	"tbsp":   {Ml, 15},
	"piece":  {Count, 1},
	"pieces": {Count, 1},
	"clove":  {Count, 1},
	"cloves": {Count, 1},
}

// Normalize converts a raw recipe unit into its canonical family and scales
// the value accordingly. Unrecognized units fall back to COUNT with the value
// unchanged; known reports whether the unit was actually in the table so
// callers can surface the fallback instead of silently mis-categorizing.
func Normalize(rawUnit string, value float64) (family Family, normalized float64, known bool) {
	conv, ok := table[strings.ToLower(strings.TrimSpace(rawUnit))]
	if !ok {
		return Count, value, false
	}
	return conv.family, value * conv.factor, true
}
