package store

import (
	"strings"

	"github.com/noot-app/food-explorer/internal/types"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CartItemCount returns the total quantity across all cart lines
func (s State) CartItemCount() int {
	total := 0
	for _, line := range s.Cart {
		total += line.Quantity
	}
	return total
}

// CartLine returns the cart line for a product id
func (s State) CartLine(productID string) (types.CartLine, bool) {
	for _, line := range s.Cart {
		if line.Product.ID == productID {
			return line, true
		}
	}
	return types.CartLine{}, false
}

// HasActiveFilters reports whether any fetch criterion is set
func (s State) HasActiveFilters() bool {
	f := s.Filters
	return f.SearchTerm != "" || f.Barcode != "" || f.Category != ""
}

// FormatCategoryName turns a category id into a display label,
// e.g. "en:breakfast-cereals" becomes "Breakfast Cereals"
func FormatCategoryName(categoryID string) string {
	name := categoryID
	if len(name) > 3 && name[2] == ':' && isLower(name[0]) && isLower(name[1]) {
		name = name[3:]
	}
	// A Caser is stateful, so each call gets its own
	return cases.Title(language.English, cases.NoLower).String(strings.ReplaceAll(name, "-", " "))
}

func isLower(b byte) bool {
	return b >= 'a' && b <= 'z'
}
