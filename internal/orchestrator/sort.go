package orchestrator

import (
	"slices"
	"strings"

	"github.com/noot-app/food-explorer/internal/store"
	"github.com/noot-app/food-explorer/internal/types"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// missingGrade ranks an ungraded product as worse than E, so it sorts after
// every lettered grade ascending and before every lettered grade descending
const missingGrade = "Z"

// SortProducts returns a stably sorted copy of products ordered by key.
// An unknown key keeps the input order.
func SortProducts(products []types.Product, key store.SortKey) []types.Product {
	sorted := slices.Clone(products)
	if sorted == nil {
		return []types.Product{}
	}

	switch key {
	case store.SortNameAsc, store.SortNameDesc:
		// A Collator is not safe for concurrent use
		c := collate.New(language.English)
		slices.SortStableFunc(sorted, func(a, b types.Product) int {
			if key == store.SortNameDesc {
				a, b = b, a
			}
			return c.CompareString(a.DisplayName, b.DisplayName)
		})

	case store.SortGradeAsc:
		slices.SortStableFunc(sorted, func(a, b types.Product) int {
			return strings.Compare(gradeOr(a), gradeOr(b))
		})

	case store.SortGradeDesc:
		slices.SortStableFunc(sorted, func(a, b types.Product) int {
			return strings.Compare(gradeOr(b), gradeOr(a))
		})
	}

	return sorted
}

func gradeOr(p types.Product) string {
	if g := p.Grade(); g != "" {
		return strings.ToUpper(g)
	}
	return missingGrade
}
