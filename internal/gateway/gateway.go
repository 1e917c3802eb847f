package gateway

import (
	"context"
	"fmt"

	"github.com/noot-app/food-explorer/internal/types"
)

// DefaultPageSize is the page size used by name search, category listing and
// the default unfiltered listing
const DefaultPageSize = 20

// Gateway defines the read operations against the product data provider
type Gateway interface {
	ListProducts(ctx context.Context, page, pageSize int) (*Page, error)
	SearchByName(ctx context.Context, term string, page int) (*Page, error)
	// LookupByBarcode returns nil, nil when the provider reports no match
	LookupByBarcode(ctx context.Context, code string) (*types.Product, error)
	ListByCategory(ctx context.Context, categoryID string, page int) (*Page, error)
	// ListCategoryFacets never fails; it falls back to FallbackCategories
	ListCategoryFacets(ctx context.Context) []string
}

// Page is one normalized page of results
type Page struct {
	Products  []types.Product `json:"products"`
	Count     int             `json:"count"`
	Page      int             `json:"page"`
	PageCount int             `json:"page_count"`
	PageSize  int             `json:"page_size"`
	Skip      int             `json:"skip"`
}

// SinglePage wraps a barcode lookup result as a one-page listing
func SinglePage(product *types.Product) *Page {
	page := &Page{Page: 1, PageCount: 1, PageSize: 1, Products: []types.Product{}}
	if product != nil {
		page.Products = []types.Product{*product}
		page.Count = 1
	}
	return page
}

// FallbackCategories is returned when the facet lookup fails
var FallbackCategories = []string{
	"beverages",
	"dairy",
	"snacks",
	"breakfast-cereals",
	"meat",
	"fish",
	"fruits",
	"vegetables",
	"bread",
	"desserts",
}

const (
	// MaxCategoryFacets caps the number of categories offered for filtering
	MaxCategoryFacets = 50
	// MinCategoryProducts is the popularity threshold for a category facet
	MinCategoryProducts = 100
)

// Operation names used in FetchFailure
const (
	OpListProducts    = "list_products"
	OpSearchByName    = "search_by_name"
	OpLookupByBarcode = "lookup_by_barcode"
	OpListByCategory  = "list_by_category"
	OpCategoryFacets  = "category_facets"
)

var failureMessages = map[string]string{
	OpListProducts:    "Failed to fetch products. Please try again later.",
	OpSearchByName:    "Failed to search products. Please try again later.",
	OpLookupByBarcode: "Failed to fetch product by barcode. Please try again later.",
	OpListByCategory:  "Failed to fetch products by category. Please try again later.",
	OpCategoryFacets:  "Failed to fetch categories.",
}

// FetchFailure is returned by every failing Gateway operation. Error returns
// a message suitable for display; the underlying cause is kept for logs.
type FetchFailure struct {
	Op      string
	Message string
	Err     error
}

// NewFetchFailure builds a FetchFailure with the standard message for op
func NewFetchFailure(op string, err error) *FetchFailure {
	msg, ok := failureMessages[op]
	if !ok {
		msg = "Failed to fetch products. Please try again later."
	}
	return &FetchFailure{Op: op, Message: msg, Err: err}
}

func (f *FetchFailure) Error() string {
	return f.Message
}

func (f *FetchFailure) Unwrap() error {
	return f.Err
}

// Detail returns the message together with the cause, for logging
func (f *FetchFailure) Detail() string {
	if f.Err == nil {
		return f.Message
	}
	return fmt.Sprintf("%s: %v", f.Op, f.Err)
}
