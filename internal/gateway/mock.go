package gateway

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/noot-app/food-explorer/internal/types"
)

// MockGateway is an in-memory Gateway for tests and demo sessions
type MockGateway struct {
	mu         sync.Mutex
	products   []types.Product
	categories []string
	pageSize   int
	err        error
	calls      []string
	log        *slog.Logger
	// block, when set, is received from before each listing call returns
	block chan struct{}
}

// Ensure MockGateway implements Gateway
var _ Gateway = (*MockGateway)(nil)

// NewMockGateway creates a mock catalog seeded with a few well-known products
func NewMockGateway(logger *slog.Logger) *MockGateway {
	nutella := "E"
	water := "A"
	ferrero := "Ferrero"
	return &MockGateway{
		log:      logger,
		pageSize: DefaultPageSize,
		products: []types.Product{
			{
				ID:             "3017620422003",
				DisplayName:    "Nutella",
				Brands:         &ferrero,
				NutritionGrade: &nutella,
				CategoryTags:   []string{"en:spreads", "en:sweet-spreads"},
				Nutrients: map[string]types.Nutrient{
					"energy-kcal": {Value: 539, Unit: "kcal"},
					"fat":         {Value: 30.9, Unit: "g"},
					"sugars":      {Value: 56.3, Unit: "g"},
				},
			},
			{
				ID:             "3274080005003",
				DisplayName:    "Eau de source",
				NutritionGrade: &water,
				CategoryTags:   []string{"en:beverages", "en:waters"},
			},
			{
				ID:           "1234567890123",
				DisplayName:  "Test Chocolate",
				Brands:       &ferrero,
				CategoryTags: []string{"en:snacks"},
			},
		},
		categories: []string{"en:beverages", "en:snacks", "en:spreads"},
	}
}

// SetProducts replaces the catalog
func (m *MockGateway) SetProducts(products []types.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = products
}

// SetPageSize sets the page size used for every listing
func (m *MockGateway) SetPageSize(size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageSize = size
}

// SetCategories sets the facet list; nil makes the facet lookup fall back
func (m *MockGateway) SetCategories(categories []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories = categories
}

// SetError makes every subsequent call fail with err
func (m *MockGateway) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Block makes listing calls wait until the returned channel is closed or sent to
func (m *MockGateway) Block() chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.block = make(chan struct{})
	return m.block
}

// Calls returns the operations invoked so far, e.g. "search:nutella:1"
func (m *MockGateway) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// ListProducts pages through the whole catalog
func (m *MockGateway) ListProducts(ctx context.Context, page, pageSize int) (*Page, error) {
	return m.list(ctx, OpListProducts, "list::"+itoa(page), page, func(types.Product) bool { return true })
}

// SearchByName pages through products whose name contains term
func (m *MockGateway) SearchByName(ctx context.Context, term string, page int) (*Page, error) {
	return m.list(ctx, OpSearchByName, "search:"+term+":"+itoa(page), page, func(p types.Product) bool {
		return contains(p.DisplayName, term)
	})
}

// ListByCategory pages through products tagged with the category
func (m *MockGateway) ListByCategory(ctx context.Context, categoryID string, page int) (*Page, error) {
	slug := CategorySlug(categoryID)
	if slug == "" {
		m.record("category::" + itoa(page))
		return nil, NewFetchFailure(OpListByCategory, ErrInvalidCategory)
	}
	return m.list(ctx, OpListByCategory, "category:"+slug+":"+itoa(page), page, func(p types.Product) bool {
		for _, tag := range p.CategoryTags {
			if CategorySlug(tag) == slug {
				return true
			}
		}
		return false
	})
}

// LookupByBarcode finds a product by exact id
func (m *MockGateway) LookupByBarcode(ctx context.Context, code string) (*types.Product, error) {
	m.record("barcode:" + code)
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, NewFetchFailure(OpLookupByBarcode, m.err)
	}
	for _, product := range m.products {
		if product.ID == code {
			p := product
			return &p, nil
		}
	}
	return nil, nil
}

// ListCategoryFacets returns the configured categories or the fallback list
func (m *MockGateway) ListCategoryFacets(ctx context.Context) []string {
	m.record("facets")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil || m.categories == nil {
		return fallbackCategories()
	}
	return append([]string(nil), m.categories...)
}

func (m *MockGateway) list(ctx context.Context, op, call string, page int, match func(types.Product) bool) (*Page, error) {
	m.record(call)
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, NewFetchFailure(op, m.err)
	}

	var matched []types.Product
	for _, product := range m.products {
		if match(product) {
			matched = append(matched, product)
		}
	}

	size := m.pageSize
	pageCount := (len(matched) + size - 1) / size
	if pageCount == 0 {
		pageCount = 1
	}

	from := (page - 1) * size
	if from > len(matched) {
		from = len(matched)
	}
	to := from + size
	if to > len(matched) {
		to = len(matched)
	}

	if m.log != nil {
		m.log.Debug("Mock listing", "op", op, "page", page, "matched", len(matched))
	}

	return &Page{
		Products:  append([]types.Product{}, matched[from:to]...),
		Count:     len(matched),
		Page:      page,
		PageCount: pageCount,
		PageSize:  size,
		Skip:      from,
	}, nil
}

func (m *MockGateway) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *MockGateway) wait(ctx context.Context) error {
	m.mu.Lock()
	block := m.block
	m.mu.Unlock()
	if block == nil {
		return nil
	}
	select {
	case <-block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// contains checks if a string contains a substring (case-insensitive)
func contains(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
