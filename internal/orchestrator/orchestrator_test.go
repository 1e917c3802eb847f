package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/noot-app/food-explorer/internal/config"
	"github.com/noot-app/food-explorer/internal/gateway"
	"github.com/noot-app/food-explorer/internal/store"
	"github.com/noot-app/food-explorer/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, *store.Store, *gateway.MockGateway) {
	t.Helper()
	logger := config.NewTestLogger(io.Discard, "debug")
	s := store.New(store.WithLogger(logger))
	gw := gateway.NewMockGateway(logger)
	return New(s, gw, 20, logger), s, gw
}

func catalog(n int) []types.Product {
	products := make([]types.Product, n)
	for i := range products {
		products[i] = types.Product{
			ID:          fmt.Sprintf("%03d", i),
			DisplayName: fmt.Sprintf("Product %03d", i),
		}
	}
	return products
}

func TestOrchestrator_PaginatesThreePages(t *testing.T) {
	o, s, gw := newTestOrchestrator(t)
	gw.SetProducts(catalog(60))
	ctx := context.Background()

	o.Sync(ctx)
	state := s.State()
	assert.Len(t, state.Products, 20)
	assert.Equal(t, 1, state.Pagination.CurrentPage)
	assert.True(t, state.Pagination.HasMorePages)
	assert.False(t, state.Loading)

	o.LoadMore(ctx)
	state = s.State()
	assert.Len(t, state.Products, 40)
	assert.Equal(t, 2, state.Pagination.CurrentPage)
	assert.True(t, state.Pagination.HasMorePages)

	o.LoadMore(ctx)
	state = s.State()
	assert.Len(t, state.Products, 60)
	assert.Equal(t, 3, state.Pagination.CurrentPage)
	assert.False(t, state.Pagination.HasMorePages)

	o.LoadMore(ctx)
	o.LoadMore(ctx)
	assert.Equal(t, []string{"list::1", "list::2", "list::3"}, gw.Calls())
	assert.Len(t, s.State().Products, 60)
}

func TestOrchestrator_BarcodeIsSinglePage(t *testing.T) {
	o, s, gw := newTestOrchestrator(t)
	ctx := context.Background()

	s.Dispatch(store.SetBarcode{Barcode: "3017620422003"})
	o.Sync(ctx)

	state := s.State()
	require.Len(t, state.Products, 1)
	assert.Equal(t, "Nutella", state.Products[0].DisplayName)
	assert.False(t, state.Pagination.HasMorePages)

	o.LoadMore(ctx)
	assert.Equal(t, []string{"barcode:3017620422003"}, gw.Calls())
}

func TestOrchestrator_BarcodeMissIsEmptyResult(t *testing.T) {
	o, s, _ := newTestOrchestrator(t)

	s.Dispatch(store.SetBarcode{Barcode: "0000000000000"})
	o.Sync(context.Background())

	state := s.State()
	assert.Empty(t, state.Products)
	assert.Empty(t, state.Error, "a miss is not an error")
	assert.False(t, state.Pagination.HasMorePages)
}

func TestOrchestrator_SourcePriority(t *testing.T) {
	tests := []struct {
		name     string
		actions  []store.Action
		expected string
	}{
		{"unfiltered", nil, "list::1"},
		{"category", []store.Action{store.SetCategory{Category: "en:snacks"}}, "category:snacks:1"},
		{"search beats category", []store.Action{
			store.SetCategory{Category: "en:snacks"},
			store.SetSearchTerm{Term: "  choc "},
		}, "search:choc:1"},
		{"barcode beats search", []store.Action{
			store.SetSearchTerm{Term: "choc"},
			store.SetBarcode{Barcode: " 1234567890123 "},
		}, "barcode:1234567890123"},
		{"blank barcode is ignored", []store.Action{
			store.SetSearchTerm{Term: "choc"},
			store.SetBarcode{Barcode: "   "},
		}, "search:choc:1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, s, gw := newTestOrchestrator(t)
			s.Dispatch(tt.actions...)

			o.Sync(context.Background())

			assert.Equal(t, []string{tt.expected}, gw.Calls(), "exactly one gateway operation per fetch")
		})
	}
}

func TestOrchestrator_SyncWithoutChangeDoesNotFetch(t *testing.T) {
	o, s, gw := newTestOrchestrator(t)
	ctx := context.Background()

	o.Sync(ctx)
	o.Sync(ctx)
	assert.Len(t, gw.Calls(), 1)

	s.Dispatch(store.SetSearchTerm{Term: "eau"})
	o.Sync(ctx)
	o.Sync(ctx)
	assert.Equal(t, []string{"list::1", "search:eau:1"}, gw.Calls())
}

func TestOrchestrator_SortKeyChangeResortsWithoutFetch(t *testing.T) {
	o, s, gw := newTestOrchestrator(t)
	ctx := context.Background()

	o.Sync(ctx)
	names := func() []string {
		var out []string
		for _, p := range s.State().Products {
			out = append(out, p.DisplayName)
		}
		return out
	}
	assert.Equal(t, []string{"Eau de source", "Nutella", "Test Chocolate"}, names())

	s.Dispatch(store.SetSortKey{Key: store.SortNameDesc})
	o.Sync(ctx)
	assert.Equal(t, []string{"Test Chocolate", "Nutella", "Eau de source"}, names())

	s.Dispatch(store.SetSortKey{Key: store.SortGradeAsc})
	o.Sync(ctx)
	assert.Equal(t, []string{"Eau de source", "Nutella", "Test Chocolate"}, names())

	s.Dispatch(store.SetSortKey{Key: store.SortGradeDesc})
	o.Sync(ctx)
	assert.Equal(t, []string{"Test Chocolate", "Nutella", "Eau de source"}, names())

	assert.Equal(t, []string{"list::1"}, gw.Calls())
}

func TestOrchestrator_AppendResortsWholeList(t *testing.T) {
	o, s, gw := newTestOrchestrator(t)
	gw.SetPageSize(2)
	gw.SetProducts([]types.Product{
		{ID: "1", DisplayName: "Mango"},
		{ID: "2", DisplayName: "Zucchini"},
		{ID: "3", DisplayName: "Apple"},
	})
	ctx := context.Background()

	o.Sync(ctx)
	o.LoadMore(ctx)

	var names []string
	for _, p := range s.State().Products {
		names = append(names, p.DisplayName)
	}
	assert.Equal(t, []string{"Apple", "Mango", "Zucchini"}, names)
}

func TestOrchestrator_FailureKeepsResults(t *testing.T) {
	o, s, gw := newTestOrchestrator(t)
	ctx := context.Background()

	o.Sync(ctx)
	require.Len(t, s.State().Products, 3)

	gw.SetError(errors.New("connection refused"))
	o.Retry(ctx)

	state := s.State()
	assert.Equal(t, "Failed to fetch products. Please try again later.", state.Error)
	assert.Len(t, state.Products, 3, "results are left as they were")
	assert.False(t, state.Loading)

	gw.SetError(nil)
	o.Retry(ctx)
	state = s.State()
	assert.Empty(t, state.Error)
	assert.Len(t, state.Products, 3)
	assert.Equal(t, []string{"list::1", "list::1", "list::1"}, gw.Calls())
}

func TestOrchestrator_FailureAfterFilterChange(t *testing.T) {
	o, s, gw := newTestOrchestrator(t)
	ctx := context.Background()

	o.Sync(ctx)
	gw.SetError(errors.New("timeout"))

	s.Dispatch(store.SetSearchTerm{Term: "nutella"})
	o.Sync(ctx)

	state := s.State()
	assert.Empty(t, state.Products)
	assert.Equal(t, "Failed to search products. Please try again later.", state.Error)
	assert.False(t, state.Loading)
}

func TestOrchestrator_SingleFlightDropsRequests(t *testing.T) {
	o, s, gw := newTestOrchestrator(t)
	gw.SetProducts(catalog(60))
	ctx := context.Background()

	o.Sync(ctx)
	block := gw.Block()

	done := make(chan struct{})
	go func() {
		defer close(done)
		o.LoadMore(ctx)
	}()
	require.Eventually(t, func() bool { return s.State().Loading }, time.Second, time.Millisecond)

	// Both are refused by the loading gate
	o.LoadMore(ctx)
	o.Retry(ctx)

	close(block)
	<-done

	assert.Equal(t, []string{"list::1", "list::2"}, gw.Calls())
	assert.Len(t, s.State().Products, 40)
	assert.False(t, s.State().Loading)
}

func TestOrchestrator_StaleFetchIsDiscarded(t *testing.T) {
	o, s, gw := newTestOrchestrator(t)
	ctx := context.Background()
	block := gw.Block()

	done := make(chan struct{})
	go func() {
		defer close(done)
		o.Sync(ctx)
	}()
	require.Eventually(t, func() bool { return s.State().Loading }, time.Second, time.Millisecond)

	// Filters change while the unfiltered listing is in flight
	s.Dispatch(store.SetSearchTerm{Term: "nutella"})
	o.Sync(ctx)

	close(block)
	<-done

	state := s.State()
	require.Len(t, state.Products, 1)
	assert.Equal(t, "Nutella", state.Products[0].DisplayName)
	assert.Equal(t, "nutella", state.Filters.SearchTerm)
	assert.False(t, state.Loading)
	assert.Equal(t, []string{"list::1", "search:nutella:1"}, gw.Calls())
}

func TestOrchestrator_StaleFetchForRevertedFilter(t *testing.T) {
	o, s, gw := newTestOrchestrator(t)
	ctx := context.Background()
	block := gw.Block()

	s.Dispatch(store.SetSearchTerm{Term: "eau"})
	done := make(chan struct{})
	go func() {
		defer close(done)
		o.Sync(ctx)
	}()
	require.Eventually(t, func() bool { return s.State().Loading }, time.Second, time.Millisecond)

	s.Dispatch(store.SetSearchTerm{Term: "nutella"})
	o.Sync(ctx)
	s.Dispatch(store.SetSearchTerm{Term: "eau"})
	o.Sync(ctx)

	close(block)
	<-done

	state := s.State()
	require.Len(t, state.Products, 1)
	assert.Equal(t, "Eau de source", state.Products[0].DisplayName)
	assert.False(t, state.Loading)
}

func TestOrchestrator_LoadCategories(t *testing.T) {
	o, s, gw := newTestOrchestrator(t)
	ctx := context.Background()

	o.LoadCategories(ctx)
	assert.Equal(t, []string{"en:beverages", "en:snacks", "en:spreads"}, s.State().Categories)

	o.LoadCategories(ctx)
	assert.Equal(t, []string{"facets"}, gw.Calls(), "a loaded list is not fetched again")
}

func TestOrchestrator_LoadCategoriesFallback(t *testing.T) {
	o, s, gw := newTestOrchestrator(t)
	gw.SetError(errors.New("down"))

	o.LoadCategories(context.Background())

	assert.Equal(t, gateway.FallbackCategories, s.State().Categories)
	assert.Empty(t, s.State().Error, "facet failures are absorbed")
}

func TestOrchestrator_Watch(t *testing.T) {
	o, s, gw := newTestOrchestrator(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o.Watch(ctx)
	s.Dispatch(store.SetCategory{Category: "en:beverages"})

	require.Eventually(t, func() bool {
		state := s.State()
		return !state.Loading && len(state.Products) == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, "Eau de source", s.State().Products[0].DisplayName)

	// Non-filter changes do not trigger a sync
	s.Dispatch(store.AddToCart{Product: s.State().Products[0]})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []string{"category:beverages:1"}, gw.Calls())
}
