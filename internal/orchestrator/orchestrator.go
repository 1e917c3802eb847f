package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/noot-app/food-explorer/internal/config"
	"github.com/noot-app/food-explorer/internal/gateway"
	"github.com/noot-app/food-explorer/internal/store"
)

// criteria are the filter fields that select which listing is fetched
type criteria struct {
	barcode    string
	searchTerm string
	category   string
}

func criteriaOf(s store.State) criteria {
	return criteria{
		barcode:    s.Filters.Barcode,
		searchTerm: s.Filters.SearchTerm,
		category:   s.Filters.Category,
	}
}

// request describes one issued fetch
type request struct {
	criteria   criteria
	page       int
	append     bool
	generation uint64
}

// Orchestrator turns filter state into gateway calls and gateway results
// into store actions. At most one fetch is in flight; the store's loading
// flag is the gate.
type Orchestrator struct {
	store    *store.Store
	gateway  gateway.Gateway
	pageSize int
	log      *slog.Logger

	mu         sync.Mutex
	fetched    criteria
	hasFetched bool
	sortedBy   store.SortKey
	generation uint64
}

// New creates an orchestrator for a store and a gateway
func New(s *store.Store, gw gateway.Gateway, pageSize int, logger *slog.Logger) *Orchestrator {
	if pageSize <= 0 {
		pageSize = gateway.DefaultPageSize
	}
	return &Orchestrator{
		store:    s,
		gateway:  gw,
		pageSize: pageSize,
		log:      config.Component(logger, "orchestrator"),
	}
}

// Sync reconciles the result list with the current filters. A change of
// barcode, search term or category issues a page-1 fetch; a change of sort
// key alone re-sorts what is already loaded.
func (o *Orchestrator) Sync(ctx context.Context) {
	current := o.store.State()
	c := criteriaOf(current)

	o.mu.Lock()
	changed := !o.hasFetched || c != o.fetched
	if changed {
		// Anything still in flight for older criteria is now stale
		o.generation++
	}
	resort := current.Filters.SortKey != o.sortedBy
	o.mu.Unlock()

	if changed {
		o.fetch(ctx, false)
		return
	}
	if resort {
		o.resort()
	}
}

// LoadMore fetches and appends the next page. It does nothing while a fetch
// is in flight, when no pages remain, or when a barcode filter is active.
func (o *Orchestrator) LoadMore(ctx context.Context) {
	o.fetch(ctx, true)
}

// Retry re-issues the page-1 fetch for the current filters
func (o *Orchestrator) Retry(ctx context.Context) {
	o.fetch(ctx, false)
}

// LoadCategories fills the category list from the gateway's facets when it
// is still empty. Facet lookup never fails; it falls back to a fixed list.
func (o *Orchestrator) LoadCategories(ctx context.Context) {
	if len(o.store.State().Categories) > 0 {
		return
	}

	categories := o.gateway.ListCategoryFacets(ctx)
	o.store.Dispatch(store.SetCategories{Categories: categories})
	o.log.Info("Categories loaded", "count", len(categories))
}

// Watch starts a goroutine that runs Sync whenever the filters or the sort
// key change. It stops when ctx is done.
//
// Watch replaces explicit Sync calls after filter changes. Do not run it
// next to callers that already call Sync, such as the MCP tools: both
// compete for the loading flag and one of them finds a fetch in flight.
func (o *Orchestrator) Watch(ctx context.Context) {
	signal := make(chan struct{}, 1)
	unsubscribe := o.store.Subscribe(func(prev, next store.State) {
		if prev.Filters == next.Filters {
			return
		}
		select {
		case signal <- struct{}{}:
		default:
		}
	})

	go func() {
		defer unsubscribe()
		o.log.Debug("Watching filters")
		for {
			select {
			case <-ctx.Done():
				return
			case <-signal:
				o.Sync(ctx)
			}
		}
	}()
}

// fetch issues one gated fetch. A refused gate drops the request.
func (o *Orchestrator) fetch(ctx context.Context, appendPage bool) {
	var req request
	started := o.store.DispatchIf(func(s store.State) bool {
		if s.Loading {
			return false
		}
		if appendPage && (!s.Pagination.HasMorePages || strings.TrimSpace(s.Filters.Barcode) != "") {
			return false
		}

		req = request{criteria: criteriaOf(s), page: 1, append: appendPage}
		if appendPage {
			req.page = s.Pagination.CurrentPage + 1
		}
		return true
	}, store.SetLoading{Loading: true}, store.SetError{Message: ""})

	if !started {
		o.log.Debug("Fetch dropped", "append", appendPage)
		return
	}

	o.mu.Lock()
	if !appendPage {
		o.generation++
		o.fetched = req.criteria
		o.hasFetched = true
	}
	req.generation = o.generation
	o.mu.Unlock()

	start := time.Now()
	page, err := o.call(ctx, req)
	if err != nil {
		o.fail(ctx, req, err)
		return
	}

	o.commit(ctx, req, page)
	o.log.Info("Fetch completed",
		"page", req.page,
		"append", req.append,
		"products", len(page.Products),
		"page_count", page.PageCount,
		"duration", time.Since(start))
}

// call picks exactly one gateway operation: barcode, then search term, then
// category, then the unfiltered listing
func (o *Orchestrator) call(ctx context.Context, req request) (*gateway.Page, error) {
	c := req.criteria

	if barcode := strings.TrimSpace(c.barcode); barcode != "" {
		if req.page > 1 {
			return gateway.SinglePage(nil), nil
		}
		product, err := o.gateway.LookupByBarcode(ctx, barcode)
		if err != nil {
			return nil, err
		}
		return gateway.SinglePage(product), nil
	}

	if term := strings.TrimSpace(c.searchTerm); term != "" {
		return o.gateway.SearchByName(ctx, term, req.page)
	}

	if c.category != "" {
		return o.gateway.ListByCategory(ctx, c.category, req.page)
	}

	return o.gateway.ListProducts(ctx, req.page, o.pageSize)
}

// commit applies a successful page unless the request went stale meanwhile
func (o *Orchestrator) commit(ctx context.Context, req request, page *gateway.Page) {
	for {
		snap := o.store.State()
		if o.stale(snap, req) {
			o.discard(ctx, req)
			return
		}

		products := page.Products
		if req.append {
			products = slices.Concat(snap.Products, page.Products)
		}
		key := snap.Filters.SortKey
		sorted := SortProducts(products, key)

		applied := o.store.DispatchIf(func(s store.State) bool {
			return !o.stale(s, req) && s.Filters.SortKey == key && len(s.Products) == len(snap.Products)
		},
			store.SetProducts{Products: sorted},
			store.SetCurrentPage{Page: req.page},
			store.SetHasMorePages{HasMore: req.page < page.PageCount},
			store.SetLoading{Loading: false},
		)
		if applied {
			o.mu.Lock()
			o.sortedBy = key
			o.mu.Unlock()
			return
		}
		// The sort key moved under us; sort again with the new one
	}
}

// fail stores a user-facing message and leaves the results untouched
func (o *Orchestrator) fail(ctx context.Context, req request, err error) {
	message := failureMessage(req, err)

	applied := o.store.DispatchIf(func(s store.State) bool {
		return !o.stale(s, req)
	}, store.SetError{Message: message}, store.SetLoading{Loading: false})

	if !applied {
		o.discard(ctx, req)
		return
	}

	o.log.Error("Fetch failed", "page", req.page, "append", req.append, "error", detail(err))
}

// discard drops a stale completion and catches up with the newest filters
func (o *Orchestrator) discard(ctx context.Context, req request) {
	o.log.Debug("Discarding stale fetch", "page", req.page, "generation", req.generation)
	o.store.Dispatch(store.SetLoading{Loading: false})

	// The discarded fetch may have been the one for the current filters
	o.mu.Lock()
	o.hasFetched = false
	o.mu.Unlock()
	o.Sync(ctx)
}

// stale reports whether the filters or the generation moved since req was issued
func (o *Orchestrator) stale(s store.State, req request) bool {
	o.mu.Lock()
	generation := o.generation
	o.mu.Unlock()
	return generation != req.generation || criteriaOf(s) != req.criteria
}

func (o *Orchestrator) resort() {
	for {
		snap := o.store.State()
		key := snap.Filters.SortKey
		sorted := SortProducts(snap.Products, key)

		applied := o.store.DispatchIf(func(s store.State) bool {
			return s.Filters.SortKey == key && len(s.Products) == len(snap.Products)
		}, store.SetProducts{Products: sorted})
		if applied {
			o.mu.Lock()
			o.sortedBy = key
			o.mu.Unlock()
			o.log.Debug("Resorted results", "sort", key, "products", len(sorted))
			return
		}
	}
}

func failureMessage(req request, err error) string {
	var failure *gateway.FetchFailure
	if errors.As(err, &failure) {
		return failure.Message
	}
	return gateway.NewFetchFailure(opFor(req), err).Message
}

func detail(err error) string {
	var failure *gateway.FetchFailure
	if errors.As(err, &failure) {
		return failure.Detail()
	}
	return err.Error()
}

func opFor(req request) string {
	switch {
	case strings.TrimSpace(req.criteria.barcode) != "":
		return gateway.OpLookupByBarcode
	case strings.TrimSpace(req.criteria.searchTerm) != "":
		return gateway.OpSearchByName
	case req.criteria.category != "":
		return gateway.OpListByCategory
	}
	return gateway.OpListProducts
}
