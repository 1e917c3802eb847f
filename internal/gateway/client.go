package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/noot-app/food-explorer/internal/config"
	"github.com/noot-app/food-explorer/internal/types"
	"golang.org/x/time/rate"
)

// Client talks to the Open Food Facts HTTP API
type Client struct {
	httpClient  *http.Client
	baseURL     string
	pageSize    int
	userAgent   string
	rateLimiter *rate.Limiter
	log         *slog.Logger
}

// Ensure Client implements Gateway
var _ Gateway = (*Client)(nil)

// ErrInvalidCategory is the cause of a FetchFailure for an empty category id
var ErrInvalidCategory = errors.New("invalid category value")

// searchResponse is the paginated listing shape shared by search and category endpoints
type searchResponse struct {
	Products  []types.RawProduct `json:"products"`
	Count     types.Flexible     `json:"count"`
	Page      types.Flexible     `json:"page"`
	PageCount types.Flexible     `json:"page_count"`
	PageSize  types.Flexible     `json:"page_size"`
	Skip      types.Flexible     `json:"skip"`
}

// productResponse is the single product lookup shape
type productResponse struct {
	Code          string            `json:"code"`
	Status        int               `json:"status"`
	StatusVerbose string            `json:"status_verbose"`
	Product       *types.RawProduct `json:"product"`
}

type facetResponse struct {
	Tags []struct {
		ID       string `json:"id"`
		Products int    `json:"products"`
	} `json:"tags"`
}

// NewClient creates a new Open Food Facts client
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	perMinute := cfg.RateLimitPerMinute
	if perMinute <= 0 {
		perMinute = 60
	}
	limiter := rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 5)

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return &Client{
		httpClient:  &http.Client{Timeout: cfg.HTTPTimeout()},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		pageSize:    pageSize,
		userAgent:   cfg.UserAgent,
		rateLimiter: limiter,
		log:         config.Component(logger, "gateway"),
	}
}

// ListProducts returns one page of the unfiltered catalog
func (c *Client) ListProducts(ctx context.Context, page, pageSize int) (*Page, error) {
	if pageSize <= 0 {
		pageSize = c.pageSize
	}
	params := url.Values{}
	params.Set("search_simple", "1")
	params.Set("action", "process")
	params.Set("json", "true")
	params.Set("page", strconv.Itoa(page))
	params.Set("page_size", strconv.Itoa(pageSize))

	return c.fetchPage(ctx, OpListProducts, "/search?"+params.Encode(), page, pageSize)
}

// SearchByName returns one page of products matching term by relevance
func (c *Client) SearchByName(ctx context.Context, term string, page int) (*Page, error) {
	params := url.Values{}
	params.Set("search_terms", term)
	params.Set("action", "process")
	params.Set("json", "true")
	params.Set("page", strconv.Itoa(page))
	params.Set("page_size", strconv.Itoa(DefaultPageSize))

	return c.fetchPage(ctx, OpSearchByName, "/search?"+params.Encode(), page, DefaultPageSize)
}

// LookupByBarcode fetches a single product. A status other than 1 is a miss, not an error.
func (c *Client) LookupByBarcode(ctx context.Context, code string) (*types.Product, error) {
	start := time.Now()
	c.log.Debug("LookupByBarcode starting", "barcode", code)

	body, err := c.get(ctx, "/product/"+url.PathEscape(code)+".json")
	if err != nil {
		c.log.Error("Barcode lookup failed", "error", err, "barcode", code, "duration", time.Since(start))
		return nil, NewFetchFailure(OpLookupByBarcode, err)
	}

	var resp productResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.log.Error("Barcode response decode failed", "error", err, "barcode", code)
		return nil, NewFetchFailure(OpLookupByBarcode, fmt.Errorf("failed to decode response: %w", err))
	}

	if resp.Status != 1 || resp.Product == nil {
		c.log.Debug("No product found for barcode", "barcode", code, "status", resp.Status, "duration", time.Since(start))
		return nil, nil
	}

	product := types.Normalize(*resp.Product)
	c.log.Info("LookupByBarcode completed", "found", true, "duration", time.Since(start))
	return &product, nil
}

// ListByCategory returns one page of a category. Only the part after the
// last ':' of a namespaced id ("en:snacks") is sent.
func (c *Client) ListByCategory(ctx context.Context, categoryID string, page int) (*Page, error) {
	category := CategorySlug(categoryID)
	if category == "" {
		c.log.Warn("Rejected category listing", "category", categoryID)
		return nil, NewFetchFailure(OpListByCategory, fmt.Errorf("%w: %q", ErrInvalidCategory, categoryID))
	}

	path := fmt.Sprintf("/category/%s/%d.json", url.PathEscape(category), page)
	return c.fetchPage(ctx, OpListByCategory, path, page, DefaultPageSize)
}

// ListCategoryFacets returns popular category ids, or FallbackCategories on any failure
func (c *Client) ListCategoryFacets(ctx context.Context) []string {
	start := time.Now()

	body, err := c.get(ctx, "/facets/categories.json")
	if err != nil {
		c.log.Warn("Category facets unavailable, using fallback", "error", err)
		return fallbackCategories()
	}

	var resp facetResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.log.Warn("Category facets undecodable, using fallback", "error", err)
		return fallbackCategories()
	}

	categories := make([]string, 0, MaxCategoryFacets)
	for _, tag := range resp.Tags {
		if tag.Products <= MinCategoryProducts {
			continue
		}
		categories = append(categories, tag.ID)
		if len(categories) == MaxCategoryFacets {
			break
		}
	}

	c.log.Info("ListCategoryFacets completed", "count", len(categories), "duration", time.Since(start))
	return categories
}

// CategorySlug strips a language/namespace prefix from a category id
func CategorySlug(categoryID string) string {
	categoryID = strings.TrimSpace(categoryID)
	if i := strings.LastIndex(categoryID, ":"); i >= 0 {
		return categoryID[i+1:]
	}
	return categoryID
}

func fallbackCategories() []string {
	return append([]string(nil), FallbackCategories...)
}

func (c *Client) fetchPage(ctx context.Context, op, path string, page, pageSize int) (*Page, error) {
	start := time.Now()
	c.log.Debug("Fetching page", "op", op, "path", path)

	body, err := c.get(ctx, path)
	if err != nil {
		c.log.Error("Page fetch failed", "op", op, "error", err, "duration", time.Since(start))
		return nil, NewFetchFailure(op, err)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.log.Error("Page decode failed", "op", op, "error", err)
		return nil, NewFetchFailure(op, fmt.Errorf("failed to decode response: %w", err))
	}

	result := &Page{
		Products:  types.NormalizeAll(resp.Products),
		Count:     intOr(resp.Count, 0),
		Page:      intOr(resp.Page, page),
		PageCount: intOr(resp.PageCount, 1),
		PageSize:  intOr(resp.PageSize, pageSize),
		Skip:      intOr(resp.Skip, 0),
	}

	c.log.Info("Page fetched", "op", op, "page", result.Page, "page_count", result.PageCount,
		"products", len(result.Products), "duration", time.Since(start))
	return result, nil
}

// get performs a rate-limited GET and returns the body of a 2xx response
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP error! status: %d", resp.StatusCode)
	}
	return body, nil
}

// intOr parses a lenient numeric field, using fallback when absent or zero
func intOr(value types.Flexible, fallback int) int {
	if value == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(string(value), 64)
	if err != nil || f == 0 {
		return fallback
	}
	return int(f)
}
