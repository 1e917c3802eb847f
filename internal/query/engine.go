// Package query serves the catalog from a local Open Food Facts parquet
// dump through DuckDB, for sessions without network access
package query

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/noot-app/food-explorer/internal/config"
	"github.com/noot-app/food-explorer/internal/gateway"
	"github.com/noot-app/food-explorer/internal/types"

	_ "github.com/marcboeker/go-duckdb/v2"
)

// productColumns are read from the dump; list and struct columns come back as JSON
const productColumns = `
	CAST(code AS VARCHAR),
	product_name,
	brands,
	categories,
	to_json(categories_tags),
	nutriscore_grade,
	image_url,
	to_json(nutriments),
	ingredients_text`

// Engine handles DuckDB queries against the parquet dataset
type Engine struct {
	db          *sql.DB
	parquetPath string
	pageSize    int
	log         *slog.Logger
}

// Ensure Engine implements gateway.Gateway
var _ gateway.Gateway = (*Engine)(nil)

// NewEngine creates a new query engine over parquetPath. The file is only
// opened by queries, so a missing file surfaces on first use.
func NewEngine(parquetPath string, cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}

	pageSize := gateway.DefaultPageSize
	if cfg != nil && cfg.PageSize > 0 {
		pageSize = cfg.PageSize
	}

	return &Engine{
		db:          db,
		parquetPath: parquetPath,
		pageSize:    pageSize,
		log:         config.Component(logger, "query"),
	}, nil
}

// Close closes the database connection
func (e *Engine) Close() error {
	return e.db.Close()
}

// ListProducts returns one page of the whole dump ordered by code
func (e *Engine) ListProducts(ctx context.Context, page, pageSize int) (*gateway.Page, error) {
	if pageSize <= 0 {
		pageSize = e.pageSize
	}
	result, err := e.page(ctx, "", nil, page, pageSize)
	if err != nil {
		return nil, gateway.NewFetchFailure(gateway.OpListProducts, err)
	}
	return result, nil
}

// SearchByName returns one page of products whose name contains term
func (e *Engine) SearchByName(ctx context.Context, term string, page int) (*gateway.Page, error) {
	result, err := e.page(ctx, "product_name ILIKE ?", []any{"%" + term + "%"}, page, gateway.DefaultPageSize)
	if err != nil {
		return nil, gateway.NewFetchFailure(gateway.OpSearchByName, err)
	}
	return result, nil
}

// ListByCategory returns one page of products tagged with the category,
// matching the bare slug or its "en:" form
func (e *Engine) ListByCategory(ctx context.Context, categoryID string, page int) (*gateway.Page, error) {
	slug := gateway.CategorySlug(categoryID)
	if slug == "" {
		return nil, gateway.NewFetchFailure(gateway.OpListByCategory, fmt.Errorf("%w: %q", gateway.ErrInvalidCategory, categoryID))
	}

	result, err := e.page(ctx,
		"(list_contains(categories_tags, ?) OR list_contains(categories_tags, ?))",
		[]any{slug, "en:" + slug}, page, gateway.DefaultPageSize)
	if err != nil {
		return nil, gateway.NewFetchFailure(gateway.OpListByCategory, err)
	}
	return result, nil
}

// LookupByBarcode searches for a product by barcode (exact match)
func (e *Engine) LookupByBarcode(ctx context.Context, code string) (*types.Product, error) {
	start := time.Now()
	e.log.Debug("LookupByBarcode starting", "barcode", code)

	query := `SELECT` + productColumns + `
		FROM read_parquet(?)
		WHERE CAST(code AS VARCHAR) = ?
		LIMIT 1`

	products, err := e.scan(ctx, query, e.parquetPath, code)
	if err != nil {
		e.log.Error("DuckDB barcode query failed", "error", err, "duration", time.Since(start))
		return nil, gateway.NewFetchFailure(gateway.OpLookupByBarcode, err)
	}

	if len(products) == 0 {
		e.log.Debug("No product found for barcode", "barcode", code, "duration", time.Since(start))
		return nil, nil
	}

	e.log.Info("LookupByBarcode completed", "found", true, "duration", time.Since(start))
	return &products[0], nil
}

// ListCategoryFacets counts category tags across the dump. Failures fall
// back to the fixed category list.
func (e *Engine) ListCategoryFacets(ctx context.Context) []string {
	start := time.Now()

	query := `
		SELECT tag
		FROM (SELECT unnest(categories_tags) AS tag FROM read_parquet(?))
		GROUP BY tag
		HAVING COUNT(*) > ?
		ORDER BY COUNT(*) DESC, tag
		LIMIT ?`

	rows, err := e.db.QueryContext(ctx, query, e.parquetPath, gateway.MinCategoryProducts, gateway.MaxCategoryFacets)
	if err != nil {
		e.log.Warn("Category facets unavailable, using fallback", "error", err)
		return append([]string(nil), gateway.FallbackCategories...)
	}
	defer rows.Close()

	categories := make([]string, 0, gateway.MaxCategoryFacets)
	for rows.Next() {
		var tag sql.NullString
		if err := rows.Scan(&tag); err != nil {
			e.log.Warn("Category facet scan failed, using fallback", "error", err)
			return append([]string(nil), gateway.FallbackCategories...)
		}
		if tag.Valid && tag.String != "" {
			categories = append(categories, tag.String)
		}
	}
	if err := rows.Err(); err != nil {
		e.log.Warn("Category facets iteration failed, using fallback", "error", err)
		return append([]string(nil), gateway.FallbackCategories...)
	}

	e.log.Info("ListCategoryFacets completed", "count", len(categories), "duration", time.Since(start))
	return categories
}

// TestConnection tests the database connection and parquet file access
func (e *Engine) TestConnection(ctx context.Context) error {
	start := time.Now()
	e.log.Debug("Testing DuckDB connection and parquet file")

	query := `SELECT COUNT(*) FROM read_parquet(?)`
	var count int64

	if err := e.db.QueryRowContext(ctx, query, e.parquetPath).Scan(&count); err != nil {
		e.log.Error("Connection test failed", "error", err, "duration", time.Since(start))
		return fmt.Errorf("connection test failed: %w", err)
	}

	e.log.Info("Connection test successful", "total_records", count, "duration", time.Since(start))
	return nil
}

// page counts the matching rows and reads one LIMIT/OFFSET window of them
func (e *Engine) page(ctx context.Context, where string, args []any, page, pageSize int) (*gateway.Page, error) {
	start := time.Now()
	if page < 1 {
		page = 1
	}

	filter := ""
	if where != "" {
		filter = " WHERE " + where
	}

	countArgs := append([]any{e.parquetPath}, args...)
	var count int
	if err := e.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM read_parquet(?)`+filter, countArgs...).Scan(&count); err != nil {
		return nil, fmt.Errorf("count failed: %w", err)
	}

	skip := (page - 1) * pageSize
	query := `SELECT` + productColumns + ` FROM read_parquet(?)` + filter + ` ORDER BY code LIMIT ? OFFSET ?`
	products, err := e.scan(ctx, query, append(countArgs, pageSize, skip)...)
	if err != nil {
		return nil, err
	}

	pageCount := (count + pageSize - 1) / pageSize
	if pageCount == 0 {
		pageCount = 1
	}

	e.log.Info("Page query completed",
		"filter", strings.TrimSpace(where),
		"page", page,
		"count", count,
		"products", len(products),
		"duration", time.Since(start))

	return &gateway.Page{
		Products:  products,
		Count:     count,
		Page:      page,
		PageCount: pageCount,
		PageSize:  pageSize,
		Skip:      skip,
	}, nil
}

// scan runs query and normalizes every row into a Product
func (e *Engine) scan(ctx context.Context, query string, args ...any) ([]types.Product, error) {
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var raws []types.RawProduct
	for rows.Next() {
		var code, name, brands, categories, tags, grade, image, nutriments, ingredients sql.NullString
		if err := rows.Scan(&code, &name, &brands, &categories, &tags, &grade, &image, &nutriments, &ingredients); err != nil {
			e.log.Error("Row scan failed", "error", err)
			continue
		}

		raw := types.RawProduct{
			Code:            types.Flexible(code.String),
			ProductName:     name.String,
			Brands:          brands.String,
			Categories:      categories.String,
			NutriscoreGrade: grade.String,
			ImageURL:        image.String,
			IngredientsText: ingredients.String,
		}

		if err := decodeJSONColumn(tags, &raw.CategoriesTags); err != nil {
			e.log.Debug("Failed to parse categories_tags JSON", "error", err, "code", code.String)
		}
		if err := decodeJSONColumn(nutriments, &raw.Nutriments); err != nil {
			e.log.Debug("Failed to parse nutriments JSON", "error", err, "code", code.String)
		}

		raws = append(raws, raw)
	}

	if err := rows.Err(); err != nil {
		e.log.Error("Rows iteration failed", "error", err)
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return types.NormalizeAll(raws), nil
}

// decodeJSONColumn unmarshals a to_json column. Dumps that store the value
// as a JSON-encoded string get decoded twice.
func decodeJSONColumn(column sql.NullString, dst any) error {
	if !column.Valid || column.String == "" || column.String == "null" {
		return nil
	}
	err := json.Unmarshal([]byte(column.String), dst)
	if err == nil {
		return nil
	}

	var inner string
	if json.Unmarshal([]byte(column.String), &inner) != nil {
		return err
	}
	return json.Unmarshal([]byte(inner), dst)
}
