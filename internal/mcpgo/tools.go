package mcpgo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/noot-app/food-explorer/internal/input"
	"github.com/noot-app/food-explorer/internal/store"
)

// intent applies one user intent to the session. A returned error means
// the arguments were unusable and nothing was dispatched.
type intent func(ctx context.Context, request mcp.CallToolRequest) error

func (s *Server) addTools() {
	s.addTool(mcp.NewTool("search_products",
		mcp.WithDescription("Search the catalog by product name. Clears any barcode filter."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.MinLength(1),
			mcp.Description("Text contained in the product name"),
		),
		mcp.WithOutputSchema[SessionView](),
	), false, s.searchProducts)

	s.addTool(mcp.NewTool("lookup_barcode",
		mcp.WithDescription("Look a product up by its barcode (EAN/UPC). Clears any name search."),
		mcp.WithString("barcode",
			mcp.Required(),
			mcp.MinLength(1),
			mcp.Description("The barcode to look up"),
		),
		mcp.WithOutputSchema[SessionView](),
	), false, s.lookupBarcode)

	s.addTool(mcp.NewTool("type_search",
		mcp.WithDescription("Type into the search box. Input is applied once typing pauses; call get_state afterwards to see the settled results. Set done to apply it right away."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Current content of the search box; empty clears the active mode's filter"),
		),
		mcp.WithString("mode",
			mcp.Enum(string(input.ModeName), string(input.ModeBarcode)),
			mcp.Description("Whether the box holds a product name or a barcode (default name)"),
		),
		mcp.WithBoolean("done",
			mcp.Description("Apply the input now instead of waiting for the pause"),
		),
		mcp.WithOutputSchema[SessionView](),
	), false, s.typeSearch)

	s.addTool(mcp.NewTool("clear_search",
		mcp.WithDescription("Clear the name search and the barcode filter"),
		mcp.WithOutputSchema[SessionView](),
	), false, s.clearSearch)

	s.addTool(mcp.NewTool("filter_by_category",
		mcp.WithDescription("Restrict the listing to one category, e.g. en:beverages. An empty category removes the filter."),
		mcp.WithString("category",
			mcp.Description("Category id as returned by list_categories"),
		),
		mcp.WithOutputSchema[SessionView](),
	), false, s.filterByCategory)

	s.addTool(mcp.NewTool("list_categories",
		mcp.WithDescription("List the categories available for filtering"),
		mcp.WithOutputSchema[SessionView](),
		mcp.WithReadOnlyHintAnnotation(true),
	), true, s.listCategories)

	s.addTool(mcp.NewTool("sort_products",
		mcp.WithDescription("Change the order of the loaded results without fetching again"),
		mcp.WithString("sort_key",
			mcp.Required(),
			mcp.Enum(string(store.SortNameAsc), string(store.SortNameDesc), string(store.SortGradeAsc), string(store.SortGradeDesc)),
			mcp.Description("Name or nutrition grade, ascending or descending"),
		),
		mcp.WithOutputSchema[SessionView](),
		mcp.WithIdempotentHintAnnotation(true),
	), false, s.sortProducts)

	s.addTool(mcp.NewTool("load_more",
		mcp.WithDescription("Append the next page of results. Does nothing while loading, on the last page or for barcode results."),
		mcp.WithOutputSchema[SessionView](),
	), false, s.loadMore)

	s.addTool(mcp.NewTool("retry",
		mcp.WithDescription("Fetch the first page again for the current filters, e.g. after an error"),
		mcp.WithOutputSchema[SessionView](),
	), false, s.retry)

	s.addTool(mcp.NewTool("reset_filters",
		mcp.WithDescription("Remove every filter and restore the default sort"),
		mcp.WithOutputSchema[SessionView](),
	), false, s.resetFilters)

	s.addTool(mcp.NewTool("view_product",
		mcp.WithDescription("Open the detail view of a product from the results or the cart"),
		mcp.WithString("product_id",
			mcp.Required(),
			mcp.Description("Product id (barcode)"),
		),
		mcp.WithOutputSchema[SessionView](),
		mcp.WithReadOnlyHintAnnotation(true),
	), false, s.viewProduct)

	s.addTool(mcp.NewTool("navigate",
		mcp.WithDescription("Switch the active screen"),
		mcp.WithString("screen",
			mcp.Required(),
			mcp.Enum(string(store.ScreenHome), string(store.ScreenDetail), string(store.ScreenCart)),
		),
		mcp.WithOutputSchema[SessionView](),
	), false, s.navigate)

	s.addTool(mcp.NewTool("add_to_cart",
		mcp.WithDescription("Add one unit of a product to the cart"),
		mcp.WithString("product_id",
			mcp.Required(),
			mcp.Description("Product id (barcode) from the results or the detail view"),
		),
		mcp.WithOutputSchema[SessionView](),
	), false, s.addToCart)

	s.addTool(mcp.NewTool("update_cart_quantity",
		mcp.WithDescription("Set the quantity of a cart line. Zero or less removes it."),
		mcp.WithString("product_id", mcp.Required()),
		mcp.WithNumber("quantity",
			mcp.Required(),
			mcp.Description("New quantity"),
		),
		mcp.WithOutputSchema[SessionView](),
		mcp.WithIdempotentHintAnnotation(true),
	), false, s.updateCartQuantity)

	s.addTool(mcp.NewTool("remove_from_cart",
		mcp.WithDescription("Remove a product from the cart"),
		mcp.WithString("product_id", mcp.Required()),
		mcp.WithOutputSchema[SessionView](),
		mcp.WithIdempotentHintAnnotation(true),
	), false, s.removeFromCart)

	s.addTool(mcp.NewTool("clear_cart",
		mcp.WithDescription("Empty the cart"),
		mcp.WithOutputSchema[SessionView](),
		mcp.WithDestructiveHintAnnotation(true),
	), false, s.clearCart)

	s.addTool(mcp.NewTool("view_cart",
		mcp.WithDescription("Open the cart screen"),
		mcp.WithOutputSchema[SessionView](),
		mcp.WithReadOnlyHintAnnotation(true),
	), false, s.viewCart)

	s.addTool(mcp.NewTool("dismiss_toast",
		mcp.WithDescription("Hide the current notification"),
		mcp.WithOutputSchema[SessionView](),
	), false, s.dismissToast)

	s.addTool(mcp.NewTool("get_state",
		mcp.WithDescription("Return the current session state"),
		mcp.WithOutputSchema[SessionView](),
		mcp.WithReadOnlyHintAnnotation(true),
	), false, func(ctx context.Context, request mcp.CallToolRequest) error { return nil })
}

// addTool registers a tool whose result is always the session view
func (s *Server) addTool(tool mcp.Tool, withCategories bool, apply intent) {
	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		s.log.Debug("Tool call", "tool", tool.Name, "arguments", request.GetArguments())

		if err := apply(ctx, request); err != nil {
			s.log.Warn("Tool call rejected", "tool", tool.Name, "error", err)
			return mcp.NewToolResultError(err.Error()), nil
		}

		view := newSessionView(s.session.Store.State(), withCategories)
		text, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			s.log.Error("Failed to marshal session view", "tool", tool.Name, "error", err)
			return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal response: %v", err)), nil
		}

		s.log.Debug("Tool call completed",
			"tool", tool.Name,
			"loading", view.Loading,
			"results", view.ResultCount,
			"error", view.Error,
			"duration", time.Since(start))

		return mcp.NewToolResultStructured(view, string(text)), nil
	})
}

func (s *Server) searchProducts(ctx context.Context, request mcp.CallToolRequest) error {
	query, err := request.RequireString("query")
	if err != nil {
		return fmt.Errorf("missing required parameter 'query': %w", err)
	}
	s.session.Search.SetMode(input.ModeName)
	s.session.Search.Submit(ctx, query)
	return nil
}

func (s *Server) lookupBarcode(ctx context.Context, request mcp.CallToolRequest) error {
	barcode, err := request.RequireString("barcode")
	if err != nil {
		return fmt.Errorf("missing required parameter 'barcode': %w", err)
	}
	if strings.TrimSpace(barcode) == "" {
		return errors.New("parameter 'barcode' must not be blank")
	}
	s.session.Search.SetMode(input.ModeBarcode)
	s.session.Search.Submit(ctx, barcode)
	return nil
}

func (s *Server) typeSearch(ctx context.Context, request mcp.CallToolRequest) error {
	query, err := request.RequireString("query")
	if err != nil {
		return fmt.Errorf("missing required parameter 'query': %w", err)
	}
	mode := input.Mode(request.GetString("mode", string(input.ModeName)))
	if mode != input.ModeName && mode != input.ModeBarcode {
		return fmt.Errorf("unknown search mode %q", mode)
	}

	s.session.Search.SetMode(mode)
	s.session.Search.Type(ctx, query)
	if request.GetBool("done", false) {
		s.session.Search.Flush(ctx)
	}
	return nil
}

func (s *Server) clearSearch(ctx context.Context, request mcp.CallToolRequest) error {
	s.session.Search.Clear(ctx)
	return nil
}

func (s *Server) filterByCategory(ctx context.Context, request mcp.CallToolRequest) error {
	category := strings.TrimSpace(request.GetString("category", ""))
	s.session.Store.Dispatch(store.SetCategory{Category: category})
	s.session.Orchestrator.Sync(ctx)
	return nil
}

func (s *Server) listCategories(ctx context.Context, request mcp.CallToolRequest) error {
	s.session.Orchestrator.LoadCategories(ctx)
	return nil
}

func (s *Server) sortProducts(ctx context.Context, request mcp.CallToolRequest) error {
	raw, err := request.RequireString("sort_key")
	if err != nil {
		return fmt.Errorf("missing required parameter 'sort_key': %w", err)
	}
	key := store.SortKey(raw)
	if !key.Valid() {
		return fmt.Errorf("unknown sort key %q", raw)
	}
	s.session.Store.Dispatch(store.SetSortKey{Key: key})
	s.session.Orchestrator.Sync(ctx)
	return nil
}

func (s *Server) loadMore(ctx context.Context, request mcp.CallToolRequest) error {
	s.session.Orchestrator.LoadMore(ctx)
	return nil
}

func (s *Server) retry(ctx context.Context, request mcp.CallToolRequest) error {
	s.session.Orchestrator.Retry(ctx)
	return nil
}

// resetFilters refetches even when the filters were already clear, so it
// also recovers from an error on the unfiltered listing
func (s *Server) resetFilters(ctx context.Context, request mcp.CallToolRequest) error {
	s.session.Store.Dispatch(store.ResetFilters{})
	s.session.Orchestrator.Retry(ctx)
	return nil
}

func (s *Server) viewProduct(ctx context.Context, request mcp.CallToolRequest) error {
	id, err := request.RequireString("product_id")
	if err != nil {
		return fmt.Errorf("missing required parameter 'product_id': %w", err)
	}
	product, ok := findProduct(s.session.Store.State(), id)
	if !ok {
		return fmt.Errorf("product %q is not in the results or the cart", id)
	}
	s.session.Store.Dispatch(store.SelectProduct{Product: &product}, store.SetScreen{Screen: store.ScreenDetail})
	return nil
}

func (s *Server) navigate(ctx context.Context, request mcp.CallToolRequest) error {
	raw, err := request.RequireString("screen")
	if err != nil {
		return fmt.Errorf("missing required parameter 'screen': %w", err)
	}
	screen := store.Screen(raw)
	if !screen.Valid() {
		return fmt.Errorf("unknown screen %q", raw)
	}

	state := s.session.Store.State()
	switch {
	case screen == store.ScreenDetail && state.SelectedProduct == nil:
		return errors.New("no product selected, use view_product")
	case screen == store.ScreenHome:
		s.session.Store.Dispatch(store.SelectProduct{Product: nil}, store.SetScreen{Screen: screen})
	default:
		s.session.Store.Dispatch(store.SetScreen{Screen: screen})
	}
	return nil
}

func (s *Server) addToCart(ctx context.Context, request mcp.CallToolRequest) error {
	id, err := request.RequireString("product_id")
	if err != nil {
		return fmt.Errorf("missing required parameter 'product_id': %w", err)
	}
	product, ok := findProduct(s.session.Store.State(), id)
	if !ok {
		return fmt.Errorf("product %q is not in the results or the cart", id)
	}
	s.session.Store.Dispatch(store.AddToCart{Product: product})
	return nil
}

func (s *Server) updateCartQuantity(ctx context.Context, request mcp.CallToolRequest) error {
	id, err := request.RequireString("product_id")
	if err != nil {
		return fmt.Errorf("missing required parameter 'product_id': %w", err)
	}
	quantity, err := request.RequireFloat("quantity")
	if err != nil {
		return fmt.Errorf("missing required parameter 'quantity': %w", err)
	}
	if _, ok := s.session.Store.State().CartLine(id); !ok {
		return fmt.Errorf("product %q is not in the cart", id)
	}
	s.session.Store.Dispatch(store.UpdateCartQuantity{ProductID: id, Quantity: int(quantity)})
	return nil
}

func (s *Server) removeFromCart(ctx context.Context, request mcp.CallToolRequest) error {
	id, err := request.RequireString("product_id")
	if err != nil {
		return fmt.Errorf("missing required parameter 'product_id': %w", err)
	}
	s.session.Store.Dispatch(store.RemoveFromCart{ProductID: id})
	return nil
}

func (s *Server) clearCart(ctx context.Context, request mcp.CallToolRequest) error {
	s.session.Store.Dispatch(store.ClearCart{})
	return nil
}

func (s *Server) viewCart(ctx context.Context, request mcp.CallToolRequest) error {
	s.session.Store.Dispatch(store.SetScreen{Screen: store.ScreenCart})
	return nil
}

func (s *Server) dismissToast(ctx context.Context, request mcp.CallToolRequest) error {
	s.session.Store.Dispatch(store.HideToast{})
	return nil
}
