package mcpgo

import (
	"github.com/noot-app/food-explorer/internal/store"
	"github.com/noot-app/food-explorer/internal/types"
)

// ProductSummary is one row of the result list
type ProductSummary struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Brands   *string `json:"brands,omitempty"`
	Grade    string  `json:"nutrition_grade,omitempty"`
	ImageURL *string `json:"image_url,omitempty"`
	InCart   int     `json:"in_cart,omitempty"`
}

// CartItemView is one cart line
type CartItemView struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Grade     string `json:"nutrition_grade,omitempty"`
	Quantity  int    `json:"quantity"`
}

// CategoryView pairs a category id with its display label
type CategoryView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SessionView is what every tool returns: the session state as a client
// would render it
type SessionView struct {
	Screen           store.Screen         `json:"screen"`
	Loading          bool                 `json:"loading"`
	Error            string               `json:"error,omitempty"`
	Filters          store.FilterCriteria `json:"filters"`
	HasActiveFilters bool                 `json:"has_active_filters"`
	Pagination       store.Pagination     `json:"pagination"`
	ResultCount      int                  `json:"result_count"`
	Products         []ProductSummary     `json:"products"`
	SelectedProduct  *types.Product       `json:"selected_product,omitempty"`
	Cart             []CartItemView       `json:"cart"`
	CartItemCount    int                  `json:"cart_item_count"`
	Toast            string               `json:"toast,omitempty"`
	Categories       []CategoryView       `json:"categories,omitempty"`
}

// newSessionView projects a state snapshot. Categories are only listed when
// asked for, they rarely change and are long.
func newSessionView(s store.State, withCategories bool) SessionView {
	view := SessionView{
		Screen:           s.Screen,
		Loading:          s.Loading,
		Error:            s.Error,
		Filters:          s.Filters,
		HasActiveFilters: s.HasActiveFilters(),
		Pagination:       s.Pagination,
		ResultCount:      len(s.Products),
		Products:         make([]ProductSummary, 0, len(s.Products)),
		SelectedProduct:  s.SelectedProduct,
		Cart:             make([]CartItemView, 0, len(s.Cart)),
		CartItemCount:    s.CartItemCount(),
	}

	for _, p := range s.Products {
		summary := ProductSummary{
			ID:       p.ID,
			Name:     p.DisplayName,
			Brands:   p.Brands,
			Grade:    p.Grade(),
			ImageURL: p.ImageURL,
		}
		if line, ok := s.CartLine(p.ID); ok {
			summary.InCart = line.Quantity
		}
		view.Products = append(view.Products, summary)
	}

	for _, line := range s.Cart {
		view.Cart = append(view.Cart, CartItemView{
			ProductID: line.Product.ID,
			Name:      line.Product.DisplayName,
			Grade:     line.Product.Grade(),
			Quantity:  line.Quantity,
		})
	}

	if s.Toast != nil && s.Toast.Visible {
		view.Toast = s.Toast.Message
	}

	if withCategories {
		view.Categories = make([]CategoryView, 0, len(s.Categories))
		for _, id := range s.Categories {
			view.Categories = append(view.Categories, CategoryView{ID: id, Name: store.FormatCategoryName(id)})
		}
	}

	return view
}

// findProduct looks a product up among the results, the selection and the cart
func findProduct(s store.State, productID string) (types.Product, bool) {
	for _, p := range s.Products {
		if p.ID == productID {
			return p, true
		}
	}
	if s.SelectedProduct != nil && s.SelectedProduct.ID == productID {
		return *s.SelectedProduct, true
	}
	if line, ok := s.CartLine(productID); ok {
		return line.Product, true
	}
	return types.Product{}, false
}
