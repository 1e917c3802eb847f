package store

import (
	"slices"
	"strconv"

	"github.com/noot-app/food-explorer/internal/types"
)

// Reduce applies a single action to state and returns the resulting state.
// It is pure: the input state, including its slices, is never modified.
//
// Actions not handled below, including a nil Action, fall through to the
// default arm and return state unchanged.
func Reduce(state State, action Action) State {
	switch a := action.(type) {
	case SetProducts:
		state.Products = slices.Clone(a.Products)
		if state.Products == nil {
			state.Products = []types.Product{}
		}

	case AppendProducts:
		state.Products = slices.Concat(state.Products, a.Products)

	case SetLoading:
		state.Loading = a.Loading

	case SetError:
		state.Error = a.Message

	case SetSearchTerm:
		state.Filters.SearchTerm = a.Term
		state = resetResults(state)

	case SetBarcode:
		state.Filters.Barcode = a.Barcode
		state = resetResults(state)

	case SetCategory:
		state.Filters.Category = a.Category
		state = resetResults(state)

	case SetSortKey:
		state.Filters.SortKey = a.Key

	case SetCurrentPage:
		state.Pagination.CurrentPage = a.Page

	case SetHasMorePages:
		state.Pagination.HasMorePages = a.HasMore

	case AddToCart:
		state = addToCart(state, a.Product)

	case RemoveFromCart:
		state.Cart = updateQuantity(state.Cart, a.ProductID, 0)

	case UpdateCartQuantity:
		state.Cart = updateQuantity(state.Cart, a.ProductID, a.Quantity)

	case ClearCart:
		state.Cart = []types.CartLine{}

	case SetCategories:
		state.Categories = slices.Clone(a.Categories)
		if state.Categories == nil {
			state.Categories = []string{}
		}

	case SelectProduct:
		if a.Product == nil {
			state.SelectedProduct = nil
		} else {
			selected := *a.Product
			state.SelectedProduct = &selected
		}

	case SetScreen:
		state.Screen = a.Screen

	case ResetFilters:
		state.Filters = FilterCriteria{SortKey: DefaultSortKey}
		state = resetResults(state)

	case ShowToast:
		state = showToast(state, a.Message)

	case HideToast:
		if state.Toast != nil {
			hidden := *state.Toast
			hidden.Visible = false
			state.Toast = &hidden
		}

	default:
		// Unknown actions are an identity transition
	}

	return state
}

// resetResults rewinds pagination and empties the result list so the next
// sync issues a fresh page-1 fetch
func resetResults(state State) State {
	state.Products = []types.Product{}
	state.Pagination = Pagination{CurrentPage: 1, HasMorePages: true}
	return state
}

func addToCart(state State, product types.Product) State {
	i := slices.IndexFunc(state.Cart, func(line types.CartLine) bool {
		return line.Product.ID == product.ID
	})

	if i >= 0 {
		cart := slices.Clone(state.Cart)
		cart[i].Quantity++
		state.Cart = cart
		return showToast(state, product.DisplayName+" quantity updated in cart!")
	}

	state.Cart = slices.Concat(state.Cart, []types.CartLine{{Product: product, Quantity: 1}})
	return showToast(state, product.DisplayName+" added to cart!")
}

// updateQuantity sets the quantity of one line; a non-positive quantity
// removes it so the cart never holds an empty line
func updateQuantity(cart []types.CartLine, productID string, quantity int) []types.CartLine {
	updated := make([]types.CartLine, 0, len(cart))
	for _, line := range cart {
		if line.Product.ID == productID {
			if quantity <= 0 {
				continue
			}
			line.Quantity = quantity
		}
		updated = append(updated, line)
	}
	return updated
}

func showToast(state State, message string) State {
	state.toastSeq++
	state.Toast = &Toast{
		ID:      strconv.FormatUint(state.toastSeq, 10),
		Message: message,
		Visible: true,
	}
	return state
}
