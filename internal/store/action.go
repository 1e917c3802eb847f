package store

import (
	"github.com/noot-app/food-explorer/internal/types"
)

// Action is a state transition request. The set is closed: only the types
// declared in this file implement it.
type Action interface {
	action()
}

type (
	// SetProducts replaces the result list
	SetProducts struct{ Products []types.Product }
	// AppendProducts concatenates a page onto the result list
	AppendProducts struct{ Products []types.Product }
	SetLoading     struct{ Loading bool }
	// SetError stores a user-facing error message; "" clears it
	SetError struct{ Message string }
	// SetSearchTerm, SetBarcode and SetCategory also reset the page cursor
	// and clear the result list so a fresh fetch follows
	SetSearchTerm struct{ Term string }
	SetBarcode    struct{ Barcode string }
	SetCategory   struct{ Category string }
	// SetSortKey changes ordering only
	SetSortKey         struct{ Key SortKey }
	SetCurrentPage     struct{ Page int }
	SetHasMorePages    struct{ HasMore bool }
	AddToCart          struct{ Product types.Product }
	RemoveFromCart     struct{ ProductID string }
	UpdateCartQuantity struct {
		ProductID string
		Quantity  int
	}
	ClearCart     struct{}
	SetCategories struct{ Categories []string }
	// SelectProduct with a nil Product clears the selection
	SelectProduct struct{ Product *types.Product }
	SetScreen     struct{ Screen Screen }
	ResetFilters  struct{}
	ShowToast     struct{ Message string }
	HideToast     struct{}
)

func (SetProducts) action()        {}
func (AppendProducts) action()     {}
func (SetLoading) action()         {}
func (SetError) action()           {}
func (SetSearchTerm) action()      {}
func (SetBarcode) action()         {}
func (SetCategory) action()        {}
func (SetSortKey) action()         {}
func (SetCurrentPage) action()     {}
func (SetHasMorePages) action()    {}
func (AddToCart) action()          {}
func (RemoveFromCart) action()     {}
func (UpdateCartQuantity) action() {}
func (ClearCart) action()          {}
func (SetCategories) action()      {}
func (SelectProduct) action()      {}
func (SetScreen) action()          {}
func (ResetFilters) action()       {}
func (ShowToast) action()          {}
func (HideToast) action()          {}
