package store

import (
	"github.com/noot-app/food-explorer/internal/types"
)

// SortKey selects the client-side ordering of the result list
type SortKey string

const (
	SortNameAsc   SortKey = "name-asc"
	SortNameDesc  SortKey = "name-desc"
	SortGradeAsc  SortKey = "grade-asc"
	SortGradeDesc SortKey = "grade-desc"
)

// DefaultSortKey is the sort key of a fresh session and after ResetFilters
const DefaultSortKey = SortNameAsc

// Valid reports whether k is one of the declared sort keys
func (k SortKey) Valid() bool {
	switch k {
	case SortNameAsc, SortNameDesc, SortGradeAsc, SortGradeDesc:
		return true
	}
	return false
}

// Screen is the active view of the session
type Screen string

const (
	ScreenHome   Screen = "home"
	ScreenDetail Screen = "product-detail"
	ScreenCart   Screen = "cart"
)

// Valid reports whether s is one of the declared screens
func (s Screen) Valid() bool {
	switch s {
	case ScreenHome, ScreenDetail, ScreenCart:
		return true
	}
	return false
}

// FilterCriteria drives which remote listing is fetched and how it is ordered.
// SearchTerm and Barcode are kept mutually exclusive by the search input; the
// store tolerates any combination.
type FilterCriteria struct {
	SearchTerm string  `json:"search_term"`
	Barcode    string  `json:"barcode"`
	Category   string  `json:"category"`
	SortKey    SortKey `json:"sort_key"`
}

// Pagination is the incremental paging cursor
type Pagination struct {
	CurrentPage  int  `json:"current_page"`
	HasMorePages bool `json:"has_more_pages"`
}

// Toast is a transient notification. Hiding only clears Visible.
type Toast struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Visible bool   `json:"visible"`
}

// State is the whole session state. Values returned by the Store are
// snapshots; their slices are shared and must be treated as read-only.
type State struct {
	Products        []types.Product  `json:"products"`
	Loading         bool             `json:"loading"`
	Error           string           `json:"error,omitempty"`
	Filters         FilterCriteria   `json:"filters"`
	Pagination      Pagination       `json:"pagination"`
	Cart            []types.CartLine `json:"cart"`
	Categories      []string         `json:"categories"`
	SelectedProduct *types.Product   `json:"selected_product,omitempty"`
	Screen          Screen           `json:"screen"`
	Toast           *Toast           `json:"toast,omitempty"`

	// toastSeq numbers toasts so the reducer stays deterministic
	toastSeq uint64
}

// InitialState returns the state of a new session
func InitialState() State {
	return State{
		Products:   []types.Product{},
		Filters:    FilterCriteria{SortKey: DefaultSortKey},
		Pagination: Pagination{CurrentPage: 1, HasMorePages: true},
		Cart:       []types.CartLine{},
		Categories: []string{},
		Screen:     ScreenHome,
	}
}
