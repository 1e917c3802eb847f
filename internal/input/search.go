package input

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/noot-app/food-explorer/internal/config"
	"github.com/noot-app/food-explorer/internal/store"
)

// DefaultDebounce is how long typing must pause before a query is applied
const DefaultDebounce = 500 * time.Millisecond

// Mode selects which filter the search box writes
type Mode string

const (
	ModeName    Mode = "name"
	ModeBarcode Mode = "barcode"
)

// Syncer is notified after the search box changed the filters
type Syncer interface {
	Sync(ctx context.Context)
}

// SearchBox debounces typed input into search term or barcode filters.
// Writing one always clears the other.
type SearchBox struct {
	store    *store.Store
	syncer   Syncer
	debounce time.Duration
	log      *slog.Logger

	mu      sync.Mutex
	mode    Mode
	pending string
	timer   *time.Timer
	seq     uint64
}

// NewSearchBox creates a search box in name mode
func NewSearchBox(s *store.Store, syncer Syncer, debounce time.Duration, logger *slog.Logger) *SearchBox {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &SearchBox{
		store:    s,
		syncer:   syncer,
		debounce: debounce,
		mode:     ModeName,
		log:      config.Component(logger, "input"),
	}
}

// Mode returns the active mode
func (b *SearchBox) Mode() Mode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mode
}

// SetMode switches between name and barcode input. Pending input is
// applied under the new mode when the timer fires.
func (b *SearchBox) SetMode(mode Mode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if mode != ModeBarcode {
		mode = ModeName
	}
	b.mode = mode
}

// Type records the current input value and restarts the debounce timer.
// The pending value is applied with ctx stripped of its cancellation, so it
// survives the request that typed it.
func (b *SearchBox) Type(ctx context.Context, value string) {
	ctx = context.WithoutCancel(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending = value
	b.seq++
	seq := b.seq
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.debounce, func() {
		b.fire(ctx, seq)
	})
}

// Submit applies value immediately, cancelling any pending input
func (b *SearchBox) Submit(ctx context.Context, value string) {
	b.mu.Lock()
	b.pending = value
	b.seq++
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	mode := b.mode
	b.mu.Unlock()

	b.apply(ctx, mode, value)
}

// Clear resets both search term and barcode right away
func (b *SearchBox) Clear(ctx context.Context) {
	b.mu.Lock()
	b.pending = ""
	b.seq++
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.mu.Unlock()

	b.store.Dispatch(store.SetSearchTerm{Term: ""}, store.SetBarcode{Barcode: ""})
	b.syncer.Sync(ctx)
}

// Stop drops pending input without applying it
func (b *SearchBox) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

// Flush applies pending input now instead of waiting for the timer
func (b *SearchBox) Flush(ctx context.Context) {
	b.mu.Lock()
	seq := b.seq
	b.mu.Unlock()
	b.fire(ctx, seq)
}

func (b *SearchBox) fire(ctx context.Context, seq uint64) {
	b.mu.Lock()
	if seq != b.seq || b.timer == nil {
		// Superseded by later input or already applied
		b.mu.Unlock()
		return
	}
	b.timer.Stop()
	b.timer = nil
	value, mode := b.pending, b.mode
	b.mu.Unlock()

	b.apply(ctx, mode, value)
}

// apply writes value to the filter of mode and clears the other one. An
// unchanged value dispatches nothing.
func (b *SearchBox) apply(ctx context.Context, mode Mode, value string) {
	filters := b.store.State().Filters

	switch mode {
	case ModeBarcode:
		if value == filters.Barcode && filters.SearchTerm == "" {
			return
		}
		b.store.Dispatch(store.SetBarcode{Barcode: value}, store.SetSearchTerm{Term: ""})
	default:
		if value == filters.SearchTerm && filters.Barcode == "" {
			return
		}
		b.store.Dispatch(store.SetSearchTerm{Term: value}, store.SetBarcode{Barcode: ""})
	}

	b.log.Debug("Search input applied", "mode", mode, "value", value)
	b.syncer.Sync(ctx)
}
