package persistence

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"sync"

	"github.com/noot-app/food-explorer/internal/config"
	"github.com/noot-app/food-explorer/internal/store"
)

// Bridge hydrates the store's cart from a slot once and writes the cart back
// after every change
type Bridge struct {
	store *store.Store
	slot  Slot
	log   *slog.Logger

	// saveMu orders writes so the last save holds the latest cart
	saveMu      sync.Mutex
	unsubscribe func()
}

// NewBridge creates a bridge between a store and a slot
func NewBridge(s *store.Store, slot Slot, logger *slog.Logger) *Bridge {
	return &Bridge{
		store: s,
		slot:  slot,
		log:   config.Component(logger, "persistence"),
	}
}

// Start restores the saved cart and then begins writing changes. A missing
// or unreadable snapshot leaves the cart empty and is only logged.
func (b *Bridge) Start(ctx context.Context) {
	b.hydrate(ctx)

	b.unsubscribe = b.store.Subscribe(func(prev, next store.State) {
		if reflect.DeepEqual(prev.Cart, next.Cart) {
			return
		}
		b.save(ctx)
	})
}

// Stop ends change tracking
func (b *Bridge) Stop() {
	if b.unsubscribe != nil {
		b.unsubscribe()
		b.unsubscribe = nil
	}
}

// hydrate replays the snapshot through the reducer so its cart invariants
// hold: one add per line, then the quantity when it is above one
func (b *Bridge) hydrate(ctx context.Context) {
	data, err := b.slot.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		b.log.Debug("No saved cart")
		return
	}
	if err != nil {
		b.log.Warn("Failed to load saved cart", "error", err)
		return
	}

	cart, err := DecodeCart(data)
	if err != nil {
		b.log.Warn("Ignoring unreadable saved cart", "error", err)
		return
	}

	actions := make([]store.Action, 0, len(cart)*2+1)
	for _, line := range cart {
		if line.Product.ID == "" || line.Quantity <= 0 {
			continue
		}
		actions = append(actions, store.AddToCart{Product: line.Product})
		if line.Quantity > 1 {
			actions = append(actions, store.UpdateCartQuantity{ProductID: line.Product.ID, Quantity: line.Quantity})
		}
	}
	if len(actions) == 0 {
		return
	}
	// Restoring is silent
	actions = append(actions, store.HideToast{})

	b.store.Dispatch(actions...)
	b.log.Info("Restored saved cart", "lines", len(b.store.State().Cart))
}

func (b *Bridge) save(ctx context.Context) {
	b.saveMu.Lock()
	defer b.saveMu.Unlock()

	// Read under saveMu so a delayed notification never writes an older cart
	cart := b.store.State().Cart

	data, err := EncodeCart(cart)
	if err != nil {
		b.log.Error("Failed to encode cart", "error", err)
		return
	}
	if err := b.slot.Save(ctx, data); err != nil {
		b.log.Error("Failed to save cart", "error", err)
		return
	}
	b.log.Debug("Cart saved", "lines", len(cart))
}
