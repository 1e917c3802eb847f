// Package persistence keeps the cart in a durable slot across sessions
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/noot-app/food-explorer/internal/config"
)

// ErrNotFound is returned by Load when the slot holds no snapshot
var ErrNotFound = errors.New("cart snapshot not found")

// Slot is one named durable location holding the latest cart snapshot
type Slot interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Ping(ctx context.Context) error
	Close() error
}

// OpenSlot creates the slot selected by cfg.CartStore
func OpenSlot(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Slot, error) {
	log := config.Component(logger, "persistence")

	switch cfg.CartStore {
	case config.CartStoreSQLite:
		log.Info("Using sqlite cart slot", "path", cfg.CartDBPath)
		return NewSQLiteSlot(ctx, cfg.CartDBPath, cfg.CartKey)
	case config.CartStoreRedis:
		log.Info("Using redis cart slot", "key", cfg.CartKey)
		return NewRedisSlot(ctx, cfg.RedisURL, cfg.CartKey)
	case config.CartStoreFile, "":
		log.Info("Using file cart slot", "path", cfg.CartPath)
		return NewFileSlot(cfg.CartPath), nil
	default:
		return nil, fmt.Errorf("unknown cart store %q", cfg.CartStore)
	}
}
