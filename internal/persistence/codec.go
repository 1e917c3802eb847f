package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/noot-app/food-explorer/internal/types"
)

// EncodeCart serializes the full cart as [{product, quantity}, ...]
func EncodeCart(cart []types.CartLine) ([]byte, error) {
	if cart == nil {
		cart = []types.CartLine{}
	}
	return json.Marshal(cart)
}

// DecodeCart parses a snapshot written by EncodeCart
func DecodeCart(data []byte) ([]types.CartLine, error) {
	var cart []types.CartLine
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("failed to parse cart snapshot: %w", err)
	}
	return cart, nil
}
