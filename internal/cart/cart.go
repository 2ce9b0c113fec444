// Package cart holds the cart state and the pure reducer that evolves it.
//
// State values are immutable snapshots: Reduce always returns a new State and
// never writes through the slice of the State it was given.
package cart

import (
	"maritime-marketplace/internal/models"

	"github.com/shopspring/decimal"
)

// State is an ordered cart snapshot. Lines keep insertion order.
type State struct {
	items []models.CartItem
}

// NewState builds a snapshot from a list of lines, dropping anything that
// would break the cart invariants (empty or duplicate ids, quantity < 1).
// Quantities above models.MaxQuantity are clamped.
func NewState(items []models.CartItem) State {
	seen := make(map[string]struct{}, len(items))
	out := make([]models.CartItem, 0, len(items))
	for _, item := range items {
		if item.ItemID == "" || item.Quantity < 1 {
			continue
		}
		if _, dup := seen[item.ItemID]; dup {
			continue
		}
		seen[item.ItemID] = struct{}{}
		item.Quantity = clampQuantity(item.Quantity)
		out = append(out, item)
	}
	return State{items: out}
}

// Items returns a copy of the cart lines
func (s State) Items() []models.CartItem {
	out := make([]models.CartItem, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of lines
func (s State) Len() int {
	return len(s.items)
}

// Find returns the line with the given id
func (s State) Find(itemID string) (models.CartItem, bool) {
	if i := s.indexOf(itemID); i >= 0 {
		return s.items[i], true
	}
	return models.CartItem{}, false
}

// ItemCount returns the sum of quantities
func (s State) ItemCount() int {
	n := 0
	for _, item := range s.items {
		n += item.Quantity
	}
	return n
}

// TotalPrice returns the sum of effective line prices
func (s State) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.items {
		total = total.Add(item.LinePrice())
	}
	return total
}

// TotalCredits returns the sum of effective line credits
func (s State) TotalCredits() int64 {
	var total int64
	for _, item := range s.items {
		total += item.LineCredits()
	}
	return total
}

func (s State) indexOf(itemID string) int {
	for i := range s.items {
		if s.items[i].ItemID == itemID {
			return i
		}
	}
	return -1
}

// mergeTarget finds an unconfigured line for the same product
func (s State) mergeTarget(productID int64) int {
	for i := range s.items {
		if s.items[i].Product.ID == productID && !s.items[i].IsConfigured() {
			return i
		}
	}
	return -1
}

func (s State) with(items []models.CartItem) State {
	return State{items: items}
}

func (s State) clone() []models.CartItem {
	out := make([]models.CartItem, len(s.items), len(s.items)+1)
	copy(out, s.items)
	return out
}
