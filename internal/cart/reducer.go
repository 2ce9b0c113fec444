package cart

import (
	"maritime-marketplace/internal/models"

	"github.com/shopspring/decimal"
)

// Action is a cart mutation message
type Action interface {
	isAction()
}

// AddItem appends a line, or merges into an existing unconfigured line for the same product
type AddItem struct {
	ItemID               string
	Product              models.Product
	Quantity             int
	ConfiguredPrice      *decimal.Decimal
	ConfiguredCreditCost *int64
	Configuration        *models.Configuration
}

// UpdateItemQuantity sets the quantity of a line, clamped to [1, models.MaxQuantity]
type UpdateItemQuantity struct {
	ItemID   string
	Quantity int
}

// DecrementItem lowers a line by one and removes it instead of reaching 0
type DecrementItem struct {
	ItemID string
}

// RemoveItem drops a line
type RemoveItem struct {
	ItemID string
}

// ClearCart empties the cart
type ClearCart struct{}

func (AddItem) isAction()            {}
func (UpdateItemQuantity) isAction() {}
func (DecrementItem) isAction()      {}
func (RemoveItem) isAction()         {}
func (ClearCart) isAction()          {}

// Reduce applies an action to a snapshot and returns the next snapshot.
// Unknown item ids are no-ops.
func Reduce(s State, action Action) State {
	switch a := action.(type) {
	case AddItem:
		return reduceAdd(s, a)
	case UpdateItemQuantity:
		i := s.indexOf(a.ItemID)
		if i < 0 {
			return s
		}
		items := s.clone()
		items[i].Quantity = clampQuantity(a.Quantity)
		return s.with(items)
	case DecrementItem:
		i := s.indexOf(a.ItemID)
		if i < 0 {
			return s
		}
		if s.items[i].Quantity <= 1 {
			return s.with(removeAt(s.items, i))
		}
		items := s.clone()
		items[i].Quantity--
		return s.with(items)
	case RemoveItem:
		i := s.indexOf(a.ItemID)
		if i < 0 {
			return s
		}
		return s.with(removeAt(s.items, i))
	case ClearCart:
		return State{}
	}
	return s
}

func reduceAdd(s State, a AddItem) State {
	quantity := clampQuantity(a.Quantity)
	configured := a.Configuration != nil || a.ConfiguredPrice != nil || a.ConfiguredCreditCost != nil

	if !configured {
		if i := s.mergeTarget(a.Product.ID); i >= 0 {
			items := s.clone()
			// both operands are clamped, so the sum cannot overflow
			items[i].Quantity = clampQuantity(items[i].Quantity + quantity)
			return s.with(items)
		}
	}

	if a.ItemID == "" || s.indexOf(a.ItemID) >= 0 {
		return s
	}

	item := models.CartItem{
		ItemID:               a.ItemID,
		Product:              a.Product,
		Quantity:             quantity,
		ConfiguredPrice:      a.ConfiguredPrice,
		ConfiguredCreditCost: a.ConfiguredCreditCost,
		ConfigurationDetails: a.Configuration,
	}
	return s.with(append(s.clone(), item))
}

func removeAt(items []models.CartItem, i int) []models.CartItem {
	out := make([]models.CartItem, 0, len(items)-1)
	out = append(out, items[:i]...)
	return append(out, items[i+1:]...)
}

// clampQuantity keeps q within [1, models.MaxQuantity]
func clampQuantity(q int) int {
	switch {
	case q < 1:
		return 1
	case q > models.MaxQuantity:
		return models.MaxQuantity
	}
	return q
}
