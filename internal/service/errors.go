package service

import (
	"errors"

	"maritime-marketplace/internal/store"
)

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrAlertNotFound       = errors.New("alert not found")
	ErrInvalidProductType  = errors.New("invalid product type")
	ErrInvalidOverride     = errors.New("configured price or credit cost out of range")
	ErrInvalidOrderTotals  = errors.New("order totals out of range")
	ErrInvalidAlert        = errors.New("invalid alert")
	ErrInvalidTopUp        = errors.New("top-up amount must be positive")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrCartBusy            = errors.New("cart is being modified by another request")
	ErrInsufficientCredits = store.ErrInsufficientCredits
	ErrInvalidAmount       = store.ErrInvalidAmount
)
