package service

import (
	"context"
	"errors"
	"fmt"

	"maritime-marketplace/internal/models"
	"maritime-marketplace/internal/store"
	"maritime-marketplace/internal/summary"
	"maritime-marketplace/internal/util"

	"go.uber.org/zap"
)

// OrderService reads placed orders
type OrderService struct {
	orders   OrderRepository
	payments PaymentRepository
	logger   *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(orders OrderRepository, payments PaymentRepository) *OrderService {
	return &OrderService{
		orders:   orders,
		payments: payments,
		logger:   util.Component("orders"),
	}
}

// OrderDetails is an order with its items, payment and confirmation summary
type OrderDetails struct {
	Order   *models.Order      `json:"order"`
	Items   []models.OrderItem `json:"items"`
	Payment *models.Payment    `json:"payment,omitempty"`
	Summary summary.Summary    `json:"summary"`
}

// GetOrder returns one of the user's orders. Orders owned by someone else are
// reported as not found.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID int64) (*OrderDetails, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
	}
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
	}

	items, err := s.orders.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	details := &OrderDetails{
		Order:   order,
		Items:   items,
		Summary: summary.FromOrderItems(items),
	}

	payment, err := s.payments.GetPaymentByOrderID(ctx, orderID)
	switch {
	case err == nil:
		details.Payment = payment
	case !errors.Is(err, store.ErrNotFound):
		s.logger.Warn("Failed to load payment", zap.Int64("order_id", orderID), zap.Error(err))
	}

	return details, nil
}

// ListOrders returns the user's orders, newest first
func (s *OrderService) ListOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	orders, err := s.orders.GetOrdersByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}
