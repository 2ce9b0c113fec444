package service

import (
	"context"

	"maritime-marketplace/internal/models"
	"maritime-marketplace/internal/store"
)

// ProductRepository reads the catalog
type ProductRepository interface {
	ListProducts(ctx context.Context, filter store.ProductFilter) ([]models.Product, int, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
}

// OrderRepository persists orders and their items
type OrderRepository interface {
	CreateOrderWithItems(ctx context.Context, order *models.Order, items []models.OrderItem) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) error
}

// PaymentRepository persists payments and the credit ledger
type PaymentRepository interface {
	CreatePayment(ctx context.Context, payment *models.Payment) error
	UpdatePaymentStatus(ctx context.Context, paymentID int64, status, providerTxID string) error
	GetPaymentByOrderID(ctx context.Context, orderID int64) (*models.Payment, error)
	GetCreditBalance(ctx context.Context, userID int64) (int64, error)
	DebitCreditsTx(ctx context.Context, userID, amount int64) error
	AddCredits(ctx context.Context, userID, amount int64) error
}

// AlertRepository persists notification records
type AlertRepository interface {
	CreateAlert(ctx context.Context, alert *models.Alert) error
	ListAlerts(ctx context.Context, userID int64, unreadOnly bool) ([]models.Alert, error)
	MarkAlertRead(ctx context.Context, alertID, userID int64) error
	MarkAllAlertsRead(ctx context.Context, userID int64) (int64, error)
	CountUnreadAlerts(ctx context.Context, userID int64) (int, error)
}

// EventLog records consumed events for idempotent handling
type EventLog interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// OrderEventPublisher publishes order lifecycle events
type OrderEventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderConfirmed(ctx context.Context, event *models.OrderConfirmedEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
}

// PaymentEventPublisher publishes payment outcomes
type PaymentEventPublisher interface {
	PublishPaymentSuccess(ctx context.Context, event *models.PaymentSuccessEvent) error
	PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error
}
