// Package storetest provides an in-memory store for service and handler tests.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"maritime-marketplace/internal/models"
	"maritime-marketplace/internal/store"

	"github.com/shopspring/decimal"
)

// Products is a small catalog covering launchable products and reports
func Products() []models.Product {
	return []models.Product{
		{ID: 1, Name: "Vessel Tracking Service", Price: decimal.RequireFromString("250.00"), CreditCost: 25, Type: models.ProductTypeVTS},
		{ID: 2, Name: "Maritime Area Alert", Price: decimal.RequireFromString("100.00"), CreditCost: 10, Type: models.ProductTypeMaritimeAlert},
		{ID: 3, Name: "Compliance Report", Price: decimal.RequireFromString("500.00"), CreditCost: 50, Type: models.ProductTypeReportCompliance},
	}
}

// Memory is an in-memory stand-in for *store.Store
type Memory struct {
	mu        sync.Mutex
	products  map[int64]models.Product
	orders    map[int64]*models.Order
	items     map[int64][]models.OrderItem
	payments  map[int64]*models.Payment
	credits   map[int64]int64
	alerts    []*models.Alert
	processed map[string]string
	nextID    int64

	createOrderErr error
}

// NewMemory returns a store seeded with products
func NewMemory(products ...models.Product) *Memory {
	m := &Memory{
		products:  make(map[int64]models.Product),
		orders:    make(map[int64]*models.Order),
		items:     make(map[int64][]models.OrderItem),
		payments:  make(map[int64]*models.Payment),
		credits:   make(map[int64]int64),
		processed: make(map[string]string),
	}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *Memory) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *Memory) ListProducts(ctx context.Context, f store.ProductFilter) ([]models.Product, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []models.Product
	for _, p := range m.products {
		if f.Type != "" && p.Type != f.Type {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Search)) {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := len(matched)
	if f.Offset >= total {
		return []models.Product{}, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return matched[f.Offset:end], total, nil
}

func (m *Memory) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, store.ErrNotFound)
	}
	return &p, nil
}

func (m *Memory) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *Memory) CreateOrderWithItems(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createOrderErr != nil {
		return m.createOrderErr
	}
	for _, o := range m.orders {
		if o.IdempotencyKey == order.IdempotencyKey {
			return fmt.Errorf("%s: %w", order.IdempotencyKey, store.ErrDuplicateOrder)
		}
	}

	order.ID = m.id()
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	stored := *order
	m.orders[order.ID] = &stored

	saved := make([]models.OrderItem, len(items))
	for i, item := range items {
		item.ID = m.id()
		item.OrderID = order.ID
		saved[i] = item
	}
	m.items[order.ID] = saved
	return nil
}

func (m *Memory) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, store.ErrNotFound)
	}
	cp := *o
	return &cp, nil
}

func (m *Memory) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.IdempotencyKey == key {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	orders := []models.Order{}
	for _, o := range m.orders {
		if o.UserID == userID {
			orders = append(orders, *o)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID > orders[j].ID })
	return orders, nil
}

func (m *Memory) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.OrderItem{}, m.items[orderID]...), nil
}

func (m *Memory) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return fmt.Errorf("order %d: %w", orderID, store.ErrNotFound)
	}
	if !models.CanTransitionOrder(o.Status, status) {
		return fmt.Errorf("order %d %s -> %s: %w", orderID, o.Status, status, store.ErrInvalidTransition)
	}
	o.Status = status
	return nil
}

// OrderStatus returns the stored status of an order
func (m *Memory) OrderStatus(id int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[id]; ok {
		return o.Status
	}
	return ""
}

func (m *Memory) CreatePayment(ctx context.Context, payment *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.OrderID == payment.OrderID {
			return fmt.Errorf("order %d: %w", payment.OrderID, store.ErrDuplicatePayment)
		}
	}
	payment.ID = m.id()
	cp := *payment
	m.payments[payment.ID] = &cp
	return nil
}

func (m *Memory) UpdatePaymentStatus(ctx context.Context, paymentID int64, status, providerTxID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok {
		return store.ErrNotFound
	}
	p.Status = status
	p.ProviderTxID = providerTxID
	return nil
}

func (m *Memory) GetPaymentByOrderID(ctx context.Context, orderID int64) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.Payment
	for _, p := range m.payments {
		if p.OrderID == orderID && (latest == nil || p.ID > latest.ID) {
			latest = p
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("payment for order %d: %w", orderID, store.ErrNotFound)
	}
	cp := *latest
	return &cp, nil
}

func (m *Memory) GetCreditBalance(ctx context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.credits[userID], nil
}

func (m *Memory) AddCredits(ctx context.Context, userID, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credits[userID] += amount
	return nil
}

func (m *Memory) DebitCreditsTx(ctx context.Context, userID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("debit %d: %w", amount, store.ErrInvalidAmount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.credits[userID] < amount {
		return fmt.Errorf("balance=%d, requested=%d: %w", m.credits[userID], amount, store.ErrInsufficientCredits)
	}
	m.credits[userID] -= amount
	return nil
}

func (m *Memory) CreateAlert(ctx context.Context, alert *models.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	alert.ID = m.id()
	alert.CreatedAt = time.Now()
	cp := *alert
	m.alerts = append(m.alerts, &cp)
	return nil
}

func (m *Memory) ListAlerts(ctx context.Context, userID int64, unreadOnly bool) ([]models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Alert{}
	for i := len(m.alerts) - 1; i >= 0; i-- {
		a := m.alerts[i]
		if a.UserID != userID || (unreadOnly && a.Read) {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (m *Memory) MarkAlertRead(ctx context.Context, alertID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if a.ID == alertID && a.UserID == userID {
			a.Read = true
			return nil
		}
	}
	return fmt.Errorf("alert %d: %w", alertID, store.ErrNotFound)
}

func (m *Memory) MarkAllAlertsRead(ctx context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, a := range m.alerts {
		if a.UserID == userID && !a.Read {
			a.Read = true
			n++
		}
	}
	return n, nil
}

func (m *Memory) CountUnreadAlerts(ctx context.Context, userID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.alerts {
		if a.UserID == userID && !a.Read {
			n++
		}
	}
	return n, nil
}

func (m *Memory) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.processed[eventID]
	return ok, nil
}

func (m *Memory) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed[eventID] = eventType
	return nil
}

// FailCreateOrder makes CreateOrderWithItems return err until reset with nil
func (m *Memory) FailCreateOrder(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createOrderErr = err
}

// DeleteProduct removes a product from the catalog
func (m *Memory) DeleteProduct(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.products, id)
}

// OrderCount returns the number of stored orders
func (m *Memory) OrderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}
