package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"maritime-marketplace/internal/cart"
	"maritime-marketplace/internal/checkout"
	"maritime-marketplace/internal/models"
	"maritime-marketplace/internal/redisclient"
	"maritime-marketplace/internal/store"
	"maritime-marketplace/internal/summary"
	"maritime-marketplace/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxSessions bounds the in-process session table before finished
// sessions are pruned
const maxSessions = 10_000

// CheckoutService turns a user's cart into an order
type CheckoutService struct {
	carts          *CartService
	orders         OrderRepository
	payments       PaymentRepository
	redis          *redisclient.Client
	eventPublisher OrderEventPublisher
	validator      *checkout.Validator
	lockTTL        time.Duration
	idempotencyTTL time.Duration
	logger         *zap.Logger

	mu       sync.Mutex
	sessions map[int64]*checkout.Session
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	carts *CartService,
	orders OrderRepository,
	payments PaymentRepository,
	redis *redisclient.Client,
	eventPublisher OrderEventPublisher,
	lockTTL, idempotencyTTL time.Duration,
) *CheckoutService {
	return &CheckoutService{
		carts:          carts,
		orders:         orders,
		payments:       payments,
		redis:          redis,
		eventPublisher: eventPublisher,
		validator:      checkout.NewValidator(),
		lockTTL:        lockTTL,
		idempotencyTTL: idempotencyTTL,
		logger:         util.Component("checkout"),
		sessions:       make(map[int64]*checkout.Session),
	}
}

// PlaceOrderRequest is the submitted checkout form
type PlaceOrderRequest struct {
	PaymentMethod models.PaymentMethod `json:"paymentMethod"`
	checkout.FormValues
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

// PlaceOrderResponse is returned once the order is persisted
type PlaceOrderResponse struct {
	OrderID   int64           `json:"orderId"`
	Status    string          `json:"status"`
	Duplicate bool            `json:"duplicate,omitempty"`
	Summary   summary.Summary `json:"summary"`
}

// SessionStatus is the submit-button view of a user's checkout
type SessionStatus struct {
	Status    checkout.Status `json:"status"`
	CanSubmit bool            `json:"canSubmit"`
	OrderID   int64           `json:"orderId,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Validate checks the form without submitting it
func (s *CheckoutService) Validate(req *PlaceOrderRequest) error {
	if !req.PaymentMethod.Valid() {
		return &checkout.ValidationError{Fields: checkout.FieldErrors{"paymentMethod": "Select a payment method"}}
	}
	if err := s.validator.Check(req.FormValues, req.PaymentMethod); err != nil {
		var verr *checkout.ValidationError
		if errors.As(err, &verr) {
			for field := range verr.Fields {
				util.CheckoutValidationFailedTotal.WithLabelValues(field).Inc()
			}
		}
		return err
	}
	return nil
}

// Status returns the state of the user's latest checkout submission. A
// succeeded session is reported once and then forgotten.
func (s *CheckoutService) Status(userID int64) SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return SessionStatus{Status: checkout.StatusEditing, CanSubmit: true}
	}

	st := SessionStatus{Status: sess.Status(), CanSubmit: sess.CanSubmit(), OrderID: sess.OrderID()}
	if err := sess.Err(); err != nil {
		st.Error = err.Error()
	}
	if st.Status == checkout.StatusSucceeded {
		delete(s.sessions, userID)
	}
	return st
}

// begin starts a submission for the user. A completed session is replaced so
// the user can check out a new cart later.
func (s *CheckoutService) begin(userID int64) (*checkout.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok || sess.Status() == checkout.StatusSucceeded {
		if len(s.sessions) >= maxSessions {
			s.pruneSessions()
		}
		sess = checkout.NewSession()
		s.sessions[userID] = sess
	}
	if err := sess.Begin(); err != nil {
		return nil, err
	}
	return sess, nil
}

// pruneSessions drops every finished session. Callers hold s.mu.
func (s *CheckoutService) pruneSessions() {
	for id, sess := range s.sessions {
		if sess.Done() {
			delete(s.sessions, id)
		}
	}
}

// PlaceOrder validates the form, persists the cart as an order, publishes
// ORDER_PLACED and removes the ordered lines from the cart. Any failure
// leaves the cart untouched.
func (s *CheckoutService) PlaceOrder(ctx context.Context, userID int64, req *PlaceOrderRequest) (*PlaceOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.PlaceOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.CheckoutLatency.Observe(time.Since(start).Seconds())
	}()

	if err := s.Validate(req); err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		if resp, err := s.replay(ctx, userID, req.IdempotencyKey); err != nil || resp != nil {
			return resp, err
		}
	}

	sess, err := s.begin(userID)
	if err != nil {
		util.CheckoutDuplicateTotal.Inc()
		return nil, err
	}

	resp, err := s.submit(ctx, userID, req)
	if err != nil {
		util.RecordError(span, err)
		_ = sess.Fail(err)
		return nil, err
	}
	_ = sess.Succeed(resp.OrderID)
	return resp, nil
}

func (s *CheckoutService) submit(ctx context.Context, userID int64, req *PlaceOrderRequest) (*PlaceOrderResponse, error) {
	lockKey := "checkout:" + strconv.FormatInt(userID, 10)
	token, ok, err := s.redis.AcquireLock(ctx, lockKey, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire checkout lock: %w", err)
	}
	if !ok {
		util.CheckoutDuplicateTotal.Inc()
		return nil, checkout.ErrSubmissionInFlight
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := s.redis.ReleaseLock(releaseCtx, lockKey, token); err != nil {
			s.logger.Warn("Failed to release checkout lock", zap.Int64("user_id", userID), zap.Error(err))
		}
	}()

	state, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("cart_unavailable").Inc()
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if state.Len() == 0 {
		util.OrdersFailedTotal.WithLabelValues("empty_cart").Inc()
		return nil, ErrEmptyCart
	}

	if err := checkTotals(state); err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_totals").Inc()
		return nil, err
	}

	if err := s.carts.catalog.EnsureAvailable(ctx, productIDs(state)); err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_items").Inc()
		return nil, err
	}

	if req.PaymentMethod == models.PaymentMethodCredits {
		balance, err := s.payments.GetCreditBalance(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to check credit balance: %w", err)
		}
		if balance < state.TotalCredits() {
			util.OrdersFailedTotal.WithLabelValues("insufficient_credits").Inc()
			return nil, fmt.Errorf("balance=%d, required=%d: %w", balance, state.TotalCredits(), ErrInsufficientCredits)
		}
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.New().String()
	}

	order, items := buildOrder(userID, req, state)
	err = s.orders.CreateOrderWithItems(ctx, order, items)
	if errors.Is(err, store.ErrDuplicateOrder) {
		// another instance won the race for this key
		if resp, rerr := s.replay(ctx, userID, req.IdempotencyKey); rerr != nil || resp != nil {
			return resp, rerr
		}
		return nil, checkout.ErrAlreadyCompleted
	}
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersPlacedTotal.WithLabelValues(string(order.PaymentMethod)).Inc()
	s.logger.With(util.TraceFields(ctx)...).Info("Order placed",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", userID),
		zap.String("payment_method", string(order.PaymentMethod)),
		zap.String("total", order.TotalAmount.StringFixed(2)))

	if err := s.redis.SetIdempotencyKey(ctx, req.IdempotencyKey, order.ID, s.idempotencyTTL); err != nil {
		s.logger.Warn("Failed to store idempotency key", zap.Error(err))
	}

	if err := s.eventPublisher.PublishOrderPlaced(ctx, orderPlacedEvent(order, items)); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event", zap.Int64("order_id", order.ID), zap.Error(err))
	}

	if _, err := s.carts.RemoveItems(ctx, userID, itemIDs(state)); err != nil {
		s.logger.Error("Failed to clear ordered items from cart", zap.Int64("user_id", userID), zap.Error(err))
	}

	return &PlaceOrderResponse{
		OrderID: order.ID,
		Status:  order.Status,
		Summary: summary.FromCartItems(state.Items()),
	}, nil
}

// checkTotals rejects carts whose lines are out of range or whose credit
// total would overflow
func checkTotals(state cart.State) error {
	var total int64
	for _, item := range state.Items() {
		unit := item.UnitCredits()
		if item.Quantity < 1 || item.Quantity > models.MaxQuantity ||
			unit < 0 || unit > models.MaxCreditCost || item.UnitPrice().IsNegative() {
			return fmt.Errorf("%w: item %s", ErrInvalidOrderTotals, item.ItemID)
		}
		line := item.LineCredits()
		if total > math.MaxInt64-line {
			return fmt.Errorf("%w: credit total overflows", ErrInvalidOrderTotals)
		}
		total += line
	}
	return nil
}

// replay returns the order already placed under key, if any
func (s *CheckoutService) replay(ctx context.Context, userID int64, key string) (*PlaceOrderResponse, error) {
	var order *models.Order

	if val, found, err := s.redis.GetIdempotencyKey(ctx, key); err == nil && found {
		if id, perr := strconv.ParseInt(val, 10, 64); perr == nil {
			if o, gerr := s.orders.GetOrderByID(ctx, id); gerr == nil {
				order = o
			}
		}
	}
	if order == nil {
		o, err := s.orders.GetOrderByIdempotencyKey(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to check idempotency: %w", err)
		}
		order = o
	}
	if order == nil || order.UserID != userID {
		return nil, nil
	}

	items, err := s.orders.GetOrderItemsByOrderID(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}

	s.logger.Info("Duplicate checkout request detected",
		zap.String("idempotency_key", key),
		zap.Int64("order_id", order.ID))

	return &PlaceOrderResponse{
		OrderID:   order.ID,
		Status:    order.Status,
		Duplicate: true,
		Summary:   summary.FromOrderItems(items),
	}, nil
}

func buildOrder(userID int64, req *PlaceOrderRequest, state cart.State) (*models.Order, []models.OrderItem) {
	order := &models.Order{
		UserID:         userID,
		TotalAmount:    state.TotalPrice(),
		TotalCredits:   state.TotalCredits(),
		PaymentMethod:  req.PaymentMethod,
		Status:         models.OrderStatusPending,
		BillingName:    req.Name,
		BillingEmail:   req.Email,
		BillingAddress: formatAddress(req.BillingDetails),
		IdempotencyKey: req.IdempotencyKey,
	}

	cartItems := state.Items()
	items := make([]models.OrderItem, 0, len(cartItems))
	for _, ci := range cartItems {
		items = append(items, models.OrderItem{
			ProductID:     ci.Product.ID,
			ProductName:   ci.Product.Name,
			ProductType:   ci.Product.Type,
			Quantity:      ci.Quantity,
			UnitPrice:     ci.UnitPrice(),
			UnitCredits:   ci.UnitCredits(),
			Configuration: ci.ConfigurationDetails,
		})
	}
	return order, items
}

func itemIDs(state cart.State) []string {
	ids := make([]string, 0, state.Len())
	for _, item := range state.Items() {
		ids = append(ids, item.ItemID)
	}
	return ids
}

func productIDs(state cart.State) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, item := range state.Items() {
		if !seen[item.Product.ID] {
			seen[item.Product.ID] = true
			ids = append(ids, item.Product.ID)
		}
	}
	return ids
}

func formatAddress(b checkout.BillingDetails) string {
	parts := []string{b.Address, b.City, b.State, b.ZipCode, b.Country}
	return strings.Join(parts, ", ")
}

func orderPlacedEvent(order *models.Order, items []models.OrderItem) *models.OrderPlacedEvent {
	data := make([]models.OrderItemData, 0, len(items))
	for _, item := range items {
		data = append(data, models.OrderItemData{
			ProductID:   item.ProductID,
			ProductType: item.ProductType,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			UnitCredits: item.UnitCredits,
		})
	}

	return &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPlaced,
			Timestamp: time.Now(),
		},
		OrderID:       order.ID,
		UserID:        order.UserID,
		PaymentMethod: order.PaymentMethod,
		TotalAmount:   order.TotalAmount,
		TotalCredits:  order.TotalCredits,
		Items:         data,
	}
}
