package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"maritime-marketplace/internal/models"
	"maritime-marketplace/internal/store"
	"maritime-marketplace/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrCardDeclined is returned by a CardProcessor that refuses the charge
var ErrCardDeclined = errors.New("card declined")

// CardProcessor charges a card for an order
type CardProcessor interface {
	Charge(ctx context.Context, orderID int64, amount decimal.Decimal) (txID string, err error)
}

// MockCardProcessor approves a configurable share of charges after a short delay
type MockCardProcessor struct {
	mu          sync.Mutex
	rng         *rand.Rand
	successRate float64
	minLatency  time.Duration
	maxLatency  time.Duration
}

// NewMockCardProcessor creates a processor with the given approval rate (0.0 - 1.0)
func NewMockCardProcessor(successRate float64) *MockCardProcessor {
	return &MockCardProcessor{
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		successRate: successRate,
		minLatency:  100 * time.Millisecond,
		maxLatency:  500 * time.Millisecond,
	}
}

// WithLatency overrides the simulated processing delay
func (p *MockCardProcessor) WithLatency(min, max time.Duration) *MockCardProcessor {
	p.minLatency, p.maxLatency = min, max
	return p
}

// Charge simulates a card authorization
func (p *MockCardProcessor) Charge(ctx context.Context, orderID int64, amount decimal.Decimal) (string, error) {
	p.mu.Lock()
	delay := p.minLatency
	if span := p.maxLatency - p.minLatency; span > 0 {
		delay += time.Duration(p.rng.Int63n(int64(span)))
	}
	approved := p.rng.Float64() < p.successRate
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(delay):
	}

	if !approved {
		return "", ErrCardDeclined
	}
	return fmt.Sprintf("TXN-%s", uuid.New().String()[:8]), nil
}

// PaymentService settles placed orders by card or by credits
type PaymentService struct {
	payments       PaymentRepository
	processor      CardProcessor
	eventPublisher PaymentEventPublisher
	logger         *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(payments PaymentRepository, processor CardProcessor, eventPublisher PaymentEventPublisher) *PaymentService {
	return &PaymentService{
		payments:       payments,
		processor:      processor,
		eventPublisher: eventPublisher,
		logger:         util.Component("payment"),
	}
}

// ProcessPayment charges the order and publishes the outcome. A declined
// payment is not an error; it is reported through PAYMENT_FAILED. An order
// that already has a payment is not charged again.
func (ps *PaymentService) ProcessPayment(ctx context.Context, event *models.OrderPlacedEvent) error {
	ctx, span := util.StartSpan(ctx, "PaymentService.ProcessPayment")
	defer span.End()

	method := string(event.PaymentMethod)
	util.PaymentAttemptsTotal.WithLabelValues(method).Inc()
	start := time.Now()
	defer func() {
		util.PaymentProcessingLatency.Observe(time.Since(start).Seconds())
	}()

	ps.logger.With(util.TraceFields(ctx)...).Info("Processing payment",
		zap.Int64("order_id", event.OrderID),
		zap.String("method", method),
		zap.String("amount", event.TotalAmount.StringFixed(2)),
		zap.Int64("credits", event.TotalCredits))

	if existing, err := ps.payments.GetPaymentByOrderID(ctx, event.OrderID); err == nil {
		ps.logger.Info("Payment already recorded, skipping",
			zap.Int64("order_id", event.OrderID),
			zap.String("status", existing.Status))
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		util.RecordError(span, err)
		return fmt.Errorf("failed to check existing payment: %w", err)
	}

	payment := &models.Payment{
		OrderID: event.OrderID,
		Method:  event.PaymentMethod,
		Status:  models.PaymentStatusPending,
	}
	if event.PaymentMethod == models.PaymentMethodCredits {
		payment.Credits = event.TotalCredits
	} else {
		payment.Amount = event.TotalAmount
	}

	err := ps.payments.CreatePayment(ctx, payment)
	if errors.Is(err, store.ErrDuplicatePayment) {
		ps.logger.Info("Payment created concurrently, skipping", zap.Int64("order_id", event.OrderID))
		return nil
	}
	if err != nil {
		util.RecordError(span, err)
		return fmt.Errorf("failed to create payment: %w", err)
	}

	txID, err := ps.settle(ctx, event)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ps.fail(ctx, event, payment, err)
	}
	return ps.succeed(ctx, event, payment, txID)
}

func (ps *PaymentService) settle(ctx context.Context, event *models.OrderPlacedEvent) (string, error) {
	switch event.PaymentMethod {
	case models.PaymentMethodCredits:
		if event.TotalCredits < 0 {
			return "", fmt.Errorf("credits %d: %w", event.TotalCredits, ErrInvalidAmount)
		}
		if event.TotalCredits > 0 {
			if err := ps.payments.DebitCreditsTx(ctx, event.UserID, event.TotalCredits); err != nil {
				return "", err
			}
		}
		return fmt.Sprintf("CREDITS-%s", uuid.New().String()[:8]), nil
	case models.PaymentMethodCreditCard:
		if event.TotalAmount.IsNegative() {
			return "", fmt.Errorf("amount %s: %w", event.TotalAmount, ErrInvalidAmount)
		}
		return ps.processor.Charge(ctx, event.OrderID, event.TotalAmount)
	}
	return "", fmt.Errorf("unsupported payment method %q", event.PaymentMethod)
}

func (ps *PaymentService) succeed(ctx context.Context, event *models.OrderPlacedEvent, payment *models.Payment, txID string) error {
	ps.logger.Info("Payment succeeded",
		zap.Int64("order_id", event.OrderID),
		zap.String("tx_id", txID))

	if err := ps.payments.UpdatePaymentStatus(ctx, payment.ID, models.PaymentStatusSuccess, txID); err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}

	util.PaymentSuccessTotal.WithLabelValues(string(event.PaymentMethod)).Inc()

	success := &models.PaymentSuccessEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentSuccess,
			Timestamp: time.Now(),
		},
		OrderID:   event.OrderID,
		UserID:    event.UserID,
		PaymentID: payment.ID,
		Method:    event.PaymentMethod,
		Amount:    payment.Amount,
		Credits:   payment.Credits,
		TxID:      txID,
	}
	if err := ps.eventPublisher.PublishPaymentSuccess(ctx, success); err != nil {
		ps.logger.Error("Failed to publish PaymentSuccess event", zap.Error(err))
	}
	return nil
}

func (ps *PaymentService) fail(ctx context.Context, event *models.OrderPlacedEvent, payment *models.Payment, cause error) error {
	reason := failureReason(cause)
	ps.logger.Warn("Payment failed",
		zap.Int64("order_id", event.OrderID),
		zap.String("reason", reason),
		zap.Error(cause))

	if err := ps.payments.UpdatePaymentStatus(ctx, payment.ID, models.PaymentStatusFailed, ""); err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}

	util.PaymentFailedTotal.WithLabelValues(string(event.PaymentMethod), reason).Inc()

	failed := &models.PaymentFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentFailed,
			Timestamp: time.Now(),
		},
		OrderID:   event.OrderID,
		UserID:    event.UserID,
		PaymentID: payment.ID,
		Reason:    reason,
	}
	if err := ps.eventPublisher.PublishPaymentFailed(ctx, failed); err != nil {
		ps.logger.Error("Failed to publish PaymentFailed event", zap.Error(err))
	}
	return nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientCredits):
		return "insufficient_credits"
	case errors.Is(err, ErrCardDeclined):
		return "card_declined"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	}
	return "processing_error"
}

// GetPayment retrieves the latest payment for an order
func (ps *PaymentService) GetPayment(ctx context.Context, orderID int64) (*models.Payment, error) {
	return ps.payments.GetPaymentByOrderID(ctx, orderID)
}

// CreditBalance returns the user's credit balance
func (ps *PaymentService) CreditBalance(ctx context.Context, userID int64) (int64, error) {
	return ps.payments.GetCreditBalance(ctx, userID)
}

// TopUpCredits adds credits to the user's balance and returns the new balance
func (ps *PaymentService) TopUpCredits(ctx context.Context, userID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidTopUp
	}
	if err := ps.payments.AddCredits(ctx, userID, amount); err != nil {
		return 0, fmt.Errorf("failed to add credits: %w", err)
	}
	ps.logger.Info("Credits added", zap.Int64("user_id", userID), zap.Int64("amount", amount))
	return ps.payments.GetCreditBalance(ctx, userID)
}
