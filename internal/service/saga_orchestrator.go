package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"maritime-marketplace/internal/models"
	"maritime-marketplace/internal/store"
	"maritime-marketplace/internal/summary"
	"maritime-marketplace/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SagaOrchestrator drives an order from PENDING to CONFIRMED or CANCELLED
// once its payment outcome is known
type SagaOrchestrator struct {
	orders         OrderRepository
	events         EventLog
	alerts         *AlertService
	eventPublisher OrderEventPublisher
	logger         *zap.Logger
}

// NewSagaOrchestrator creates a new saga orchestrator
func NewSagaOrchestrator(
	orders OrderRepository,
	events EventLog,
	alerts *AlertService,
	eventPublisher OrderEventPublisher,
) *SagaOrchestrator {
	return &SagaOrchestrator{
		orders:         orders,
		events:         events,
		alerts:         alerts,
		eventPublisher: eventPublisher,
		logger:         util.Component("saga"),
	}
}

func (so *SagaOrchestrator) alreadyProcessed(ctx context.Context, eventID string) (bool, error) {
	processed, err := so.events.IsEventProcessed(ctx, eventID)
	if err != nil {
		return false, fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		so.logger.Info("Event already processed", zap.String("event_id", eventID))
	}
	return processed, nil
}

// HandlePaymentSuccess confirms the order and notifies the user
func (so *SagaOrchestrator) HandlePaymentSuccess(ctx context.Context, event *models.PaymentSuccessEvent) error {
	ctx, span := util.StartSpan(ctx, "SagaOrchestrator.HandlePaymentSuccess")
	defer span.End()

	if done, err := so.alreadyProcessed(ctx, event.EventID); err != nil || done {
		return err
	}

	so.logger.With(util.TraceFields(ctx)...).Info("Handling payment success",
		zap.Int64("order_id", event.OrderID),
		zap.String("tx_id", event.TxID))

	for _, status := range []string{models.OrderStatusPaid, models.OrderStatusConfirmed} {
		if ok, err := so.advance(ctx, &event.BaseEvent, event.OrderID, status); err != nil || !ok {
			return err
		}
	}

	util.OrdersConfirmedTotal.Inc()

	so.notify(ctx, event.UserID, models.AlertSeveritySuccess,
		fmt.Sprintf("Order #%d confirmed", event.OrderID),
		so.confirmationMessage(ctx, event))

	confirmed := &models.OrderConfirmedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderConfirmed,
			Timestamp: time.Now(),
		},
		OrderID: event.OrderID,
		UserID:  event.UserID,
	}
	if err := so.eventPublisher.PublishOrderConfirmed(ctx, confirmed); err != nil {
		so.logger.Error("Failed to publish OrderConfirmed event", zap.Error(err))
	}

	if err := so.events.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		so.logger.Error("Failed to mark event processed", zap.Error(err))
	}

	so.logger.Info("Order confirmed", zap.Int64("order_id", event.OrderID))
	return nil
}

// HandlePaymentFailed cancels the order and notifies the user
func (so *SagaOrchestrator) HandlePaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	ctx, span := util.StartSpan(ctx, "SagaOrchestrator.HandlePaymentFailed")
	defer span.End()

	if done, err := so.alreadyProcessed(ctx, event.EventID); err != nil || done {
		return err
	}

	so.logger.With(util.TraceFields(ctx)...).Warn("Handling payment failure",
		zap.Int64("order_id", event.OrderID),
		zap.String("reason", event.Reason))

	if ok, err := so.advance(ctx, &event.BaseEvent, event.OrderID, models.OrderStatusCancelled); err != nil || !ok {
		return err
	}

	util.OrdersCancelledTotal.Inc()

	so.notify(ctx, event.UserID, models.AlertSeverityError,
		fmt.Sprintf("Order #%d was not completed", event.OrderID),
		failureMessage(event.Reason))

	cancelled := &models.OrderCancelledEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCancelled,
			Timestamp: time.Now(),
		},
		OrderID: event.OrderID,
		UserID:  event.UserID,
		Reason:  event.Reason,
	}
	if err := so.eventPublisher.PublishOrderCancelled(ctx, cancelled); err != nil {
		so.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
	}

	if err := so.events.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		so.logger.Error("Failed to mark event processed", zap.Error(err))
	}

	so.logger.Info("Order cancelled", zap.Int64("order_id", event.OrderID))
	return nil
}

// advance moves the order to status. An order the lifecycle no longer lets
// reach status (already cancelled, already confirmed) is left alone and the
// event is marked processed so it is not redelivered.
func (so *SagaOrchestrator) advance(ctx context.Context, event *models.BaseEvent, orderID int64, status string) (bool, error) {
	err := so.orders.UpdateOrderStatus(ctx, orderID, status)
	if errors.Is(err, store.ErrInvalidTransition) {
		so.logger.Warn("Skipping out-of-order payment outcome",
			zap.Int64("order_id", orderID),
			zap.String("event_id", event.EventID),
			zap.Error(err))
		if err := so.events.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
			so.logger.Error("Failed to mark event processed", zap.Error(err))
		}
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to set order %d to %s: %w", orderID, status, err)
	}
	return true, nil
}

// notify creates an alert; failures are logged and do not roll back the saga
func (so *SagaOrchestrator) notify(ctx context.Context, userID int64, severity models.AlertSeverity, title, message string) {
	if so.alerts == nil {
		return
	}
	_, err := so.alerts.Create(ctx, userID, CreateAlertRequest{
		Severity: severity,
		Title:    title,
		Message:  message,
	})
	if err != nil {
		so.logger.Error("Failed to create order alert", zap.Int64("user_id", userID), zap.Error(err))
	}
}

func (so *SagaOrchestrator) confirmationMessage(ctx context.Context, event *models.PaymentSuccessEvent) string {
	items, err := so.orders.GetOrderItemsByOrderID(ctx, event.OrderID)
	if err != nil || len(items) == 0 {
		return "Your purchase is complete."
	}

	s := summary.FromOrderItems(items)
	msg := fmt.Sprintf("%d item(s) purchased.", s.ItemCount)
	if event.Method == models.PaymentMethodCredits {
		msg += fmt.Sprintf(" %d credits charged.", event.Credits)
	} else {
		msg += fmt.Sprintf(" %s charged.", summary.FormatUSD(event.Amount))
	}
	if s.HasLaunchableProducts {
		msg += " Your products are ready to launch from the dashboard."
	}
	if s.HasReports {
		msg += " Reports will appear in your reports list."
	}
	return msg
}

func failureMessage(reason string) string {
	switch reason {
	case "insufficient_credits":
		return "Your credit balance was too low to cover this order."
	case "card_declined":
		return "Your card was declined. Please try another payment method."
	}
	return "Payment could not be processed. Please try again."
}
