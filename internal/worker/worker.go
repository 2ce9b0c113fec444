package worker

import (
	"context"

	"maritime-marketplace/internal/broker"
	"maritime-marketplace/internal/models"
	"maritime-marketplace/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Source is a stream of Kafka messages
type Source interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// PaymentOutcomeHandler reacts to payment results
type PaymentOutcomeHandler interface {
	HandlePaymentSuccess(ctx context.Context, event *models.PaymentSuccessEvent) error
	HandlePaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error
}

// PaymentProcessor settles placed orders
type PaymentProcessor interface {
	ProcessPayment(ctx context.Context, event *models.OrderPlacedEvent) error
}

// OrderWorker feeds payment outcomes to the saga
type OrderWorker struct {
	consumer     Source
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewOrderWorker creates a new order worker
func NewOrderWorker(consumer Source, saga PaymentOutcomeHandler) *OrderWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnPaymentSuccess(saga.HandlePaymentSuccess)
	eventHandler.OnPaymentFailed(saga.HandlePaymentFailed)

	return &OrderWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.Component("order-worker"),
	}
}

// Handle routes one message
func (w *OrderWorker) Handle(ctx context.Context, msg kafka.Message) error {
	return w.eventHandler.HandleMessage(ctx, msg)
}

// Start consumes until ctx is cancelled
func (w *OrderWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting order worker")
	return w.consumer.StartConsuming(ctx, w.Handle)
}

// Stop stops the worker
func (w *OrderWorker) Stop() error {
	w.logger.Info("Stopping order worker")
	return w.consumer.Close()
}

// PaymentWorker settles orders as ORDER_PLACED events arrive
type PaymentWorker struct {
	consumer     Source
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewPaymentWorker creates a new payment worker
func NewPaymentWorker(consumer Source, payments PaymentProcessor) *PaymentWorker {
	pw := &PaymentWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		logger:       util.Component("payment-worker"),
	}

	pw.eventHandler.OnOrderPlaced(func(ctx context.Context, event *models.OrderPlacedEvent) error {
		pw.logger.Info("Processing payment for order",
			zap.Int64("order_id", event.OrderID),
			zap.String("method", string(event.PaymentMethod)))
		return payments.ProcessPayment(ctx, event)
	})

	return pw
}

// Handle routes one message
func (pw *PaymentWorker) Handle(ctx context.Context, msg kafka.Message) error {
	return pw.eventHandler.HandleMessage(ctx, msg)
}

// Start consumes until ctx is cancelled
func (pw *PaymentWorker) Start(ctx context.Context) error {
	pw.logger.Info("Starting payment worker")
	return pw.consumer.StartConsuming(ctx, pw.Handle)
}

// Stop stops the payment worker
func (pw *PaymentWorker) Stop() error {
	pw.logger.Info("Stopping payment worker")
	return pw.consumer.Close()
}
