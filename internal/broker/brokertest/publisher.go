// Package brokertest records domain events for tests.
package brokertest

import (
	"context"
	"sync"

	"maritime-marketplace/internal/models"
)

// Publisher records published events instead of sending them to Kafka
type Publisher struct {
	mu               sync.Mutex
	Placed           []*models.OrderPlacedEvent
	Confirmed        []*models.OrderConfirmedEvent
	Cancelled        []*models.OrderCancelledEvent
	PaymentSucceeded []*models.PaymentSuccessEvent
	PaymentFailed    []*models.PaymentFailedEvent
}

func (p *Publisher) PublishOrderPlaced(ctx context.Context, e *models.OrderPlacedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Placed = append(p.Placed, e)
	return nil
}

func (p *Publisher) PublishOrderConfirmed(ctx context.Context, e *models.OrderConfirmedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Confirmed = append(p.Confirmed, e)
	return nil
}

func (p *Publisher) PublishOrderCancelled(ctx context.Context, e *models.OrderCancelledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Cancelled = append(p.Cancelled, e)
	return nil
}

func (p *Publisher) PublishPaymentSuccess(ctx context.Context, e *models.PaymentSuccessEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PaymentSucceeded = append(p.PaymentSucceeded, e)
	return nil
}

func (p *Publisher) PublishPaymentFailed(ctx context.Context, e *models.PaymentFailedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PaymentFailed = append(p.PaymentFailed, e)
	return nil
}

