package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"maritime-marketplace/internal/models"
	"maritime-marketplace/internal/store"
	"maritime-marketplace/internal/util"

	"go.uber.org/zap"
)

// AlertService manages dashboard notifications
type AlertService struct {
	alerts AlertRepository
	logger *zap.Logger
}

// NewAlertService creates a new alert service
func NewAlertService(alerts AlertRepository) *AlertService {
	return &AlertService{
		alerts: alerts,
		logger: util.Component("alerts"),
	}
}

// CreateAlertRequest is a new notification for a user
type CreateAlertRequest struct {
	Severity models.AlertSeverity `json:"severity" binding:"required"`
	Title    string               `json:"title" binding:"required"`
	Message  string               `json:"message"`
	VesselID *string              `json:"vesselId,omitempty"`
}

// AlertList is a user's alerts plus the unread count
type AlertList struct {
	Alerts []models.Alert `json:"alerts"`
	Unread int            `json:"unread"`
}

// Create stores a new unread alert
func (s *AlertService) Create(ctx context.Context, userID int64, req CreateAlertRequest) (*models.Alert, error) {
	if !req.Severity.Valid() {
		return nil, fmt.Errorf("%w: unknown severity %q", ErrInvalidAlert, req.Severity)
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidAlert)
	}

	alert := &models.Alert{
		UserID:   userID,
		Severity: req.Severity,
		Title:    title,
		Message:  req.Message,
		VesselID: req.VesselID,
	}
	if err := s.alerts.CreateAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}

	util.AlertsCreatedTotal.WithLabelValues(string(alert.Severity)).Inc()
	s.logger.Debug("Alert created",
		zap.Int64("alert_id", alert.ID),
		zap.Int64("user_id", userID),
		zap.String("severity", string(alert.Severity)))
	return alert, nil
}

// List returns the user's alerts, newest first
func (s *AlertService) List(ctx context.Context, userID int64, unreadOnly bool) (*AlertList, error) {
	alerts, err := s.alerts.ListAlerts(ctx, userID, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	unread, err := s.alerts.CountUnreadAlerts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}
	return &AlertList{Alerts: alerts, Unread: unread}, nil
}

// MarkRead flags one alert as read
func (s *AlertService) MarkRead(ctx context.Context, userID, alertID int64) error {
	err := s.alerts.MarkAlertRead(ctx, alertID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %d", ErrAlertNotFound, alertID)
	}
	return err
}

// MarkAllRead flags every alert as read and returns how many changed
func (s *AlertService) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return s.alerts.MarkAllAlertsRead(ctx, userID)
}

// UnreadCount returns the number of unread alerts
func (s *AlertService) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.alerts.CountUnreadAlerts(ctx, userID)
}
