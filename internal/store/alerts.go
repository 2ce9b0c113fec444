package store

import (
	"context"
	"fmt"

	"maritime-marketplace/internal/models"
)

// CreateAlert inserts a notification record
func (s *Store) CreateAlert(ctx context.Context, alert *models.Alert) error {
	query := `
		INSERT INTO alerts (user_id, severity, title, message, vessel_id, read)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	return s.db.QueryRowxContext(ctx, query,
		alert.UserID, alert.Severity, alert.Title, alert.Message, alert.VesselID, alert.Read).
		Scan(&alert.ID, &alert.CreatedAt)
}

// ListAlerts returns a user's alerts, newest first
func (s *Store) ListAlerts(ctx context.Context, userID int64, unreadOnly bool) ([]models.Alert, error) {
	query := "SELECT * FROM alerts WHERE user_id = $1"
	if unreadOnly {
		query += " AND read = FALSE"
	}
	query += " ORDER BY created_at DESC, id DESC"

	alerts := []models.Alert{}
	err := s.db.SelectContext(ctx, &alerts, query, userID)
	return alerts, err
}

// MarkAlertRead flags one of the user's alerts as read
func (s *Store) MarkAlertRead(ctx context.Context, alertID, userID int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE alerts SET read = TRUE WHERE id = $1 AND user_id = $2", alertID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("alert %d: %w", alertID, ErrNotFound)
	}
	return nil
}

// MarkAllAlertsRead flags every unread alert for the user and returns how many changed
func (s *Store) MarkAllAlertsRead(ctx context.Context, userID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE alerts SET read = TRUE WHERE user_id = $1 AND read = FALSE", userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountUnreadAlerts returns the number of unread alerts for the user
func (s *Store) CountUnreadAlerts(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM alerts WHERE user_id = $1 AND read = FALSE", userID)
	return n, err
}
