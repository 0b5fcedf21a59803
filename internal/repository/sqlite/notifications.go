package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fleetforge/internal/domain"
)

// ListNotifications returns all notifications, newest first
func (q *queries) ListNotifications(ctx context.Context) ([]*domain.Notification, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT `+notificationColumns+` FROM notifications ORDER BY id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*domain.Notification
	for rows.Next() {
		var row notificationRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, row.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}
	return notifications, nil
}

// GetNotification retrieves a notification by ID
func (q *queries) GetNotification(ctx context.Context, id int64) (*domain.Notification, error) {
	var row notificationRow
	err := q.q.QueryRowContext(ctx, `
		SELECT `+notificationColumns+` FROM notifications WHERE id = ?
	`, id).Scan(row.scanArgs()...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query notification: %w", err)
	}
	return row.toDomain(), nil
}

// CreateNotification inserts a notification and sets its ID
func (q *queries) CreateNotification(ctx context.Context, n *domain.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Status == "" {
		n.Status = domain.NotificationUnread
	}

	res, err := q.q.ExecContext(ctx, `
		INSERT INTO notifications (topic, message, status, node_id, cluster_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(n.Topic), n.Message, string(n.Status),
		int64PtrToNull(n.NodeID), int64PtrToNull(n.ClusterID), n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read notification id: %w", err)
	}
	n.ID = id
	return nil
}

// UpdateNotificationStatus marks a notification read or unread
func (q *queries) UpdateNotificationStatus(ctx context.Context, id int64, status domain.NotificationStatus) error {
	_, err := q.q.ExecContext(ctx, `UPDATE notifications SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}
	return nil
}
