package service

import (
	"context"

	"fleetforge/internal/domain"
	"fleetforge/internal/repository"
)

// NotificationService manages operator notifications
type NotificationService struct {
	repo     repository.Repository
	eventBus *EventBus
}

// NewNotificationService creates a new notification service
func NewNotificationService(repo repository.Repository, eventBus *EventBus) *NotificationService {
	return &NotificationService{repo: repo, eventBus: eventBus}
}

// NotificationUpdate changes the status of one notification
type NotificationUpdate struct {
	ID     *int64  `json:"id"`
	Status *string `json:"status"`
}

// ListNotifications returns all notifications, newest first
func (s *NotificationService) ListNotifications(ctx context.Context) ([]*domain.Notification, error) {
	return s.repo.ListNotifications(ctx)
}

// GetNotification retrieves a single notification
func (s *NotificationService) GetNotification(ctx context.Context, id int64) (*domain.Notification, error) {
	n, err := s.repo.GetNotification(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, notFound("notification %d not found", id)
	}
	return n, nil
}

// UpdateStatus marks one notification read or unread
func (s *NotificationService) UpdateStatus(ctx context.Context, id int64, status string) (*domain.Notification, error) {
	st := domain.NotificationStatus(status)
	if !st.Valid() {
		return nil, invalid("Bad status")
	}
	n, err := s.GetNotification(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateNotificationStatus(ctx, id, st); err != nil {
		return nil, err
	}
	n.Status = st

	s.eventBus.Publish(Event{Type: EventNotificationsUpdated, Payload: []*domain.Notification{n}})
	return n, nil
}

// UpdateStatuses applies a batch of status changes in one transaction
func (s *NotificationService) UpdateStatuses(ctx context.Context, updates []NotificationUpdate) ([]*domain.Notification, error) {
	if updates == nil {
		return nil, invalid("Invalid json list")
	}

	out := make([]*domain.Notification, 0, len(updates))
	err := s.repo.WithTx(ctx, func(q repository.Queries) error {
		for _, upd := range updates {
			if upd.ID == nil || upd.Status == nil {
				return invalid("ID is not set correctly")
			}
			st := domain.NotificationStatus(*upd.Status)
			if !st.Valid() {
				return invalid("Bad status")
			}
			n, err := q.GetNotification(ctx, *upd.ID)
			if err != nil {
				return err
			}
			if n == nil {
				return invalid("Invalid ID specified")
			}
			if err := q.UpdateNotificationStatus(ctx, n.ID, st); err != nil {
				return err
			}
			n.Status = st
			out = append(out, n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.eventBus.Publish(Event{Type: EventNotificationsUpdated, Payload: out})
	return out, nil
}
