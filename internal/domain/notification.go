package domain

import "time"

// NotificationTopic classifies a notification
type NotificationTopic string

const (
	TopicDiscover NotificationTopic = "discover"
	TopicDone     NotificationTopic = "done"
	TopicError    NotificationTopic = "error"
	TopicWarning  NotificationTopic = "warning"
)

// NotificationStatus tracks whether the operator has seen a notification
type NotificationStatus string

const (
	NotificationUnread NotificationStatus = "unread"
	NotificationRead   NotificationStatus = "read"
)

// Valid reports whether s is a known notification status
func (s NotificationStatus) Valid() bool {
	return s == NotificationUnread || s == NotificationRead
}

// Notification is a message surfaced to the operator
type Notification struct {
	ID        int64              `json:"id"`
	Topic     NotificationTopic  `json:"topic"`
	Message   string             `json:"message"`
	Status    NotificationStatus `json:"status"`
	NodeID    *int64             `json:"node_id,omitempty"`
	ClusterID *int64             `json:"cluster_id,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// NewNotification creates an unread notification
func NewNotification(topic NotificationTopic, message string) *Notification {
	return &Notification{
		Topic:     topic,
		Message:   message,
		Status:    NotificationUnread,
		CreatedAt: time.Now().UTC(),
	}
}
