package model

import "time"

// NotificationType is the discriminant carried by every notification row.
type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
	NotificationFollow  NotificationType = "follow"
	NotificationMessage NotificationType = "message"
)

// Valid reports whether t is one of the known notification types.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationLike, NotificationComment, NotificationFollow, NotificationMessage:
		return true
	}
	return false
}

// Notification is a row of the notifications table.
// UserID is the recipient, ActorID the user who caused it.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	ActorID   string           `json:"actor_id"`
	Type      NotificationType `json:"type"`
	SessionID string           `json:"session_id,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

// Counter names one of the two unread counters kept per viewer.
type Counter int

const (
	// CounterNotifications counts likes, comments and follows.
	CounterNotifications Counter = iota + 1
	// CounterMessages counts direct messages.
	CounterMessages
)

func (c Counter) String() string {
	switch c {
	case CounterNotifications:
		return "notifications"
	case CounterMessages:
		return "messages"
	default:
		return "unknown"
	}
}

// Classify maps a notification type to the counter it increments.
// "message" goes to messages; every other type, including unknown ones,
// goes to notifications.
func Classify(t NotificationType) Counter {
	if t == NotificationMessage {
		return CounterMessages
	}
	return CounterNotifications
}
