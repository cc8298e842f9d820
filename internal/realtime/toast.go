package realtime

import (
	"context"
	"fmt"

	"github.com/roach88/fitsync/internal/model"
)

// Toast is a transient, display-only notice of a notification insert.
type Toast struct {
	NotificationID string                 `json:"notification_id"`
	Type           model.NotificationType `json:"type"`
	Actor          string                 `json:"actor"`
	SessionID      string                 `json:"session_id,omitempty"`
	Text           string                 `json:"text"`
}

// Toaster renders toasts. Implementations must not block for long; the
// event consumer waits for Show to return.
type Toaster interface {
	Show(t Toast)
}

// ToasterFunc adapts a function to Toaster.
type ToasterFunc func(Toast)

// Show calls f(t).
func (f ToasterFunc) Show(t Toast) { f(t) }

// ActorResolver maps an actor ID to a display name.
type ActorResolver func(ctx context.Context, actorID string) (string, error)

// UnknownActor is shown when the actor cannot be resolved.
const UnknownActor = "Someone"

// FormatToast returns the toast text for a notification type. Unknown
// types have no toast.
func FormatToast(t model.NotificationType, actor string) (string, bool) {
	if actor == "" {
		actor = UnknownActor
	}
	switch t {
	case model.NotificationLike:
		return fmt.Sprintf("%s liked your session", actor), true
	case model.NotificationComment:
		return fmt.Sprintf("%s commented on your session", actor), true
	case model.NotificationFollow:
		return fmt.Sprintf("%s started following you", actor), true
	case model.NotificationMessage:
		return fmt.Sprintf("New message from %s", actor), true
	default:
		return "", false
	}
}
