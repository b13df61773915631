package outbound

import (
	"context"

	"go-notification-hub/internal/domain/notification"
)

// NotificationStore persists notification records. Create is atomic: on
// error nothing was stored.
type NotificationStore interface {
	Create(ctx context.Context, draft notification.Draft) (*notification.Notification, error)
	ListByReceiver(ctx context.Context, receiverKey string, limit int) ([]*notification.Notification, error)
	MarkAsRead(ctx context.Context, id, receiverKey string) error
}

// Mailer emails a persisted notification to its receiver. Enqueue must not
// block.
type Mailer interface {
	Enqueue(n *notification.Notification)
}
