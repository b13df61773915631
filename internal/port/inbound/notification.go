package inbound

import (
	"context"

	"go-notification-hub/internal/domain/notification"
	"go-notification-hub/internal/infrastructure/hub"
)

// NotificationUseCase is what the transport handlers drive.
type NotificationUseCase interface {
	// Subscribe opens a push connection for userKey on stream and replays
	// cached events newer than lastSeenID when it is non-empty.
	Subscribe(ctx context.Context, userKey, lastSeenID string, stream hub.Stream) (*hub.Connection, error)

	// Send persists a notification and fans it out to the receiver's live
	// connections. Live delivery is best-effort.
	Send(
		ctx context.Context,
		receiver notification.Receiver,
		typ notification.Type,
		content, url string,
	) (*notification.Notification, error)

	List(ctx context.Context, receiverKey string, limit int) ([]*notification.Notification, error)
	MarkAsRead(ctx context.Context, id, receiverKey string) error
}
