package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"go-notification-hub/internal/domain/notification"
	"go-notification-hub/internal/port/outbound"
)

// NotificationStore is the sqlite-backed record store.
type NotificationStore struct {
	db    *sql.DB
	clock clockwork.Clock
}

var _ outbound.NotificationStore = (*NotificationStore)(nil)

func NewNotificationStore(db *sql.DB, clock clockwork.Clock) *NotificationStore {
	return &NotificationStore{db: db, clock: clock}
}

// Create inserts the draft in its own transaction and returns the stored
// record with its generated id.
func (s *NotificationStore) Create(ctx context.Context, draft notification.Draft) (*notification.Notification, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	n := &notification.Notification{
		ID:        uuid.NewString(),
		Receiver:  draft.Receiver,
		Type:      draft.Type,
		Content:   draft.Content,
		URL:       draft.URL,
		CreatedAt: s.clock.Now().UTC().Truncate(time.Millisecond),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO notifications (id, receiver_key, receiver_email, type, content, url, is_read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		n.ID, n.Receiver.Key, n.Receiver.Email, string(n.Type), n.Content, n.URL, n.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert notification: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit notification: %w", err)
	}
	return n, nil
}

// ListByReceiver returns the newest records of receiverKey first.
func (s *NotificationStore) ListByReceiver(ctx context.Context, receiverKey string, limit int) ([]*notification.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, receiver_key, receiver_email, type, content, url, is_read, created_at
		 FROM notifications
		 WHERE receiver_key = ?
		 ORDER BY created_at DESC, id
		 LIMIT ?`,
		receiverKey, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	out := make([]*notification.Notification, 0, limit)
	for rows.Next() {
		var (
			n         notification.Notification
			typ       string
			isRead    int
			createdAt int64
		)
		if err := rows.Scan(&n.ID, &n.Receiver.Key, &n.Receiver.Email, &typ, &n.Content, &n.URL, &isRead, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Type = notification.Type(typ)
		n.IsRead = isRead != 0
		n.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}
	return out, nil
}

// MarkAsRead flags one record as read. It returns notification.ErrNotFound
// when no record with id belongs to receiverKey.
func (s *NotificationStore) MarkAsRead(ctx context.Context, id, receiverKey string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE id = ? AND receiver_key = ?`,
		id, receiverKey,
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return notification.ErrNotFound
	}
	return nil
}
