package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-notification-hub/internal/domain/notification"
)

func setupStore(t *testing.T) (*NotificationStore, *clockwork.FakeClock) {
	t.Helper()

	db, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	return NewNotificationStore(db, clock), clock
}

func draft(key string, typ notification.Type, content string) notification.Draft {
	return notification.Draft{
		Receiver: notification.Receiver{Key: key, Email: key + "@example.com"},
		Type:     typ,
		Content:  content,
		URL:      "/fundings/1",
	}
}

func TestNotificationStore_CreateAndList(t *testing.T) {
	store, clock := setupStore(t)
	ctx := context.Background()

	first, err := store.Create(ctx, draft("alice", notification.TypeDonation, "first"))
	require.NoError(t, err)
	clock.Advance(time.Second)
	second, err := store.Create(ctx, draft("alice", notification.TypeFundingSuccess, "second"))
	require.NoError(t, err)
	_, err = store.Create(ctx, draft("bob", notification.TypeDonation, "other"))
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, first.ID, 36)

	list, err := store.ListByReceiver(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")
	assert.Equal(t, first.ID, list[1].ID)
	assert.Equal(t, notification.TypeFundingSuccess, list[0].Type)
	assert.Equal(t, "alice@example.com", list[0].Receiver.Email)
	assert.True(t, second.CreatedAt.Equal(list[0].CreatedAt))
	assert.False(t, list[0].IsRead)

	limited, err := store.ListByReceiver(ctx, "alice", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestNotificationStore_CreateRejectsInvalidDraft(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, draft("", notification.TypeDonation, "x"))
	assert.ErrorIs(t, err, notification.ErrInvalidReceiver)

	_, err = store.Create(ctx, draft("alice", "REFUND", "x"))
	assert.ErrorIs(t, err, notification.ErrInvalidType)

	list, err := store.ListByReceiver(ctx, "alice", 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestNotificationStore_CreateFailsOnClosedDB(t *testing.T) {
	db, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	store := NewNotificationStore(db, clockwork.NewFakeClock())
	require.NoError(t, db.Close())

	_, err = store.Create(context.Background(), draft("alice", notification.TypeDonation, "x"))
	assert.Error(t, err)
}

func TestNotificationStore_MarkAsRead(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	n, err := store.Create(ctx, draft("alice", notification.TypeDonation, "x"))
	require.NoError(t, err)

	assert.ErrorIs(t, store.MarkAsRead(ctx, n.ID, "bob"), notification.ErrNotFound)
	assert.ErrorIs(t, store.MarkAsRead(ctx, "missing", "alice"), notification.ErrNotFound)
	require.NoError(t, store.MarkAsRead(ctx, n.ID, "alice"))

	list, err := store.ListByReceiver(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsRead)
}
