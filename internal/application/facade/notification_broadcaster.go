package facade

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"go-notification-hub/internal/domain/notification"
	"go-notification-hub/internal/infrastructure/hub"
	"go-notification-hub/internal/infrastructure/logger"
	"go-notification-hub/internal/infrastructure/metrics"
	"go-notification-hub/internal/port/inbound"
	"go-notification-hub/internal/port/outbound"
)

var ErrEmptyUserKey = errors.New("user key cannot be empty")

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type BroadcasterConfig struct {
	// StreamTimeout ends a connection that has pushed nothing for this long.
	StreamTimeout time.Duration
	// PushTimeout bounds a single push to one connection.
	PushTimeout time.Duration
	// FanOutLimit caps concurrent pushes within one Send.
	FanOutLimit int
}

func DefaultBroadcasterConfig() BroadcasterConfig {
	return BroadcasterConfig{
		StreamTimeout: time.Hour,
		PushTimeout:   10 * time.Second,
		FanOutLimit:   32,
	}
}

// NotificationBroadcaster opens push connections and fans persisted
// notifications out to them.
type NotificationBroadcaster struct {
	registry *hub.Registry
	ids      *hub.IDGenerator
	store    outbound.NotificationStore
	mailer   outbound.Mailer
	clock    clockwork.Clock
	config   BroadcasterConfig
	logger   logger.Logger
}

var _ inbound.NotificationUseCase = (*NotificationBroadcaster)(nil)

func NewNotificationBroadcaster(
	registry *hub.Registry,
	ids *hub.IDGenerator,
	store outbound.NotificationStore,
	mailer outbound.Mailer,
	clock clockwork.Clock,
	config BroadcasterConfig,
	logger logger.Logger,
) *NotificationBroadcaster {
	if config.FanOutLimit < 1 {
		config.FanOutLimit = 1
	}
	return &NotificationBroadcaster{
		registry: registry,
		ids:      ids,
		store:    store,
		mailer:   mailer,
		clock:    clock,
		config:   config,
		logger:   logger.WithField("component", "broadcaster"),
	}
}

// Subscribe registers a connection for userKey on stream, sends the
// handshake and replays cached events newer than lastSeenID. A malformed
// lastSeenID is treated as empty.
//
// Every terminal transition of the returned connection removes, by its own
// id as prefix, the connection and the cache entries written for it.
func (b *NotificationBroadcaster) Subscribe(
	ctx context.Context,
	userKey, lastSeenID string,
	stream hub.Stream,
) (*hub.Connection, error) {
	if userKey == "" {
		return nil, ErrEmptyUserKey
	}

	log := b.logger.WithContext(ctx)
	id := b.ids.Make(userKey)
	conn := b.registry.Register(id, hub.NewConnection(
		id,
		userKey,
		stream,
		b.config.StreamTimeout,
		b.clock,
		log,
	))

	cleanup := func() {
		b.registry.RemoveAllByPrefix(id)
		b.registry.RemoveAllCachedByPrefix(id)
	}
	conn.OnCompletion(cleanup)
	conn.OnTimeout(cleanup)
	conn.OnError(func(error) { cleanup() })
	conn.Start()

	if err := b.push(ctx, conn, hub.NewHandshake(b.ids.Make(userKey), userKey)); err != nil {
		conn.Fail(err)
		return nil, fmt.Errorf("handshake on %s: %w", id, err)
	}

	if lastSeenID = hub.ParseLastEventID(userKey, lastSeenID); lastSeenID != "" {
		if err := b.replay(ctx, conn, lastSeenID); err != nil {
			conn.Fail(err)
			return nil, fmt.Errorf("replay on %s: %w", id, err)
		}
	}

	log.Infof("Connection %s opened for %s (transport: %s)", id, userKey, conn.Type())
	return conn, nil
}

// replay re-sends every cached entry of the user whose key sorts after
// lastSeenID, in key order, each under its cache key.
func (b *NotificationBroadcaster) replay(ctx context.Context, conn *hub.Connection, lastSeenID string) error {
	cached := b.registry.FindAllCachedByUserPrefix(conn.UserKey())

	keys := make([]string, 0, len(cached))
	for key := range cached {
		if hub.IsNewer(key, lastSeenID) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)

	for _, key := range keys {
		if err := b.push(ctx, conn, hub.NewEvent(key, cached[key])); err != nil {
			return err
		}
		metrics.ReplayedEventsTotal.Inc()
	}

	if len(keys) > 0 {
		b.logger.Debugf("Replayed %d events to %s after %s", len(keys), conn.ID(), lastSeenID)
	}
	return nil
}

// Send persists the notification, then pushes it to every live connection
// of the receiver. Push failures only deregister the failing connection;
// the returned error is non-nil only when persisting failed, in which case
// nothing was cached or pushed.
func (b *NotificationBroadcaster) Send(
	ctx context.Context,
	receiver notification.Receiver,
	typ notification.Type,
	content, url string,
) (*notification.Notification, error) {
	n, err := b.store.Create(ctx, notification.Draft{
		Receiver: receiver,
		Type:     typ,
		Content:  content,
		URL:      url,
	})
	if err != nil {
		return nil, fmt.Errorf("persist notification: %w", err)
	}
	metrics.NotificationsSentTotal.WithLabelValues(string(n.Type)).Inc()

	if b.mailer != nil {
		b.mailer.Enqueue(n)
	}

	b.fanOut(ctx, n)
	return n, nil
}

// fanOut pushes n to every live connection of its receiver. Pushes are
// detached from the sender's cancellation: a caller going away must not
// fail healthy subscribers. Each push is still bounded by PushTimeout.
func (b *NotificationBroadcaster) fanOut(ctx context.Context, n *notification.Notification) {
	ctx = context.WithoutCancel(ctx)
	start := b.clock.Now()
	eventID := b.ids.Make(n.Receiver.Key)
	snapshot := n.Snapshot()
	conns := b.registry.FindAllByUserPrefix(n.Receiver.Key)

	var eg errgroup.Group
	eg.SetLimit(b.config.FanOutLimit)

	for id, conn := range conns {
		eg.Go(func() error {
			if conn.State() != hub.StateOpen {
				b.registry.Remove(id)
				return nil
			}

			b.registry.CacheEvent(id, snapshot)
			if err := b.push(ctx, conn, hub.NewEvent(eventID, snapshot)); err != nil {
				metrics.PushesTotal.WithLabelValues(metrics.ResultFailed).Inc()
				b.logger.Warnf("Push of %s to %s failed: %v", eventID, id, err)
				b.registry.Remove(id)
				conn.Fail(err)
				return nil
			}

			metrics.PushesTotal.WithLabelValues(metrics.ResultDelivered).Inc()
			return nil
		})
	}
	_ = eg.Wait()

	metrics.FanOutDuration.Observe(b.clock.Since(start).Seconds())
	b.logger.Debugf("Notification %s fanned out to %d connections of %s", n.ID, len(conns), n.Receiver.Key)
}

func (b *NotificationBroadcaster) push(ctx context.Context, conn *hub.Connection, event *hub.Event) error {
	pctx, cancel := context.WithTimeout(ctx, b.config.PushTimeout)
	defer cancel()
	return conn.Send(pctx, event)
}

func (b *NotificationBroadcaster) List(
	ctx context.Context,
	receiverKey string,
	limit int,
) ([]*notification.Notification, error) {
	if receiverKey == "" {
		return nil, ErrEmptyUserKey
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)

	return b.store.ListByReceiver(ctx, receiverKey, limit)
}

func (b *NotificationBroadcaster) MarkAsRead(ctx context.Context, id, receiverKey string) error {
	if receiverKey == "" {
		return ErrEmptyUserKey
	}
	return b.store.MarkAsRead(ctx, id, receiverKey)
}
