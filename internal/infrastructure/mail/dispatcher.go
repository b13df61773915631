package mail

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"go-notification-hub/internal/domain/notification"
	"go-notification-hub/internal/infrastructure/logger"
	"go-notification-hub/internal/infrastructure/metrics"
	"go-notification-hub/internal/port/outbound"
)

const sendTimeout = 30 * time.Second

var subjects = map[notification.Type]string{
	notification.TypeFundingTimeout: "Your funding has ended",
	notification.TypeFundingSuccess: "Your funding reached its goal",
	notification.TypeDonation:       "You received a donation",
}

// Dispatcher emails notifications from a bounded queue on a fixed set of
// workers. Enqueue never blocks; when the queue is full the mail is dropped.
type Dispatcher struct {
	sender  Sender
	from    string
	queue   chan *notification.Notification
	workers int
	logger  logger.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

var _ outbound.Mailer = (*Dispatcher)(nil)

func NewDispatcher(sender Sender, from string, queueSize, workers int, logger logger.Logger) *Dispatcher {
	return &Dispatcher{
		sender:  sender,
		from:    from,
		queue:   make(chan *notification.Notification, max(queueSize, 1)),
		workers: max(workers, 1),
		logger:  logger.WithField("component", "mail_dispatcher"),
	}
}

func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return errors.New("mail dispatcher is already running")
	}

	ctx, d.cancel = context.WithCancel(ctx)
	d.group, ctx = errgroup.WithContext(ctx)
	for i := 0; i < d.workers; i++ {
		d.group.Go(func() error {
			d.work(ctx)
			return nil
		})
	}
	d.running = true

	d.logger.Infof("Mail dispatcher started with %d workers", d.workers)
	return nil
}

// Stop halts the workers. Queued but unsent mail is discarded.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.cancel()
	group := d.group
	d.mu.Unlock()

	_ = group.Wait()
	d.logger.Info("Mail dispatcher stopped")
}

func (d *Dispatcher) Enqueue(n *notification.Notification) {
	if n == nil || n.Receiver.Email == "" {
		return
	}

	select {
	case d.queue <- n:
	default:
		metrics.MailDroppedTotal.Inc()
		d.logger.Warnf("Mail queue full, dropping mail for notification %s", n.ID)
	}
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-d.queue:
			d.deliver(ctx, n)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n *notification.Notification) {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := d.sender.Send(ctx, d.compose(n)); err != nil {
		d.logger.Errorf("Failed to mail notification %s to %s: %v", n.ID, n.Receiver.Email, err)
		return
	}
	d.logger.Debugf("Mailed notification %s to %s", n.ID, n.Receiver.Email)
}

func (d *Dispatcher) compose(n *notification.Notification) Message {
	subject, ok := subjects[n.Type]
	if !ok {
		subject = "New notification"
	}

	body := n.Content
	if n.URL != "" {
		body = fmt.Sprintf("%s\r\n\r\n%s", n.Content, n.URL)
	}

	return Message{
		From:    d.from,
		To:      n.Receiver.Email,
		Subject: subject,
		Body:    body,
	}
}
