package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"go-notification-hub/internal/infrastructure/logger"
	"go-notification-hub/internal/infrastructure/metrics"
)

var ErrConnectionClosed = errors.New("connection is closed")

// State is the lifecycle state of a Connection.
type State int32

const (
	StateOpen State = iota
	StateCompleted
	StateTimedOut
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateCompleted:
		return "completed"
	case StateTimedOut:
		return "timed_out"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Connection is one live push stream owned by a user. It leaves StateOpen
// exactly once; the callback matching the terminal state runs on that
// transition and never again.
type Connection struct {
	id        string
	userKey   string
	stream    Stream
	timeout   time.Duration
	clock     clockwork.Clock
	logger    logger.Logger
	createdAt time.Time

	mu           sync.Mutex
	timer        clockwork.Timer
	onCompletion func()
	onTimeout    func()
	onError      func(error)
	err          error

	state atomic.Int32
	once  sync.Once
	done  chan struct{}
}

// NewConnection wraps stream. A zero timeout disables the idle timer.
func NewConnection(
	id string,
	userKey string,
	stream Stream,
	timeout time.Duration,
	clock clockwork.Clock,
	logger logger.Logger,
) *Connection {
	return &Connection{
		id:        id,
		userKey:   userKey,
		stream:    stream,
		timeout:   timeout,
		clock:     clock,
		logger:    logger.WithField("connection_id", id),
		createdAt: clock.Now(),
		done:      make(chan struct{}),
	}
}

func (c *Connection) ID() string           { return c.id }
func (c *Connection) UserKey() string      { return c.userKey }
func (c *Connection) Type() string         { return c.stream.Type() }
func (c *Connection) CreatedAt() time.Time { return c.createdAt }
func (c *Connection) State() State         { return State(c.state.Load()) }

// Done is closed after the terminal transition and its callback finished.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Err returns the transport error for an errored connection.
func (c *Connection) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Connection) OnCompletion(fn func()) {
	c.mu.Lock()
	c.onCompletion = fn
	c.mu.Unlock()
}

func (c *Connection) OnTimeout(fn func()) {
	c.mu.Lock()
	c.onTimeout = fn
	c.mu.Unlock()
}

func (c *Connection) OnError(fn func(error)) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

// Start arms the idle timer and begins watching the transport for the
// client going away. Install callbacks before calling Start.
func (c *Connection) Start() {
	c.mu.Lock()
	if c.timeout > 0 && c.timer == nil && c.State() == StateOpen {
		c.timer = c.clock.AfterFunc(c.timeout, c.expire)
	}
	c.mu.Unlock()

	go func() {
		select {
		case <-c.stream.Done():
			c.Complete()
		case <-c.done:
		}
	}()
}

// Send pushes event on the underlying stream. A successful push resets the
// idle timer.
func (c *Connection) Send(ctx context.Context, event *Event) error {
	if c.State() != StateOpen {
		return ErrConnectionClosed
	}
	if err := ValidateEvent(event); err != nil {
		return err
	}

	if err := c.stream.Push(ctx, event); err != nil {
		return fmt.Errorf("push to %s: %w", c.id, err)
	}

	c.touch()
	return nil
}

// Complete ends the connection normally.
func (c *Connection) Complete() {
	c.terminate(StateCompleted, nil)
}

// Fail ends the connection after a transport error.
func (c *Connection) Fail(err error) {
	c.terminate(StateErrored, err)
}

func (c *Connection) expire() {
	c.terminate(StateTimedOut, nil)
}

func (c *Connection) touch() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil && c.State() == StateOpen {
		c.timer.Reset(c.timeout)
	}
}

func (c *Connection) terminate(state State, err error) {
	c.once.Do(func() {
		defer close(c.done)

		c.state.Store(int32(state))

		c.mu.Lock()
		if c.timer != nil {
			c.timer.Stop()
		}
		c.err = err
		onCompletion, onTimeout, onError := c.onCompletion, c.onTimeout, c.onError
		c.mu.Unlock()

		if cerr := c.stream.Close(); cerr != nil {
			c.logger.Warnf("Failed to close stream: %v", cerr)
		}

		metrics.ConnectionTerminationsTotal.WithLabelValues(state.String()).Inc()

		switch state {
		case StateCompleted:
			c.logger.Debug("Connection completed")
			if onCompletion != nil {
				onCompletion()
			}
		case StateTimedOut:
			c.logger.Infof("Connection timed out after %s", c.timeout)
			if onTimeout != nil {
				onTimeout()
			}
		case StateErrored:
			c.logger.Warnf("Connection errored: %v", err)
			if onError != nil {
				onError(err)
			}
		}
	})
}
