package hub

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gorilla/websocket"

	"go-notification-hub/internal/infrastructure/logger"
)

var ErrStreamClosed = errors.New("stream is closed")

const (
	TransportSSE       = "sse"
	TransportWebSocket = "websocket"

	defaultWriteTimeout = 10 * time.Second
)

var keepAliveFrame = []byte(":keepalive\n\n")

// SSEStream writes events to an HTTP response as Server-Sent Events.
type SSEStream struct {
	writer       http.ResponseWriter
	controller   *http.ResponseController
	writeTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	closed   bool
	closedMu sync.RWMutex

	// writeMu serializes writes; Wait uses it to drain an in-flight write.
	writeMu sync.Mutex

	logger logger.Logger
}

// NewSSEStream prepares w for streaming. ctx is the request context; it
// ending means the client went away. A positive keepAlive writes a comment
// frame at that interval, which clients ignore and proxies count as traffic.
func NewSSEStream(
	ctx context.Context,
	w http.ResponseWriter,
	writeTimeout time.Duration,
	keepAlive time.Duration,
	logger logger.Logger,
) *SSEStream {
	rctx, cancel := context.WithCancel(ctx)
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}

	s := &SSEStream{
		writer:       w,
		controller:   http.NewResponseController(w),
		writeTimeout: writeTimeout,
		ctx:          rctx,
		cancel:       cancel,
		logger:       logger,
	}
	s.setupSSEHeaders()

	if keepAlive > 0 {
		go s.keepAlive(keepAlive)
	}

	return s
}

func (s *SSEStream) Type() string { return TransportSSE }

// Push encodes event and flushes it to the client. The write is bounded by
// the stream's write timeout or ctx's deadline, whichever is sooner, when
// the underlying writer supports deadlines.
func (s *SSEStream) Push(ctx context.Context, event *Event) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.IsClosed() {
		return ErrStreamClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := sse.Encode(&buf, sse.Event{
		Id:    event.ID,
		Event: event.Name,
		Data:  event.Data,
	}); err != nil {
		return fmt.Errorf("failed to format SSE message: %w", err)
	}

	return s.write(ctx, buf.Bytes())
}

// write sends frame and flushes it. Callers hold writeMu.
func (s *SSEStream) write(ctx context.Context, frame []byte) error {
	deadline := time.Now().Add(s.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.controller.SetWriteDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	defer s.controller.SetWriteDeadline(time.Time{})

	if _, err := s.writer.Write(frame); err != nil {
		return err
	}
	if err := s.controller.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	return nil
}

func (s *SSEStream) keepAlive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.ping(); err != nil {
				if !errors.Is(err, ErrStreamClosed) {
					s.logger.Warnf("SSE keep-alive failed: %v", err)
				}
				s.cancel()
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *SSEStream) ping() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.IsClosed() {
		return ErrStreamClosed
	}
	return s.write(s.ctx, keepAliveFrame)
}

// Close marks the stream closed. It does not wait for an in-flight write;
// call Wait before the handler returns.
func (s *SSEStream) Close() error {
	s.closedMu.Lock()
	defer s.closedMu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()

	return nil
}

// Wait blocks until no write is in progress.
func (s *SSEStream) Wait() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
}

func (s *SSEStream) IsClosed() bool {
	s.closedMu.RLock()
	defer s.closedMu.RUnlock()
	return s.closed
}

func (s *SSEStream) Done() <-chan struct{} {
	return s.ctx.Done()
}

func (s *SSEStream) setupSSEHeaders() {
	h := s.writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // nginx must not buffer the stream
}

// WebSocketStream writes events as JSON text frames.
type WebSocketStream struct {
	conn *websocket.Conn

	ctx    context.Context
	cancel context.CancelFunc

	closed   bool
	closedMu sync.RWMutex

	writeMu sync.Mutex

	writeTimeout time.Duration
	pongTimeout  time.Duration
	pingInterval time.Duration

	logger logger.Logger
}

func NewWebSocketStream(
	conn *websocket.Conn,
	writeTimeout time.Duration,
	logger logger.Logger,
) *WebSocketStream {
	ctx, cancel := context.WithCancel(context.Background())
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}

	s := &WebSocketStream{
		conn:         conn,
		ctx:          ctx,
		cancel:       cancel,
		writeTimeout: writeTimeout,
		pongTimeout:  60 * time.Second,
		pingInterval: 54 * time.Second, // must stay below pongTimeout
		logger:       logger,
	}

	s.conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	})

	go s.readPump()
	go s.pingPump()

	return s
}

func (s *WebSocketStream) Type() string { return TransportWebSocket }

func (s *WebSocketStream) Push(ctx context.Context, event *Event) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.IsClosed() {
		return ErrStreamClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	deadline := time.Now().Add(s.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}

	return s.conn.WriteJSON(event)
}

func (s *WebSocketStream) Close() error {
	s.closedMu.Lock()
	defer s.closedMu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()

	// WriteControl and Close are safe to call concurrently with WriteJSON.
	_ = s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(s.writeTimeout),
	)
	return s.conn.Close()
}

func (s *WebSocketStream) IsClosed() bool {
	s.closedMu.RLock()
	defer s.closedMu.RUnlock()
	return s.closed
}

func (s *WebSocketStream) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Context ends when the client goes away or the stream is closed.
func (s *WebSocketStream) Context() context.Context {
	return s.ctx
}

// readPump only exists to process control frames and notice the client
// going away; the push stream ignores client payloads.
func (s *WebSocketStream) readPump() {
	defer s.cancel()

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
			) {
				s.logger.Warnf("WebSocket read error: %v", err)
			}
			return
		}
		s.logger.Debugf("Ignoring client frame (type %d, %d bytes)", messageType, len(data))
	}
}

func (s *WebSocketStream) pingPump() {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.conn.WriteControl(
				websocket.PingMessage,
				nil,
				time.Now().Add(s.writeTimeout),
			); err != nil {
				s.logger.Warnf("Failed to send ping: %v", err)
				s.cancel()
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}
