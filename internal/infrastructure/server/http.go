package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"go-notification-hub/internal/infrastructure/logger"
)

type HTTPServer struct {
	addr    string
	handler http.Handler
	logger  logger.Logger

	mu  sync.Mutex
	srv *http.Server
}

var _ Server = (*HTTPServer)(nil)

func NewHTTPServer(addr string, handler http.Handler, logger logger.Logger) *HTTPServer {
	return &HTTPServer{
		addr:    addr,
		handler: handler,
		logger:  logger.WithField("component", "http_server"),
	}
}

// Start serves until Stop is called. Streams are long-lived, so there is no
// write timeout; each push bounds its own write instead.
func (h *HTTPServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           h.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	h.mu.Lock()
	h.srv = srv
	h.mu.Unlock()

	h.logger.Infof("HTTP server listening on %s", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (h *HTTPServer) Stop(ctx context.Context) error {
	h.mu.Lock()
	srv := h.srv
	h.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
