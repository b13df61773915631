package hub

import "context"

// Stream is the transport behind a Connection (SSE, WebSocket, etc.)
type Stream interface {
	Type() string
	Push(ctx context.Context, event *Event) error
	Close() error
	// Done is closed when the client goes away.
	Done() <-chan struct{}
}

// Event is one message pushed through a Stream.
type Event struct {
	ID   string `json:"id"`
	Name string `json:"event"`
	Data any    `json:"data"`
}
