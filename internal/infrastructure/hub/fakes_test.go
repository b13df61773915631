package hub

import (
	"context"
	"sync"
)

type fakeStream struct {
	mu      sync.Mutex
	events  []*Event
	pushErr error
	closed  bool
	gone    chan struct{}
	once    sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{gone: make(chan struct{})}
}

func (f *fakeStream) Type() string { return "fake" }

func (f *fakeStream) Push(_ context.Context, event *Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return f.pushErr
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeStream) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeStream) Done() <-chan struct{} { return f.gone }

// disconnect simulates the client going away.
func (f *fakeStream) disconnect() { f.once.Do(func() { close(f.gone) }) }

func (f *fakeStream) pushed() []*Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Event(nil), f.events...)
}

func (f *fakeStream) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
