package hub

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"go-notification-hub/internal/infrastructure/logger"
	"go-notification-hub/internal/infrastructure/metrics"
)

type cachedEvent struct {
	payload  any
	cachedAt time.Time
}

// Registry is the process-wide directory of live connections and the
// short-term replay cache. Both maps are safe for concurrent use without
// any registry-wide lock.
type Registry struct {
	connections sync.Map // id -> *Connection
	cache       sync.Map // key -> *cachedEvent

	clock           clockwork.Clock
	cacheRetention  time.Duration
	janitorInterval time.Duration

	running   bool
	runningMu sync.RWMutex
	cancel    context.CancelFunc
	stopped   chan struct{}

	logger logger.Logger
}

type RegistryOption func(*Registry)

func WithClock(clock clockwork.Clock) RegistryOption {
	return func(r *Registry) { r.clock = clock }
}

// WithCacheRetention bounds how long a cache entry survives. Zero keeps
// entries until their connection ends.
func WithCacheRetention(d time.Duration) RegistryOption {
	return func(r *Registry) { r.cacheRetention = d }
}

func WithJanitorInterval(d time.Duration) RegistryOption {
	return func(r *Registry) { r.janitorInterval = d }
}

func NewRegistry(logger logger.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		clock:           clockwork.NewRealClock(),
		janitorInterval: 30 * time.Second,
		logger:          logger.WithField("component", "registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the janitor loop.
func (r *Registry) Start(ctx context.Context) error {
	r.runningMu.Lock()
	defer r.runningMu.Unlock()

	if r.running {
		return fmt.Errorf("registry is already running")
	}

	rctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.stopped = make(chan struct{})
	r.running = true

	go r.run(rctx)

	r.logger.Infof("Registry started (cache retention %s, janitor every %s)", r.cacheRetention, r.janitorInterval)
	return nil
}

// Stop halts the janitor and completes every open connection, which runs
// their cleanup callbacks.
func (r *Registry) Stop(ctx context.Context) error {
	r.runningMu.Lock()
	defer r.runningMu.Unlock()

	if !r.running {
		return nil
	}

	r.cancel()
	select {
	case <-r.stopped:
	case <-ctx.Done():
		r.logger.Warn("Janitor did not stop before shutdown deadline")
	}

	for _, conn := range r.Connections() {
		conn.Complete()
	}

	r.running = false
	r.logger.Info("Registry stopped")
	return nil
}

func (r *Registry) IsRunning() bool {
	r.runningMu.RLock()
	defer r.runningMu.RUnlock()
	return r.running
}

// Register stores conn under id and returns it. Ids are unique by
// construction; an overwrite is logged.
func (r *Registry) Register(id string, conn *Connection) *Connection {
	if prev, loaded := r.connections.Swap(id, conn); loaded {
		old := prev.(*Connection)
		metrics.OpenConnections.WithLabelValues(old.Type()).Dec()
		r.logger.Warnf("Connection %s overwritten on register", id)
	}
	metrics.OpenConnections.WithLabelValues(conn.Type()).Inc()

	r.logger.Debugf("Connection %s registered (type: %s)", id, conn.Type())
	return conn
}

// FindAllByUserPrefix returns every live connection whose id starts with
// userKey + "_".
func (r *Registry) FindAllByUserPrefix(userKey string) map[string]*Connection {
	prefix := UserPrefix(userKey)
	found := make(map[string]*Connection)

	r.connections.Range(func(key, value any) bool {
		if id := key.(string); strings.HasPrefix(id, prefix) {
			found[id] = value.(*Connection)
		}
		return true
	})

	return found
}

// Remove deregisters one connection. Removing an absent id is a no-op.
func (r *Registry) Remove(id string) {
	value, loaded := r.connections.LoadAndDelete(id)
	if !loaded {
		return
	}

	conn := value.(*Connection)
	metrics.OpenConnections.WithLabelValues(conn.Type()).Dec()
	r.logger.Debugf("Connection %s removed", id)
}

// RemoveAllByPrefix deregisters every connection whose id starts with
// prefix. An empty prefix is ignored.
func (r *Registry) RemoveAllByPrefix(prefix string) {
	if prefix == "" {
		return
	}

	r.connections.Range(func(key, _ any) bool {
		if id := key.(string); strings.HasPrefix(id, prefix) {
			r.Remove(id)
		}
		return true
	})
}

// CacheEvent stores payload under key, replacing any previous entry.
func (r *Registry) CacheEvent(key string, payload any) {
	entry := &cachedEvent{payload: payload, cachedAt: r.clock.Now()}
	if _, loaded := r.cache.Swap(key, entry); !loaded {
		metrics.CachedEvents.Inc()
	}
}

// FindAllCachedByUserPrefix returns every cached payload whose key starts
// with userKey + "_".
func (r *Registry) FindAllCachedByUserPrefix(userKey string) map[string]any {
	prefix := UserPrefix(userKey)
	found := make(map[string]any)

	r.cache.Range(func(key, value any) bool {
		if k := key.(string); strings.HasPrefix(k, prefix) {
			found[k] = value.(*cachedEvent).payload
		}
		return true
	})

	return found
}

// RemoveAllCachedByPrefix drops every cache entry whose key starts with
// prefix. An empty prefix is ignored.
func (r *Registry) RemoveAllCachedByPrefix(prefix string) {
	if prefix == "" {
		return
	}

	r.cache.Range(func(key, _ any) bool {
		if k := key.(string); strings.HasPrefix(k, prefix) {
			if _, loaded := r.cache.LoadAndDelete(k); loaded {
				metrics.CachedEvents.Dec()
			}
		}
		return true
	})
}

// Connections returns a snapshot of every registered connection.
func (r *Registry) Connections() []*Connection {
	var conns []*Connection
	r.connections.Range(func(_, value any) bool {
		conns = append(conns, value.(*Connection))
		return true
	})
	return conns
}

func (r *Registry) ConnectionCount() int {
	n := 0
	r.connections.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (r *Registry) CachedCount() int {
	n := 0
	r.cache.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (r *Registry) run(ctx context.Context) {
	defer close(r.stopped)

	ticker := r.clock.NewTicker(r.janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			r.sweep()
		case <-ctx.Done():
			r.logger.Debug("Janitor loop stopped")
			return
		}
	}
}

// sweep applies the cache retention policy and drops connections that
// reached a terminal state without being deregistered.
func (r *Registry) sweep() {
	evicted := 0
	if r.cacheRetention > 0 {
		cutoff := r.clock.Now().Add(-r.cacheRetention)
		r.cache.Range(func(key, value any) bool {
			if value.(*cachedEvent).cachedAt.Before(cutoff) {
				if r.cache.CompareAndDelete(key, value) {
					evicted++
				}
			}
			return true
		})
	}
	if evicted > 0 {
		metrics.CachedEvents.Sub(float64(evicted))
		metrics.CacheEvictionsTotal.Add(float64(evicted))
		r.logger.Debugf("Evicted %d cached events older than %s", evicted, r.cacheRetention)
	}

	r.connections.Range(func(key, value any) bool {
		if conn := value.(*Connection); conn.State() != StateOpen {
			if r.connections.CompareAndDelete(key, value) {
				metrics.OpenConnections.WithLabelValues(conn.Type()).Dec()
				r.logger.Infof("Cleaned up closed connection %s", key)
			}
		}
		return true
	})
}
