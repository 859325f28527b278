// Package fetch implements cache-first subscriptions with stale-while-revalidate
// semantics on top of the store.
package fetch

import (
	"context"
	"fmt"
	"sync"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"goflare.io/bento/internal/config"
	"goflare.io/bento/internal/models"
	"goflare.io/bento/internal/store"
)

// subscriber receives values pushed to its key from outside its own fetch loop.
type subscriber interface {
	deliver(value any)
}

// Hub tracks open subscriptions per cache key and owns the shared machinery
// every subscription uses: the store, revalidation dedupe and per-key breakers.
type Hub struct {
	store  *store.Store
	config *config.Config
	logger *zap.Logger
	tracer trace.Tracer

	sf       singleflight.Group
	breakers sync.Map // key -> *gobreaker.CircuitBreaker
	sources  sync.Map // key -> *source

	mu     sync.RWMutex
	subs   map[string]map[uint64]subscriber
	nextID atomic.Uint64
}

// NewHub creates a Hub over st.
func NewHub(st *store.Store, cfg *config.Config) *Hub {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		store:  st,
		config: cfg,
		logger: logger,
		tracer: otel.Tracer("bento/fetch"),
		subs:   make(map[string]map[uint64]subscriber),
	}
}

// Store returns the cache store the hub reads and writes.
func (h *Hub) Store() *store.Store {
	return h.store
}

// Publish pushes value to every open subscription of key.
func (h *Hub) Publish(key string, value any) {
	h.mu.RLock()
	targets := make([]subscriber, 0, len(h.subs[key]))
	for _, s := range h.subs[key] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		s.deliver(value)
	}
}

// Subscribers returns the number of open subscriptions for key.
func (h *Hub) Subscribers(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[key])
}

// source is the most recent fetch function seen for a key and how often the
// key has been subscribed.
type source struct {
	mu   sync.Mutex
	fn   func(context.Context) (any, error)
	hits atomic.Int64
}

func (s *source) fetcher() func(context.Context) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fn
}

func (h *Hub) track(key string, fn func(context.Context) (any, error)) {
	v, _ := h.sources.LoadOrStore(key, &source{})
	src := v.(*source)
	src.mu.Lock()
	src.fn = fn
	src.mu.Unlock()
	src.hits.Inc()
}

// Hits returns how many subscriptions key has had.
func (h *Hub) Hits(key string) int64 {
	if v, ok := h.sources.Load(key); ok {
		return v.(*source).hits.Load()
	}
	return 0
}

// refresh fetches key with its last known fetch function, caches the result
// and publishes it to open subscriptions.
func (h *Hub) refresh(ctx context.Context, key string) error {
	v, ok := h.sources.Load(key)
	if !ok {
		return fmt.Errorf("%w: no fetcher for %s", models.ErrKeyNotFound, key)
	}
	value, err := h.load(ctx, key, false, v.(*source).fetcher())
	if err != nil {
		return err
	}
	h.store.Write(ctx, key, value)
	h.Publish(key, value)
	return nil
}

func (h *Hub) register(key string, s subscriber) uint64 {
	id := h.nextID.Inc()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[key] == nil {
		h.subs[key] = make(map[uint64]subscriber)
	}
	h.subs[key][id] = s
	return id
}

func (h *Hub) unregister(key string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[key], id)
	if len(h.subs[key]) == 0 {
		delete(h.subs, key)
	}
}

// load runs fn for key through singleflight and the key's breaker. The call
// is detached from the caller's cancellation: a subscription that closes
// mid-flight drops the result instead of aborting a fetch others may share.
func (h *Hub) load(ctx context.Context, key string, force bool, fn func(context.Context) (any, error)) (any, error) {
	if force {
		h.sf.Forget(key)
	}

	detached := context.WithoutCancel(ctx)
	v, err, shared := h.sf.Do(key, func() (any, error) {
		return h.breaker(key).Execute(func() (interface{}, error) {
			return fn(detached)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", models.ErrRemote, key, err)
	}
	if shared {
		h.logger.Debug("Revalidation shared with in-flight fetch", zap.String("key", key))
	}
	return v, nil
}

func (h *Hub) breaker(key string) *gobreaker.CircuitBreaker {
	if cb, ok := h.breakers.Load(key); ok {
		return cb.(*gobreaker.CircuitBreaker)
	}
	settings := h.config.Resilience.RemoteCircuitBreaker
	settings.Name = key
	settings.OnStateChange = func(name string, from, to gobreaker.State) {
		h.logger.Warn("Remote circuit breaker state changed",
			zap.String("key", name), zap.String("from", from.String()), zap.String("to", to.String()))
	}
	cb, _ := h.breakers.LoadOrStore(key, gobreaker.NewCircuitBreaker(settings))
	return cb.(*gobreaker.CircuitBreaker)
}
