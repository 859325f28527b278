package fetch

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"goflare.io/bento/internal/models"
)

// Func fetches the authoritative value of a resource.
type Func[T any] func(ctx context.Context) (T, error)

// State is what a subscriber sees. Data is meaningful only when HasData is set.
type State[T any] struct {
	Data    T
	HasData bool
	Loading bool
	Err     error
}

type options struct {
	maxAge    time.Duration
	skipCache bool
}

// Option configures a subscription.
type Option func(*options)

// WithMaxAge sets the freshness window reported by IsStale.
func WithMaxAge(maxAge time.Duration) Option {
	return func(o *options) {
		if maxAge > 0 {
			o.maxAge = maxAge
		}
	}
}

// WithSkipCache bypasses both cache read and cache write; the live fetch still runs.
func WithSkipCache(skip bool) Option {
	return func(o *options) {
		o.skipCache = skip
	}
}

// Subscription is one view's interest in a cache key.
//
// Listener calls are serialized. A listener must not call Refetch or Update
// synchronously; State is safe to call from a listener.
type Subscription[T any] struct {
	hub      *Hub
	key      string
	fn       Func[T]
	listener func(State[T])
	opts     options
	id       uint64

	// ctx is the cancellation token: once done, late results are dropped
	// before they reach the store or the listener.
	ctx    context.Context
	cancel context.CancelFunc

	notifyMu  sync.Mutex
	mu        sync.Mutex
	state     State[T]
	published []byte

	wg sync.WaitGroup
}

// Subscribe publishes the cached value of key (if any) synchronously, then
// revalidates in the background by calling fn.
func Subscribe[T any](ctx context.Context, h *Hub, key string, fn Func[T], listener func(State[T]), opts ...Option) *Subscription[T] {
	o := options{maxAge: h.config.Fetch.DefaultMaxAge}
	for _, opt := range opts {
		opt(&o)
	}
	if listener == nil {
		listener = func(State[T]) {}
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Subscription[T]{
		hub:      h,
		key:      key,
		fn:       fn,
		listener: listener,
		opts:     o,
		ctx:      sctx,
		cancel:   cancel,
	}
	s.id = h.register(key, s)
	if !o.skipCache {
		h.track(key, func(ctx context.Context) (any, error) { return fn(ctx) })
	}
	context.AfterFunc(sctx, func() {
		h.unregister(key, s.id)
	})

	initial := State[T]{Loading: true}
	if !o.skipCache {
		var cached T
		if h.store.Read(sctx, key, &cached) {
			initial = State[T]{Data: cached, HasData: true}
		}
	}
	s.set(initial)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.revalidate(sctx, false)
	}()

	return s
}

// Key returns the subscribed cache key.
func (s *Subscription[T]) Key() string {
	return s.key
}

// State returns a copy of the current state.
func (s *Subscription[T]) State() State[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Refetch forces a fetch, bypassing any in-flight revalidation of the key,
// and returns once the result is published.
func (s *Subscription[T]) Refetch(ctx context.Context) error {
	s.wg.Add(1)
	defer s.wg.Done()
	return s.revalidate(ctx, true)
}

// InvalidateCache drops the cached entry without refetching.
func (s *Subscription[T]) InvalidateCache(ctx context.Context) {
	s.hub.store.Remove(ctx, s.key)
}

// IsStale reports whether the cached entry is missing or older than the subscription's max age.
func (s *Subscription[T]) IsStale(ctx context.Context) bool {
	return s.hub.store.IsStale(ctx, s.key, s.opts.maxAge)
}

// Update writes value to the cache and publishes it to every subscriber of the key.
func (s *Subscription[T]) Update(ctx context.Context, value T) {
	if !s.opts.skipCache {
		s.hub.store.Write(ctx, s.key, value)
	}
	s.hub.Publish(s.key, value)
}

// Wait blocks until background fetches started by this subscription return.
func (s *Subscription[T]) Wait() {
	s.wg.Wait()
}

// Close cancels the subscription. In-flight fetches still resolve but their results are dropped.
func (s *Subscription[T]) Close() {
	s.cancel()
}

func (s *Subscription[T]) closed() bool {
	return s.ctx.Err() != nil
}

func (s *Subscription[T]) revalidate(parent context.Context, force bool) error {
	ctx, span := s.hub.tracer.Start(parent, "Subscription.Revalidate",
		trace.WithAttributes(attribute.String("key", s.key), attribute.Bool("force", force)))
	defer span.End()

	if s.closed() {
		return models.ErrSubscriptionClosed
	}

	v, err := s.hub.load(ctx, s.key, force, func(ctx context.Context) (any, error) {
		return s.fn(ctx)
	})

	if s.closed() {
		s.hub.store.Metrics().DroppedLate.Inc()
		s.hub.logger.Debug("Dropping fetch result for closed subscription", zap.String("key", s.key))
		return models.ErrSubscriptionClosed
	}

	if err != nil {
		span.RecordError(err)
		s.hub.logger.Warn("Fetch failed", zap.String("key", s.key), zap.Error(err))
		s.fail(err)
		return err
	}

	value, ok := v.(T)
	if !ok {
		err := fmt.Errorf("%w: %s got %T", models.ErrTypeMismatch, s.key, v)
		span.RecordError(err)
		s.fail(err)
		return err
	}

	if !s.opts.skipCache {
		s.hub.store.Write(ctx, s.key, value)
	}
	s.succeed(value)
	return nil
}

// deliver implements subscriber for values pushed through the hub.
func (s *Subscription[T]) deliver(value any) {
	if s.closed() {
		return
	}
	v, ok := value.(T)
	if !ok {
		s.hub.logger.Warn("Ignoring published value of wrong type",
			zap.String("key", s.key), zap.String("type", fmt.Sprintf("%T", value)))
		return
	}
	s.set(State[T]{Data: v, HasData: true})
}

// succeed publishes a fresh value. Identical data that is already on display
// with no pending loading or error is not delivered again.
func (s *Subscription[T]) succeed(value T) {
	encoded, encErr := s.hub.store.Encode(value)
	s.update(func(cur State[T], published []byte) (State[T], bool) {
		if encErr == nil && cur.HasData && !cur.Loading && cur.Err == nil && bytes.Equal(encoded, published) {
			return cur, false
		}
		return State[T]{Data: value, HasData: true}, true
	})
}

// fail keeps whatever data is on display and reports err.
func (s *Subscription[T]) fail(err error) {
	s.update(func(cur State[T], _ []byte) (State[T], bool) {
		cur.Loading = false
		cur.Err = err
		return cur, true
	})
}

func (s *Subscription[T]) set(next State[T]) {
	s.update(func(State[T], []byte) (State[T], bool) {
		return next, true
	})
}

// update applies fn to the current state and notifies the listener when fn
// reports a change. notifyMu keeps listener calls in state order.
func (s *Subscription[T]) update(fn func(cur State[T], published []byte) (State[T], bool)) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	cur, published := s.state, s.published
	s.mu.Unlock()

	next, changed := fn(cur, published)
	if !changed {
		return
	}

	var encoded []byte
	if next.HasData {
		if b, err := s.hub.store.Encode(next.Data); err == nil {
			encoded = b
		}
	}

	s.mu.Lock()
	s.state = next
	s.published = encoded
	s.mu.Unlock()

	s.listener(next)
}
