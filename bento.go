// Package bento is a client-side sync layer for a group-ordering app: a
// cache-first fetch controller with stale-while-revalidate, optimistic
// mutations with rollback, cross-resource invalidation, and the ranking
// engine behind the leaderboards.
package bento

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"goflare.io/bento/internal/config"
	"goflare.io/bento/internal/fetch"
	"goflare.io/bento/internal/invalidation"
	"goflare.io/bento/internal/models"
	"goflare.io/bento/internal/mutation"
	"goflare.io/bento/internal/store"
)

// Option 定義初始化 Bento 的選項
type Option = config.Option

var (
	FromEnv             = config.FromEnv
	WithLogger          = config.WithLogger
	WithClock           = config.WithClock
	WithRedis           = config.WithRedis
	WithKeyPrefix       = config.WithKeyPrefix
	WithDefaultMaxAge   = config.WithDefaultMaxAge
	WithPrefetch        = config.WithPrefetch
	WithRotation        = config.WithRotation
	WithLeaderboardSize = config.WithLeaderboardSize
	WithSerialization   = config.WithSerialization
)

type (
	// Subscription is an open cache-first view of one key.
	Subscription[T any] = fetch.Subscription[T]
	// State is what a subscription's listener sees.
	State[T any] = fetch.State[T]
	// FetchFunc loads the authoritative value of a key.
	FetchFunc[T any] = fetch.Func[T]
	// SubscribeOption tunes a subscription.
	SubscribeOption = fetch.Option
	// MutationRequest describes one optimistic mutation.
	MutationRequest[T any] = mutation.Request[T]
	// Phase is a key's mutation pipeline state.
	Phase = mutation.Phase
	// Event names an action and the ids it touched.
	Event = invalidation.Event
	// Action is a mutation kind in the invalidation table.
	Action = invalidation.Action
	// Metrics are the in-process counters.
	Metrics = models.Metrics
)

var (
	WithMaxAge    = fetch.WithMaxAge
	WithSkipCache = fetch.WithSkipCache
	TempID        = mutation.TempID
	IsTempID      = mutation.IsTempID
)

// Bento 同步層的入口
type Bento struct {
	config     *config.Config
	store      *store.Store
	hub        *fetch.Hub
	policy     *invalidation.Policy
	coord      *mutation.Coordinator
	prefetcher *fetch.Prefetcher
	logger     *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New 初始化 Bento，接受多個配置選項
func New(ctx context.Context, opts ...Option) (*Bento, error) {
	// 預設使用 production logger，可由 WithLogger 覆蓋
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize default logger: %w", err)
	}

	cfg, err := config.NewConfig(append([]Option{config.WithLogger(logger)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create config: %w", err)
	}

	st, err := store.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	return newBento(cfg, st), nil
}

func newBento(cfg *config.Config, st *store.Store) *Bento {
	hub := fetch.NewHub(st, cfg)
	policy := invalidation.New(st, cfg.Logger, st.Metrics())

	runCtx, cancel := context.WithCancel(context.Background())
	b := &Bento{
		config:     cfg,
		store:      st,
		hub:        hub,
		policy:     policy,
		coord:      mutation.New(hub, policy, cfg.Logger),
		prefetcher: fetch.NewPrefetcher(hub),
		logger:     cfg.Logger,
		cancel:     cancel,
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.prefetcher.Run(runCtx)
	}()
	return b
}

// Subscribe opens a cache-first subscription of key.
func Subscribe[T any](ctx context.Context, b *Bento, key string, fn FetchFunc[T], listener func(State[T]), opts ...SubscribeOption) *Subscription[T] {
	return fetch.Subscribe(ctx, b.hub, key, fn, listener, opts...)
}

// Mutate applies req optimistically and reconciles it with the server.
func Mutate[T any](ctx context.Context, b *Bento, req MutationRequest[T]) (T, error) {
	return mutation.Apply(ctx, b.coord, req)
}

// Read 讀取快取值，不存在或無法解碼時回傳 false
func (b *Bento) Read(ctx context.Context, key string, out any) bool {
	return b.store.Read(ctx, key, out)
}

// Write 寫入快取並推送給所有訂閱者
func (b *Bento) Write(ctx context.Context, key string, value any) {
	b.store.Write(ctx, key, value)
	b.hub.Publish(key, value)
}

// Remove 刪除快取項目
func (b *Bento) Remove(ctx context.Context, key string) {
	b.store.Remove(ctx, key)
}

// IsStale reports whether key is absent or older than maxAge. A maxAge of
// zero uses the configured default.
func (b *Bento) IsStale(ctx context.Context, key string, maxAge time.Duration) bool {
	return b.store.IsStale(ctx, key, maxAge)
}

// Invalidate drops every key the events touch and returns them.
func (b *Bento) Invalidate(ctx context.Context, events ...Event) []string {
	return b.policy.Apply(ctx, events...)
}

// Warmup refreshes the given keys if they are stale, using the fetch
// function of their last subscription.
func (b *Bento) Warmup(ctx context.Context, keys ...string) []string {
	return b.prefetcher.Warmup(ctx, keys...)
}

// Phase returns the mutation phase of key.
func (b *Bento) Phase(key string) Phase {
	return b.coord.Phase(key)
}

// Clear 清空所有快取
func (b *Bento) Clear(ctx context.Context) {
	b.store.Clear(ctx)
}

// Metrics returns the counters.
func (b *Bento) Metrics() *Metrics {
	return b.store.Metrics()
}

// Close 關閉 Bento，釋放資源
func (b *Bento) Close() error {
	b.cancel()
	b.wg.Wait()
	_ = b.logger.Sync()
	return b.store.Close()
}
