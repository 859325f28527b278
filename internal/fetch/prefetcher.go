package fetch

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Prefetcher 定期刷新熱門且已過期的鍵
type Prefetcher struct {
	hub       *Hub
	logger    *zap.Logger
	enabled   bool
	interval  time.Duration
	threshold int64
	limit     int
	maxAge    time.Duration
}

// NewPrefetcher 創建一個新的 Prefetcher 實例
func NewPrefetcher(h *Hub) *Prefetcher {
	cfg := h.config.Fetch
	return &Prefetcher{
		hub:       h,
		logger:    h.logger,
		enabled:   cfg.EnablePrefetch,
		interval:  cfg.PrefetchInterval,
		threshold: cfg.PrefetchThreshold,
		limit:     cfg.PrefetchCount,
		maxAge:    cfg.DefaultMaxAge,
	}
}

// Run 開始運行預取例程，直到 ctx 結束
func (p *Prefetcher) Run(ctx context.Context) {
	if !p.enabled {
		return
	}

	ticker := p.hub.config.Clock.Ticker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.PrefetchPopular(ctx)
		case <-ctx.Done():
			p.logger.Info("Stopping prefetch routine due to context cancellation")
			return
		}
	}
}

// Popular returns keys subscribed at least threshold times, most subscribed
// first, capped at the configured count.
func (p *Prefetcher) Popular() []string {
	type hit struct {
		key   string
		count int64
	}
	var hits []hit
	p.hub.sources.Range(func(k, v any) bool {
		if n := v.(*source).hits.Load(); n >= p.threshold {
			hits = append(hits, hit{key: k.(string), count: n})
		}
		return true
	})
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].count != hits[j].count {
			return hits[i].count > hits[j].count
		}
		return hits[i].key < hits[j].key
	})

	if len(hits) > p.limit {
		hits = hits[:p.limit]
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.key
	}
	return out
}

// PrefetchPopular refreshes the popular keys whose entries are stale and
// returns the keys it refreshed.
func (p *Prefetcher) PrefetchPopular(ctx context.Context) []string {
	return p.refreshStale(ctx, p.Popular())
}

// Warmup 熱身快取：刷新已知抓取函式且已過期的鍵
func (p *Prefetcher) Warmup(ctx context.Context, keys ...string) []string {
	return p.refreshStale(ctx, keys)
}

func (p *Prefetcher) refreshStale(ctx context.Context, keys []string) []string {
	var refreshed []string
	for _, k := range keys {
		if !p.hub.store.IsStale(ctx, k, p.maxAge) {
			continue
		}
		if err := p.hub.refresh(ctx, k); err != nil {
			p.logger.Warn("Failed to prefetch key", zap.String("key", k), zap.Error(err))
			continue
		}
		refreshed = append(refreshed, k)
	}
	return refreshed
}
