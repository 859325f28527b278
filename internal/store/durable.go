package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"goflare.io/bento/internal/config"
	"goflare.io/bento/internal/models"
	"goflare.io/bento/internal/retrier"
)

// durableTier 以 Redis 作為持久層，資料與寫入時間存於同一個值
type durableTier struct {
	client  *redis.Client
	prefix  string
	logger  *zap.Logger
	retrier *retrier.Retrier
	breaker *gobreaker.CircuitBreaker

	// 布隆過濾器記錄曾寫入的鍵，確定不存在時略過 Redis 讀取
	filterMu    sync.RWMutex
	filter      *bloom.BloomFilter
	filterReady bool
	filterCfg   config.BloomFilterConfig
}

func newDurableTier(ctx context.Context, client *redis.Client, cfg *config.Config) (*durableTier, error) {
	r, err := retrier.NewRetrier(
		cfg.Resilience.Retry.Attempts,
		cfg.Resilience.Retry.BaseDelay,
		cfg.Resilience.Retry.MaxDelay,
		2,
		0.1,
		retrier.ExponentialBackoff,
		retryable,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retrier: %w", err)
	}

	settings := cfg.Resilience.DurableCircuitBreaker
	settings.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, redis.Nil)
	}

	d := &durableTier{
		client:    client,
		prefix:    cfg.Store.KeyPrefix,
		logger:    cfg.Logger,
		retrier:   r,
		breaker:   gobreaker.NewCircuitBreaker(settings),
		filterCfg: cfg.Store.BloomFilterSettings,
	}

	if err := d.rebuildFilter(ctx); err != nil {
		d.logger.Warn("Durable key filter unavailable, every miss will query Redis", zap.Error(err))
	}

	return d, nil
}

func retryable(err error) bool {
	return !errors.Is(err, redis.Nil) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// executeWithResilience executes a function with retry and circuit breaker.
func (d *durableTier) executeWithResilience(ctx context.Context, fn func() error) error {
	_, err := d.breaker.Execute(func() (interface{}, error) {
		return nil, d.retrier.Run(ctx, fn)
	})
	return err
}

func (d *durableTier) physical(key string) string {
	return d.prefix + key
}

func (d *durableTier) set(ctx context.Context, key string, entry *models.Entry) error {
	if err := d.executeWithResilience(ctx, func() error {
		return d.client.Set(ctx, d.physical(key), entry, 0).Err()
	}); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	d.markWritten(key)
	return nil
}

func (d *durableTier) get(ctx context.Context, key string) (*models.Entry, error) {
	if !d.mayContain(key) {
		return nil, models.ErrKeyNotFound
	}

	var entry models.Entry
	err := d.executeWithResilience(ctx, func() error {
		return d.client.Get(ctx, d.physical(key)).Scan(&entry)
	})
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return &entry, nil
}

func (d *durableTier) del(ctx context.Context, key string) error {
	if err := d.executeWithResilience(ctx, func() error {
		return d.client.Del(ctx, d.physical(key)).Err()
	}); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	// 布隆過濾器不支援刪除
	return nil
}

// clear 刪除前綴下所有鍵，不影響同一個 Redis 中的其他資料
func (d *durableTier) clear(ctx context.Context) error {
	var cursor uint64
	for {
		var (
			keys []string
			next uint64
		)
		if err := d.executeWithResilience(ctx, func() error {
			var err error
			keys, next, err = d.client.Scan(ctx, cursor, d.prefix+"*", 1000).Result()
			return err
		}); err != nil {
			return fmt.Errorf("redis scan failed: %w", err)
		}

		if len(keys) > 0 {
			if err := d.executeWithResilience(ctx, func() error {
				return d.client.Del(ctx, keys...).Err()
			}); err != nil {
				return fmt.Errorf("redis delete failed: %w", err)
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	d.filterMu.Lock()
	d.filter = bloom.NewWithEstimates(d.filterCfg.ExpectedItems, d.filterCfg.FalsePositiveRate)
	d.filterReady = true
	d.filterMu.Unlock()
	return nil
}

// rebuildFilter 以 SCAN 分批掃描前綴下的鍵重建布隆過濾器
func (d *durableTier) rebuildFilter(ctx context.Context) error {
	filter := bloom.NewWithEstimates(d.filterCfg.ExpectedItems, d.filterCfg.FalsePositiveRate)

	var cursor uint64
	for {
		keys, next, err := d.client.Scan(ctx, cursor, d.prefix+"*", 1000).Result()
		if err != nil {
			return fmt.Errorf("failed to scan Redis keys: %w", err)
		}
		for _, key := range keys {
			filter.AddString(key[len(d.prefix):])
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	d.filterMu.Lock()
	d.filter = filter
	d.filterReady = true
	d.filterMu.Unlock()
	return nil
}

func (d *durableTier) markWritten(key string) {
	d.filterMu.Lock()
	defer d.filterMu.Unlock()
	if d.filter != nil {
		d.filter.AddString(key)
	}
}

func (d *durableTier) mayContain(key string) bool {
	d.filterMu.RLock()
	defer d.filterMu.RUnlock()
	if !d.filterReady {
		return true
	}
	return d.filter.TestString(key)
}

func (d *durableTier) close() error {
	return d.client.Close()
}
