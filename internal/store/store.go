// Package store is the local cache store: a durable key-value store keyed by
// logical resource name, each entry holding a serialized payload and the time
// it was written. Every operation degrades to a logged no-op on storage
// faults; nothing here returns an error to the calling view.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"goflare.io/bento/internal/config"
	"goflare.io/bento/internal/models"
)

// Store 本地快取存儲
type Store struct {
	local   *localTier
	durable *durableTier

	config  *config.Config
	clock   clock.Clock
	logger  *zap.Logger
	tracer  trace.Tracer
	metrics *models.Metrics
}

// New 創建 Store；若配置啟用持久層則連接 Redis
func New(ctx context.Context, cfg *config.Config) (*Store, error) {
	var client *redis.Client
	if cfg.Store.EnableDurable {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			// 持久層不可用時仍以本地層運作，錯誤只記錄
			cfg.Logger.Warn("Redis unreachable, durable tier will retry per operation",
				zap.String("addr", cfg.Store.RedisAddr), zap.Error(err))
		}
	}
	return NewWithClient(ctx, cfg, client)
}

// NewWithClient 使用現有 Redis 客戶端創建 Store；client 為 nil 時只有本地層
func NewWithClient(ctx context.Context, cfg *config.Config, client *redis.Client) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	local, err := newLocalTier(cfg.Store.MaxLocalCost, cfg.Store.BloomFilterSettings.ExpectedItems, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create local tier: %w", err)
	}

	s := &Store{
		local:   local,
		config:  cfg,
		clock:   cfg.Clock,
		logger:  logger,
		tracer:  otel.Tracer("bento/store"),
		metrics: models.NewMetrics(),
	}

	if client != nil {
		d, err := newDurableTier(ctx, client, cfg)
		if err != nil {
			local.close()
			return nil, fmt.Errorf("failed to create durable tier: %w", err)
		}
		s.durable = d
	}

	return s, nil
}

// Write 序列化並寫入 value，無條件覆蓋
func (s *Store) Write(ctx context.Context, key string, value any) {
	ctx, span := s.tracer.Start(ctx, "Store.Write", trace.WithAttributes(attribute.String("key", key)))
	defer span.End()

	data, err := s.Encode(value)
	if err != nil {
		// 無法序列化的值視為快取未命中，舊值不能冒充新值
		s.fault("Failed to encode value", key, err)
		span.RecordError(err)
		s.Remove(ctx, key)
		return
	}
	s.WriteRaw(ctx, key, data)
}

// WriteRaw 寫入已序列化的資料，用於回滾快照
func (s *Store) WriteRaw(ctx context.Context, key string, data []byte) {
	if key == "" {
		s.fault("Write skipped", key, errors.New("key cannot be empty"))
		return
	}

	entry := models.NewEntry(bytes.Clone(data), s.clock.Now())
	if !s.local.set(key, entry) {
		s.metrics.Errors.Inc()
	}

	if s.durable != nil {
		if err := s.durable.set(ctx, key, entry); err != nil {
			s.fault("Failed to write durable tier", key, err)
		}
	}

	s.metrics.Writes.Inc()
	s.logger.Debug("Cache entry written", zap.String("key", key), zap.Int("bytes", len(data)))
}

// Read 讀取最後寫入的值並解碼到 out；不存在或解碼失敗時回傳 false
func (s *Store) Read(ctx context.Context, key string, out any) bool {
	ctx, span := s.tracer.Start(ctx, "Store.Read", trace.WithAttributes(attribute.String("key", key)))
	defer span.End()

	data, ok := s.ReadRaw(ctx, key)
	if !ok {
		return false
	}
	if err := s.Decode(data, out); err != nil {
		s.fault("Failed to decode value", key, err)
		span.RecordError(err)
		return false
	}
	return true
}

// ReadRaw 回傳序列化資料的副本
func (s *Store) ReadRaw(ctx context.Context, key string) ([]byte, bool) {
	entry, ok := s.entry(ctx, key)
	if !ok {
		s.metrics.Misses.Inc()
		return nil, false
	}
	s.metrics.Hits.Inc()
	return bytes.Clone(entry.Data), true
}

// WrittenAt 回傳項目的寫入時間
func (s *Store) WrittenAt(ctx context.Context, key string) (time.Time, bool) {
	entry, ok := s.entry(ctx, key)
	if !ok {
		return time.Time{}, false
	}
	return entry.WrittenAt, true
}

// IsStale 項目不存在或超過 maxAge 時為 true；maxAge <= 0 使用預設值
func (s *Store) IsStale(ctx context.Context, key string, maxAge time.Duration) bool {
	if maxAge <= 0 {
		maxAge = s.config.Fetch.DefaultMaxAge
	}
	entry, ok := s.entry(ctx, key)
	if !ok {
		return true
	}
	return entry.IsStale(s.clock.Now(), maxAge)
}

// Remove 刪除項目；重複刪除或刪除不存在的鍵不會出錯
func (s *Store) Remove(ctx context.Context, key string) {
	ctx, span := s.tracer.Start(ctx, "Store.Remove", trace.WithAttributes(attribute.String("key", key)))
	defer span.End()

	s.local.del(key)
	if s.durable != nil {
		if err := s.durable.del(ctx, key); err != nil {
			s.fault("Failed to remove from durable tier", key, err)
			span.RecordError(err)
		}
	}
	s.metrics.Removals.Inc()
}

// Clear 清除前綴下所有項目
func (s *Store) Clear(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "Store.Clear")
	defer span.End()

	s.local.flush()
	if s.durable != nil {
		if err := s.durable.clear(ctx); err != nil {
			s.fault("Failed to clear durable tier", "", err)
			span.RecordError(err)
		}
	}
	s.logger.Info("Cache cleared")
}

// Keys 列出本地層目前存在的鍵
func (s *Store) Keys() []string {
	return s.local.keys()
}

// Encode 以配置的編碼器序列化
func (s *Store) Encode(value any) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.config.Serialization.Encoder(&buf).Encode(value); err != nil {
		return nil, fmt.Errorf("failed to encode value: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode 以配置的解碼器反序列化
func (s *Store) Decode(data []byte, out any) error {
	if err := s.config.Serialization.Decoder(bytes.NewReader(data)).Decode(out); err != nil {
		return fmt.Errorf("failed to decode value: %w", err)
	}
	return nil
}

// Metrics 回傳統計
func (s *Store) Metrics() *models.Metrics {
	return s.metrics
}

// Close 關閉本地層與 Redis 連線
func (s *Store) Close() error {
	s.local.close()
	if s.durable != nil {
		return s.durable.close()
	}
	return nil
}

// entry 先查本地層，未命中時查持久層並回填本地層
func (s *Store) entry(ctx context.Context, key string) (*models.Entry, bool) {
	if entry, ok := s.local.get(key); ok {
		return entry, true
	}
	if s.durable == nil {
		return nil, false
	}

	entry, err := s.durable.get(ctx, key)
	if err != nil {
		if !errors.Is(err, models.ErrKeyNotFound) {
			s.fault("Failed to read durable tier", key, err)
		}
		return nil, false
	}
	s.local.set(key, entry)
	return entry, true
}

func (s *Store) fault(msg, key string, err error) {
	s.metrics.Errors.Inc()
	s.logger.Warn(msg, zap.String("key", key), zap.Error(err))
}
