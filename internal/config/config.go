package config

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/caarlos0/env/v11"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"goflare.io/bento/pkg/serialization"
)

// Config 同步層的整體配置
type Config struct {
	Store         StoreConfig
	Fetch         FetchConfig
	Resilience    ResilienceConfig
	Ranking       RankingConfig
	Rotation      RotationConfig
	Serialization SerializationConfig
	Logger        *zap.Logger
	Clock         clock.Clock
}

// StoreConfig 本地快取與持久層配置
type StoreConfig struct {
	KeyPrefix    string `env:"KEY_PREFIX"`
	MaxLocalCost int64  `env:"MAX_LOCAL_COST"`

	EnableDurable bool   `env:"ENABLE_DURABLE"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"`

	BloomFilterSettings BloomFilterConfig
}

// BloomFilterConfig 用於持久層鍵集合的布隆過濾器
type BloomFilterConfig struct {
	ExpectedItems     uint    `env:"BLOOM_EXPECTED_ITEMS"`
	FalsePositiveRate float64 `env:"BLOOM_FALSE_POSITIVE_RATE"`
}

// FetchConfig 讀取控制器配置
type FetchConfig struct {
	DefaultMaxAge time.Duration `env:"DEFAULT_MAX_AGE"`

	EnablePrefetch    bool          `env:"ENABLE_PREFETCH"`
	PrefetchInterval  time.Duration `env:"PREFETCH_INTERVAL"`
	PrefetchThreshold int64         `env:"PREFETCH_THRESHOLD"`
	PrefetchCount     int           `env:"PREFETCH_COUNT"`
}

// ResilienceConfig 用於設置重試和熔斷器
type ResilienceConfig struct {
	RemoteCircuitBreaker  gobreaker.Settings
	DurableCircuitBreaker gobreaker.Settings

	Retry RetryConfig
}

// RetryConfig 持久層重試參數
type RetryConfig struct {
	Attempts  int           `env:"RETRY_ATTEMPTS"`
	BaseDelay time.Duration `env:"RETRY_BASE_DELAY"`
	MaxDelay  time.Duration `env:"RETRY_MAX_DELAY"`
}

// RankingConfig 排行榜配置
type RankingConfig struct {
	LeaderboardSize int `env:"LEADERBOARD_SIZE"`
	SummarySize     int `env:"SUMMARY_SIZE"`
}

// RotationConfig 並列名次輪播配置
type RotationConfig struct {
	Interval   time.Duration `env:"ROTATION_INTERVAL"`
	Transition time.Duration `env:"ROTATION_TRANSITION"`
}

// SerializationConfig 序列化相關配置
type SerializationConfig struct {
	Type    string
	Encoder func(io.Writer) serialization.Encoder
	Decoder func(io.Reader) serialization.Decoder
}

// Option 函數類型
type Option func(*Config) error

var (
	ErrInvalidSize        = errors.New("size must be at least 1")
	ErrTransitionTooLong  = errors.New("rotation transition must be shorter than the interval")
	ErrMissingRedisAddr   = errors.New("durable tier enabled without a redis address")
	ErrUnsupportedEncoder = errors.New("unsupported serialization type")
)

// NewConfig 創建一個默認的 Config，允許覆蓋特定參數
func NewConfig(options ...Option) (*Config, error) {
	cfg := &Config{
		Store: StoreConfig{
			KeyPrefix:    "bento_cache_",
			MaxLocalCost: 64 * 1024 * 1024, // 64MB
			BloomFilterSettings: BloomFilterConfig{
				ExpectedItems:     10000,
				FalsePositiveRate: 0.01,
			},
		},
		Fetch: FetchConfig{
			DefaultMaxAge:     time.Minute,
			PrefetchInterval:  5 * time.Minute,
			PrefetchThreshold: 3,
			PrefetchCount:     10,
		},
		Resilience: ResilienceConfig{
			RemoteCircuitBreaker: gobreaker.Settings{
				Name:        "RemoteCircuitBreaker",
				MaxRequests: 1,
				Interval:    60 * time.Second,
				Timeout:     30 * time.Second,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures > 5
				},
			},
			DurableCircuitBreaker: gobreaker.Settings{
				Name:        "DurableCircuitBreaker",
				MaxRequests: 3,
				Interval:    60 * time.Second,
				Timeout:     15 * time.Second,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures > 3
				},
			},
			Retry: RetryConfig{
				Attempts:  3,
				BaseDelay: 50 * time.Millisecond,
				MaxDelay:  500 * time.Millisecond,
			},
		},
		Ranking: RankingConfig{
			LeaderboardSize: 5,
			SummarySize:     3,
		},
		Rotation: RotationConfig{
			Interval:   3 * time.Second,
			Transition: 600 * time.Millisecond,
		},
		Serialization: SerializationConfig{
			Type:    serialization.JSONType,
			Encoder: serialization.JSONEncoder,
			Decoder: serialization.JSONDecoder,
		},
		Logger: zap.NewNop(),
		Clock:  clock.New(),
	}

	// 應用所有選項
	for _, option := range options {
		if err := option(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate 最終檢查
func (c *Config) Validate() error {
	if c.Ranking.LeaderboardSize < 1 || c.Ranking.SummarySize < 1 {
		return ErrInvalidSize
	}
	if c.Rotation.Interval <= 0 || c.Rotation.Transition >= c.Rotation.Interval {
		return ErrTransitionTooLong
	}
	if c.Store.EnableDurable && c.Store.RedisAddr == "" {
		return ErrMissingRedisAddr
	}
	return nil
}

// FromEnv 以 BENTO_ 前綴的環境變數覆蓋配置
func FromEnv() Option {
	return func(c *Config) error {
		opts := env.Options{Prefix: "BENTO_"}
		if err := env.ParseWithOptions(&c.Store, opts); err != nil {
			return fmt.Errorf("parse store env: %w", err)
		}
		if err := env.ParseWithOptions(&c.Fetch, opts); err != nil {
			return fmt.Errorf("parse fetch env: %w", err)
		}
		if err := env.ParseWithOptions(&c.Resilience.Retry, opts); err != nil {
			return fmt.Errorf("parse resilience env: %w", err)
		}
		if err := env.ParseWithOptions(&c.Ranking, opts); err != nil {
			return fmt.Errorf("parse ranking env: %w", err)
		}
		if err := env.ParseWithOptions(&c.Rotation, opts); err != nil {
			return fmt.Errorf("parse rotation env: %w", err)
		}
		if c.Store.RedisAddr != "" {
			c.Store.EnableDurable = true
		}
		return nil
	}
}

// WithLogger 設置自定義 Logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) error {
		if logger != nil {
			c.Logger = logger
		}
		return nil
	}
}

// WithClock 設置時鐘，測試時可注入 clock.NewMock()
func WithClock(clk clock.Clock) Option {
	return func(c *Config) error {
		if clk != nil {
			c.Clock = clk
		}
		return nil
	}
}

// WithRedis 啟用持久層
func WithRedis(addr, password string, db int) Option {
	return func(c *Config) error {
		if addr == "" {
			return ErrMissingRedisAddr
		}
		c.Store.EnableDurable = true
		c.Store.RedisAddr = addr
		c.Store.RedisPassword = password
		c.Store.RedisDB = db
		return nil
	}
}

// WithKeyPrefix 設置實體鍵前綴
func WithKeyPrefix(prefix string) Option {
	return func(c *Config) error {
		c.Store.KeyPrefix = prefix
		return nil
	}
}

// WithDefaultMaxAge 設置預設的資料新鮮度
func WithDefaultMaxAge(maxAge time.Duration) Option {
	return func(c *Config) error {
		if maxAge > 0 {
			c.Fetch.DefaultMaxAge = maxAge
		}
		return nil
	}
}

// WithPrefetch 啟用熱門鍵預取
func WithPrefetch(interval time.Duration, threshold int64, count int) Option {
	return func(c *Config) error {
		if interval <= 0 || count < 1 {
			return ErrInvalidSize
		}
		c.Fetch.EnablePrefetch = true
		c.Fetch.PrefetchInterval = interval
		c.Fetch.PrefetchThreshold = threshold
		c.Fetch.PrefetchCount = count
		return nil
	}
}

// WithRotation 設置輪播間隔與過場時間
func WithRotation(interval, transition time.Duration) Option {
	return func(c *Config) error {
		c.Rotation.Interval = interval
		c.Rotation.Transition = transition
		return nil
	}
}

// WithLeaderboardSize 設置排行榜保留的名次數量
func WithLeaderboardSize(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return ErrInvalidSize
		}
		c.Ranking.LeaderboardSize = n
		return nil
	}
}

// WithSerialization 設置序列化方式
func WithSerialization(serializer string) Option {
	return func(c *Config) error {
		switch serializer {
		case serialization.JSONType:
			c.Serialization.Encoder = serialization.JSONEncoder
			c.Serialization.Decoder = serialization.JSONDecoder
		case serialization.GobType:
			c.Serialization.Encoder = serialization.GobEncoder
			c.Serialization.Decoder = serialization.GobDecoder
		default:
			return fmt.Errorf("%w: %s", ErrUnsupportedEncoder, serializer)
		}
		c.Serialization.Type = serializer
		return nil
	}
}
