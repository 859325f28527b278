package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goflare.io/bento/pkg/serialization"
)

func TestDefaults(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "bento_cache_", cfg.Store.KeyPrefix)
	assert.Equal(t, time.Minute, cfg.Fetch.DefaultMaxAge)
	assert.Equal(t, 5, cfg.Ranking.LeaderboardSize)
	assert.Equal(t, 3, cfg.Ranking.SummarySize)
	assert.Equal(t, 3*time.Second, cfg.Rotation.Interval)
	assert.Equal(t, 600*time.Millisecond, cfg.Rotation.Transition)
	assert.Equal(t, serialization.JSONType, cfg.Serialization.Type)
	assert.False(t, cfg.Store.EnableDurable)
	assert.False(t, cfg.Fetch.EnablePrefetch)
	assert.NotNil(t, cfg.Logger)
	assert.NotNil(t, cfg.Clock)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("BENTO_REDIS_ADDR", "localhost:6390")
	t.Setenv("BENTO_DEFAULT_MAX_AGE", "30s")
	t.Setenv("BENTO_LEADERBOARD_SIZE", "10")
	t.Setenv("BENTO_ROTATION_INTERVAL", "5s")
	t.Setenv("BENTO_BLOOM_EXPECTED_ITEMS", "500")
	t.Setenv("BENTO_RETRY_ATTEMPTS", "1")

	cfg, err := NewConfig(FromEnv())
	require.NoError(t, err)

	assert.True(t, cfg.Store.EnableDurable)
	assert.Equal(t, "localhost:6390", cfg.Store.RedisAddr)
	assert.Equal(t, 30*time.Second, cfg.Fetch.DefaultMaxAge)
	assert.Equal(t, 10, cfg.Ranking.LeaderboardSize)
	assert.Equal(t, 5*time.Second, cfg.Rotation.Interval)
	assert.Equal(t, 600*time.Millisecond, cfg.Rotation.Transition)
	assert.Equal(t, uint(500), cfg.Store.BloomFilterSettings.ExpectedItems)
	assert.Equal(t, 1, cfg.Resilience.Retry.Attempts)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	t.Setenv("BENTO_DEFAULT_MAX_AGE", "soon")
	_, err := NewConfig(FromEnv())
	assert.Error(t, err)
}

func TestValidation(t *testing.T) {
	_, err := NewConfig(WithRotation(time.Second, time.Second))
	assert.ErrorIs(t, err, ErrTransitionTooLong)

	_, err = NewConfig(WithLeaderboardSize(0))
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = NewConfig(WithRedis("", "", 0))
	assert.ErrorIs(t, err, ErrMissingRedisAddr)

	_, err = NewConfig(WithSerialization("xml"))
	assert.ErrorIs(t, err, ErrUnsupportedEncoder)

	_, err = NewConfig(WithPrefetch(0, 1, 1))
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestOptions(t *testing.T) {
	cfg, err := NewConfig(
		WithKeyPrefix("test_"),
		WithDefaultMaxAge(time.Hour),
		WithSerialization(serialization.GobType),
		WithPrefetch(time.Minute, 2, 4),
		WithRedis("localhost:6379", "secret", 2),
	)
	require.NoError(t, err)

	assert.Equal(t, "test_", cfg.Store.KeyPrefix)
	assert.Equal(t, time.Hour, cfg.Fetch.DefaultMaxAge)
	assert.Equal(t, serialization.GobType, cfg.Serialization.Type)
	assert.True(t, cfg.Fetch.EnablePrefetch)
	assert.Equal(t, 4, cfg.Fetch.PrefetchCount)
	assert.Equal(t, 2, cfg.Store.RedisDB)
}
