package store

import (
	"sync"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"

	"goflare.io/bento/internal/models"
)

// localTier 以 Ristretto 實作的本地快取層，並跟蹤所有已寫入的鍵
type localTier struct {
	cache   *ristretto.Cache
	tracked sync.Map
	logger  *zap.Logger
}

// newLocalTier 創建本地快取層
func newLocalTier(maxCost int64, expectedItems uint, logger *zap.Logger) (*localTier, error) {
	counters := int64(expectedItems) * 10
	if counters < 1000 {
		counters = 1000
	}

	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: counters,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	return &localTier{
		cache:  c,
		logger: logger,
	}, nil
}

// set 寫入項目；Wait 確保緊接著的 get 可以讀到
func (l *localTier) set(key string, entry *models.Entry) bool {
	cost := int64(len(entry.Data)) + 1
	if !l.cache.Set(key, entry, cost) {
		l.logger.Warn("Ristretto Set dropped entry", zap.String("key", key))
		return false
	}
	l.cache.Wait()
	l.tracked.Store(key, struct{}{})
	return true
}

// get 讀取項目
func (l *localTier) get(key string) (*models.Entry, bool) {
	value, found := l.cache.Get(key)
	if !found {
		return nil, false
	}

	entry, ok := value.(*models.Entry)
	if !ok {
		l.logger.Error("Invalid cache entry type", zap.String("key", key))
		l.del(key)
		return nil, false
	}
	return entry, true
}

// del 刪除項目並移除跟蹤；不存在時無動作
func (l *localTier) del(key string) {
	l.cache.Del(key)
	l.tracked.Delete(key)
}

// keys 列出所有仍存在的鍵
func (l *localTier) keys() []string {
	var out []string
	l.tracked.Range(func(k, _ any) bool {
		key, ok := k.(string)
		if !ok {
			return true
		}
		if _, found := l.cache.Get(key); found {
			out = append(out, key)
		} else {
			l.tracked.Delete(key)
		}
		return true
	})
	return out
}

// flush 清空本地快取
func (l *localTier) flush() {
	l.cache.Clear()
	l.tracked.Range(func(k, _ any) bool {
		l.tracked.Delete(k)
		return true
	})
}

func (l *localTier) close() {
	l.cache.Close()
}
