package models

import (
	"errors"

	"go.uber.org/atomic"
)

// Metrics 定義指標統計
type Metrics struct {
	Hits        atomic.Int64
	Misses      atomic.Int64
	Writes      atomic.Int64
	Removals    atomic.Int64
	Errors      atomic.Int64
	DroppedLate atomic.Int64
	Rollbacks   atomic.Int64
	Reconciled  atomic.Int64
	Invalidated atomic.Int64
}

// NewMetrics 創建新的 Metrics 實例
func NewMetrics() *Metrics {
	return &Metrics{}
}

// 定義常見錯誤
var (
	ErrKeyNotFound        = errors.New("key not found in cache")
	ErrPreconditionFailed = errors.New("no cached snapshot to roll back to")
	ErrMutationInFlight   = errors.New("another optimistic mutation is in flight for this key")
	ErrRemote             = errors.New("remote call failed")
	ErrSubscriptionClosed = errors.New("subscription closed")
	ErrTypeMismatch       = errors.New("value type does not match subscription")
)
