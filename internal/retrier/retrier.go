package retrier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

const (
	minMaxAttempts = 1
	minBaseDelay   = time.Millisecond
	minFactor      = 1.0
	maxJitter      = 1.0
)

// ExponentialBackoff multiplies the delay by the factor on every attempt.
// LinearBackoff grows the delay by the base delay on every attempt.
const (
	ExponentialBackoff BackoffStrategy = iota
	LinearBackoff
)

var (
	// ErrInvalidMaxAttempts is returned when the max attempts parameter is invalid.
	ErrInvalidMaxAttempts = errors.New("max attempts must be at least 1")
	// ErrInvalidBaseDelay is returned when the base delay parameter is invalid.
	ErrInvalidBaseDelay = errors.New("base delay must be at least 1ms")
	// ErrInvalidFactor is returned when the factor parameter is invalid.
	ErrInvalidFactor = errors.New("factor must be at least 1.0")
	// ErrInvalidJitter is returned when the jitter parameter is invalid.
	ErrInvalidJitter = errors.New("jitter must be between 0 and 1")
)

// BackoffStrategy selects how delays grow between attempts.
type BackoffStrategy int

// Retrier runs a function until it succeeds, fails permanently, or runs out of attempts.
type Retrier struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	factor      float64
	jitter      float64
	strategy    BackoffStrategy
	randPool    *sync.Pool

	// Retryable decides whether err is worth another attempt. Nil retries errors implementing Temporary.
	Retryable func(error) bool
}

// NewRetrier validates the parameters and builds a Retrier.
func NewRetrier(maxAttempts int, baseDelay, maxDelay time.Duration, factor, jitter float64, strategy BackoffStrategy, retryable func(error) bool) (*Retrier, error) {
	if maxAttempts < minMaxAttempts {
		return nil, ErrInvalidMaxAttempts
	}
	if baseDelay < minBaseDelay {
		return nil, ErrInvalidBaseDelay
	}
	if factor < minFactor {
		return nil, ErrInvalidFactor
	}
	if jitter < 0 || jitter > maxJitter {
		return nil, ErrInvalidJitter
	}
	if maxDelay < baseDelay {
		maxDelay = baseDelay
	}

	return &Retrier{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
		factor:      factor,
		jitter:      jitter,
		strategy:    strategy,
		randPool: &sync.Pool{
			New: func() any {
				return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
			},
		},
		Retryable: retryable,
	}, nil
}

// Run executes fn, retrying retryable failures with backoff.
func (r *Retrier) Run(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		if !r.retryable(err) {
			return err
		}

		if attempt == r.maxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.calculateDelay(attempt)):
		}
	}

	return fmt.Errorf("max retry attempts reached: %w", err)
}

func (r *Retrier) retryable(err error) bool {
	if r.Retryable != nil {
		return r.Retryable(err)
	}
	return IsTemporary(err)
}

// calculateDelay computes the delay before the next attempt.
func (r *Retrier) calculateDelay(attempt int) time.Duration {
	var delay float64
	switch r.strategy {
	case LinearBackoff:
		delay = float64(r.baseDelay) * float64(attempt+1)
	default:
		delay = float64(r.baseDelay) * math.Pow(r.factor, float64(attempt))
	}

	if delay > float64(r.maxDelay) {
		delay = float64(r.maxDelay)
	}

	rng := r.randPool.Get().(*rand.Rand)
	delay += rng.Float64() * r.jitter * delay
	r.randPool.Put(rng)

	return time.Duration(delay)
}
