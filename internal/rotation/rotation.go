// Package rotation cycles the displayed member of a tied leaderboard group.
//
// State is a function of the time elapsed since the rotator started, read
// from an injected clock: at every interval tick the group enters a
// transition; when the transition window ends the index advances by one.
package rotation

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"goflare.io/bento/internal/config"
)

// State 目前顯示的成員索引與是否處於過場
type State struct {
	Index         int  `json:"index"`
	Transitioning bool `json:"transitioning"`
}

// Option 輪播選項
type Option func(*Rotator)

// WithInterval sets the time between ticks.
func WithInterval(d time.Duration) Option {
	return func(r *Rotator) { r.interval = d }
}

// WithTransition sets how long the transition flag stays up after a tick.
func WithTransition(d time.Duration) Option {
	return func(r *Rotator) { r.transition = d }
}

// WithConfig applies interval and transition from cfg.
func WithConfig(cfg config.RotationConfig) Option {
	return func(r *Rotator) {
		r.interval = cfg.Interval
		r.transition = cfg.Transition
	}
}

// Rotator 並列名次的輪播狀態機
type Rotator struct {
	clock      clock.Clock
	members    int
	interval   time.Duration
	transition time.Duration

	mu    sync.Mutex
	start time.Time
}

// New creates a Rotator for memberCount members starting now.
func New(clk clock.Clock, memberCount int, opts ...Option) (*Rotator, error) {
	if clk == nil {
		clk = clock.New()
	}
	r := &Rotator{
		clock:      clk,
		members:    memberCount,
		interval:   3 * time.Second,
		transition: 600 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.interval <= 0 || r.transition < 0 || r.transition >= r.interval {
		return nil, config.ErrTransitionTooLong
	}
	r.start = clk.Now()
	return r, nil
}

// Reset restarts the cycle at index 0.
func (r *Rotator) Reset() {
	r.mu.Lock()
	r.start = r.clock.Now()
	r.mu.Unlock()
}

// Members returns the member count.
func (r *Rotator) Members() int {
	return r.members
}

// Rotates reports whether the group ever changes its displayed member.
func (r *Rotator) Rotates() bool {
	return r.members > 1
}

func (r *Rotator) elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.clock.Now().Sub(r.start)
	if e < 0 {
		return 0
	}
	return e
}

// State returns the state at the current clock time.
func (r *Rotator) State() State {
	if !r.Rotates() {
		return State{}
	}
	ticks, since := r.position()
	if ticks == 0 {
		return State{}
	}
	completed := ticks
	transitioning := since < r.transition
	if transitioning {
		completed--
	}
	return State{Index: int(completed % int64(r.members)), Transitioning: transitioning}
}

// position returns the number of ticks so far and the time since the last one.
func (r *Rotator) position() (int64, time.Duration) {
	e := r.elapsed()
	ticks := int64(e / r.interval)
	return ticks, e - time.Duration(ticks)*r.interval
}

// untilNext returns the time until the state next changes.
func (r *Rotator) untilNext() time.Duration {
	ticks, since := r.position()
	if ticks > 0 && since < r.transition {
		return r.transition - since
	}
	return r.interval - since
}

// Run calls onChange on every state change until ctx is done. Groups that
// never rotate just wait for ctx.
func (r *Rotator) Run(ctx context.Context, onChange func(State)) error {
	if !r.Rotates() {
		<-ctx.Done()
		return ctx.Err()
	}

	last := r.State()
	for {
		timer := r.clock.Timer(r.untilNext())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		st := r.State()
		if st == last {
			continue
		}
		last = st
		if onChange != nil {
			onChange(st)
		}
	}
}
