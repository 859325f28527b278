package rotation

import (
	"context"
	"errors"
	"sync"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"goflare.io/bento/internal/ranking"
)

// Presenter 顯示排行榜群組中目前輪到的成員
type Presenter struct {
	group   ranking.Group
	rotator *Rotator
	logger  *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPresenter creates a Presenter for group.
func NewPresenter(group ranking.Group, clk clock.Clock, logger *zap.Logger, opts ...Option) (*Presenter, error) {
	r, err := New(clk, len(group.Users), opts...)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Presenter{group: group, rotator: r, logger: logger}, nil
}

// Group returns the presented group.
func (p *Presenter) Group() ranking.Group {
	return p.group
}

// State returns the rotation state.
func (p *Presenter) State() State {
	return p.rotator.State()
}

// Current returns the member on display. An empty group yields the zero Member.
func (p *Presenter) Current() ranking.Member {
	if len(p.group.Users) == 0 {
		return ranking.Member{}
	}
	return p.group.Users[p.State().Index]
}

// Start restarts the cycle and runs it in the background until ctx is done
// or Stop is called. A running cycle is stopped first.
func (p *Presenter) Start(ctx context.Context, onChange func(State, ranking.Member)) {
	p.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel, p.done = cancel, done
	p.rotator.Reset()

	go func() {
		defer close(done)
		err := p.rotator.Run(ctx, func(st State) {
			if onChange != nil {
				onChange(st, p.group.Users[st.Index])
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Debug("Rotation stopped", zap.Float64("value", p.group.Value), zap.Error(err))
		}
	}()
}

// Stop ends the cycle and returns once no further ticks can be delivered.
func (p *Presenter) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
