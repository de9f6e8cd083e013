package fetcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultPollInterval is the refresh period of balances and price
const DefaultPollInterval = 60 * time.Second

// Task is one periodic job of a Poller
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Poller runs tasks once immediately and then on their interval until
// stopped. A failing task is logged and does not affect the others.
type Poller struct {
	logger *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// NewPoller creates an idle poller
func NewPoller(logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{logger: logger}
}

// Start launches every task. It fails if the poller is already running.
func (p *Poller) Start(ctx context.Context, tasks ...Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("poller is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	for _, t := range tasks {
		t := t
		if t.Interval <= 0 {
			t.Interval = DefaultPollInterval
		}
		g.Go(func() error {
			p.loop(ctx, t)
			return nil
		})
	}

	p.running = true
	p.cancel = cancel
	p.group = g
	return nil
}

// Running reports whether Start was called without a matching Stop
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Stop cancels all tasks and waits for in-flight runs to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel, g := p.cancel, p.group
	p.running = false
	p.cancel = nil
	p.group = nil
	p.mu.Unlock()

	cancel()
	_ = g.Wait()
}

func (p *Poller) loop(ctx context.Context, t Task) {
	p.logger.Debug("poller task started", zap.String("task", t.Name), zap.Duration("interval", t.Interval))
	defer p.logger.Debug("poller task stopped", zap.String("task", t.Name))

	p.run(ctx, t)

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.run(ctx, t)
		}
	}
}

func (p *Poller) run(ctx context.Context, t Task) {
	if err := t.Run(ctx); err != nil && ctx.Err() == nil {
		p.logger.Warn("poller task failed", zap.String("task", t.Name), zap.Error(err))
	}
}
