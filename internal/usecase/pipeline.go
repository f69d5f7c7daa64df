package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zono819/tickpulse/internal/adapter/gateway"
	"github.com/zono819/tickpulse/internal/domain/entity"
	"github.com/zono819/tickpulse/internal/domain/protocol"
	"github.com/zono819/tickpulse/internal/infrastructure/logger"
	"github.com/zono819/tickpulse/internal/usecase/engine"
)

// ErrPipelineStopped is returned by Submit once the pipeline shuts down
var ErrPipelineStopped = errors.New("pipeline stopped")

// Stats receives feed activity and reports the rolling batch size
type Stats interface {
	FeedRound()
	AverageBatchSize() float64
}

// PipelineConfig holds pipeline settings
type PipelineConfig struct {
	CommandBuffer int
	StatsInterval time.Duration // 0 disables the periodic stats log
	StopTimeout   time.Duration
}

// PipelineOption configures a PipelineUseCase
type PipelineOption func(*PipelineUseCase)

// WithPipelineLogger sets the pipeline logger
func WithPipelineLogger(log *logger.Logger) PipelineOption {
	return func(p *PipelineUseCase) {
		if log != nil {
			p.log = log
		}
	}
}

// WithStats sets the stats sink
func WithStats(s Stats) PipelineOption {
	return func(p *PipelineUseCase) {
		p.stats = s
	}
}

// PipelineUseCase moves ticks from a feed through the engine to a publisher.
// The engine runs on its own goroutine and only sees commands through Submit.
type PipelineUseCase struct {
	feed      gateway.TickFeed
	engine    *engine.Engine
	publisher gateway.Publisher
	cfg       PipelineConfig
	log       *logger.Logger
	stats     Stats

	commands chan protocol.Command
	stopping chan struct{}
	stopOnce sync.Once

	mu      sync.RWMutex
	running bool
	closed  bool

	rounds atomic.Int64
	ticks  atomic.Int64
	events atomic.Int64
}

// NewPipelineUseCase creates a new pipeline use case
func NewPipelineUseCase(feed gateway.TickFeed, eng *engine.Engine, publisher gateway.Publisher, cfg PipelineConfig, opts ...PipelineOption) *PipelineUseCase {
	if cfg.CommandBuffer <= 0 {
		cfg.CommandBuffer = 256
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 5 * time.Second
	}
	p := &PipelineUseCase{
		feed:      feed,
		engine:    eng,
		publisher: publisher,
		cfg:       cfg,
		log:       logger.Default(),
		commands:  make(chan protocol.Command, cfg.CommandBuffer),
		stopping:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.WithField("component", "pipeline")
	return p
}

// Submit queues a command for the engine, blocking while the queue is full
func (p *PipelineUseCase) Submit(cmd protocol.Command) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPipelineStopped
	}
	select {
	case p.commands <- cmd:
		return nil
	case <-p.stopping:
		return ErrPipelineStopped
	}
}

// Run connects the feed, hydrates the engine from its snapshot and streams
// until ctx ends. Commands already queued are applied and flushed before
// Run returns. A pipeline runs once.
func (p *PipelineUseCase) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running || p.closed {
		p.mu.Unlock()
		return fmt.Errorf("pipeline is already running")
	}
	p.running = true
	p.mu.Unlock()

	if err := p.feed.SubscribeTicks(ctx, p.onTicks); err != nil {
		p.shutdown()
		return fmt.Errorf("failed to subscribe ticks: %w", err)
	}
	p.publisher.OnCommand(p.onCommand)

	g, gctx := errgroup.WithContext(ctx)
	events := make(chan protocol.Event, p.cfg.CommandBuffer)

	// The engine stops when the command channel closes, not on ctx, so the
	// final batch still reaches the publisher.
	g.Go(func() error {
		defer close(events)
		return p.engine.Run(context.WithoutCancel(gctx), p.commands, events)
	})

	g.Go(func() error {
		for ev := range events {
			p.events.Add(1)
			if err := p.publisher.Publish(context.WithoutCancel(gctx), ev); err != nil {
				p.log.Warn("Publish %s failed: %v", ev.Kind(), err)
			}
		}
		return nil
	})

	g.Go(func() error {
		defer p.shutdown()

		if err := p.feed.Connect(gctx); err != nil {
			return fmt.Errorf("failed to connect to feed: %w", err)
		}
		p.hydrate(gctx)

		<-gctx.Done()

		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), p.cfg.StopTimeout)
		defer cancel()
		if err := p.feed.Disconnect(stopCtx); err != nil {
			p.log.Warn("Feed disconnect: %v", err)
		}
		return nil
	})

	if p.cfg.StatsInterval > 0 {
		g.Go(func() error {
			p.reportStats(gctx)
			return nil
		})
	}

	err := g.Wait()
	p.logStats("Pipeline stopped")
	return err
}

// hydrate seeds engine state from the feed snapshot. A feed without a
// snapshot is not fatal: symbols then start from their first tick.
func (p *PipelineUseCase) hydrate(ctx context.Context) {
	snap, err := p.feed.Snapshot(ctx)
	if err != nil {
		p.log.Warn("Snapshot unavailable, starting cold: %v", err)
		return
	}
	if err := p.Submit(protocol.InitSnapshot{Snapshot: snap.Entries()}); err != nil {
		return
	}
	p.log.Info("Hydrated engine with %d symbols", len(snap))
}

// shutdown stops accepting commands and closes the engine input
func (p *PipelineUseCase) shutdown() {
	p.stopOnce.Do(func() {
		close(p.stopping)
		p.mu.Lock()
		p.closed = true
		close(p.commands)
		p.mu.Unlock()
	})
}

// onTicks handles a feed round
func (p *PipelineUseCase) onTicks(ticks []entity.RawTick) {
	if len(ticks) == 0 {
		return
	}
	// the feed may reuse its slice once the handler returns
	batch := append([]entity.RawTick(nil), ticks...)
	if err := p.Submit(protocol.BatchTicks{Ticks: batch}); err != nil {
		return
	}
	p.rounds.Add(1)
	p.ticks.Add(int64(len(batch)))
	if p.stats != nil {
		p.stats.FeedRound()
	}
}

// onCommand handles commands sent back by consumers
func (p *PipelineUseCase) onCommand(cmd protocol.Command) {
	if err := p.Submit(cmd); err != nil {
		p.log.Debug("Dropping %s: %v", cmd.Kind(), err)
	}
}

func (p *PipelineUseCase) reportStats(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.StatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.logStats("Pipeline stats")
		}
	}
}

func (p *PipelineUseCase) logStats(msg string) {
	avg := 0.0
	if p.stats != nil {
		avg = p.stats.AverageBatchSize()
	}
	p.log.WithFields(map[string]interface{}{
		"rounds":    p.rounds.Load(),
		"ticks":     p.ticks.Load(),
		"events":    p.events.Load(),
		"avg_batch": avg,
	}).Info(msg)
}
