// Package engine implements the tick aggregation engine.
//
// An Engine owns every SymbolState. It is not safe for concurrent use: run it
// from a single goroutine via Run, which serializes commands and batch
// emission, and exchange only protocol messages with it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/zono819/tickpulse/internal/domain/entity"
	"github.com/zono819/tickpulse/internal/domain/protocol"
	"github.com/zono819/tickpulse/internal/infrastructure/logger"
)

var (
	// ErrUnknownTimeframe is returned when a timeframe outside the supported set is requested
	ErrUnknownTimeframe = errors.New("unknown timeframe")
	// ErrStaleTick is returned when DropStaleTicks is on and a tick belongs to a bucket
	// older than the symbol's current candle
	ErrStaleTick = errors.New("tick precedes current candle bucket")
)

// Recorder receives engine activity counters
type Recorder interface {
	CommandHandled(kind protocol.Kind)
	CommandFailed(kind protocol.Kind)
	TicksProcessed(n int)
	BatchEmitted(symbols, tracked int)
}

type nopRecorder struct{}

func (nopRecorder) CommandHandled(protocol.Kind) {}
func (nopRecorder) CommandFailed(protocol.Kind)  {}
func (nopRecorder) TicksProcessed(int)           {}
func (nopRecorder) BatchEmitted(int, int)        {}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(log *logger.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithRecorder sets the activity recorder
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithClock overrides the clock used for throttling
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine is the tick aggregation engine
type Engine struct {
	cfg       Config
	store     *Store
	processor *Processor
	emitter   *Emitter

	timeframe     entity.Timeframe
	subscriptions map[string]struct{}

	log      *logger.Logger
	recorder Recorder
	now      func() time.Time
}

// New creates an engine with its own empty state
func New(cfg Config, opts ...Option) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}

	e := &Engine{
		cfg:           cfg,
		store:         NewStore(cfg),
		processor:     NewProcessor(cfg),
		emitter:       NewEmitter(cfg.Throttle),
		timeframe:     cfg.Timeframe,
		subscriptions: make(map[string]struct{}),
		log:           logger.Default(),
		recorder:      nopRecorder{},
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.WithField("component", "engine")
	return e, nil
}

// Timeframe returns the active candle timeframe
func (e *Engine) Timeframe() entity.Timeframe {
	return e.timeframe
}

// Subscriptions returns the symbols of interest in lexical order.
// The set is informational: it does not filter processing or emission.
func (e *Engine) Subscriptions() []string {
	out := make([]string, 0, len(e.subscriptions))
	for sym := range e.subscriptions {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Symbols returns every tracked symbol
func (e *Engine) Symbols() []string {
	return e.store.Symbols()
}

// Handle applies one command
func (e *Engine) Handle(cmd protocol.Command) error {
	switch c := cmd.(type) {
	case protocol.Tick:
		if err := e.applyTick(c.Tick); err != nil {
			return err
		}
		e.recorder.TicksProcessed(1)
		return nil

	case protocol.BatchTicks:
		dropped := 0
		for _, tick := range c.Ticks {
			if err := e.applyTick(tick); err != nil {
				if !errors.Is(err, ErrStaleTick) {
					return err
				}
				dropped++
			}
		}
		e.recorder.TicksProcessed(len(c.Ticks) - dropped)
		if dropped > 0 {
			return fmt.Errorf("%w: dropped %d of %d ticks", ErrStaleTick, dropped, len(c.Ticks))
		}
		return nil

	case protocol.SetTimeframe:
		if !c.Timeframe.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownTimeframe, c.Timeframe)
		}
		e.log.Debug("Timeframe %s -> %s, invalidating candles of %d symbols", e.timeframe, c.Timeframe, e.store.Len())
		e.timeframe = c.Timeframe
		e.store.InvalidateCandles()
		return nil

	case protocol.Subscribe:
		for _, sym := range c.Symbols {
			e.subscriptions[sym] = struct{}{}
		}
		return nil

	case protocol.Unsubscribe:
		for _, sym := range c.Symbols {
			delete(e.subscriptions, sym)
		}
		return nil

	case protocol.InitSnapshot:
		for sym, snap := range c.Snapshot {
			e.store.Reinitialize(sym, snap)
		}
		e.log.Debug("Hydrated %d symbols from snapshot", len(c.Snapshot))
		return nil

	case nil:
		return nil

	default:
		e.log.Warn("Ignoring unknown command %T", cmd)
		return nil
	}
}

func (e *Engine) applyTick(tick entity.RawTick) error {
	s := e.store.GetOrCreate(tick.Symbol)
	if err := e.processor.Apply(s, tick, e.timeframe); err != nil {
		return fmt.Errorf("%s @ %d: %w", tick.Symbol, tick.Timestamp, err)
	}
	return nil
}

// Emit returns the pending batch, honoring the throttle interval
func (e *Engine) Emit() *protocol.BatchUpdate {
	return e.observe(e.emitter.Emit(e.store, e.now()))
}

// Flush returns the pending batch regardless of the throttle interval
func (e *Engine) Flush() *protocol.BatchUpdate {
	return e.observe(e.emitter.Flush(e.store, e.now()))
}

func (e *Engine) observe(batch *protocol.BatchUpdate) *protocol.BatchUpdate {
	if batch != nil {
		e.recorder.BatchEmitted(batch.Len(), e.store.Len())
	}
	return batch
}

// safeHandle converts a panic during command handling into an error
func (e *Engine) safeHandle(cmd protocol.Command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic handling %T: %v", cmd, r)
		}
	}()
	return e.Handle(cmd)
}

// Run processes commands from in and emits events to out until ctx is done
// or in is closed. Ready is sent first. A closed input triggers a final flush.
func (e *Engine) Run(ctx context.Context, in <-chan protocol.Command, out chan<- protocol.Event) error {
	if !e.send(ctx, out, protocol.Ready{}) {
		return nil
	}
	e.log.Info("Engine ready (timeframe: %s, flush: %s)", e.timeframe, e.cfg.FlushInterval)

	ticker := time.NewTicker(e.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case cmd, ok := <-in:
			if !ok {
				if batch := e.Flush(); batch != nil {
					e.send(ctx, out, batch)
				}
				e.log.Info("Command channel closed, engine stopped")
				return nil
			}
			if err := e.safeHandle(cmd); err != nil {
				e.recorder.CommandFailed(kindOf(cmd))
				e.log.Warn("Command %s failed: %v", kindOf(cmd), err)
				if !e.send(ctx, out, protocol.Error{Message: err.Error()}) {
					return nil
				}
				continue
			}
			e.recorder.CommandHandled(kindOf(cmd))

		case <-ticker.C:
			if batch := e.Emit(); batch != nil {
				if !e.send(ctx, out, batch) {
					return nil
				}
			}
		}
	}
}

// send delivers ev unless ctx ends first
func (e *Engine) send(ctx context.Context, out chan<- protocol.Event, ev protocol.Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func kindOf(cmd protocol.Command) protocol.Kind {
	if cmd == nil {
		return ""
	}
	return cmd.Kind()
}
