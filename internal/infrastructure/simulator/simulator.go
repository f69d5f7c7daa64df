// Package simulator generates synthetic ticks with a geometric Brownian motion walk.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zono819/tickpulse/internal/adapter/gateway"
	"github.com/zono819/tickpulse/internal/domain/entity"
	"github.com/zono819/tickpulse/internal/infrastructure/logger"
)

// Ensure Simulator implements TickFeed
var _ gateway.TickFeed = (*Simulator)(nil)

// ErrAlreadyConnected is returned by Connect on a running simulator
var ErrAlreadyConnected = errors.New("simulator already connected")

const secondsPerYear = 365 * 24 * 3600

// Config holds simulator settings
type Config struct {
	TickInterval time.Duration
	// Seed for the random source; 0 seeds from the clock
	Seed    int64
	Symbols []entity.SymbolConfig
}

type symbolState struct {
	config    entity.SymbolConfig
	price     float64
	bid       float64
	ask       float64
	high24h   float64
	low24h    float64
	volume24h float64
	openPrice float64
	lastTS    int64
}

// Option configures a Simulator
type Option func(*Simulator)

// WithLogger sets the simulator logger
func WithLogger(log *logger.Logger) Option {
	return func(s *Simulator) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the clock used for tick timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) {
		if now != nil {
			s.now = now
		}
	}
}

// Simulator is an in-process tick feed
type Simulator struct {
	cfg Config
	dt  float64 // tick interval in years
	log *logger.Logger
	now func() time.Time

	mu     sync.Mutex
	rng    *rand.Rand
	states []*symbolState

	handlerMu sync.RWMutex
	handlers  []func([]entity.RawTick)

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a simulator seeded at each symbol's base price
func New(cfg Config, opts ...Option) *Simulator {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 100 * time.Millisecond
	}
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = DefaultSymbols()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	s := &Simulator{
		cfg: cfg,
		dt:  cfg.TickInterval.Seconds() / secondsPerYear,
		log: logger.Default(),
		now: time.Now,
		rng: rand.New(rand.NewSource(seed)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("component", "simulator")

	ts := s.now().UnixMilli()
	for _, sc := range cfg.Symbols {
		half := sc.BasePrice * spreadPct(sc.Category)
		s.states = append(s.states, &symbolState{
			config:    sc,
			price:     sc.BasePrice,
			bid:       sc.BasePrice - half,
			ask:       sc.BasePrice + half,
			high24h:   sc.BasePrice * 1.02,
			low24h:    sc.BasePrice * 0.98,
			volume24h: sc.BasePrice * 1_000_000 * (0.5 + s.rng.Float64()),
			openPrice: sc.BasePrice,
			lastTS:    ts,
		})
	}
	return s
}

func spreadPct(c entity.Category) float64 {
	if c == entity.CategoryCrypto {
		return 0.001
	}
	return 0.0002
}

// normal draws N(0,1) with the Box-Muller transform
func normal(rng *rand.Rand) float64 {
	u, v := 0.0, 0.0
	for u == 0 {
		u = rng.Float64()
	}
	for v == 0 {
		v = rng.Float64()
	}
	return math.Sqrt(-2*math.Log(u)) * math.Cos(2*math.Pi*v)
}

// roundPrice rounds to a number of decimals suited to the price magnitude
func roundPrice(p float64) float64 {
	var places int32
	switch abs := math.Abs(p); {
	case abs >= 1000:
		places = 2
	case abs >= 1:
		places = 4
	case abs >= 0.01:
		places = 6
	default:
		places = 10
	}
	return decimal.NewFromFloat(p).Round(places).InexactFloat64()
}

// Step advances a random 30-60% subset of symbols by one tick
func (s *Simulator) Step() []entity.RawTick {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now().UnixMilli()
	ratio := 0.3 + s.rng.Float64()*0.3
	ticks := make([]entity.RawTick, 0, int(float64(len(s.states))*ratio)+1)

	for _, st := range s.states {
		if s.rng.Float64() > ratio {
			continue
		}

		dW := normal(s.rng)
		dS := st.config.Volatility * st.price * math.Sqrt(s.dt) * dW
		price := math.Max(st.price+dS, st.price*0.001)

		half := price * spreadPct(st.config.Category) * (1 + math.Abs(dW)*0.1)
		volume := st.volume24h * 0.00001 * (0.5 + s.rng.Float64()*1.5)

		st.price = price
		st.bid = price - half
		st.ask = price + half
		st.high24h = math.Max(st.high24h, price)
		st.low24h = math.Min(st.low24h, price)
		st.volume24h += volume
		st.lastTS = ts

		ticks = append(ticks, entity.RawTick{
			Symbol:    st.config.Symbol,
			Price:     roundPrice(price),
			Bid:       roundPrice(st.bid),
			Ask:       roundPrice(st.ask),
			Volume:    volume,
			Timestamp: ts,
		})
	}
	return ticks
}

// Connect starts the tick loop
func (s *Simulator) Connect(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyConnected
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		s.run(runCtx)
	}()

	s.log.Info("Simulator started: %d symbols every %s", len(s.states), s.cfg.TickInterval)
	return nil
}

// Disconnect stops the tick loop and waits for it to exit
func (s *Simulator) Disconnect(ctx context.Context) error {
	s.runMu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.runMu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		s.log.Info("Simulator stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("simulator stop: %w", ctx.Err())
	}
}

func (s *Simulator) run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ticks := s.Step()
			if len(ticks) == 0 {
				continue
			}
			s.handlerMu.RLock()
			handlers := s.handlers
			s.handlerMu.RUnlock()
			for _, h := range handlers {
				h(ticks)
			}
		}
	}
}

// SubscribeTicks registers a handler for tick rounds
func (s *Simulator) SubscribeTicks(ctx context.Context, handler func([]entity.RawTick)) error {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	// copy on write so run can iterate without the lock
	handlers := make([]func([]entity.RawTick), len(s.handlers), len(s.handlers)+1)
	copy(handlers, s.handlers)
	s.handlers = append(handlers, handler)
	return nil
}

// Snapshot returns the latest quote of every symbol
func (s *Simulator) Snapshot(ctx context.Context) (entity.MarketSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := make(entity.MarketSnapshot, len(s.states))
	for _, st := range s.states {
		snap[st.config.Symbol] = entity.Quote{
			Price:     roundPrice(st.price),
			Bid:       roundPrice(st.bid),
			Ask:       roundPrice(st.ask),
			Volume24h: st.volume24h,
			High24h:   roundPrice(st.high24h),
			Low24h:    roundPrice(st.low24h),
			Change24h: (st.price - st.openPrice) / st.openPrice * 100,
			Timestamp: st.lastTS,
		}
	}
	return snap, nil
}

// Symbols returns the instrument catalogue
func (s *Simulator) Symbols(ctx context.Context) ([]entity.SymbolConfig, error) {
	out := make([]entity.SymbolConfig, len(s.cfg.Symbols))
	copy(out, s.cfg.Symbols)
	return out, nil
}
