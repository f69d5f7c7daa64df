package engine

import (
	"math"

	"github.com/zono819/tickpulse/internal/domain/entity"
)

// Processor applies raw ticks to symbol state.
// Input is not validated: NaN prices propagate into derived state. Project
// reports non-finite values as 0, and a non-finite extreme is reseeded by
// the next tick.
type Processor struct {
	sparklineEvery uint64
	dropStale      bool
}

// NewProcessor creates a tick processor
func NewProcessor(cfg Config) *Processor {
	cfg = cfg.withDefaults()
	return &Processor{
		sparklineEvery: uint64(cfg.SparklineEvery),
		dropStale:      cfg.DropStaleTicks,
	}
}

// Apply updates s with tick under timeframe tf
func (p *Processor) Apply(s *SymbolState, tick entity.RawTick, tf entity.Timeframe) error {
	bucket := tf.BucketStart(tick.Timestamp)
	if p.dropStale {
		if cur, ok := s.candles.Current(); ok && bucket < cur.Time {
			return ErrStaleTick
		}
	}

	// first tick seeds prevPrice with its own price so direction starts neutral
	if s.Price != 0 {
		s.PrevPrice = s.Price
	} else {
		s.PrevPrice = tick.Price
	}

	s.Price = tick.Price
	s.Bid = tick.Bid
	s.Ask = tick.Ask
	s.Volume24h += tick.Volume
	if s.High24h == 0 || !isFinite(s.High24h) {
		s.High24h = tick.Price
	} else {
		s.High24h = math.Max(s.High24h, tick.Price)
	}
	if s.Low24h == 0 || !isFinite(s.Low24h) {
		s.Low24h = tick.Price
	} else {
		s.Low24h = math.Min(s.Low24h, tick.Price)
	}
	s.Timestamp = tick.Timestamp

	s.history1m.Push(tick.Price)
	s.history1h.Push(tick.Price)
	s.pushed++
	if s.pushed%p.sparklineEvery == 0 {
		s.sparkline.Write(tick.Price)
	}

	s.candles.Apply(bucket, tick.Price, tick.Volume)
	s.dirty = true
	return nil
}

// Project builds the outbound TickData for s. Non-finite numbers are
// reported as 0 so every projection survives JSON encoding.
func Project(s *SymbolState) entity.TickData {
	return entity.TickData{
		Symbol:    s.Symbol,
		Price:     finite(s.Price),
		Bid:       finite(s.Bid),
		Ask:       finite(s.Ask),
		Spread:    finite(s.Ask - s.Bid),
		Volume24h: finite(s.Volume24h),
		Change1m:  finite(windowChange(s.history1m, s.Price)),
		Change1h:  finite(windowChange(s.history1h, s.Price)),
		Change24h: finite(s.Change24h),
		High24h:   finite(s.High24h),
		Low24h:    finite(s.Low24h),
		Timestamp: s.Timestamp,
		Direction: entity.DirectionOf(s.Price, s.PrevPrice),
	}
}

// windowChange returns the percentage change from the oldest window entry to price
func windowChange(w *Ring[float64], price float64) float64 {
	ref, ok := w.Oldest()
	if !ok {
		return 0
	}
	return percentChange(ref, price)
}

// percentChange returns (to-from)/from in percent, 0 when from is zero
func percentChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}

// projectCandle is Project for candles
func projectCandle(c entity.Candle) entity.Candle {
	c.Open = finite(c.Open)
	c.High = finite(c.High)
	c.Low = finite(c.Low)
	c.Close = finite(c.Close)
	c.Volume = finite(c.Volume)
	return c
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// finite maps NaN and ±Inf to 0
func finite(v float64) float64 {
	if isFinite(v) {
		return v
	}
	return 0
}
