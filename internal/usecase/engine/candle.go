package engine

import (
	"math"

	"github.com/zono819/tickpulse/internal/domain/entity"
)

// CandleSeries aggregates ticks into OHLC candles for one timeframe.
//
// Ticks are bucketed by timestamp but applied in arrival order: open is the
// first tick processed in a bucket and close the latest. Ticks are expected
// in timestamp order per symbol; an earlier-bucket tick arriving after a
// newer bucket opened starts a new candle for the old bucket.
type CandleSeries struct {
	current   entity.Candle
	hasActive bool
	completed *Ring[entity.Candle]
}

// NewCandleSeries creates a series keeping at most maxCompleted closed candles
func NewCandleSeries(maxCompleted int) *CandleSeries {
	return &CandleSeries{completed: NewRing[entity.Candle](maxCompleted)}
}

// Apply buckets one trade into the series. It reports whether a new candle was opened.
func (c *CandleSeries) Apply(bucketStart int64, price, volume float64) bool {
	if c.hasActive && c.current.Time == bucketStart {
		c.current.High = math.Max(c.current.High, price)
		c.current.Low = math.Min(c.current.Low, price)
		c.current.Close = price
		c.current.Volume += volume
		return false
	}

	if c.hasActive {
		c.completed.Push(c.current)
	}
	c.current = entity.Candle{
		Time:   bucketStart,
		Open:   price,
		High:   price,
		Low:    price,
		Close:  price,
		Volume: volume,
	}
	c.hasActive = true
	return true
}

// Current returns the in-progress candle
func (c *CandleSeries) Current() (entity.Candle, bool) {
	return c.current, c.hasActive
}

// Completed returns a copy of the closed candles, oldest first
func (c *CandleSeries) Completed() []entity.Candle {
	return c.completed.Values()
}

// Len returns the number of closed candles
func (c *CandleSeries) Len() int {
	return c.completed.Len()
}

// All returns closed candles followed by the in-progress candle
func (c *CandleSeries) All() []entity.Candle {
	out := make([]entity.Candle, 0, c.completed.Len()+1)
	out = c.completed.AppendTo(out)
	if c.hasActive {
		out = append(out, c.current)
	}
	return out
}

// Reset drops every candle
func (c *CandleSeries) Reset() {
	c.completed.Reset()
	c.current = entity.Candle{}
	c.hasActive = false
}
