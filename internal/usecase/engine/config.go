package engine

import (
	"fmt"
	"time"

	"github.com/zono819/tickpulse/internal/domain/entity"
)

// Config holds aggregation engine settings
type Config struct {
	// Timeframe is the candle timeframe active at startup
	Timeframe entity.Timeframe

	// History1m and History1h bound the rolling price windows.
	// 600 entries ≈ 1 minute at 100ms tick spacing.
	History1m int
	History1h int

	SparklineSize  int
	SparklineEvery int // write one sparkline point per N ticks
	MaxCandles     int

	// FlushInterval is the emitter cadence; Throttle is the minimum gap
	// between two emitted batches.
	FlushInterval time.Duration
	Throttle      time.Duration

	// DropStaleTicks rejects a tick whose bucket precedes the current
	// candle's bucket instead of reopening that bucket.
	DropStaleTicks bool
}

// DefaultConfig returns default engine configuration
func DefaultConfig() Config {
	return Config{
		Timeframe:      entity.Timeframe1m,
		History1m:      600,
		History1h:      36_000,
		SparklineSize:  60,
		SparklineEvery: 10,
		MaxCandles:     200,
		FlushInterval:  16 * time.Millisecond,
		Throttle:       16 * time.Millisecond,
	}
}

// withDefaults fills zero fields from DefaultConfig
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Timeframe == "" {
		c.Timeframe = d.Timeframe
	}
	if c.History1m <= 0 {
		c.History1m = d.History1m
	}
	if c.History1h <= 0 {
		c.History1h = d.History1h
	}
	if c.SparklineSize <= 0 {
		c.SparklineSize = d.SparklineSize
	}
	if c.SparklineEvery <= 0 {
		c.SparklineEvery = d.SparklineEvery
	}
	if c.MaxCandles <= 0 {
		c.MaxCandles = d.MaxCandles
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = d.FlushInterval
	}
	if c.Throttle < 0 {
		c.Throttle = 0
	}
	return c
}

// Validate validates configuration
func (c Config) Validate() error {
	if !c.Timeframe.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTimeframe, c.Timeframe)
	}
	if c.History1h < c.History1m {
		return fmt.Errorf("history_1h (%d) must not be shorter than history_1m (%d)", c.History1h, c.History1m)
	}
	return nil
}
