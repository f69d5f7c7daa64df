package entity

import (
	"fmt"
	"time"
)

// Timeframe is the candle bucket width selector
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe1D  Timeframe = "1D"
)

// Timeframes lists supported timeframes in ascending width
var Timeframes = []Timeframe{Timeframe1m, Timeframe5m, Timeframe15m, Timeframe1h, Timeframe1D}

var timeframeMillis = map[Timeframe]int64{
	Timeframe1m:  60_000,
	Timeframe5m:  300_000,
	Timeframe15m: 900_000,
	Timeframe1h:  3_600_000,
	Timeframe1D:  86_400_000,
}

// ParseTimeframe parses timeframe from string
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if !tf.Valid() {
		return "", fmt.Errorf("unknown timeframe %q", s)
	}
	return tf, nil
}

// Valid reports whether tf is one of the supported timeframes
func (tf Timeframe) Valid() bool {
	_, ok := timeframeMillis[tf]
	return ok
}

// BucketMillis returns the bucket width in milliseconds, 0 for unknown timeframes
func (tf Timeframe) BucketMillis() int64 {
	return timeframeMillis[tf]
}

// Duration returns the bucket width as time.Duration
func (tf Timeframe) Duration() time.Duration {
	return time.Duration(tf.BucketMillis()) * time.Millisecond
}

// BucketStart floors a unix-millis timestamp to the start of its bucket
func (tf Timeframe) BucketStart(ts int64) int64 {
	width := tf.BucketMillis()
	if width == 0 {
		return ts
	}
	// floor toward -inf so pre-epoch timestamps bucket consistently
	q := ts / width
	if ts%width != 0 && ts < 0 {
		q--
	}
	return q * width
}

func (tf Timeframe) String() string {
	return string(tf)
}
