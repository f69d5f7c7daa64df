package entity

import (
	"time"
)

// RawTick represents a single price update as delivered by a tick feed
type RawTick struct {
	Symbol    string  `json:"symbol" msgpack:"symbol"`
	Price     float64 `json:"price" msgpack:"price"`
	Bid       float64 `json:"bid" msgpack:"bid"`
	Ask       float64 `json:"ask" msgpack:"ask"`
	Volume    float64 `json:"volume" msgpack:"volume"`
	Timestamp int64   `json:"timestamp" msgpack:"timestamp"` // unix millis
}

// Time returns the tick timestamp as time.Time
func (t RawTick) Time() time.Time {
	return time.UnixMilli(t.Timestamp)
}

// Direction represents price movement relative to the previous trade
type Direction string

const (
	DirectionUp      Direction = "up"
	DirectionDown    Direction = "down"
	DirectionNeutral Direction = "neutral"
)

// DirectionOf compares price to prevPrice
func DirectionOf(price, prevPrice float64) Direction {
	switch {
	case price > prevPrice:
		return DirectionUp
	case price < prevPrice:
		return DirectionDown
	default:
		return DirectionNeutral
	}
}

// TickData is the per-symbol projection emitted by the aggregation engine
type TickData struct {
	Symbol    string    `json:"symbol" msgpack:"symbol"`
	Price     float64   `json:"price" msgpack:"price"`
	Bid       float64   `json:"bid" msgpack:"bid"`
	Ask       float64   `json:"ask" msgpack:"ask"`
	Spread    float64   `json:"spread" msgpack:"spread"`
	Volume24h float64   `json:"volume24h" msgpack:"volume24h"`
	Change1m  float64   `json:"change1m" msgpack:"change1m"`
	Change1h  float64   `json:"change1h" msgpack:"change1h"`
	Change24h float64   `json:"change24h" msgpack:"change24h"`
	High24h   float64   `json:"high24h" msgpack:"high24h"`
	Low24h    float64   `json:"low24h" msgpack:"low24h"`
	Timestamp int64     `json:"timestamp" msgpack:"timestamp"`
	Direction Direction `json:"direction" msgpack:"direction"`
}

// MidPrice returns mid price
func (t *TickData) MidPrice() float64 {
	return (t.Bid + t.Ask) / 2
}

// SpreadBps returns spread in basis points
func (t *TickData) SpreadBps() float64 {
	if t.MidPrice() == 0 {
		return 0
	}
	return (t.Spread / t.MidPrice()) * 10000
}

// Candle represents OHLCV candle data for one timeframe bucket
type Candle struct {
	Time   int64   `json:"time" msgpack:"time"` // bucket start, unix millis
	Open   float64 `json:"open" msgpack:"open"`
	High   float64 `json:"high" msgpack:"high"`
	Low    float64 `json:"low" msgpack:"low"`
	Close  float64 `json:"close" msgpack:"close"`
	Volume float64 `json:"volume" msgpack:"volume"`
}

// SnapshotEntry is the subset of a market snapshot used to hydrate engine state
type SnapshotEntry struct {
	Price     float64 `json:"price" msgpack:"price"`
	Volume24h float64 `json:"volume24h" msgpack:"volume24h"`
	Change24h float64 `json:"change24h" msgpack:"change24h"`
	High24h   float64 `json:"high24h" msgpack:"high24h"`
	Low24h    float64 `json:"low24h" msgpack:"low24h"`
}

// Quote is a full per-symbol snapshot as published by a tick feed
type Quote struct {
	Price     float64 `json:"price" msgpack:"price"`
	Bid       float64 `json:"bid" msgpack:"bid"`
	Ask       float64 `json:"ask" msgpack:"ask"`
	Volume24h float64 `json:"volume24h" msgpack:"volume24h"`
	High24h   float64 `json:"high24h" msgpack:"high24h"`
	Low24h    float64 `json:"low24h" msgpack:"low24h"`
	Change24h float64 `json:"change24h" msgpack:"change24h"`
	Timestamp int64   `json:"timestamp" msgpack:"timestamp"`
}

// MarketSnapshot maps symbol to its latest quote
type MarketSnapshot map[string]Quote

// Entries converts the snapshot into engine hydration records
func (s MarketSnapshot) Entries() map[string]SnapshotEntry {
	out := make(map[string]SnapshotEntry, len(s))
	for symbol, q := range s {
		out[symbol] = SnapshotEntry{
			Price:     q.Price,
			Volume24h: q.Volume24h,
			Change24h: q.Change24h,
			High24h:   q.High24h,
			Low24h:    q.Low24h,
		}
	}
	return out
}

// Category groups instruments by asset class
type Category string

const (
	CategoryCrypto    Category = "crypto"
	CategoryForex     Category = "forex"
	CategoryCommodity Category = "commodity"
)

// SymbolConfig describes a tradable instrument
type SymbolConfig struct {
	Symbol     string   `json:"symbol" yaml:"symbol"`
	Name       string   `json:"name" yaml:"name"`
	BasePrice  float64  `json:"basePrice" yaml:"base_price"`
	Volatility float64  `json:"volatility" yaml:"volatility"` // annualized, 0-1
	Icon       string   `json:"icon" yaml:"icon"`
	Category   Category `json:"category" yaml:"category"`
}
