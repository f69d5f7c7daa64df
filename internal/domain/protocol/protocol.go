// Package protocol defines the tagged messages exchanged with the aggregation engine.
//
// Every message kind is its own Go type. Command and Event are sealed
// interfaces, so a type switch over them is the exhaustive dispatch.
package protocol

import (
	"github.com/zono819/tickpulse/internal/domain/entity"
)

// Kind is the wire tag of a message
type Kind string

const (
	KindTick         Kind = "TICK"
	KindBatchTicks   Kind = "BATCH_TICKS"
	KindSetTimeframe Kind = "SET_TIMEFRAME"
	KindSubscribe    Kind = "SUBSCRIBE"
	KindUnsubscribe  Kind = "UNSUBSCRIBE"
	KindInitSnapshot Kind = "INIT_SNAPSHOT"

	KindBatchUpdate Kind = "BATCH_UPDATE"
	KindReady       Kind = "READY"
	KindError       Kind = "ERROR"
)

// Command is an inbound message handled by the engine
type Command interface {
	Kind() Kind
	isCommand()
}

// Event is an outbound message produced by the engine
type Event interface {
	Kind() Kind
	isEvent()
}

// Tick applies one raw tick
type Tick struct {
	Tick entity.RawTick
}

// BatchTicks applies ticks in slice order
type BatchTicks struct {
	Ticks []entity.RawTick
}

// SetTimeframe switches the active candle timeframe
type SetTimeframe struct {
	Timeframe entity.Timeframe
}

// Subscribe adds symbols to the interest set
type Subscribe struct {
	Symbols []string
}

// Unsubscribe removes symbols from the interest set
type Unsubscribe struct {
	Symbols []string
}

// InitSnapshot hydrates per-symbol state from an external snapshot
type InitSnapshot struct {
	Snapshot map[string]entity.SnapshotEntry
}

func (Tick) Kind() Kind         { return KindTick }
func (BatchTicks) Kind() Kind   { return KindBatchTicks }
func (SetTimeframe) Kind() Kind { return KindSetTimeframe }
func (Subscribe) Kind() Kind    { return KindSubscribe }
func (Unsubscribe) Kind() Kind  { return KindUnsubscribe }
func (InitSnapshot) Kind() Kind { return KindInitSnapshot }

func (Tick) isCommand()         {}
func (BatchTicks) isCommand()   {}
func (SetTimeframe) isCommand() {}
func (Subscribe) isCommand()    {}
func (Unsubscribe) isCommand()  {}
func (InitSnapshot) isCommand() {}

// Ready is sent once when the engine starts accepting commands
type Ready struct{}

// BatchUpdate carries every symbol that changed since the previous batch
type BatchUpdate struct {
	Ticks      map[string]entity.TickData `json:"ticks" msgpack:"ticks"`
	Candles    map[string][]entity.Candle `json:"candles" msgpack:"candles"`
	Sparklines map[string][]float64       `json:"sparklines" msgpack:"sparklines"`
}

// NewBatchUpdate returns an empty batch with allocated maps
func NewBatchUpdate(size int) *BatchUpdate {
	return &BatchUpdate{
		Ticks:      make(map[string]entity.TickData, size),
		Candles:    make(map[string][]entity.Candle, size),
		Sparklines: make(map[string][]float64, size),
	}
}

// Len returns the number of symbols in the batch
func (b *BatchUpdate) Len() int {
	return len(b.Ticks)
}

// Error reports a processing fault
type Error struct {
	Message string
}

func (Ready) Kind() Kind        { return KindReady }
func (*BatchUpdate) Kind() Kind { return KindBatchUpdate }
func (Error) Kind() Kind        { return KindError }

func (Ready) isEvent()        {}
func (*BatchUpdate) isEvent() {}
func (Error) isEvent()        {}

// Error implements error so faults can be returned and emitted alike
func (e Error) Error() string {
	return e.Message
}
