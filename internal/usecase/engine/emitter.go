package engine

import (
	"time"

	"github.com/zono819/tickpulse/internal/domain/protocol"
)

// Emitter drains dirty symbol state into coalesced batches
type Emitter struct {
	throttle time.Duration
	lastEmit time.Time
}

// NewEmitter creates an emitter that emits at most once per throttle interval
func NewEmitter(throttle time.Duration) *Emitter {
	return &Emitter{throttle: throttle}
}

// Emit returns a batch of every dirty symbol, or nil when the throttle interval
// has not elapsed since the previous emission or nothing is dirty.
func (e *Emitter) Emit(store *Store, now time.Time) *protocol.BatchUpdate {
	if !e.lastEmit.IsZero() && now.Sub(e.lastEmit) < e.throttle {
		return nil
	}
	e.lastEmit = now
	return e.drain(store)
}

// Flush emits regardless of the throttle interval
func (e *Emitter) Flush(store *Store, now time.Time) *protocol.BatchUpdate {
	e.lastEmit = now
	return e.drain(store)
}

// LastEmit returns the time of the last emission attempt past the throttle
func (e *Emitter) LastEmit() time.Time {
	return e.lastEmit
}

func (e *Emitter) drain(store *Store) *protocol.BatchUpdate {
	var batch *protocol.BatchUpdate
	store.ForEachDirty(func(s *SymbolState) {
		if batch == nil {
			batch = protocol.NewBatchUpdate(store.Len())
		}
		batch.Ticks[s.Symbol] = Project(s)
		candles := s.candles.All()
		for i := range candles {
			candles[i] = projectCandle(candles[i])
		}
		batch.Candles[s.Symbol] = candles
		batch.Sparklines[s.Symbol] = s.sparkline.Values()
		s.dirty = false
	})
	return batch
}
