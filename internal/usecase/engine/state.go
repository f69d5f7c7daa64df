package engine

import (
	"sort"

	"github.com/zono819/tickpulse/internal/domain/entity"
)

// SymbolState is the mutable per-symbol record owned by the engine
type SymbolState struct {
	Symbol    string
	Price     float64
	PrevPrice float64
	Bid       float64
	Ask       float64
	Volume24h float64 // accumulates until the next snapshot; never decays
	High24h   float64
	Low24h    float64
	Change24h float64 // only set from snapshots
	Timestamp int64

	history1m *Ring[float64]
	history1h *Ring[float64]
	pushed    uint64 // ticks pushed into history1m since creation

	sparkline *Sparkline
	candles   *CandleSeries

	dirty bool
}

// Dirty reports whether the state changed since the last emitted batch
func (s *SymbolState) Dirty() bool {
	return s.dirty
}

// History1m returns the 1-minute rolling window, oldest first
func (s *SymbolState) History1m() []float64 {
	return s.history1m.Values()
}

// History1h returns the 1-hour rolling window, oldest first
func (s *SymbolState) History1h() []float64 {
	return s.history1h.Values()
}

// Candles returns the candle series of the active timeframe
func (s *SymbolState) Candles() *CandleSeries {
	return s.candles
}

// Sparkline returns the sparkline ring
func (s *SymbolState) Sparkline() *Sparkline {
	return s.sparkline
}

// Store creates and enumerates per-symbol state
type Store struct {
	cfg    Config
	states map[string]*SymbolState
}

// NewStore creates an empty store
func NewStore(cfg Config) *Store {
	return &Store{
		cfg:    cfg.withDefaults(),
		states: make(map[string]*SymbolState),
	}
}

// Get returns the state for symbol if it exists
func (st *Store) Get(symbol string) (*SymbolState, bool) {
	s, ok := st.states[symbol]
	return s, ok
}

// GetOrCreate returns the state for symbol, creating a zeroed one on first reference
func (st *Store) GetOrCreate(symbol string) *SymbolState {
	if s, ok := st.states[symbol]; ok {
		return s
	}
	s := &SymbolState{
		Symbol:    symbol,
		history1m: NewRing[float64](st.cfg.History1m),
		history1h: NewRing[float64](st.cfg.History1h),
		sparkline: NewSparkline(st.cfg.SparklineSize),
		candles:   NewCandleSeries(st.cfg.MaxCandles),
	}
	st.states[symbol] = s
	return s
}

// Len returns the number of tracked symbols
func (st *Store) Len() int {
	return len(st.states)
}

// Symbols returns tracked symbols in lexical order
func (st *Store) Symbols() []string {
	out := make([]string, 0, len(st.states))
	for sym := range st.states {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// ForEachDirty calls fn for every dirty state
func (st *Store) ForEachDirty(fn func(*SymbolState)) {
	for _, s := range st.states {
		if s.dirty {
			fn(s)
		}
	}
}

// Reinitialize overwrites quote fields from a snapshot and floods the sparkline
// with the snapshot price. Candles and rolling windows are left untouched.
func (st *Store) Reinitialize(symbol string, snap entity.SnapshotEntry) *SymbolState {
	s := st.GetOrCreate(symbol)
	s.Price = snap.Price
	s.PrevPrice = snap.Price
	s.Volume24h = snap.Volume24h
	s.High24h = snap.High24h
	s.Low24h = snap.Low24h
	s.Change24h = snap.Change24h
	s.sparkline.Fill(snap.Price)
	s.dirty = true
	return s
}

// InvalidateCandles clears completed and in-progress candles of every symbol
func (st *Store) InvalidateCandles() {
	for _, s := range st.states {
		s.candles.Reset()
		s.dirty = true
	}
}
