package engine

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zono819/tickpulse/internal/domain/entity"
)

func newTestState(t *testing.T) (*Store, *Processor) {
	t.Helper()
	cfg := DefaultConfig()
	return NewStore(cfg), NewProcessor(cfg)
}

func TestProcessor_ExtremaTrackSeenPrices(t *testing.T) {
	store, p := newTestState(t)
	s := store.GetOrCreate("ETH/USD")

	rng := rand.New(rand.NewSource(7))
	maxSeen, minSeen := math.Inf(-1), math.Inf(1)
	for i := 0; i < 2000; i++ {
		price := 3000 + rng.NormFloat64()*50
		maxSeen = math.Max(maxSeen, price)
		minSeen = math.Min(minSeen, price)

		require.NoError(t, p.Apply(s, entity.RawTick{Symbol: "ETH/USD", Price: price, Timestamp: int64(i * 100)}, entity.Timeframe1m))
		require.GreaterOrEqual(t, s.High24h, s.Price)
		require.LessOrEqual(t, s.Low24h, s.Price)
	}

	assert.Equal(t, maxSeen, s.High24h)
	assert.Equal(t, minSeen, s.Low24h)
}

func TestProcessor_QuoteFields(t *testing.T) {
	store, p := newTestState(t)
	s := store.GetOrCreate("BTC/USD")

	require.NoError(t, p.Apply(s, entity.RawTick{Symbol: "BTC/USD", Price: 100, Bid: 99, Ask: 101, Volume: 2, Timestamp: 10}, entity.Timeframe1m))
	require.NoError(t, p.Apply(s, entity.RawTick{Symbol: "BTC/USD", Price: 102, Bid: 101, Ask: 103, Volume: 3, Timestamp: 20}, entity.Timeframe1m))

	assert.Equal(t, 102.0, s.Price)
	assert.Equal(t, 100.0, s.PrevPrice)
	assert.Equal(t, 101.0, s.Bid)
	assert.Equal(t, 103.0, s.Ask)
	assert.Equal(t, 5.0, s.Volume24h)
	assert.Equal(t, int64(20), s.Timestamp)
	assert.True(t, s.Dirty())
	assert.Equal(t, []float64{100, 102}, s.History1m())
	assert.Equal(t, []float64{100, 102}, s.History1h())
}

func TestProcessor_RollingWindowBounds(t *testing.T) {
	store, p := newTestState(t)
	s := store.GetOrCreate("SOL/USD")

	for i := 0; i < 40_000; i++ {
		require.NoError(t, p.Apply(s, entity.RawTick{Symbol: "SOL/USD", Price: float64(i + 1), Timestamp: int64(i)}, entity.Timeframe1m))
	}

	assert.Equal(t, 600, s.history1m.Len())
	assert.Equal(t, 36_000, s.history1h.Len())
	oldest1m, _ := s.history1m.Oldest()
	oldest1h, _ := s.history1h.Oldest()
	assert.Equal(t, float64(40_000-600+1), oldest1m)
	assert.Equal(t, float64(40_000-36_000+1), oldest1h)
}

func TestProcessor_SparklineDownsampling(t *testing.T) {
	store, p := newTestState(t)
	s := store.GetOrCreate("XRP/USD")

	for i := 1; i <= 25; i++ {
		require.NoError(t, p.Apply(s, entity.RawTick{Symbol: "XRP/USD", Price: float64(i), Timestamp: int64(i)}, entity.Timeframe1m))
	}
	assert.Equal(t, []float64{10, 20}, s.sparkline.Values())

	for i := 26; i <= 1000; i++ {
		require.NoError(t, p.Apply(s, entity.RawTick{Symbol: "XRP/USD", Price: float64(i), Timestamp: int64(i)}, entity.Timeframe1m))
	}

	vals := s.sparkline.Values()
	require.Len(t, vals, 60)
	for i, v := range vals {
		// the last 60 samples are every 10th tick ending at tick 1000
		assert.Equal(t, float64(410+i*10), v)
	}
}

func TestProcessor_StaleTickGuard(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DropStaleTicks = true
	store, p := NewStore(cfg), NewProcessor(cfg)
	s := store.GetOrCreate("BTC/USD")

	require.NoError(t, p.Apply(s, entity.RawTick{Symbol: "BTC/USD", Price: 100, Timestamp: 70_000}, entity.Timeframe1m))
	err := p.Apply(s, entity.RawTick{Symbol: "BTC/USD", Price: 90, Timestamp: 10_000}, entity.Timeframe1m)

	assert.ErrorIs(t, err, ErrStaleTick)
	assert.Equal(t, 100.0, s.Price, "rejected tick leaves state untouched")
	assert.Equal(t, 0, s.candles.Len())
}

func TestProcessor_NaNPropagates(t *testing.T) {
	store, p := newTestState(t)
	s := store.GetOrCreate("BAD")

	require.NoError(t, p.Apply(s, entity.RawTick{Symbol: "BAD", Price: math.NaN(), Timestamp: 1}, entity.Timeframe1m))
	assert.True(t, math.IsNaN(s.Price))
	assert.True(t, s.Dirty())
}

func TestProcessor_NonFiniteRecovers(t *testing.T) {
	store, p := newTestState(t)
	s := store.GetOrCreate("BAD")

	require.NoError(t, p.Apply(s, entity.RawTick{Symbol: "BAD", Price: math.NaN(), Timestamp: 1}, entity.Timeframe1m))
	require.NoError(t, p.Apply(s, entity.RawTick{Symbol: "BAD", Price: 50, Timestamp: 2}, entity.Timeframe1m))
	require.NoError(t, p.Apply(s, entity.RawTick{Symbol: "BAD", Price: 55, Timestamp: 3}, entity.Timeframe1m))

	assert.Equal(t, 55.0, s.High24h)
	assert.Equal(t, 50.0, s.Low24h)

	// NaN is still the oldest 1m entry
	td := Project(s)
	assert.Equal(t, 0.0, td.Change1m)
	assert.Equal(t, 55.0, td.Price)
}

func TestProject_NonFinite(t *testing.T) {
	store, p := newTestState(t)
	s := store.GetOrCreate("X")

	require.NoError(t, p.Apply(s, entity.RawTick{Symbol: "X", Price: 1, Bid: -1.7e308, Ask: 1.7e308, Volume: math.Inf(1), Timestamp: 1}, entity.Timeframe1m))

	td := Project(s)
	assert.Equal(t, 0.0, td.Spread)
	assert.Equal(t, 0.0, td.Volume24h)
	assert.Equal(t, 1.0, td.Price)

	c, ok := s.candles.Current()
	require.True(t, ok)
	assert.True(t, math.IsInf(c.Volume, 1))
	assert.Equal(t, 0.0, projectCandle(c).Volume)
	assert.Equal(t, 1.0, projectCandle(c).Close)
}

func TestPercentChange(t *testing.T) {
	assert.Equal(t, 0.0, percentChange(0, 10))
	assert.InDelta(t, 5.0, percentChange(100, 105), 1e-9)
	assert.InDelta(t, -50.0, percentChange(10, 5), 1e-9)
}

func TestProject(t *testing.T) {
	store, p := newTestState(t)
	s := store.GetOrCreate("BTC/USD")

	require.NoError(t, p.Apply(s, entity.RawTick{Symbol: "BTC/USD", Price: 100, Bid: 99, Ask: 101, Timestamp: 1}, entity.Timeframe1m))
	require.NoError(t, p.Apply(s, entity.RawTick{Symbol: "BTC/USD", Price: 110, Bid: 109, Ask: 111.5, Timestamp: 2}, entity.Timeframe1m))

	td := Project(s)
	assert.Equal(t, "BTC/USD", td.Symbol)
	assert.Equal(t, 2.5, td.Spread)
	assert.InDelta(t, 10.0, td.Change1m, 1e-9)
	assert.InDelta(t, 10.0, td.Change1h, 1e-9)
	assert.Equal(t, entity.DirectionUp, td.Direction)
	assert.Equal(t, 110.0, td.High24h)
	assert.Equal(t, 100.0, td.Low24h)
}

func TestProject_EmptyWindows(t *testing.T) {
	store, _ := newTestState(t)
	s := store.Reinitialize("X", entity.SnapshotEntry{Price: 10})

	td := Project(s)
	assert.Equal(t, 0.0, td.Change1m)
	assert.Equal(t, 0.0, td.Change1h)
	assert.Equal(t, entity.DirectionNeutral, td.Direction)
}
