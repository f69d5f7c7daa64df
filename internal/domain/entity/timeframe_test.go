package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeframe(t *testing.T) {
	tests := []struct {
		in      string
		want    Timeframe
		width   int64
		wantErr bool
	}{
		{in: "1m", want: Timeframe1m, width: 60_000},
		{in: "5m", want: Timeframe5m, width: 300_000},
		{in: "15m", want: Timeframe15m, width: 900_000},
		{in: "1h", want: Timeframe1h, width: 3_600_000},
		{in: "1D", want: Timeframe1D, width: 86_400_000},
		{in: "1d", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeframe(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.width, got.BucketMillis())
			assert.Equal(t, time.Duration(tt.width)*time.Millisecond, got.Duration())
		})
	}
}

func TestTimeframe_BucketStart(t *testing.T) {
	assert.Equal(t, int64(0), Timeframe1m.BucketStart(0))
	assert.Equal(t, int64(0), Timeframe1m.BucketStart(59_999))
	assert.Equal(t, int64(60_000), Timeframe1m.BucketStart(60_000))
	assert.Equal(t, int64(60_000), Timeframe1m.BucketStart(70_000))
	assert.Equal(t, int64(-60_000), Timeframe1m.BucketStart(-1))
	assert.Equal(t, int64(86_400_000), Timeframe1D.BucketStart(90_000_000))

	// unknown timeframes leave the timestamp untouched
	assert.Equal(t, int64(12345), Timeframe("3m").BucketStart(12345))
}

func TestDirectionOf(t *testing.T) {
	assert.Equal(t, DirectionUp, DirectionOf(101, 100))
	assert.Equal(t, DirectionDown, DirectionOf(99, 100))
	assert.Equal(t, DirectionNeutral, DirectionOf(100, 100))
}

func TestMarketSnapshot_Entries(t *testing.T) {
	snap := MarketSnapshot{
		"BTC/USD": {Price: 50000, Bid: 49990, Ask: 50010, Volume24h: 1000, High24h: 51000, Low24h: 49000, Change24h: 2.5, Timestamp: 1},
	}

	entries := snap.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, SnapshotEntry{Price: 50000, Volume24h: 1000, Change24h: 2.5, High24h: 51000, Low24h: 49000}, entries["BTC/USD"])
}

func TestTickData_SpreadBps(t *testing.T) {
	td := &TickData{Bid: 99.5, Ask: 100.5, Spread: 1}
	assert.InDelta(t, 100.0, td.SpreadBps(), 1e-9)

	empty := &TickData{}
	assert.Equal(t, 0.0, empty.SpreadBps())
}
