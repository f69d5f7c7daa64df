package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zono819/tickpulse/internal/domain/protocol"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestCollector_Exposition(t *testing.T) {
	c := New("tickpulse", 10)

	c.TicksProcessed(5)
	c.TicksProcessed(0)
	c.CommandHandled(protocol.KindBatchTicks)
	c.CommandFailed(protocol.KindSetTimeframe)
	c.BatchEmitted(3, 50)
	c.ClientConnected()
	c.ClientConnected()
	c.ClientDisconnected()
	c.FeedRound()

	body := scrape(t, c)
	assert.Contains(t, body, "tickpulse_ticks_processed_total 5")
	assert.Contains(t, body, `tickpulse_commands_total{kind="BATCH_TICKS"} 1`)
	assert.Contains(t, body, `tickpulse_command_failures_total{kind="SET_TIMEFRAME"} 1`)
	assert.Contains(t, body, "tickpulse_batches_emitted_total 1")
	assert.Contains(t, body, "tickpulse_batch_symbols_count 1")
	assert.Contains(t, body, "tickpulse_tracked_symbols 50")
	assert.Contains(t, body, "tickpulse_stream_clients 1")
	assert.Contains(t, body, "tickpulse_feed_rounds_total 1")
}

func TestCollector_AverageBatchSize(t *testing.T) {
	c := New("", 3)
	assert.Equal(t, 0.0, c.AverageBatchSize())

	for _, n := range []int{10, 20, 30, 40} {
		c.BatchEmitted(n, 50)
	}
	// window of 3 keeps 20, 30, 40
	assert.InDelta(t, 30.0, c.AverageBatchSize(), 1e-9)
}

func TestCollector_IndependentRegistries(t *testing.T) {
	a := New("tickpulse", 0)
	b := New("tickpulse", 0)

	a.TicksProcessed(1)
	assert.Contains(t, scrape(t, a), "tickpulse_ticks_processed_total 1")
	assert.Contains(t, scrape(t, b), "tickpulse_ticks_processed_total 0")
}
