package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zono819/tickpulse/internal/domain/entity"
	"github.com/zono819/tickpulse/internal/infrastructure/logger"
)

// flakyServer sends one tick per connection and then drops it
func flakyServer(t *testing.T, connections *atomic.Int32) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		n := connections.Add(1)
		msg, _ := Encode(MsgTick, entity.RawTick{Symbol: "BTC/USD", Price: float64(n), Timestamp: int64(n)})
		conn.WriteMessage(websocket.TextMessage, msg)
		time.Sleep(20 * time.Millisecond)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestFeed_Reconnects(t *testing.T) {
	var connections atomic.Int32
	ts := flakyServer(t, &connections)

	f := New(Config{
		WSURL:        "ws" + strings.TrimPrefix(ts.URL, "http"),
		ReconnectMin: 5 * time.Millisecond,
		ReconnectMax: 20 * time.Millisecond,
	}, logger.Nop())

	prices := make(chan float64, 16)
	require.NoError(t, f.SubscribeTicks(context.Background(), func(ticks []entity.RawTick) {
		for _, tk := range ticks {
			select {
			case prices <- tk.Price:
			default:
			}
		}
	}))

	require.NoError(t, f.Connect(context.Background()))
	assert.ErrorIs(t, f.Connect(context.Background()), ErrAlreadyConnected)

	seen := map[float64]bool{}
	timeout := time.After(3 * time.Second)
	for len(seen) < 3 {
		select {
		case p := <-prices:
			seen[p] = true
		case <-timeout:
			t.Fatalf("only saw %d connections", len(seen))
		}
	}
	assert.GreaterOrEqual(t, connections.Load(), int32(3))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.Disconnect(ctx))
	require.NoError(t, f.Disconnect(ctx))
}

func TestFeed_ConnectFails(t *testing.T) {
	f := New(Config{WSURL: "ws://127.0.0.1:1/market", Timeout: 200 * time.Millisecond}, logger.Nop())
	assert.Error(t, f.Connect(context.Background()))
}

func TestFeed_HandleMessage(t *testing.T) {
	f := New(Config{}, logger.Nop())

	var got [][]entity.RawTick
	f.SubscribeTicks(context.Background(), func(ticks []entity.RawTick) {
		got = append(got, ticks)
	})

	f.handleMessage([]byte(`garbage`))
	f.handleMessage([]byte(`{"type":"ticks","data":"nope"}`))
	f.handleMessage([]byte(`{"type":"ticks","data":[]}`))
	f.handleMessage([]byte(`{"type":"heartbeat"}`))
	assert.Empty(t, got)

	f.handleMessage([]byte(`{"type":"ticks","data":[{"symbol":"A","price":1,"timestamp":1},{"symbol":"B","price":2,"timestamp":1}]}`))
	f.handleMessage([]byte(`{"type":"tick","data":{"symbol":"C","price":3,"timestamp":2}}`))
	require.Len(t, got, 2)
	assert.Len(t, got[0], 2)
	assert.Equal(t, "C", got[1][0].Symbol)

	// pushed snapshot unblocks Snapshot; repeated pushes replace it
	f.handleMessage([]byte(`{"type":"snapshot","data":{"A":{"price":1,"volume24h":10}}}`))
	f.handleMessage([]byte(`{"type":"snapshot","data":{"A":{"price":2,"volume24h":10}}}`))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	snap, err := f.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2.0, snap["A"].Price)
}

func TestFeed_SnapshotWaitsForContext(t *testing.T) {
	f := New(Config{}, logger.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Snapshot(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	_, err = f.Symbols(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, nextBackoff(time.Second, 30*time.Second))
	assert.Equal(t, 30*time.Second, nextBackoff(20*time.Second, 30*time.Second))
}

func TestRESTClient_Error(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	_, err := NewRESTClient(ts.URL+"/", time.Second).GetSnapshot(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=503")
}
