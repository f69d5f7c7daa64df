package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zono819/tickpulse/internal/domain/entity"
	"github.com/zono819/tickpulse/internal/domain/protocol"
	"github.com/zono819/tickpulse/internal/infrastructure/logger"
	"github.com/zono819/tickpulse/internal/usecase/engine"
)

// mockFeed is a hand-driven TickFeed
type mockFeed struct {
	mu           sync.Mutex
	handler      func([]entity.RawTick)
	snapshot     entity.MarketSnapshot
	snapshotErr  error
	connectErr   error
	connected    bool
	disconnected bool
}

func (m *mockFeed) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connectErr != nil {
		return m.connectErr
	}
	m.connected = true
	return nil
}

func (m *mockFeed) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnected = true
	return nil
}

func (m *mockFeed) Snapshot(ctx context.Context) (entity.MarketSnapshot, error) {
	if m.snapshotErr != nil {
		return nil, m.snapshotErr
	}
	return m.snapshot, nil
}

func (m *mockFeed) Symbols(ctx context.Context) ([]entity.SymbolConfig, error) {
	return nil, nil
}

func (m *mockFeed) SubscribeTicks(ctx context.Context, handler func([]entity.RawTick)) error {
	m.mu.Lock()
	m.handler = handler
	m.mu.Unlock()
	return nil
}

func (m *mockFeed) push(ticks ...entity.RawTick) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	h(ticks)
}

func (m *mockFeed) isConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// mockPublisher records published events
type mockPublisher struct {
	mu      sync.Mutex
	events  []protocol.Event
	handler func(protocol.Command)
}

func (m *mockPublisher) Publish(ctx context.Context, ev protocol.Event) error {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
	return nil
}

func (m *mockPublisher) OnCommand(handler func(protocol.Command)) {
	m.mu.Lock()
	m.handler = handler
	m.mu.Unlock()
}

func (m *mockPublisher) Close() error { return nil }

func (m *mockPublisher) command(cmd protocol.Command) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	h(cmd)
}

func (m *mockPublisher) snapshot() []protocol.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]protocol.Event(nil), m.events...)
}

// latest returns the most recent tick data per symbol across all batches
func (m *mockPublisher) latest() map[string]entity.TickData {
	out := make(map[string]entity.TickData)
	for _, ev := range m.snapshot() {
		if b, ok := ev.(*protocol.BatchUpdate); ok {
			for sym, t := range b.Ticks {
				out[sym] = t
			}
		}
	}
	return out
}

func (m *mockPublisher) errors() []string {
	var out []string
	for _, ev := range m.snapshot() {
		if e, ok := ev.(protocol.Error); ok {
			out = append(out, e.Message)
		}
	}
	return out
}

type countingStats struct {
	mu     sync.Mutex
	rounds int
}

func (s *countingStats) FeedRound()                { s.mu.Lock(); s.rounds++; s.mu.Unlock() }
func (s *countingStats) AverageBatchSize() float64 { return 1.5 }
func (s *countingStats) count() int                { s.mu.Lock(); defer s.mu.Unlock(); return s.rounds }

func newPipeline(t *testing.T, feed *mockFeed, pub *mockPublisher, flush time.Duration, opts ...PipelineOption) *PipelineUseCase {
	t.Helper()
	eng, err := engine.New(engine.Config{FlushInterval: flush}, engine.WithLogger(logger.Nop()))
	require.NoError(t, err)
	opts = append([]PipelineOption{WithPipelineLogger(logger.Nop())}, opts...)
	return NewPipelineUseCase(feed, eng, pub, PipelineConfig{CommandBuffer: 16, StatsInterval: 10 * time.Millisecond}, opts...)
}

func start(t *testing.T, p *PipelineUseCase) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, done
}

func wait(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("pipeline did not stop")
		return nil
	}
}

func TestPipelineUseCase_StreamsTicks(t *testing.T) {
	feed := &mockFeed{snapshot: entity.MarketSnapshot{
		"ETH/USD": {Price: 3000, Volume24h: 5e9, Change24h: 1.5, High24h: 3100, Low24h: 2900},
	}}
	pub := &mockPublisher{}
	stats := &countingStats{}
	p := newPipeline(t, feed, pub, time.Millisecond, WithStats(stats))

	cancel, done := start(t, p)
	require.Eventually(t, feed.isConnected, 2*time.Second, 5*time.Millisecond)

	// hydrated symbols are emitted without ticking
	require.Eventually(t, func() bool {
		_, ok := pub.latest()["ETH/USD"]
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1.5, pub.latest()["ETH/USD"].Change24h)

	feed.push(
		entity.RawTick{Symbol: "BTC/USD", Price: 100, Bid: 99, Ask: 101, Volume: 1, Timestamp: 1_000},
		entity.RawTick{Symbol: "BTC/USD", Price: 102, Bid: 101, Ask: 103, Volume: 1, Timestamp: 2_000},
	)
	require.Eventually(t, func() bool {
		return pub.latest()["BTC/USD"].Price == 102
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, entity.DirectionUp, pub.latest()["BTC/USD"].Direction)
	assert.Equal(t, 1, stats.count())

	cancel()
	require.NoError(t, wait(t, done))
	assert.True(t, feed.disconnected)

	events := pub.snapshot()
	require.NotEmpty(t, events)
	assert.Equal(t, protocol.Ready{}, events[0])

	assert.ErrorIs(t, p.Submit(protocol.Subscribe{Symbols: []string{"X"}}), ErrPipelineStopped)
	feed.push(entity.RawTick{Symbol: "BTC/USD", Price: 1, Timestamp: 3_000})
	assert.Equal(t, 1, stats.count())
}

func TestPipelineUseCase_FinalFlush(t *testing.T) {
	feed := &mockFeed{snapshotErr: errors.New("no snapshot")}
	pub := &mockPublisher{}
	p := newPipeline(t, feed, pub, time.Hour)

	cancel, done := start(t, p)
	require.Eventually(t, feed.isConnected, 2*time.Second, 5*time.Millisecond)

	feed.push(entity.RawTick{Symbol: "SOL/USD", Price: 150, Bid: 149.9, Ask: 150.1, Timestamp: 1_000})
	cancel()
	require.NoError(t, wait(t, done))

	assert.Equal(t, 150.0, pub.latest()["SOL/USD"].Price)
}

func TestPipelineUseCase_ConsumerCommands(t *testing.T) {
	feed := &mockFeed{}
	pub := &mockPublisher{}
	p := newPipeline(t, feed, pub, time.Millisecond)

	_, done := start(t, p)
	require.Eventually(t, feed.isConnected, 2*time.Second, 5*time.Millisecond)

	pub.command(protocol.SetTimeframe{Timeframe: "2m"})
	require.Eventually(t, func() bool { return len(pub.errors()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Contains(t, pub.errors()[0], "unknown timeframe")

	pub.command(protocol.SetTimeframe{Timeframe: entity.Timeframe5m})
	feed.push(entity.RawTick{Symbol: "BTC/USD", Price: 100, Timestamp: 420_000})
	require.Eventually(t, func() bool {
		for _, ev := range pub.snapshot() {
			if b, ok := ev.(*protocol.BatchUpdate); ok && len(b.Candles["BTC/USD"]) == 1 {
				return b.Candles["BTC/USD"][0].Time == 300_000
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
	assert.Len(t, pub.errors(), 1)

	select {
	case err := <-done:
		t.Fatalf("pipeline exited early: %v", err)
	default:
	}
}

func TestPipelineUseCase_ConnectFailure(t *testing.T) {
	feed := &mockFeed{connectErr: errors.New("refused")}
	pub := &mockPublisher{}
	p := newPipeline(t, feed, pub, time.Millisecond)

	_, done := start(t, p)
	err := wait(t, done)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")

	assert.Error(t, p.Run(context.Background()))
}

func TestPipelineUseCase_RunTwice(t *testing.T) {
	feed := &mockFeed{}
	p := newPipeline(t, feed, &mockPublisher{}, time.Millisecond)

	cancel, done := start(t, p)
	require.Eventually(t, feed.isConnected, 2*time.Second, 5*time.Millisecond)
	assert.Error(t, p.Run(context.Background()))

	cancel()
	require.NoError(t, wait(t, done))
}
