// Package feed implements a websocket tick feed client for the feed server.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zono819/tickpulse/internal/adapter/gateway"
	"github.com/zono819/tickpulse/internal/domain/entity"
	"github.com/zono819/tickpulse/internal/infrastructure/logger"
)

// Ensure Feed implements TickFeed
var _ gateway.TickFeed = (*Feed)(nil)

// ErrAlreadyConnected is returned by Connect on a running feed
var ErrAlreadyConnected = errors.New("feed already connected")

// Config contains feed connection configuration
type Config struct {
	WSURL   string
	BaseURL string // REST API root; snapshot and symbols fall back to the websocket when empty

	ReconnectMin time.Duration
	ReconnectMax time.Duration
	Timeout      time.Duration

	// Symbols to subscribe on every (re)connect; empty receives everything
	Symbols []string
}

// Feed is a reconnecting websocket TickFeed
type Feed struct {
	config Config
	rest   *RESTClient
	log    *logger.Logger
	dialer *websocket.Dialer

	// WebSocket
	wsMu   sync.Mutex
	wsConn *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}

	// Handlers
	handlerMu sync.RWMutex
	handlers  []func([]entity.RawTick)

	// Latest snapshot and catalogue pushed by the server
	stateMu       sync.RWMutex
	snapshot      entity.MarketSnapshot
	symbols       []entity.SymbolConfig
	snapshotReady chan struct{}
	symbolsReady  chan struct{}
}

// New creates a new feed client
func New(config Config, log *logger.Logger) *Feed {
	if log == nil {
		log = logger.Default()
	}
	if config.ReconnectMin <= 0 {
		config.ReconnectMin = 500 * time.Millisecond
	}
	if config.ReconnectMax < config.ReconnectMin {
		config.ReconnectMax = 30 * time.Second
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	f := &Feed{
		config:        config,
		log:           log.WithField("component", "feed"),
		dialer:        &websocket.Dialer{HandshakeTimeout: config.Timeout},
		snapshotReady: make(chan struct{}),
		symbolsReady:  make(chan struct{}),
	}
	if config.BaseURL != "" {
		f.rest = NewRESTClient(config.BaseURL, config.Timeout)
	}
	return f
}

// Connect dials the feed server and starts the read loop.
// The loop reconnects with exponential backoff until Disconnect.
func (f *Feed) Connect(ctx context.Context) error {
	f.log.Info("Connecting to feed %s", f.config.WSURL)

	f.wsMu.Lock()
	if f.cancel != nil {
		f.wsMu.Unlock()
		return ErrAlreadyConnected
	}
	f.wsMu.Unlock()

	conn, err := f.dial(ctx)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	f.wsMu.Lock()
	f.wsConn = conn
	f.cancel = cancel
	f.done = done
	f.wsMu.Unlock()

	go func() {
		defer close(done)
		f.run(runCtx, conn)
	}()

	f.log.Info("Connected to feed")
	return nil
}

// Disconnect closes the connection and stops reconnecting
func (f *Feed) Disconnect(ctx context.Context) error {
	f.log.Info("Disconnecting from feed")

	// cancel under the lock so a concurrent reconnect cannot install a new conn
	f.wsMu.Lock()
	cancel, done, conn := f.cancel, f.done, f.wsConn
	f.cancel, f.done, f.wsConn = nil, nil, nil
	if cancel != nil {
		cancel()
	}
	f.wsMu.Unlock()

	if cancel == nil {
		return nil
	}
	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("feed stop: %w", ctx.Err())
	}
}

// SubscribeTicks registers a handler for tick rounds
func (f *Feed) SubscribeTicks(ctx context.Context, handler func([]entity.RawTick)) error {
	f.handlerMu.Lock()
	f.handlers = append(f.handlers, handler)
	f.handlerMu.Unlock()
	return nil
}

// Snapshot retrieves the latest quote of every symbol, over REST when
// configured, otherwise from the snapshot the server pushes on connect.
func (f *Feed) Snapshot(ctx context.Context) (entity.MarketSnapshot, error) {
	if f.rest != nil {
		return f.rest.GetSnapshot(ctx)
	}
	select {
	case <-f.snapshotReady:
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for snapshot: %w", ctx.Err())
	}
	f.stateMu.RLock()
	defer f.stateMu.RUnlock()
	out := make(entity.MarketSnapshot, len(f.snapshot))
	for k, v := range f.snapshot {
		out[k] = v
	}
	return out, nil
}

// Symbols retrieves the instrument catalogue
func (f *Feed) Symbols(ctx context.Context) ([]entity.SymbolConfig, error) {
	if f.rest != nil {
		return f.rest.GetSymbols(ctx)
	}
	select {
	case <-f.symbolsReady:
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for symbols: %w", ctx.Err())
	}
	f.stateMu.RLock()
	defer f.stateMu.RUnlock()
	return append([]entity.SymbolConfig(nil), f.symbols...), nil
}

func (f *Feed) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := f.dialer.DialContext(ctx, f.config.WSURL, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	if len(f.config.Symbols) > 0 {
		msg, err := Encode(MsgSubscribe, f.config.Symbols)
		if err == nil {
			err = conn.WriteMessage(websocket.TextMessage, msg)
		}
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("subscribe: %w", err)
		}
	}
	return conn, nil
}

// run reads from conn and reconnects after failures until ctx ends
func (f *Feed) run(ctx context.Context, conn *websocket.Conn) {
	for {
		err := f.readLoop(conn)
		if ctx.Err() != nil {
			return
		}
		f.log.Warn("Feed connection lost: %v", err)

		conn = f.reconnect(ctx)
		if conn == nil {
			return
		}
	}
}

// reconnect dials with capped exponential backoff; nil means ctx ended
func (f *Feed) reconnect(ctx context.Context) *websocket.Conn {
	backoff := f.config.ReconnectMin
	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		conn, err := f.dial(ctx)
		if err != nil {
			f.log.Warn("Reconnect attempt %d failed (next in %s): %v", attempt, nextBackoff(backoff, f.config.ReconnectMax), err)
			backoff = nextBackoff(backoff, f.config.ReconnectMax)
			continue
		}

		f.wsMu.Lock()
		if ctx.Err() != nil {
			f.wsMu.Unlock()
			conn.Close()
			return nil
		}
		f.wsConn = conn
		f.wsMu.Unlock()

		f.log.Info("Reconnected to feed after %d attempt(s)", attempt)
		return conn
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}

// readLoop reads messages until the connection fails
func (f *Feed) readLoop(conn *websocket.Conn) error {
	defer conn.Close()
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		f.handleMessage(message)
	}
}

// handleMessage processes incoming feed messages
func (f *Feed) handleMessage(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		f.log.Warn("Malformed feed message: %v", err)
		return
	}

	switch msg.Type {
	case MsgTicks:
		var ticks []entity.RawTick
		if err := json.Unmarshal(msg.Data, &ticks); err != nil {
			f.log.Warn("Malformed ticks: %v", err)
			return
		}
		f.dispatch(ticks)

	case MsgTick:
		var tick entity.RawTick
		if err := json.Unmarshal(msg.Data, &tick); err != nil {
			f.log.Warn("Malformed tick: %v", err)
			return
		}
		f.dispatch([]entity.RawTick{tick})

	case MsgSnapshot:
		var snap entity.MarketSnapshot
		if err := json.Unmarshal(msg.Data, &snap); err != nil {
			f.log.Warn("Malformed snapshot: %v", err)
			return
		}
		if snap == nil {
			snap = entity.MarketSnapshot{}
		}
		f.stateMu.Lock()
		first := f.snapshot == nil
		f.snapshot = snap
		f.stateMu.Unlock()
		if first {
			close(f.snapshotReady)
		}

	case MsgSymbols:
		var symbols []entity.SymbolConfig
		if err := json.Unmarshal(msg.Data, &symbols); err != nil {
			f.log.Warn("Malformed symbols: %v", err)
			return
		}
		if symbols == nil {
			symbols = []entity.SymbolConfig{}
		}
		f.stateMu.Lock()
		first := f.symbols == nil
		f.symbols = symbols
		f.stateMu.Unlock()
		if first {
			close(f.symbolsReady)
		}

	default:
		f.log.Debug("Ignoring feed message %q", msg.Type)
	}
}

func (f *Feed) dispatch(ticks []entity.RawTick) {
	if len(ticks) == 0 {
		return
	}
	f.handlerMu.RLock()
	defer f.handlerMu.RUnlock()
	for _, h := range f.handlers {
		h(ticks)
	}
}
