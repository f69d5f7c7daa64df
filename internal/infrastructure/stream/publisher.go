// Package stream publishes engine events to dashboard clients over websocket.
package stream

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/zono819/tickpulse/internal/adapter/gateway"
	"github.com/zono819/tickpulse/internal/domain/entity"
	"github.com/zono819/tickpulse/internal/domain/protocol"
	"github.com/zono819/tickpulse/internal/infrastructure/codec"
	"github.com/zono819/tickpulse/internal/infrastructure/logger"
	"github.com/zono819/tickpulse/internal/infrastructure/wsserver"
)

// Ensure Publisher implements gateway.Publisher
var _ gateway.Publisher = (*Publisher)(nil)

// clientCommands are the commands dashboard clients may send. Market data
// only enters the engine through the feed.
var clientCommands = map[protocol.Kind]bool{
	protocol.KindSubscribe:    true,
	protocol.KindUnsubscribe:  true,
	protocol.KindSetTimeframe: true,
}

// Publisher encodes engine events and broadcasts them through a hub.
//
// It keeps the last known state of every symbol, so a client connecting
// mid-stream starts from READY and one full BATCH_UPDATE instead of waiting
// for each symbol to tick again.
type Publisher struct {
	hub   *wsserver.Hub
	codec codec.Codec
	log   *logger.Logger

	mu    sync.Mutex
	ready bool
	view  *protocol.BatchUpdate

	handlerMu sync.RWMutex
	handler   func(protocol.Command)
}

// New creates a publisher on hub. The hub must be configured for binary
// frames when the codec is binary.
func New(hub *wsserver.Hub, c codec.Codec, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.Default()
	}
	if c == nil {
		c = codec.JSON()
	}
	p := &Publisher{
		hub:   hub,
		codec: c,
		log:   log.WithFields(map[string]interface{}{"component": "stream", "codec": c.Name()}),
		view:  protocol.NewBatchUpdate(0),
	}
	hub.OnConnect(p.greet)
	hub.OnMessage(p.handleClientMessage)
	return p
}

// Publish merges ev into the last known view and broadcasts it.
// Symbols of a batch that cannot be encoded are dropped from it and
// reported to clients in an Error event.
func (p *Publisher) Publish(ctx context.Context, ev protocol.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var rejected []string
	frame, err := p.codec.EncodeEvent(ev)
	if batch, ok := ev.(*protocol.BatchUpdate); ok && err != nil {
		batch, rejected = p.salvage(batch)
		ev = batch
		frame, err = p.codec.EncodeEvent(ev)
	}
	if err != nil {
		return err
	}

	p.mu.Lock()
	switch e := ev.(type) {
	case protocol.Ready:
		p.ready = true
	case *protocol.BatchUpdate:
		merge(p.view, e)
	}
	p.mu.Unlock()

	// A client registering between the merge and the broadcast sees this
	// batch twice. Merging is idempotent, so that is harmless.
	if !isEmptyBatch(ev) {
		p.hub.Broadcast(frame)
	}

	if len(rejected) > 0 {
		msg := fmt.Sprintf("dropped unencodable symbols: %s", strings.Join(rejected, ", "))
		p.log.Warn("%s", msg)
		if errFrame, err := p.codec.EncodeEvent(protocol.Error{Message: msg}); err == nil {
			p.hub.Broadcast(errFrame)
		}
	}
	return nil
}

// salvage returns a copy of batch without the symbols that fail to encode,
// and those symbols in lexical order
func (p *Publisher) salvage(batch *protocol.BatchUpdate) (*protocol.BatchUpdate, []string) {
	symbols := make([]string, 0, batch.Len())
	for sym := range batch.Ticks {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	out := protocol.NewBatchUpdate(len(symbols))
	var rejected []string
	for _, sym := range symbols {
		one := protocol.NewBatchUpdate(1)
		one.Ticks[sym] = batch.Ticks[sym]
		if c, ok := batch.Candles[sym]; ok {
			one.Candles[sym] = c
		}
		if sl, ok := batch.Sparklines[sym]; ok {
			one.Sparklines[sym] = sl
		}
		if _, err := p.codec.EncodeEvent(one); err != nil {
			rejected = append(rejected, sym)
			continue
		}
		merge(out, one)
	}
	return out, rejected
}

func isEmptyBatch(ev protocol.Event) bool {
	b, ok := ev.(*protocol.BatchUpdate)
	return ok && b.Len() == 0
}

// OnCommand registers the handler for commands sent by clients
func (p *Publisher) OnCommand(handler func(protocol.Command)) {
	p.handlerMu.Lock()
	p.handler = handler
	p.handlerMu.Unlock()
}

// Close disconnects every client
func (p *Publisher) Close() error {
	p.hub.Close()
	return nil
}

// View returns a copy of the last known state of every symbol
func (p *Publisher) View() *protocol.BatchUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := protocol.NewBatchUpdate(p.view.Len())
	merge(out, p.view)
	return out
}

// merge copies every symbol of src into dst, replacing what dst held
func merge(dst, src *protocol.BatchUpdate) {
	for sym, t := range src.Ticks {
		dst.Ticks[sym] = t
	}
	for sym, c := range src.Candles {
		dst.Candles[sym] = append([]entity.Candle(nil), c...)
	}
	for sym, s := range src.Sparklines {
		dst.Sparklines[sym] = append([]float64(nil), s...)
	}
}

// greet runs under the hub lock for every new client
func (p *Publisher) greet(c *wsserver.Client) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ready {
		return
	}
	p.sendTo(c, protocol.Ready{})
	if p.view.Len() > 0 {
		p.sendTo(c, p.view)
	}
}

func (p *Publisher) sendTo(c *wsserver.Client, ev protocol.Event) {
	frame, err := p.codec.EncodeEvent(ev)
	if err != nil {
		p.log.Error("Encode %s for %s: %v", ev.Kind(), c.ID(), err)
		return
	}
	if !c.Send(frame) {
		p.log.Warn("Client %s did not accept %s", c.ID(), ev.Kind())
	}
}

func (p *Publisher) handleClientMessage(c *wsserver.Client, data []byte) {
	cmd, err := p.codec.DecodeCommand(data)
	if err != nil {
		p.log.Warn("Malformed command from %s: %v", c.ID(), err)
		p.sendTo(c, protocol.Error{Message: err.Error()})
		return
	}

	if !clientCommands[cmd.Kind()] {
		p.log.Warn("Rejected %s from %s", cmd.Kind(), c.ID())
		p.sendTo(c, protocol.Error{Message: fmt.Sprintf("command %s not accepted from clients", cmd.Kind())})
		return
	}

	if tf, ok := cmd.(protocol.SetTimeframe); ok && tf.Timeframe.Valid() {
		// cached candles belong to the previous timeframe
		p.mu.Lock()
		p.view.Candles = make(map[string][]entity.Candle, len(p.view.Candles))
		p.mu.Unlock()
	}

	p.log.Debug("Command %s from %s", cmd.Kind(), c.ID())

	p.handlerMu.RLock()
	handler := p.handler
	p.handlerMu.RUnlock()
	if handler != nil {
		handler(cmd)
	}
}
