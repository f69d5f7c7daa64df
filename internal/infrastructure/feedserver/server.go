// Package feedserver serves a TickFeed over websocket and REST.
package feedserver

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/zono819/tickpulse/internal/adapter/gateway"
	"github.com/zono819/tickpulse/internal/domain/entity"
	"github.com/zono819/tickpulse/internal/infrastructure/feed"
	"github.com/zono819/tickpulse/internal/infrastructure/logger"
	"github.com/zono819/tickpulse/internal/infrastructure/wsserver"
)

// Server broadcasts every tick round of a source to websocket clients.
// New clients first receive a snapshot and the symbol catalogue.
type Server struct {
	source gateway.TickFeed
	hub    *wsserver.Hub
	wsPath string
	log    *logger.Logger

	// greetTimeout bounds the source lookups of greet, which holds the hub lock
	greetTimeout time.Duration

	mu   sync.Mutex
	subs map[string]map[string]struct{} // client id -> symbols
}

// Option configures a Server
type Option func(*Server)

// WithGreetTimeout bounds how long a new client waits for the snapshot and
// symbol catalogue. Broadcasts are held back for as long.
func WithGreetTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.greetTimeout = d
		}
	}
}

// New creates a feed server
func New(source gateway.TickFeed, hub *wsserver.Hub, wsPath string, log *logger.Logger, opts ...Option) *Server {
	if log == nil {
		log = logger.Default()
	}
	if wsPath == "" {
		wsPath = "/market"
	}
	s := &Server{
		source: source,
		hub:    hub,
		wsPath: wsPath,
		log:    log.WithField("component", "feedserver"),
		subs:   make(map[string]map[string]struct{}),

		greetTimeout: time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	hub.OnConnect(s.greet)
	hub.OnMessage(s.handleClientMessage)
	hub.OnDisconnect(s.forget)
	return s
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.wsPath, s.hub)
	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/symbols", s.handleSymbols)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"status": "ok", "clients": s.hub.Len()})
	})
	return mux
}

// Start subscribes to the source and connects it
func (s *Server) Start(ctx context.Context) error {
	if err := s.source.SubscribeTicks(ctx, s.broadcast); err != nil {
		return err
	}
	return s.source.Connect(ctx)
}

// Stop disconnects the source and every client
func (s *Server) Stop(ctx context.Context) error {
	err := s.source.Disconnect(ctx)
	s.hub.Close()
	return err
}

// Subscriptions returns the sorted symbols each client asked for, by client id
func (s *Server) Subscriptions() map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]string, len(s.subs))
	for id, set := range s.subs {
		syms := make([]string, 0, len(set))
		for sym := range set {
			syms = append(syms, sym)
		}
		sort.Strings(syms)
		out[id] = syms
	}
	return out
}

func (s *Server) broadcast(ticks []entity.RawTick) {
	msg, err := feed.Encode(feed.MsgTicks, ticks)
	if err != nil {
		s.log.Error("Encode ticks: %v", err)
		return
	}
	s.hub.Broadcast(msg)
}

func (s *Server) greet(c *wsserver.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), s.greetTimeout)
	defer cancel()

	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		s.log.Error("Snapshot for %s: %v", c.ID(), err)
		return
	}
	symbols, err := s.source.Symbols(ctx)
	if err != nil {
		s.log.Error("Symbols for %s: %v", c.ID(), err)
		return
	}

	for _, m := range []struct {
		typ  string
		data interface{}
	}{
		{feed.MsgSnapshot, snap},
		{feed.MsgSymbols, symbols},
	} {
		frame, err := feed.Encode(m.typ, m.data)
		if err != nil {
			s.log.Error("Encode %s: %v", m.typ, err)
			return
		}
		c.Send(frame)
	}
}

func (s *Server) handleClientMessage(c *wsserver.Client, data []byte) {
	var msg feed.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.log.Warn("Malformed message from %s: %v", c.ID(), err)
		return
	}

	var symbols []string
	if err := json.Unmarshal(msg.Data, &symbols); err != nil {
		s.log.Warn("Malformed %s from %s: %v", msg.Type, c.ID(), err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch msg.Type {
	case feed.MsgSubscribe:
		set, ok := s.subs[c.ID()]
		if !ok {
			set = make(map[string]struct{})
			s.subs[c.ID()] = set
		}
		for _, sym := range symbols {
			set[sym] = struct{}{}
		}
		s.log.Info("%s subscribed to: %v", c.ID(), symbols)
	case feed.MsgUnsubscribe:
		for _, sym := range symbols {
			delete(s.subs[c.ID()], sym)
		}
	default:
		s.log.Debug("Ignoring %q from %s", msg.Type, c.ID())
	}
}

func (s *Server) forget(c *wsserver.Client) {
	s.mu.Lock()
	delete(s.subs, c.ID())
	s.mu.Unlock()
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.source.Snapshot(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, snap)
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := s.source.Symbols(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, symbols)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
