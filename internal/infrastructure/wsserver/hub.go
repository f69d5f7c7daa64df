// Package wsserver provides a websocket hub that fans frames out to connected clients.
package wsserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zono819/tickpulse/internal/infrastructure/logger"
)

// Recorder receives client lifecycle notifications
type Recorder interface {
	ClientConnected()
	ClientDisconnected()
}

type nopRecorder struct{}

func (nopRecorder) ClientConnected()    {}
func (nopRecorder) ClientDisconnected() {}

// Config holds hub settings
type Config struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
	ReadLimit    int64
	SendBuffer   int
	// Binary sends frames as binary messages instead of text
	Binary bool
}

func (c Config) withDefaults() Config {
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 64 * 1024
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
	return c
}

// Client is a single websocket connection
type Client struct {
	id   string
	conn *websocket.Conn
	hub  *Hub
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

// ID returns the client identifier
func (c *Client) ID() string {
	return c.id
}

// Send queues a frame for the client. It never blocks and reports false when
// the client is gone or its buffer is full.
func (c *Client) Send(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Option configures a Hub
type Option func(*Hub)

// WithLogger sets the hub logger
func WithLogger(log *logger.Logger) Option {
	return func(h *Hub) {
		if log != nil {
			h.log = log
		}
	}
}

// WithRecorder sets the client lifecycle recorder
func WithRecorder(r Recorder) Option {
	return func(h *Hub) {
		if r != nil {
			h.recorder = r
		}
	}
}

// Hub tracks connected clients and broadcasts frames to them
type Hub struct {
	cfg      Config
	upgrader websocket.Upgrader
	log      *logger.Logger
	recorder Recorder

	mu      sync.RWMutex
	clients map[string]*Client
	closed  bool

	onConnect    func(*Client)
	onMessage    func(*Client, []byte)
	onDisconnect func(*Client)
}

// New creates a hub
func New(cfg Config, opts ...Option) *Hub {
	h := &Hub{
		cfg: cfg.withDefaults(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log:      logger.Default(),
		recorder: nopRecorder{},
		clients:  make(map[string]*Client),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.WithField("component", "wsserver")
	return h
}

// OnConnect sets a hook run for each new client before it receives broadcasts.
// The hook runs under the hub lock and must not call back into the hub.
func (h *Hub) OnConnect(fn func(*Client)) {
	h.onConnect = fn
}

// OnMessage sets a hook run for each frame read from a client
func (h *Hub) OnMessage(fn func(*Client, []byte)) {
	h.onMessage = fn
}

// OnDisconnect sets a hook run after a client is removed
func (h *Hub) OnDisconnect(fn func(*Client)) {
	h.onDisconnect = fn
}

// Len returns the number of connected clients
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and registers the client
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Upgrade failed from %s: %v", r.RemoteAddr, err)
		return
	}

	c := &Client{
		id:   uuid.NewString(),
		conn: conn,
		hub:  h,
		send: make(chan []byte, h.cfg.SendBuffer),
		done: make(chan struct{}),
	}

	if !h.register(c) {
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// register adds c and runs the connect hook under the hub lock, so no
// broadcast can slip between the hook's frames and registration.
func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	if h.onConnect != nil {
		h.onConnect(c)
	}
	h.clients[c.id] = c
	h.recorder.ClientConnected()
	h.log.Info("Client connected: %s (%s), %d total", c.id, c.conn.RemoteAddr(), len(h.clients))
	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	delete(h.clients, c.id)
	remaining := len(h.clients)
	h.mu.Unlock()

	c.close()
	if !ok {
		return
	}
	h.recorder.ClientDisconnected()
	h.log.Info("Client disconnected: %s, %d remaining", c.id, remaining)
	if h.onDisconnect != nil {
		h.onDisconnect(c)
	}
}

// Broadcast queues data for every client and returns the number reached.
// Clients whose buffer is full are disconnected.
func (h *Hub) Broadcast(data []byte) int {
	var slow []*Client
	sent := 0

	h.mu.RLock()
	for _, c := range h.clients {
		if c.Send(data) {
			sent++
		} else {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("Dropping slow client %s", c.id)
		h.unregister(c)
	}
	return sent
}

// Close disconnects every client and rejects new ones
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.unregister(c)
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump handles incoming frames and pong heartbeats
func (c *Client) readPump() {
	defer c.hub.unregister(c)

	pongWait := c.hub.cfg.PingInterval * 2
	c.conn.SetReadLimit(c.hub.cfg.ReadLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("Read error from %s: %v", c.id, err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if c.hub.onMessage != nil {
			c.hub.onMessage(c, msg)
		}
	}
}

// writePump sends queued frames and ping heartbeats
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.hub.unregister(c)
	}()

	msgType := websocket.TextMessage
	if c.hub.cfg.Binary {
		msgType = websocket.BinaryMessage
	}

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(msgType, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
