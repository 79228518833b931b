package api

import (
	"context"
	"log"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"arena-shooter/internal/game"
	"arena-shooter/internal/protocol"
)

const (
	// MaxWSConnectionsTotal is the maximum number of WebSocket connections allowed
	MaxWSConnectionsTotal = 500

	// MaxWSConnectionsPerIP is the maximum WebSocket connections per IP
	MaxWSConnectionsPerIP = 10

	// MaxNameLength caps display names in runes
	MaxNameLength = 20

	sendBufferSize = 256
	maxFrameSize   = 4096
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	endGameTimeout = 2 * time.Second
)

// wsClient is one websocket connection. Its id doubles as the player id.
type wsClient struct {
	id      string
	conn    *websocket.Conn
	ip      string
	codec   protocol.Codec
	send    chan []byte
	limiter *rate.Limiter
}

// WebSocketHub fans engine events out to connections and feeds inbound
// frames to the engine. It implements game.Publisher.
type WebSocketHub struct {
	engine EngineInterface

	clients    map[string]*wsClient
	register   chan *wsClient
	unregister chan *wsClient
	quit       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex

	upgrader  websocket.Upgrader
	wsLimiter *WebSocketRateLimiter
	msgRate   MessageRateConfig
}

var _ game.Publisher = (*WebSocketHub)(nil)

// NewWebSocketHub creates a hub with connection limiting. Attach an engine
// before serving connections.
func NewWebSocketHub(origins *OriginChecker, msgRate MessageRateConfig) *WebSocketHub {
	if origins == nil {
		origins = NewOriginChecker(nil)
	}
	if msgRate.PerSecond <= 0 {
		msgRate = DefaultMessageRateConfig
	}
	h := &WebSocketHub{
		clients:    make(map[string]*wsClient),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		quit:       make(chan struct{}),
		wsLimiter:  NewWebSocketRateLimiter(MaxWSConnectionsPerIP),
		msgRate:    msgRate,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if origins.Check(r) {
				return true
			}
			log.Printf("⚠️ WebSocket connection rejected from origin: %s", r.Header.Get("Origin"))
			RecordConnectionRejected(RejectOrigin)
			return false
		},
	}
	return h
}

// Attach sets the engine inbound frames are dispatched to.
func (h *WebSocketHub) Attach(engine EngineInterface) {
	h.engine = engine
}

// Run owns registration until Stop.
func (h *WebSocketHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Client %s connected from %s via %s (%d total)", client.id, client.ip, client.codec.Name(), count)
			UpdateWSConnections(count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				h.wsLimiter.Release(client.ip)
				delete(h.clients, client.id)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Client %s disconnected (%d remaining)", client.id, count)
			UpdateWSConnections(count)

		case <-h.quit:
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			UpdateWSConnections(0)
			return
		}
	}
}

// Stop closes every connection and ends Run.
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish encodes ev once per codec in use and queues it on each recipient.
// A client whose buffer is full loses the frame.
func (h *WebSocketHub) Publish(ev game.Event) {
	name := ev.Type.String()
	frames := make(map[string][]byte, 2)

	h.mu.RLock()
	defer h.mu.RUnlock()

	deliver := func(c *wsClient) {
		frame, ok := frames[c.codec.Name()]
		if !ok {
			var err error
			frame, err = c.codec.Encode(name, ev.Payload)
			if err != nil {
				log.Printf("⚠️ Failed to encode %s for %s: %v", name, c.codec.Name(), err)
				frame = nil
			}
			frames[c.codec.Name()] = frame
		}
		if frame == nil {
			return
		}
		select {
		case c.send <- frame:
			RecordWSMessage("out")
		default:
			RecordWSDropped()
		}
	}

	if ev.To != "" {
		if c, ok := h.clients[ev.To]; ok {
			deliver(c)
		}
		return
	}
	for id, c := range h.clients {
		if id != ev.Except {
			deliver(c)
		}
	}
}

// HandleWebSocket handles incoming WebSocket connections with DoS protection
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if total := h.ClientCount(); total >= MaxWSConnectionsTotal {
		log.Printf("⚠️ WebSocket connection rejected: total limit reached (%d)", total)
		RecordConnectionRejected(RejectWSTotal)
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	if !h.wsLimiter.Allow(ip) {
		log.Printf("⚠️ WebSocket connection rejected from %s: per-IP limit reached", ip)
		RecordConnectionRejected(RejectWSPerIP)
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		h.wsLimiter.Release(ip)
		return
	}

	client := &wsClient{
		id:      uuid.NewString(),
		conn:    conn,
		ip:      ip,
		codec:   protocol.ForName(r.URL.Query().Get("codec")),
		send:    make(chan []byte, sendBufferSize),
		limiter: h.msgRate.newLimiter(),
	}

	select {
	case h.register <- client:
	case <-h.quit:
		h.wsLimiter.Release(ip)
		conn.Close()
		return
	}

	go h.writePump(client)
	go h.readPump(client)
}

// readPump decodes frames and hands them to the engine until the connection
// drops, then removes the player.
func (h *WebSocketHub) readPump(c *wsClient) {
	defer func() {
		if h.engine != nil {
			h.engine.Disconnect(c.id)
		}
		select {
		case h.unregister <- c:
		case <-h.quit:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		RecordWSMessage("in")
		if !c.limiter.Allow() {
			RecordConnectionRejected(RejectWSFlood)
			continue
		}
		h.dispatch(c, frame)
	}
}

func (h *WebSocketHub) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	msgType := websocket.TextMessage
	if c.codec.Binary() {
		msgType = websocket.BinaryMessage
	}

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(msgType, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch routes one inbound frame. Malformed frames and unknown events are
// dropped.
func (h *WebSocketHub) dispatch(c *wsClient, frame []byte) {
	if h.engine == nil {
		return
	}
	env, err := c.codec.Decode(frame)
	if err != nil {
		RecordConnectionRejected(RejectWSMalformed)
		return
	}

	switch env.Event {
	case protocol.EventJoinGame:
		name, err := protocol.DecodeData[string](c.codec, env)
		if err != nil {
			RecordConnectionRejected(RejectWSMalformed)
			return
		}
		if name = sanitizeName(name); name == "" {
			return
		}
		h.engine.Join(c.id, name)

	case protocol.EventPlayerMovement:
		keys, err := protocol.DecodeData[protocol.HeldKeys](c.codec, env)
		if err != nil {
			RecordConnectionRejected(RejectWSMalformed)
			return
		}
		h.engine.SetInput(c.id, keys.Dirs)

	case protocol.EventShoot:
		angle, err := protocol.DecodeData[float64](c.codec, env)
		if err != nil || math.IsNaN(angle) || math.IsInf(angle, 0) {
			RecordConnectionRejected(RejectWSMalformed)
			return
		}
		h.engine.Shoot(c.id, angle)

	case protocol.EventRestartGame:
		h.engine.Restart()

	case protocol.EventEndGame:
		ctx, cancel := context.WithTimeout(context.Background(), endGameTimeout)
		defer cancel()
		if _, err := h.engine.End(ctx); err != nil {
			log.Printf("⚠️ End game from %s failed: %v", c.id, err)
		}
	}
}

// sanitizeName trims whitespace and caps the length.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > MaxNameLength {
		name = string([]rune(name)[:MaxNameLength])
	}
	return name
}
