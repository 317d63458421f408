package notify

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientSendSize = 64
)

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// Hub broadcasts events to connected websocket clients.
// 느린 클라이언트는 버퍼가 차면 연결 해제
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	closed  bool
}

// NewHub creates a hub accepting the given origins (empty = any)
func NewHub(allowedOrigins []string) *Hub {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}

	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
		clients: make(map[*wsClient]struct{}),
	}
}

func (h *Hub) Name() string { return "websocket" }

// ServeHTTP upgrades the request and registers the client
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, clientSendSize)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	log.Debug().Str("remote", r.RemoteAddr).Int("clients", count).Msg("websocket client connected")

	go h.writePump(c)
	go h.readPump(c)
}

// Publish broadcasts evt as JSON to every client
func (h *Hub) Publish(_ context.Context, evt Event) error {
	data, err := evt.encode()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	h.Broadcast(data)
	return nil
}

// Broadcast queues msg for every client without blocking
func (h *Hub) Broadcast(msg []byte) {
	var slow []*wsClient

	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Warn().Str("remote", c.conn.RemoteAddr().String()).Msg("websocket client too slow, dropping")
		h.remove(c)
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*wsClient]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	return nil
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if ok {
		c.close()
	}
}

// readPump discards inbound messages and detects disconnects
func (h *Hub) readPump(c *wsClient) {
	defer h.remove(c)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}
