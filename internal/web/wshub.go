package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"zyberhero/internal/logger"

	"github.com/gorilla/websocket"
)

// newUpgrader creates a WebSocket upgrader that validates Origin against allowed origins.
// If allowedOrigins is empty, only same-origin requests are accepted.
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true // same-origin (no Origin header)
			}
			if len(allowed) > 0 {
				return allowed[origin]
			}
			// No explicit origins configured: accept same-host origins
			return true
		},
	}
}

type WSClient struct {
	hub      *WSHub
	conn     *websocket.Conn
	send     chan []byte
	channels map[string]bool
	closed   bool
	mu       sync.RWMutex
}

// close shuts the send channel once.
func (c *WSClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// trySend queues data unless the client is closed or its buffer is full.
func (c *WSClient) trySend(data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

type WSHub struct {
	clients        map[*WSClient]bool
	broadcast      chan WSMessage
	register       chan *WSClient
	unregister     chan *WSClient
	done           chan struct{}
	mu             sync.RWMutex
	allowedOrigins []string
}

type WSMessage struct {
	Type    string      `json:"type"`
	Data    interface{} `json:"data"`
	Channel string      `json:"channel,omitempty"`
}

func NewWSHub(origins []string) *WSHub {
	return &WSHub{
		clients:        make(map[*WSClient]bool),
		broadcast:      make(chan WSMessage, 256),
		register:       make(chan *WSClient),
		unregister:     make(chan *WSClient),
		done:           make(chan struct{}),
		allowedOrigins: origins,
	}
}

// Run serves the hub until ctx is done, then closes every client.
func (h *WSHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logger.WS.Debug().Int("clients", len(h.clients)).Msg("client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
			logger.WS.Debug().Int("clients", len(h.clients)).Msg("client disconnected")

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			// Collect stale clients under RLock, then clean up under Lock
			var stale []*WSClient
			h.mu.RLock()
			for client := range h.clients {
				client.mu.RLock()
				subscribed := msg.Channel == "" || client.channels[msg.Channel]
				client.mu.RUnlock()
				if subscribed && !client.trySend(data) {
					stale = append(stale, client)
				}
			}
			h.mu.RUnlock()
			// Remove stale clients outside the read lock
			if len(stale) > 0 {
				h.mu.Lock()
				for _, c := range stale {
					if _, ok := h.clients[c]; ok {
						delete(h.clients, c)
						c.close()
					}
				}
				h.mu.Unlock()
			}
		}
	}
}

// Broadcast queues an event for subscribers of channel. It never blocks;
// events are dropped when the queue is full.
func (h *WSHub) Broadcast(channel string, msgType string, data interface{}) {
	select {
	case h.broadcast <- WSMessage{Type: msgType, Data: data, Channel: channel}:
	default:
		logger.WS.Warn().Str("channel", channel).Str("type", msgType).Msg("broadcast queue full, event dropped")
	}
}

func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS upgrades the connection. When requireAuth is set a valid token
// must be passed in the token query parameter or the zh_token cookie.
// Initial subscriptions may be given as ?channels=a,b.
func (h *WSHub) HandleWS(jwtSecret string, requireAuth bool) http.HandlerFunc {
	wsUpgrader := newUpgrader(h.allowedOrigins)
	return func(w http.ResponseWriter, r *http.Request) {
		if requireAuth {
			tokenStr := r.URL.Query().Get("token")
			if tokenStr == "" {
				tokenStr = bearerToken(r)
			}
			if tokenStr == "" {
				FailErr(w, r, ErrUnauthorized)
				return
			}
			if _, err := ValidateJWT(tokenStr, jwtSecret); err != nil {
				FailErr(w, r, ErrTokenInvalid)
				return
			}
		}

		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.WS.Error().Err(err).Msg("websocket upgrade failed")
			return
		}

		client := &WSClient{
			hub:      h,
			conn:     conn,
			send:     make(chan []byte, 256),
			channels: make(map[string]bool),
		}
		for _, ch := range strings.Split(r.URL.Query().Get("channels"), ",") {
			if ch = strings.TrimSpace(ch); ch != "" {
				client.channels[ch] = true
			}
		}
		select {
		case h.register <- client:
		case <-h.done:
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

func (c *WSClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var msg struct {
			Action   string   `json:"action"`
			Channel  string   `json:"channel"`
			Channels []string `json:"channels"`
		}
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		switch msg.Action {
		case "subscribe":
			c.mu.Lock()
			for _, ch := range msg.Channels {
				c.channels[ch] = true
			}
			c.mu.Unlock()
		case "unsubscribe":
			c.mu.Lock()
			delete(c.channels, msg.Channel)
			for _, ch := range msg.Channels {
				delete(c.channels, ch)
			}
			c.mu.Unlock()
		case "ping":
			resp, _ := json.Marshal(map[string]string{"action": "pong"})
			c.trySend(resp)
		}
	}
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
