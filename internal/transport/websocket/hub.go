// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package websocket

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/ManuGH/orkestra/internal/domain/session/ports"
	"github.com/ManuGH/orkestra/internal/events"
	xglog "github.com/ManuGH/orkestra/internal/log"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Clients only send control frames.
	maxMessageSize = 512
)

// Message is the wire form of a session event.
type Message struct {
	SessionID string      `json:"session_id"`
	Event     string      `json:"event"`
	Data      ports.Event `json:"data"`
}

// Subscriber is the part of the event bus the hub needs.
type Subscriber interface {
	Subscribe(filter events.Filter) *events.Subscription
}

// Client is one WebSocket connection.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	sub       *events.Subscription
	sessionID string
}

// Hub tracks connected clients so they can be closed on shutdown.
type Hub struct {
	bus      Subscriber
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu      sync.Mutex
	clients map[*Client]struct{}
	closed  bool
	wg      sync.WaitGroup
}

func NewHub(bus Subscriber) *Hub {
	return &Hub{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Game clients connect from arbitrary origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger:  xglog.WithComponent("websocket"),
		clients: make(map[*Client]struct{}),
	}
}

// ServeHTTP upgrades the connection and starts streaming.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Str(xglog.FieldEvent, "ws.upgrade_failed").Msg("websocket upgrade failed")
		return
	}

	sessionID := r.URL.Query().Get("session")
	var filter events.Filter
	if sessionID != "" {
		filter = events.ForSession(sessionID)
	}
	client := &Client{hub: h, conn: conn, sub: h.bus.Subscribe(filter), sessionID: sessionID}

	if !h.register(client) {
		_ = client.sub.Close()
		_ = conn.Close()
		return
	}
	h.wg.Add(2)
	go client.writePump()
	go client.readPump()
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.logger.Debug().
		Str(xglog.FieldEvent, "ws.client_registered").
		Str(xglog.FieldSessionID, c.sessionID).
		Int("clients", len(h.clients)).
		Msg("client registered")
	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		_ = c.sub.Close()
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and waits for their goroutines.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		_ = c.sub.Close()
	}
	h.mu.Unlock()
	h.wg.Wait()
}

// readPump discards client frames and handles pongs. It unregisters the
// client when the connection drops.
func (c *Client) readPump() {
	defer c.hub.wg.Done()
	defer c.hub.unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug().Err(err).Str(xglog.FieldEvent, "ws.read_error").Msg("websocket read error")
			}
			return
		}
	}
}

// writePump forwards bus events until the subscription closes.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		c.hub.wg.Done()
	}()

	ch := c.sub.C()
	for {
		select {
		case ev, ok := <-ch:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				c.hub.unregister(c)
				return
			}
			writeEvent(w, ev)

			// Add queued events to the current frame.
			n := len(ch)
			for i := 0; i < n; i++ {
				writeEvent(w, <-ch)
			}
			if err := w.Close(); err != nil {
				c.hub.unregister(c)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.unregister(c)
				return
			}
		}
	}
}

func writeEvent(w io.Writer, ev ports.Event) {
	_ = json.NewEncoder(w).Encode(Message{SessionID: ev.SessionID, Event: string(ev.Type), Data: ev})
}
