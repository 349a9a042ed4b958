package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/erain9/swapbook/pkg/api"
	"github.com/erain9/swapbook/pkg/core"
	"github.com/erain9/swapbook/pkg/messaging"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
	wsSendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS is enforced by the HTTP handler
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub delivers match notifications to the websocket connections of their
// recipient. It implements messaging.MessageSender.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*wsClient]struct{}
	closed  bool
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*wsClient]struct{}),
	}
}

type wsClient struct {
	hub   *Hub
	conn  *websocket.Conn
	actor string
	send  chan []byte
}

// SendMatchMessage queues msg on every connection of its recipient. It
// returns messaging.ErrNoSubscriber when the recipient has none.
func (h *Hub) SendMatchMessage(_ context.Context, msg *messaging.MatchMessage) error {
	data, err := json.Marshal(api.OrderEvent{Type: api.EventOrderMatched, Match: msg})
	if err != nil {
		return fmt.Errorf("encode match message: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := h.clients[msg.Recipient]
	if len(clients) == 0 {
		return fmt.Errorf("%w: %s", messaging.ErrNoSubscriber, msg.Recipient)
	}

	queued := 0
	for c := range clients {
		select {
		case c.send <- data:
			queued++
		default:
			log.Warn().Str("actor", c.actor).Msg("Websocket send buffer full, dropping notification")
		}
	}
	if queued == 0 {
		return fmt.Errorf("websocket buffers full for %s", msg.Recipient)
	}
	return nil
}

// Subscribers returns the number of open connections of actor
func (h *Hub) Subscribers(actor string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[actor])
}

// Close drops every connection
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for actor, clients := range h.clients {
		for c := range clients {
			close(c.send)
		}
		delete(h.clients, actor)
	}
	return nil
}

func (h *Hub) register(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	if h.clients[c.actor] == nil {
		h.clients[c.actor] = make(map[*wsClient]struct{})
	}
	h.clients[c.actor][c] = struct{}{}
	log.Debug().Str("actor", c.actor).Int("connections", len(h.clients[c.actor])).Msg("Websocket client connected")
	return true
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[c.actor]
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.clients, c.actor)
	}
	close(c.send)
	log.Debug().Str("actor", c.actor).Msg("Websocket client disconnected")
}

// ServeWS upgrades the request and subscribes the connection to the
// notifications of the actor named by the actor query parameter or the
// x-actor-id header.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	actor, err := core.ParseActorID(actorFromRequest(r))
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := &wsClient{
		hub:   h,
		conn:  conn,
		actor: actor.String(),
		send:  make(chan []byte, wsSendBuffer),
	}
	if !h.register(c) {
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump discards inbound frames and unregisters the client once the
// connection fails
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("actor", c.actor).Msg("Websocket read error")
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var _ messaging.MessageSender = (*Hub)(nil)
