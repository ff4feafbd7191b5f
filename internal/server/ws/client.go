package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jrmarot/bidhouse/internal/domain"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 4096

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 256
)

// upgrader configures the WebSocket upgrade parameters. Origin checks happen
// in the CORS middleware in front of the upgrade.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// client is a single WebSocket connection. Room membership and the user
// binding are owned by the hub and mutated only under its lock.
type client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	userID  string
	roomSet map[string]bool
}

// frame is the JSON control message a client sends to manage its auction
// room memberships.
type frame struct {
	Action     string   `json:"action"` // "join", "leave", "reconnect", "ping"
	AuctionID  string   `json:"auctionId,omitempty"`
	UserID     string   `json:"userId,omitempty"`
	AuctionIDs []string `json:"auctionIds,omitempty"`
}

// HandleWS upgrades an HTTP request to a WebSocket connection and registers
// the client with the hub.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		roomSet: make(map[string]bool),
	}

	h.register <- c

	go c.writePump()
	go c.readPump()
}

// deliver queues data for the client, dropping it when the client's buffer
// is full. A slow viewer loses events rather than stalling fanout.
func (c *client) deliver(data []byte) {
	select {
	case c.send <- data:
	default:
		c.hub.logger.Warn("ws: dropping message for slow client")
	}
}

// sendEnvelope marshals and queues a server-to-client control reply.
func (c *client) sendEnvelope(env domain.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	c.deliver(data)
}

// readPump reads control frames from the connection until it drops, then
// unregisters the client, which removes it from every room and from the
// user index.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error",
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var f frame
		if err := json.Unmarshal(message, &f); err != nil {
			continue
		}
		c.handleFrame(f)
	}
}

// handleFrame processes a single client control frame.
func (c *client) handleFrame(f frame) {
	switch f.Action {
	case "join":
		if f.AuctionID == "" {
			return
		}
		c.hub.identify(c, f.UserID)
		c.hub.join(c, f.AuctionID)
		c.sendEnvelope(domain.Envelope{
			Event:     "auction:status",
			AuctionID: f.AuctionID,
			Timestamp: c.hub.now().UTC(),
			Payload:   domain.Payload{"message": "connected to auction updates"},
		})

	case "leave":
		if f.AuctionID == "" {
			return
		}
		c.hub.leave(c, f.AuctionID)

	case "reconnect":
		// A reconnecting client restores its previous room set in one frame.
		c.hub.identify(c, f.UserID)
		for _, id := range f.AuctionIDs {
			if id != "" {
				c.hub.join(c, id)
			}
		}
		c.sendEnvelope(domain.Envelope{
			Event:     "reconnect:success",
			Timestamp: c.hub.now().UTC(),
			Payload:   domain.Payload{"rejoinedAuctions": f.AuctionIDs},
		})

	case "ping":
		c.sendEnvelope(domain.Envelope{
			Event:     "pong",
			Timestamp: c.hub.now().UTC(),
			Payload:   domain.Payload{},
		})
	}
}

// writePump pumps queued messages to the connection as JSON text frames and
// sends periodic pings for keepalive.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
