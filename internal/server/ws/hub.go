// Package ws implements the realtime layer: a WebSocket hub that groups
// connections into per-auction rooms, tracks which user each connection
// belongs to, and fans auction events out room-wide or per-user.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/jrmarot/bidhouse/internal/domain"
)

// eventsChannel is the signal bus channel every event envelope travels on.
// The hub routes envelopes to rooms or users after receiving them from the
// bus, so a single channel serves both single-node (memory bus) and
// multi-node (redis pub/sub) deployments.
const eventsChannel = "ch:auction-events"

// Hub manages connected WebSocket clients, their auction room memberships,
// and the per-user connection index used for targeted notifications. It
// implements domain.Broadcaster by publishing envelopes to the signal bus and
// delivering them to local connections when they come back around.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]bool
	// rooms maps auction ID to the connections joined to it.
	rooms map[string]map[*client]bool
	// users maps user ID to that user's live connections. A connection with
	// no identified user never appears here.
	users map[string]map[*client]bool

	register   chan *client
	unregister chan *client
	bus        domain.SignalBus
	logger     *slog.Logger

	now func() time.Time
}

// NewHub creates a hub bridged to the given signal bus.
func NewHub(bus domain.SignalBus, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		rooms:      make(map[string]map[*client]bool),
		users:      make(map[string]map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		bus:        bus,
		logger:     logger.With(slog.String("component", "ws")),
		now:        time.Now,
	}
}

var _ domain.Broadcaster = (*Hub)(nil)

// BroadcastToAuction publishes the event to every connection in the auction's
// room, across all nodes. The payload is stamped with the auction ID and a
// delivery timestamp.
func (h *Hub) BroadcastToAuction(auctionID, event string, payload domain.Payload) {
	h.publish(domain.Envelope{
		Event:     event,
		AuctionID: auctionID,
		Timestamp: h.now().UTC(),
		Payload:   payload,
	})
}

// NotifyUser publishes the event to every live connection of the user. A user
// with no live connection simply misses it; targeted events are best-effort
// by design.
func (h *Hub) NotifyUser(userID, event string, payload domain.Payload) {
	h.publish(domain.Envelope{
		Event:     event,
		UserID:    userID,
		Timestamp: h.now().UTC(),
		Payload:   payload,
	})
}

func (h *Hub) publish(env domain.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("ws: marshal envelope failed",
			slog.String("event", env.Event),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := h.bus.Publish(context.Background(), eventsChannel, data); err != nil {
		h.logger.Error("ws: publish failed",
			slog.String("event", env.Event),
			slog.String("error", err.Error()),
		)
		// Fall back to local delivery so a bus outage degrades to
		// single-node fanout instead of silence.
		h.route(data, env)
	}
}

// ViewerCount returns how many connections are currently in the auction's
// room on this node.
func (h *Hub) ViewerCount(auctionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[auctionID])
}

// RoomInfo returns the viewer count and the user IDs present in the
// auction's room. Unidentified connections appear as "anonymous".
func (h *Hub) RoomInfo(auctionID string) (int, []string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room := h.rooms[auctionID]
	viewers := make([]string, 0, len(room))
	for c := range room {
		if c.userID != "" {
			viewers = append(viewers, c.userID)
		} else {
			viewers = append(viewers, "anonymous")
		}
	}
	return len(room), viewers
}

// Run starts the hub's event loop: client registration and the signal bus
// subscription that feeds fanout. The loop exits when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	go h.consumeBus(ctx)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.rooms = make(map[string]map[*client]bool)
			h.users = make(map[string]map[*client]bool)
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client connected", slog.Int("total_clients", total))

		case c := <-h.unregister:
			h.drop(c)
		}
	}
}

// consumeBus subscribes to the events channel and routes every envelope to
// local connections.
func (h *Hub) consumeBus(ctx context.Context) {
	msgCh, err := h.bus.Subscribe(ctx, eventsChannel)
	if err != nil {
		h.logger.Error("ws: subscribe failed", slog.String("error", err.Error()))
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgCh:
			if !ok {
				h.logger.Warn("ws: bus subscription closed")
				return
			}
			var env domain.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				h.logger.Warn("ws: dropping malformed envelope", slog.String("error", err.Error()))
				continue
			}
			h.route(data, env)
		}
	}
}

// route delivers an envelope to its local recipients: the user's connections
// when targeted, otherwise the auction's room.
func (h *Hub) route(data []byte, env domain.Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var targets map[*client]bool
	if env.UserID != "" {
		targets = h.users[env.UserID]
	} else {
		targets = h.rooms[env.AuctionID]
	}
	for c := range targets {
		c.deliver(data)
	}
}

// join adds the connection to an auction's room and announces it to the
// other room members. The announced viewer count includes the joiner.
func (h *Hub) join(c *client, auctionID string) {
	h.mu.Lock()
	if h.rooms[auctionID] == nil {
		h.rooms[auctionID] = make(map[*client]bool)
	}
	h.rooms[auctionID][c] = true
	c.roomSet[auctionID] = true
	count := len(h.rooms[auctionID])
	h.mu.Unlock()

	h.announce(auctionID, domain.EventViewerJoined, c, domain.Payload{
		"userId":      c.userID,
		"viewerCount": count,
	})
}

// leave removes the connection from an auction's room and announces the
// departure to whoever remains.
func (h *Hub) leave(c *client, auctionID string) {
	h.mu.Lock()
	delete(h.rooms[auctionID], c)
	delete(c.roomSet, auctionID)
	count := len(h.rooms[auctionID])
	if count == 0 {
		delete(h.rooms, auctionID)
	}
	h.mu.Unlock()

	h.announce(auctionID, domain.EventViewerLeft, c, domain.Payload{
		"userId":      c.userID,
		"viewerCount": count,
	})
}

// identify binds the connection to a user ID for targeted notifications.
func (h *Hub) identify(c *client, userID string) {
	if userID == "" || c.userID == userID {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.userID != "" {
		delete(h.users[c.userID], c)
		if len(h.users[c.userID]) == 0 {
			delete(h.users, c.userID)
		}
	}
	c.userID = userID
	if h.users[userID] == nil {
		h.users[userID] = make(map[*client]bool)
	}
	h.users[userID][c] = true
}

// drop fully removes a disconnected client: every room it was in, the user
// index, and the client set. Each room it occupied hears a viewer:left.
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)

	left := make(map[string]int, len(c.roomSet))
	for auctionID := range c.roomSet {
		delete(h.rooms[auctionID], c)
		left[auctionID] = len(h.rooms[auctionID])
		if left[auctionID] == 0 {
			delete(h.rooms, auctionID)
		}
	}
	if c.userID != "" {
		delete(h.users[c.userID], c)
		if len(h.users[c.userID]) == 0 {
			delete(h.users, c.userID)
		}
	}
	total := len(h.clients)
	h.mu.Unlock()

	for auctionID, count := range left {
		h.announce(auctionID, domain.EventViewerLeft, c, domain.Payload{
			"userId":      c.userID,
			"viewerCount": count,
		})
	}
	h.logger.Info("ws: client disconnected", slog.Int("total_clients", total))
}

// announce delivers a presence event to the auction's room, excluding the
// connection the event is about. Presence is node-local state, so these
// never cross the signal bus.
func (h *Hub) announce(auctionID, event string, except *client, payload domain.Payload) {
	env := domain.Envelope{
		Event:     event,
		AuctionID: auctionID,
		Timestamp: h.now().UTC(),
		Payload:   payload,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[auctionID] {
		if c == except {
			continue
		}
		c.deliver(data)
	}
}
