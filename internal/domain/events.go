package domain

import "time"

// Event names delivered over the realtime hub. Broadcast events go to every
// connection in an auction's room; targeted events go to every live
// connection of a single user.
const (
	EventBidNew               = "bid:new"
	EventBidOutbid            = "bid:outbid"
	EventBidRejected          = "bid:rejected"
	EventAuctionStarted       = "auction:started"
	EventAuctionEnded         = "auction:ended"
	EventAuctionWon           = "auction:won"
	EventSellerDecision       = "seller:decision"
	EventCounterMade          = "counter-offer:made"
	EventCounterReceived      = "counter-offer:received"
	EventCounterAccepted      = "counter-offer:accepted"
	EventCounterRejected      = "counter-offer:rejected"
	EventCounterSuccess       = "counter-offer:success"
	EventCounterBuyerAccepted = "counter-offer:buyer-accepted"
	EventCounterRejectedDone  = "counter-offer:rejected-confirmed"
	EventCounterBuyerRejected = "counter-offer:buyer-rejected"
	EventViewerJoined         = "viewer:joined"
	EventViewerLeft           = "viewer:left"
)

// Payload is the body of a realtime event. The hub stamps every payload with
// the auction ID and a delivery timestamp before it goes out.
type Payload map[string]any

// Envelope is the wire format for every realtime event.
type Envelope struct {
	Event     string    `json:"event"`
	AuctionID string    `json:"auctionId,omitempty"`
	UserID    string    `json:"userId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   Payload   `json:"payload"`
}

// Broadcaster fans events out to realtime viewers. Delivery is best-effort:
// no queueing for disconnected clients, no redelivery.
type Broadcaster interface {
	// BroadcastToAuction delivers the event to every connection currently
	// joined to the auction's room.
	BroadcastToAuction(auctionID, event string, payload Payload)
	// NotifyUser delivers the event to every live connection of the user.
	// It is a no-op when the user has no live connection.
	NotifyUser(userID, event string, payload Payload)
}
