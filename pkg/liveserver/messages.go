package liveserver

// Message represents a WebSocket message
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// MessageType constants mirror the engine's event type names, plus feed
// housekeeping types.
const (
	TypeRebalanceStarted          = "rebalance_started"
	TypeBidExecuted               = "bid_executed"
	TypeAssetTargetsRaised        = "asset_targets_raised"
	TypeBidderStatusUpdated       = "bidder_status_updated"
	TypeAnyoneBidUpdated          = "anyone_bid_updated"
	TypeLockedRebalanceEndedEarly = "locked_rebalance_ended_early"
	TypeSnapshot                  = "snapshot"
)

// NewMessage creates a Message
func NewMessage(msgType string, data interface{}) Message {
	return Message{
		Type: msgType,
		Data: data,
	}
}

// NewSnapshotMessage wraps a rebalance state snapshot for replay to newly
// connected clients.
func NewSnapshotMessage(data interface{}) Message {
	return NewMessage(TypeSnapshot, data)
}
