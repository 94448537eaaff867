package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event type names as they appear on the wire.
const (
	EventRebalanceStarted          = "rebalance_started"
	EventBidExecuted               = "bid_executed"
	EventAssetTargetsRaised        = "asset_targets_raised"
	EventBidderStatusUpdated       = "bidder_status_updated"
	EventAnyoneBidUpdated          = "anyone_bid_updated"
	EventLockedRebalanceEndedEarly = "locked_rebalance_ended_early"
)

// Field order of every event struct is part of the observer contract; do not
// reorder.

// RebalanceStartedEvent is emitted once per StartRebalance.
type RebalanceStartedEvent struct {
	Portfolio                 string                   `json:"portfolio"`
	QuoteAsset                string                   `json:"quote_asset"`
	IsPortfolioLocked         bool                     `json:"is_portfolio_locked"`
	RebalanceDuration         time.Duration            `json:"rebalance_duration"`
	InitialPositionMultiplier decimal.Decimal          `json:"initial_position_multiplier"`
	ComponentsInvolved        []string                 `json:"components_involved"`
	AuctionParameters         []AuctionExecutionParams `json:"auction_parameters"`
}

func (RebalanceStartedEvent) EventType() string { return EventRebalanceStarted }

// BidExecutedEvent is emitted after every settled bid.
type BidExecutedEvent struct {
	Portfolio             string          `json:"portfolio"`
	SentToken             string          `json:"sent_token"`
	ReceivedToken         string          `json:"received_token"`
	Bidder                string          `json:"bidder"`
	PriceAdapter          string          `json:"price_adapter"`
	IsSellAuction         bool            `json:"is_sell_auction"`
	Price                 decimal.Decimal `json:"price"`
	QuantitySentBySet     decimal.Decimal `json:"quantity_sent_by_set"`
	QuantityReceivedBySet decimal.Decimal `json:"quantity_received_by_set"`
	ProtocolFee           decimal.Decimal `json:"protocol_fee"`
	TotalSupply           decimal.Decimal `json:"total_supply"`
}

func (BidExecutedEvent) EventType() string { return EventBidExecuted }

// AssetTargetsRaisedEvent is emitted when the position multiplier shrinks.
type AssetTargetsRaisedEvent struct {
	Portfolio             string          `json:"portfolio"`
	NewPositionMultiplier decimal.Decimal `json:"new_position_multiplier"`
}

func (AssetTargetsRaisedEvent) EventType() string { return EventAssetTargetsRaised }

// BidderStatusUpdatedEvent is emitted when a bidder's allow-list entry changes.
type BidderStatusUpdatedEvent struct {
	Portfolio string `json:"portfolio"`
	Bidder    string `json:"bidder"`
	Status    bool   `json:"status"`
}

func (BidderStatusUpdatedEvent) EventType() string { return EventBidderStatusUpdated }

// AnyoneBidUpdatedEvent is emitted when the open-bidding flag changes.
type AnyoneBidUpdatedEvent struct {
	Portfolio string `json:"portfolio"`
	Status    bool   `json:"status"`
}

func (AnyoneBidUpdatedEvent) EventType() string { return EventAnyoneBidUpdated }

// LockedRebalanceEndedEarlyEvent is emitted when a locked rebalance unlocks
// before its duration elapses.
type LockedRebalanceEndedEarlyEvent struct {
	Portfolio string `json:"portfolio"`
}

func (LockedRebalanceEndedEarlyEvent) EventType() string { return EventLockedRebalanceEndedEarly }
