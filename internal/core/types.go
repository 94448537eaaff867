// Package core defines the shared types and interfaces of the auction
// rebalancing system.
package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionExecutionParams declares how a single component is auctioned during
// a rebalance: the unit target it converges to and the price curve that
// prices bids against it.
type AuctionExecutionParams struct {
	// TargetUnit is the desired position unit (balance per unit of total
	// supply), declared relative to the position multiplier snapshot taken
	// at rebalance start.
	TargetUnit decimal.Decimal `json:"target_unit"`

	// PriceAdapterName resolves the price curve through the adapter registry.
	PriceAdapterName string `json:"price_adapter_name"`

	// PriceAdapterConfigData is opaque to the engine; the named adapter
	// validates and decodes it.
	PriceAdapterConfigData []byte `json:"price_adapter_config_data"`
}

// RebalanceInfo is the per-portfolio state of one rebalance.
type RebalanceInfo struct {
	QuoteAsset            string          `json:"quote_asset"`
	StartTime             time.Time       `json:"start_time"`
	Duration              time.Duration   `json:"duration"`
	PositionMultiplier    decimal.Decimal `json:"position_multiplier"`
	RaiseTargetPercentage decimal.Decimal `json:"raise_target_percentage"`
}

// AuctionSize is the result of sizing a component auction.
type AuctionSize struct {
	// IsSell is true when the portfolio holds more of the component than
	// its target and must give it up.
	IsSell bool

	// Quantity is the component notional available to bid on, grossed up
	// for the protocol fee on buy auctions.
	Quantity decimal.Decimal
}

// BidResult summarizes a settled bid.
type BidResult struct {
	ID                    string
	Portfolio             string
	SentToken             string
	ReceivedToken         string
	Bidder                string
	PriceAdapterName      string
	IsSellAuction         bool
	Price                 decimal.Decimal
	QuantitySentBySet     decimal.Decimal
	QuantityReceivedBySet decimal.Decimal
	ProtocolFee           decimal.Decimal
	TotalSupply           decimal.Decimal
}

// RebalanceSnapshot is the persisted form of a portfolio's rebalance state.
// Active records whether the round is still open; the permission fields let a
// restarted engine resume with the same bidder surface.
type RebalanceSnapshot struct {
	Portfolio        string                            `json:"portfolio"`
	Active           bool                              `json:"active"`
	Info             RebalanceInfo                     `json:"info"`
	ExecutionInfo    map[string]AuctionExecutionParams `json:"execution_info"`
	ComponentOrder   []string                          `json:"component_order"`
	PermittedBidders []string                          `json:"permitted_bidders"`
	AnyoneBid        bool                              `json:"anyone_bid"`
	Version          int64                             `json:"version"`
}

// BidRecord is the persisted form of one executed bid.
type BidRecord struct {
	ID                    string          `json:"id"`
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
	ExecutedAt            time.Time       `json:"executed_at"`
}
