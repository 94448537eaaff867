package alert

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"auction_rebalancer/internal/core"
)

// Notifier maps engine events to operator alerts. It implements
// core.IEventSink, so it slots into the same fan-out as the live server.
// Routine events pass through silently; only state transitions an operator
// acts on become alerts.
type Notifier struct {
	manager *AlertManager

	// largeBidThreshold is the quote notional above which a settled bid is
	// worth an operator's attention. Zero disables bid alerts.
	largeBidThreshold decimal.Decimal
}

// NewNotifier creates a sink publishing into the alert manager.
func NewNotifier(manager *AlertManager, largeBidThreshold decimal.Decimal) *Notifier {
	return &Notifier{manager: manager, largeBidThreshold: largeBidThreshold}
}

func (n *Notifier) Publish(ctx context.Context, event core.Event) {
	switch ev := event.(type) {
	case core.RebalanceStartedEvent:
		n.manager.Alert(ctx, "Rebalance started",
			fmt.Sprintf("Portfolio %s opened a rebalance against %s", ev.Portfolio, ev.QuoteAsset),
			Info, map[string]string{
				"portfolio":   ev.Portfolio,
				"quote_asset": ev.QuoteAsset,
				"duration":    ev.RebalanceDuration.String(),
				"locked":      fmt.Sprintf("%t", ev.IsPortfolioLocked),
				"components":  fmt.Sprintf("%d", len(ev.ComponentsInvolved)),
			})

	case core.BidExecutedEvent:
		if n.largeBidThreshold.IsZero() {
			return
		}
		notional := ev.QuantitySentBySet
		if ev.IsSellAuction {
			notional = ev.QuantityReceivedBySet
		}
		if notional.LessThan(n.largeBidThreshold) {
			return
		}
		n.manager.Alert(ctx, "Large bid settled",
			fmt.Sprintf("Bidder %s moved %s %s against portfolio %s",
				ev.Bidder, notional.String(), ev.SentToken, ev.Portfolio),
			Warning, map[string]string{
				"portfolio": ev.Portfolio,
				"bidder":    ev.Bidder,
				"price":     ev.Price.String(),
				"sell":      fmt.Sprintf("%t", ev.IsSellAuction),
			})

	case core.LockedRebalanceEndedEarlyEvent:
		n.manager.Alert(ctx, "Locked rebalance ended early",
			fmt.Sprintf("Portfolio %s hit all targets and unlocked before its window closed", ev.Portfolio),
			Info, map[string]string{"portfolio": ev.Portfolio})

	case core.AnyoneBidUpdatedEvent:
		if !ev.Status {
			return
		}
		// Opening bidding to everyone is a material permission change.
		n.manager.Alert(ctx, "Open bidding enabled",
			fmt.Sprintf("Portfolio %s now accepts bids from any address", ev.Portfolio),
			Warning, map[string]string{"portfolio": ev.Portfolio})
	}
}
