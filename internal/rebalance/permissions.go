package rebalance

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"auction_rebalancer/internal/core"

	apperrors "auction_rebalancer/pkg/errors"
)

// isAllowedBidder reports whether bidder may settle against the portfolio.
// Callers hold e.mu.
func (e *Engine) isAllowedBidder(st *portfolioState, bidder string) bool {
	return st.anyoneBid || st.permittedBidders[bidder]
}

// SetBidderStatus updates the bidder allow-list. Manager-only. Entries are
// positional: bidders[i] gets statuses[i].
func (e *Engine) SetBidderStatus(ctx context.Context, portfolioID, caller string, bidders []string, statuses []bool) error {
	if len(bidders) != len(statuses) {
		return apperrors.ErrNewComponentsLength
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := e.state(portfolioID)
	if err != nil {
		return err
	}
	if !st.portfolio.IsManager(caller) {
		return apperrors.ErrCallerNotManager
	}
	for i, bidder := range bidders {
		if statuses[i] {
			st.permittedBidders[bidder] = true
		} else {
			delete(st.permittedBidders, bidder)
		}
		e.sink.Publish(ctx, core.BidderStatusUpdatedEvent{
			Portfolio: portfolioID,
			Bidder:    bidder,
			Status:    statuses[i],
		})
		e.logger.Info("Bidder status updated",
			"portfolio", portfolioID, "bidder", bidder, "status", statuses[i])
	}
	e.persist(st)
	return nil
}

// SetAnyoneBid toggles open bidding. Manager-only. While true the allow-list
// is ignored but preserved.
func (e *Engine) SetAnyoneBid(ctx context.Context, portfolioID, caller string, status bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := e.state(portfolioID)
	if err != nil {
		return err
	}
	if !st.portfolio.IsManager(caller) {
		return apperrors.ErrCallerNotManager
	}
	st.anyoneBid = status
	e.sink.Publish(ctx, core.AnyoneBidUpdatedEvent{Portfolio: portfolioID, Status: status})
	e.logger.Info("Anyone-bid updated", "portfolio", portfolioID, "status", status)
	e.persist(st)
	return nil
}

// SetRaiseTargetPercentage sets the percentage applied by RaiseAssetTargets.
// Manager-only. Zero disables raising; the value resets to zero on every
// StartRebalance. Extreme values are not rejected here — the overflow check
// at raise time catches them.
func (e *Engine) SetRaiseTargetPercentage(portfolioID, caller string, percentage decimal.Decimal) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := e.state(portfolioID)
	if err != nil {
		return err
	}
	if !st.portfolio.IsManager(caller) {
		return apperrors.ErrCallerNotManager
	}
	if percentage.IsNegative() {
		return apperrors.ErrAdditionOverflow
	}
	st.info.RaiseTargetPercentage = percentage
	e.logger.Info("Raise target percentage updated",
		"portfolio", portfolioID, "percentage", percentage.String())
	e.persist(st)
	return nil
}

// IsAllowedBidder reports whether a bidder may currently bid.
func (e *Engine) IsAllowedBidder(portfolioID, bidder string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := e.state(portfolioID)
	if err != nil {
		return false, err
	}
	return e.isAllowedBidder(st, bidder), nil
}

// GetAllowedBidders returns the allow-list, sorted for stable output. Empty
// with anyoneBid set means everyone may bid.
func (e *Engine) GetAllowedBidders(portfolioID string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := e.state(portfolioID)
	if err != nil {
		return nil, err
	}
	bidders := make([]string, 0, len(st.permittedBidders))
	for bidder := range st.permittedBidders {
		bidders = append(bidders, bidder)
	}
	sort.Strings(bidders)
	return bidders, nil
}
