package rebalance

import (
	"auction_rebalancer/internal/core"

	apperrors "auction_rebalancer/pkg/errors"
)

// GetRebalanceInfo returns the live rebalance state of a portfolio.
func (e *Engine) GetRebalanceInfo(portfolioID string) (core.RebalanceInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := e.state(portfolioID)
	if err != nil {
		return core.RebalanceInfo{}, err
	}
	if !st.hasRebalance {
		return core.RebalanceInfo{}, apperrors.ErrRebalanceNotInProgress
	}
	return st.info, nil
}

// GetRebalanceComponents returns the rebalance universe in declaration order.
func (e *Engine) GetRebalanceComponents(portfolioID string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := e.state(portfolioID)
	if err != nil {
		return nil, err
	}
	if !st.hasRebalance {
		return nil, apperrors.ErrRebalanceNotInProgress
	}
	out := make([]string, len(st.componentOrder))
	copy(out, st.componentOrder)
	return out, nil
}

// GetAuctionExecutionParams returns the declared auction params for one
// component of the universe.
func (e *Engine) GetAuctionExecutionParams(portfolioID, component string) (core.AuctionExecutionParams, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := e.state(portfolioID)
	if err != nil {
		return core.AuctionExecutionParams{}, err
	}
	entry, ok := st.execution[component]
	if !ok {
		return core.AuctionExecutionParams{}, apperrors.ErrComponentNotInUniverse
	}
	return entry.params, nil
}

// IsRebalanceDurationElapsed reports whether the rebalance window has closed.
func (e *Engine) IsRebalanceDurationElapsed(portfolioID string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := e.state(portfolioID)
	if err != nil {
		return false, err
	}
	if !st.hasRebalance {
		return false, apperrors.ErrRebalanceNotInProgress
	}
	return e.durationElapsed(st), nil
}
