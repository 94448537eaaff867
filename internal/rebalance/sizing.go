package rebalance

import (
	"github.com/shopspring/decimal"

	"auction_rebalancer/internal/core"
	"auction_rebalancer/pkg/preciseunits"

	apperrors "auction_rebalancer/pkg/errors"
)

// normalizedTargetUnit scales a declared target unit from the multiplier
// snapshot taken at rebalance start to the portfolio's live multiplier.
// Raising targets shrinks the snapshot multiplier, which grows every live
// target proportionally.
func normalizedTargetUnit(st *portfolioState, targetUnit decimal.Decimal) (decimal.Decimal, error) {
	scaled, err := preciseunits.CheckedMul(targetUnit, st.portfolio.PositionMultiplier())
	if err != nil {
		return decimal.Zero, err
	}
	return preciseunits.CheckedDiv(scaled, st.info.PositionMultiplier)
}

// componentNotionals returns (currentNotional, targetNotional) for a
// component of the rebalance universe.
func (e *Engine) componentNotionals(st *portfolioState, component string) (decimal.Decimal, decimal.Decimal, error) {
	entry, ok := st.execution[component]
	if !ok {
		return decimal.Zero, decimal.Zero, apperrors.ErrComponentNotInUniverse
	}
	supply := st.portfolio.TotalSupply()
	current := preciseunits.NotionalFromUnit(st.portfolio.GetDefaultPositionRealUnit(component), supply)
	targetUnit, err := normalizedTargetUnit(st, entry.params.TargetUnit)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	target := preciseunits.NotionalFromUnit(targetUnit, supply)
	return current, target, nil
}

// sizeAndDirection computes the auction side and the notional quantity
// available for the component's current auction round. Buy-side quantities
// are grossed up for the protocol fee so the portfolio still receives
// exactly the deficit net of fee.
func (e *Engine) sizeAndDirection(st *portfolioState, component string) (core.AuctionSize, error) {
	current, target, err := e.componentNotionals(st, component)
	if err != nil {
		return core.AuctionSize{}, err
	}
	if current.Equal(target) {
		return core.AuctionSize{}, apperrors.ErrTargetAlreadyMet
	}

	isSell := current.GreaterThan(target)
	quantity := current.Sub(target).Abs()
	if !isSell && e.cfg.FeePercentage.IsPositive() {
		quantity, err = preciseunits.GrossUpForFee(quantity, e.cfg.FeePercentage)
		if err != nil {
			return core.AuctionSize{}, err
		}
	}
	return core.AuctionSize{IsSell: isSell, Quantity: quantity}, nil
}

// GetAuctionSizeAndDirection is the view form of sizing: it recomputes from
// live state at call time and fails "Target already met" on zero-size
// auctions.
func (e *Engine) GetAuctionSizeAndDirection(portfolioID, component string) (core.AuctionSize, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := e.state(portfolioID)
	if err != nil {
		return core.AuctionSize{}, err
	}
	if !st.hasRebalance {
		return core.AuctionSize{}, apperrors.ErrRebalanceNotInProgress
	}
	return e.sizeAndDirection(st, component)
}
