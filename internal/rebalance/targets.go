package rebalance

import (
	"context"

	"github.com/shopspring/decimal"

	"auction_rebalancer/internal/core"
	"auction_rebalancer/pkg/preciseunits"

	apperrors "auction_rebalancer/pkg/errors"
)

// allTargetsMet reports whether every non-quote component of the rebalance
// universe sits exactly at its target notional. Callers hold e.mu.
func (e *Engine) allTargetsMet(st *portfolioState) (bool, error) {
	for _, component := range st.componentOrder {
		if component == st.info.QuoteAsset {
			continue
		}
		current, target, err := e.componentNotionals(st, component)
		if err != nil {
			return false, err
		}
		if !current.Equal(target) {
			return false, nil
		}
	}
	return true, nil
}

// quoteAssetExcessOrAtTarget reports whether the quote asset holds at least
// its own target notional. A quote asset without an execution entry targets
// zero. Callers hold e.mu.
func (e *Engine) quoteAssetExcessOrAtTarget(st *portfolioState, strict bool) (bool, error) {
	supply := st.portfolio.TotalSupply()
	current := preciseunits.NotionalFromUnit(
		st.portfolio.GetDefaultPositionRealUnit(st.info.QuoteAsset), supply)

	target := decimal.Zero
	if entry, ok := st.execution[st.info.QuoteAsset]; ok {
		targetUnit, err := normalizedTargetUnit(st, entry.params.TargetUnit)
		if err != nil {
			return false, err
		}
		target = preciseunits.NotionalFromUnit(targetUnit, supply)
	}
	if strict {
		return current.GreaterThan(target), nil
	}
	return current.GreaterThanOrEqual(target), nil
}

// RaiseAssetTargets raises every live target by the configured raise
// percentage. Only permitted bidders may call it, only while all component
// targets are met and the portfolio still holds excess quote asset to fund
// the raised targets.
func (e *Engine) RaiseAssetTargets(ctx context.Context, portfolioID, caller string) error {
	_, span := e.tracer.Start(ctx, "raise_asset_targets")
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := e.state(portfolioID)
	if err != nil {
		return err
	}
	if !e.isAllowedBidder(st, caller) {
		return apperrors.ErrBidderNotAllowed
	}
	if !e.inProgress(st) {
		return apperrors.ErrRebalanceNotInProgress
	}
	met, err := e.allTargetsMet(st)
	if err != nil {
		return err
	}
	excess, err := e.quoteAssetExcessOrAtTarget(st, true)
	if err != nil {
		return err
	}
	if !met || !excess {
		return apperrors.ErrTargetsNotMet
	}
	if !st.info.RaiseTargetPercentage.IsPositive() {
		return apperrors.ErrTargetsNotMet
	}

	// Shrinking the multiplier snapshot scales every normalized target up by
	// (1 + raiseTargetPercentage).
	divisor, err := preciseunits.CheckedAdd(preciseunits.One, st.info.RaiseTargetPercentage)
	if err != nil {
		return err
	}
	newMultiplier, err := preciseunits.CheckedDiv(st.info.PositionMultiplier, divisor)
	if err != nil {
		return err
	}
	st.info.PositionMultiplier = newMultiplier

	e.recordCounter(e.metrics.TargetsRaisedTotal)
	e.sink.Publish(ctx, core.AssetTargetsRaisedEvent{
		Portfolio:             portfolioID,
		NewPositionMultiplier: newMultiplier,
	})
	e.logger.Info("Asset targets raised",
		"portfolio", portfolioID,
		"new_position_multiplier", newMultiplier.String(),
		"raise_target_percentage", st.info.RaiseTargetPercentage.String())
	e.persist(st)
	return nil
}

// AllTargetsMet is the view form of target checking.
func (e *Engine) AllTargetsMet(portfolioID string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := e.state(portfolioID)
	if err != nil {
		return false, err
	}
	if !st.hasRebalance {
		return false, apperrors.ErrRebalanceNotInProgress
	}
	return e.allTargetsMet(st)
}

// IsQuoteAssetExcessOrAtTarget reports whether the quote asset balance covers
// its target.
func (e *Engine) IsQuoteAssetExcessOrAtTarget(portfolioID string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := e.state(portfolioID)
	if err != nil {
		return false, err
	}
	if !st.hasRebalance {
		return false, apperrors.ErrRebalanceNotInProgress
	}
	return e.quoteAssetExcessOrAtTarget(st, false)
}
