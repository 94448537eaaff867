package rebalance

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"auction_rebalancer/internal/core"

	apperrors "auction_rebalancer/pkg/errors"
)

// StartRebalance opens a new auction round on the portfolio. Manager-only.
// Old component params are positional against the portfolio's current
// component list; new components join the universe with zero holdings. The
// call replaces any previous round wholesale and resets the raise target
// percentage to zero.
func (e *Engine) StartRebalance(
	ctx context.Context,
	portfolioID, caller, quoteAsset string,
	oldComponentsAuctionParams []core.AuctionExecutionParams,
	newComponents []string,
	newComponentsAuctionParams []core.AuctionExecutionParams,
	shouldLock bool,
	duration time.Duration,
	initialPositionMultiplier decimal.Decimal,
) error {
	_, span := e.tracer.Start(ctx, "start_rebalance")
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := e.state(portfolioID)
	if err != nil {
		return err
	}
	if !st.portfolio.IsManager(caller) {
		return apperrors.ErrCallerNotManager
	}
	if duration <= 0 {
		return apperrors.ErrZeroDuration
	}

	oldComponents := st.portfolio.GetComponents()
	if len(oldComponentsAuctionParams) != len(oldComponents) {
		return apperrors.ErrOldComponentsLength
	}
	if len(newComponents) != len(newComponentsAuctionParams) {
		return apperrors.ErrNewComponentsLength
	}

	seen := make(map[string]bool, len(oldComponents)+len(newComponents))
	for _, component := range oldComponents {
		seen[component] = true
	}
	for i, component := range newComponents {
		if seen[component] || st.portfolio.HasComponent(component) {
			return apperrors.ErrDuplicateComponent
		}
		seen[component] = true
		if !newComponentsAuctionParams[i].TargetUnit.IsPositive() {
			return apperrors.ErrZeroTargetNewAsset
		}
	}
	for _, component := range oldComponents {
		if st.portfolio.HasExternalPositions(component) {
			return apperrors.ErrExternalPositions
		}
	}

	// Resolve and validate every adapter before touching state.
	execution := make(map[string]*executionEntry, len(oldComponents)+len(newComponents))
	order := make([]string, 0, len(oldComponents)+len(newComponents))
	bind := func(component string, params core.AuctionExecutionParams) error {
		adapter, err := e.registry.GetAdapter(params.PriceAdapterName)
		if err != nil {
			return err
		}
		if err := adapter.Validate(params.PriceAdapterConfigData); err != nil {
			return err
		}
		execution[component] = &executionEntry{params: params, adapter: adapter}
		order = append(order, component)
		return nil
	}
	for i, component := range oldComponents {
		if err := bind(component, oldComponentsAuctionParams[i]); err != nil {
			return err
		}
	}
	for i, component := range newComponents {
		if err := bind(component, newComponentsAuctionParams[i]); err != nil {
			return err
		}
	}

	if shouldLock {
		if err := st.portfolio.Lock(e.id); err != nil {
			return err
		}
	}
	for _, component := range newComponents {
		if err := st.portfolio.AddComponent(component); err != nil {
			return err
		}
	}

	hadRebalance := st.hasRebalance
	st.hasRebalance = true
	st.info = core.RebalanceInfo{
		QuoteAsset:            quoteAsset,
		StartTime:             e.now(),
		Duration:              duration,
		PositionMultiplier:    initialPositionMultiplier,
		RaiseTargetPercentage: decimal.Zero,
	}
	st.execution = execution
	st.componentOrder = order

	params := make([]core.AuctionExecutionParams, 0, len(order))
	for _, component := range order {
		params = append(params, execution[component].params)
	}
	e.recordCounter(e.metrics.RebalancesStartedTotal)
	if e.metrics.OpenRebalances != nil && !hadRebalance {
		e.metrics.OpenRebalances.Add(context.Background(), 1)
	}
	e.sink.Publish(ctx, core.RebalanceStartedEvent{
		Portfolio:                 portfolioID,
		QuoteAsset:                quoteAsset,
		IsPortfolioLocked:         shouldLock,
		RebalanceDuration:         duration,
		InitialPositionMultiplier: initialPositionMultiplier,
		ComponentsInvolved:        order,
		AuctionParameters:         params,
	})
	e.logger.Info("Rebalance started",
		"portfolio", portfolioID,
		"quote_asset", quoteAsset,
		"duration", duration.String(),
		"locked", shouldLock,
		"components", len(order))
	e.persist(st)
	return nil
}

// Unlock releases the portfolio lock held by the engine. Anyone may call it
// once the rebalance duration elapses. Before that it succeeds only when all
// targets are met and the raise target percentage is zero; an early unlock
// also ends the rebalance and emits LockedRebalanceEndedEarly.
func (e *Engine) Unlock(ctx context.Context, portfolioID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := e.state(portfolioID)
	if err != nil {
		return err
	}
	if locker, held := st.portfolio.Locker(); !held || locker != e.id {
		return apperrors.ErrCannotUnlockEarly
	}
	if e.durationElapsed(st) {
		return st.portfolio.Unlock(e.id)
	}

	met, err := e.allTargetsMet(st)
	if err != nil {
		return err
	}
	if !met || !st.info.RaiseTargetPercentage.IsZero() {
		return apperrors.ErrCannotUnlockEarly
	}
	if err := st.portfolio.Unlock(e.id); err != nil {
		return err
	}
	st.hasRebalance = false
	if e.metrics.OpenRebalances != nil {
		e.metrics.OpenRebalances.Add(context.Background(), -1)
	}
	e.recordCounter(e.metrics.EarlyUnlocksTotal)
	e.sink.Publish(ctx, core.LockedRebalanceEndedEarlyEvent{Portfolio: portfolioID})
	e.logger.Info("Locked rebalance ended early", "portfolio", portfolioID)
	e.persist(st)
	return nil
}

// RemoveModule deregisters a portfolio, tearing down bidder permissions, the
// anyone-bid flag and any lock the engine still holds. Manager-only.
func (e *Engine) RemoveModule(portfolioID, caller string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := e.state(portfolioID)
	if err != nil {
		return err
	}
	if !st.portfolio.IsManager(caller) {
		return apperrors.ErrCallerNotManager
	}
	if locker, held := st.portfolio.Locker(); held && locker == e.id {
		if err := st.portfolio.Unlock(e.id); err != nil {
			return err
		}
	}
	delete(e.portfolios, portfolioID)
	if st.hasRebalance && e.metrics.OpenRebalances != nil {
		e.metrics.OpenRebalances.Add(context.Background(), -1)
	}
	// Record the teardown so a later re-initialization does not resurrect
	// the round or the bidder permissions.
	st.hasRebalance = false
	st.permittedBidders = make(map[string]bool)
	st.anyoneBid = false
	e.persist(st)
	e.logger.Info("Portfolio removed", "portfolio", portfolioID)
	return nil
}
