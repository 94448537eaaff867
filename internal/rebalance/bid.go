package rebalance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"auction_rebalancer/internal/core"
	"auction_rebalancer/pkg/preciseunits"

	apperrors "auction_rebalancer/pkg/errors"
)

// settlement is a fully validated bid, ready to apply. Everything is computed
// before the first transfer so a failed bid leaves no partial state.
type settlement struct {
	component     string
	quoteAsset    string
	adapterName   string
	isSell        bool
	price         decimal.Decimal
	quantity      decimal.Decimal // gross component quantity moved
	quoteNotional decimal.Decimal // gross quote moved
	protocolFee   decimal.Decimal // taken from the side flowing into the portfolio

	// Portfolio-perspective flows for the result and event.
	sentToken             string
	receivedToken         string
	quantitySentBySet     decimal.Decimal
	quantityReceivedBySet decimal.Decimal

	// Post-settlement component balances.
	newComponentNotional decimal.Decimal
	newQuoteNotional     decimal.Decimal
}

// prepareBid validates a bid against live state and prices it. Callers hold
// e.mu. No state is mutated.
func (e *Engine) prepareBid(st *portfolioState, bidder, component string, componentQuantity, quoteQuantityLimit decimal.Decimal) (*settlement, error) {
	if !e.inProgress(st) {
		return nil, apperrors.ErrRebalanceNotInProgress
	}
	if !e.isAllowedBidder(st, bidder) {
		return nil, apperrors.ErrBidderNotAllowed
	}
	if component == st.info.QuoteAsset {
		return nil, apperrors.ErrQuoteAssetIsComponent
	}
	entry, ok := st.execution[component]
	if !ok {
		return nil, apperrors.ErrComponentNotInUniverse
	}
	if st.portfolio.HasExternalPositions(component) {
		return nil, apperrors.ErrExternalPositions
	}
	if !componentQuantity.IsPositive() {
		return nil, apperrors.ErrZeroBidQuantity
	}

	size, err := e.sizeAndDirection(st, component)
	if err != nil {
		return nil, err
	}
	if componentQuantity.GreaterThan(size.Quantity) {
		return nil, apperrors.ErrBidExceedsAuctionSize
	}

	price, err := entry.adapter.Price(e.elapsed(st), entry.params.PriceAdapterConfigData)
	if err != nil {
		return nil, err
	}
	quoteNotional, err := preciseunits.CheckedMul(componentQuantity, price)
	if err != nil {
		return nil, err
	}

	supply := st.portfolio.TotalSupply()
	componentNotional := preciseunits.NotionalFromUnit(
		st.portfolio.GetDefaultPositionRealUnit(component), supply)
	quoteHeld := preciseunits.NotionalFromUnit(
		st.portfolio.GetDefaultPositionRealUnit(st.info.QuoteAsset), supply)

	s := &settlement{
		component:     component,
		quoteAsset:    st.info.QuoteAsset,
		adapterName:   entry.params.PriceAdapterName,
		isSell:        size.IsSell,
		price:         price,
		quantity:      componentQuantity,
		quoteNotional: quoteNotional,
	}

	if size.IsSell {
		// Portfolio sells component for quote; limit caps what the bidder pays.
		if quoteNotional.GreaterThan(quoteQuantityLimit) {
			return nil, apperrors.ErrQuoteQuantityExceeds
		}
		s.protocolFee = preciseunits.FeeAmount(quoteNotional, e.cfg.FeePercentage)
		s.sentToken = component
		s.receivedToken = st.info.QuoteAsset
		s.quantitySentBySet = componentQuantity
		s.quantityReceivedBySet = quoteNotional.Sub(s.protocolFee)
		s.newComponentNotional = componentNotional.Sub(componentQuantity)
		s.newQuoteNotional = quoteHeld.Add(s.quantityReceivedBySet)
	} else {
		// Portfolio buys component with quote; limit floors what the bidder
		// receives.
		if quoteNotional.LessThan(quoteQuantityLimit) {
			return nil, apperrors.ErrQuoteQuantityBelow
		}
		if quoteHeld.LessThan(quoteNotional) {
			return nil, apperrors.ErrInsufficientQuoteAsset
		}
		s.protocolFee = preciseunits.FeeAmount(componentQuantity, e.cfg.FeePercentage)
		s.sentToken = st.info.QuoteAsset
		s.receivedToken = component
		s.quantitySentBySet = quoteNotional
		s.quantityReceivedBySet = componentQuantity.Sub(s.protocolFee)
		s.newComponentNotional = componentNotional.Add(s.quantityReceivedBySet)
		s.newQuoteNotional = quoteHeld.Sub(quoteNotional)
	}
	return s, nil
}

// applyBid moves tokens and rewrites position units for a prepared
// settlement. Bidder funds are checked up front so custody never half-applies
// a bid. Callers hold e.mu.
func (e *Engine) applyBid(ctx context.Context, st *portfolioState, bidder string, s *settlement) error {
	portfolioID := st.portfolio.ID()
	supply := st.portfolio.TotalSupply()

	if s.isSell {
		if e.transfer.BalanceOf(s.quoteAsset, bidder).LessThan(s.quoteNotional) {
			return apperrors.ErrInsufficientFunds
		}
		if err := e.transfer.Transfer(ctx, s.component, portfolioID, bidder, s.quantity); err != nil {
			return err
		}
		if err := e.transfer.Transfer(ctx, s.quoteAsset, bidder, portfolioID, s.quantityReceivedBySet); err != nil {
			return err
		}
		if err := e.transfer.Transfer(ctx, s.quoteAsset, bidder, e.cfg.FeeRecipient, s.protocolFee); err != nil {
			return err
		}
	} else {
		if e.transfer.BalanceOf(s.component, bidder).LessThan(s.quantity) {
			return apperrors.ErrInsufficientFunds
		}
		if err := e.transfer.Transfer(ctx, s.component, bidder, portfolioID, s.quantityReceivedBySet); err != nil {
			return err
		}
		if err := e.transfer.Transfer(ctx, s.component, bidder, e.cfg.FeeRecipient, s.protocolFee); err != nil {
			return err
		}
		if err := e.transfer.Transfer(ctx, s.quoteAsset, portfolioID, bidder, s.quoteNotional); err != nil {
			return err
		}
	}

	newComponentUnit, err := preciseunits.UnitFromBalance(s.newComponentNotional, supply)
	if err != nil {
		return err
	}
	newQuoteUnit, err := preciseunits.UnitFromBalance(s.newQuoteNotional, supply)
	if err != nil {
		return err
	}
	if s.newComponentNotional.IsZero() {
		if err := st.portfolio.RemoveComponent(s.component); err != nil {
			return err
		}
		delete(st.execution, s.component)
		for i, c := range st.componentOrder {
			if c == s.component {
				st.componentOrder = append(st.componentOrder[:i], st.componentOrder[i+1:]...)
				break
			}
		}
	} else if err := st.portfolio.EditDefaultPosition(s.component, newComponentUnit); err != nil {
		return err
	}
	if !st.portfolio.HasComponent(s.quoteAsset) {
		if err := st.portfolio.AddComponent(s.quoteAsset); err != nil {
			return err
		}
	}
	return st.portfolio.EditDefaultPosition(s.quoteAsset, newQuoteUnit)
}

// Bid settles a bid against a component's running auction. The call is
// atomic: every precondition is checked and the bidder's funds verified
// before the first transfer.
func (e *Engine) Bid(ctx context.Context, portfolioID, bidder, component string, componentQuantity, quoteQuantityLimit decimal.Decimal) (*core.BidResult, error) {
	ctx, span := e.tracer.Start(ctx, "bid")
	defer span.End()
	span.SetAttributes(
		attribute.String("portfolio", portfolioID),
		attribute.String("component", component),
	)
	started := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := e.state(portfolioID)
	if err != nil {
		return nil, err
	}
	s, err := e.prepareBid(st, bidder, component, componentQuantity, quoteQuantityLimit)
	if err != nil {
		e.recordCounter(e.metrics.BidsRejectedTotal)
		return nil, err
	}
	if err := e.applyBid(ctx, st, bidder, s); err != nil {
		e.recordCounter(e.metrics.BidsRejectedTotal)
		return nil, err
	}

	result := &core.BidResult{
		ID:                    uuid.NewString(),
		Portfolio:             portfolioID,
		SentToken:             s.sentToken,
		ReceivedToken:         s.receivedToken,
		Bidder:                bidder,
		PriceAdapterName:      s.adapterName,
		IsSellAuction:         s.isSell,
		Price:                 s.price,
		QuantitySentBySet:     s.quantitySentBySet,
		QuantityReceivedBySet: s.quantityReceivedBySet,
		ProtocolFee:           s.protocolFee,
		TotalSupply:           st.portfolio.TotalSupply(),
	}

	e.recordCounter(e.metrics.BidsExecutedTotal,
		metric.WithAttributes(attribute.Bool("is_sell", s.isSell)))
	if e.metrics.BidVolumeQuote != nil {
		e.metrics.BidVolumeQuote.Add(context.Background(), s.quoteNotional.InexactFloat64())
	}
	if e.metrics.ProtocolFeesTotal != nil {
		e.metrics.ProtocolFeesTotal.Add(context.Background(), s.protocolFee.InexactFloat64())
	}
	if e.metrics.SettlementLatency != nil {
		e.metrics.SettlementLatency.Record(context.Background(), time.Since(started).Seconds())
	}

	e.sink.Publish(ctx, core.BidExecutedEvent{
		Portfolio:             result.Portfolio,
		SentToken:             result.SentToken,
		ReceivedToken:         result.ReceivedToken,
		Bidder:                result.Bidder,
		PriceAdapter:          result.PriceAdapterName,
		IsSellAuction:         result.IsSellAuction,
		Price:                 result.Price,
		QuantitySentBySet:     result.QuantitySentBySet,
		QuantityReceivedBySet: result.QuantityReceivedBySet,
		ProtocolFee:           result.ProtocolFee,
		TotalSupply:           result.TotalSupply,
	})
	e.logger.Info("Bid executed",
		"portfolio", portfolioID,
		"bidder", bidder,
		"component", component,
		"is_sell", s.isSell,
		"price", s.price.String(),
		"quantity", s.quantity.String(),
		"quote_notional", s.quoteNotional.String(),
		"protocol_fee", s.protocolFee.String())

	if e.store != nil {
		record := &core.BidRecord{
			ID:                    result.ID,
			Portfolio:             result.Portfolio,
			SentToken:             result.SentToken,
			ReceivedToken:         result.ReceivedToken,
			Bidder:                result.Bidder,
			PriceAdapter:          result.PriceAdapterName,
			IsSellAuction:         result.IsSellAuction,
			Price:                 result.Price,
			QuantitySentBySet:     result.QuantitySentBySet,
			QuantityReceivedBySet: result.QuantityReceivedBySet,
			ProtocolFee:           result.ProtocolFee,
			TotalSupply:           result.TotalSupply,
			ExecutedAt:            e.now(),
		}
		if err := e.store.AppendBid(context.Background(), record); err != nil {
			e.logger.Error("Failed to persist bid record", "bid", result.ID, "error", err)
		}
	}
	e.persist(st)
	return result, nil
}

// GetBidPreview prices a bid against live state without settling it.
func (e *Engine) GetBidPreview(portfolioID, bidder, component string, componentQuantity, quoteQuantityLimit decimal.Decimal) (*core.BidResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := e.state(portfolioID)
	if err != nil {
		return nil, err
	}
	s, err := e.prepareBid(st, bidder, component, componentQuantity, quoteQuantityLimit)
	if err != nil {
		return nil, err
	}
	return &core.BidResult{
		Portfolio:             portfolioID,
		SentToken:             s.sentToken,
		ReceivedToken:         s.receivedToken,
		Bidder:                bidder,
		PriceAdapterName:      s.adapterName,
		IsSellAuction:         s.isSell,
		Price:                 s.price,
		QuantitySentBySet:     s.quantitySentBySet,
		QuantityReceivedBySet: s.quantityReceivedBySet,
		ProtocolFee:           s.protocolFee,
		TotalSupply:           st.portfolio.TotalSupply(),
	}, nil
}
