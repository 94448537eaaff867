// Package rebalance implements the Dutch-auction portfolio rebalancing
// engine: a per-portfolio state machine that moves a basket from its current
// composition toward manager-declared targets through time-boxed,
// price-curve-driven auctions settled against a quote asset.
package rebalance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"auction_rebalancer/internal/core"
	"auction_rebalancer/pkg/telemetry"

	apperrors "auction_rebalancer/pkg/errors"
)

// Config holds engine-level settings.
type Config struct {
	// Owner may perform engine administration that is not portfolio-scoped.
	Owner string

	// FeePercentage is the protocol fee taken from the side flowing into the
	// portfolio on every bid. Zero disables fees.
	FeePercentage decimal.Decimal

	// FeeRecipient receives protocol fees.
	FeeRecipient string
}

// executionEntry caches the resolved adapter next to the declared params so
// bids never hit the registry.
type executionEntry struct {
	params  core.AuctionExecutionParams
	adapter core.IPriceAdapter
}

// portfolioState is everything the engine tracks for one portfolio.
type portfolioState struct {
	portfolio core.IPortfolio

	hasRebalance   bool
	info           core.RebalanceInfo
	execution      map[string]*executionEntry
	componentOrder []string // rebalance universe, insertion-ordered

	permittedBidders map[string]bool
	anyoneBid        bool

	version int64
}

// Engine is the auction rebalancing module. Every exported call is atomic:
// it either completes fully or returns an error with no state change.
type Engine struct {
	id     string
	cfg    Config
	logger core.ILogger

	registry core.IAdapterRegistry
	transfer core.ITransferAgent
	store    core.IRebalanceStore
	sink     core.IEventSink

	now func() time.Time

	mu         sync.Mutex
	portfolios map[string]*portfolioState

	tracer  trace.Tracer
	metrics *telemetry.MetricsHolder
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithStore attaches a rebalance store.
func WithStore(store core.IRebalanceStore) Option {
	return func(e *Engine) { e.store = store }
}

// WithEventSink attaches an event sink.
func WithEventSink(sink core.IEventSink) Option {
	return func(e *Engine) { e.sink = sink }
}

// NewEngine creates an engine. The engine's generated ID doubles as its
// lock-holder token on portfolios.
func NewEngine(cfg Config, registry core.IAdapterRegistry, transfer core.ITransferAgent, logger core.ILogger, opts ...Option) *Engine {
	e := &Engine{
		id:         "auction-rebalance-" + uuid.NewString(),
		cfg:        cfg,
		logger:     logger.WithField("component", "rebalance_engine"),
		registry:   registry,
		transfer:   transfer,
		sink:       NopSink{},
		now:        time.Now,
		portfolios: make(map[string]*portfolioState),
		tracer:     telemetry.GetTracer("rebalance-engine"),
		metrics:    telemetry.GetGlobalMetrics(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ID returns the engine's lock-holder token.
func (e *Engine) ID() string { return e.id }

// Initialize registers a portfolio with the engine. Manager-only. When the
// attached store holds a snapshot for the portfolio, the previous rebalance
// state is rehydrated so an open round survives a process restart.
func (e *Engine) Initialize(portfolio core.IPortfolio, caller string) error {
	if !portfolio.IsManager(caller) {
		return apperrors.ErrCallerNotManager
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.portfolios[portfolio.ID()]; ok {
		return apperrors.ErrAlreadyInitialized
	}
	st := &portfolioState{
		portfolio:        portfolio,
		execution:        make(map[string]*executionEntry),
		permittedBidders: make(map[string]bool),
	}
	if err := e.restore(st); err != nil {
		return err
	}
	e.portfolios[portfolio.ID()] = st
	e.logger.Info("Portfolio initialized", "portfolio", portfolio.ID())
	return nil
}

// restore rehydrates a portfolio's state from the attached store. Adapters
// are re-resolved through the registry so a snapshot naming a curve this
// deployment no longer ships fails loudly instead of pricing bids with stale
// config. Callers hold e.mu.
func (e *Engine) restore(st *portfolioState) error {
	if e.store == nil {
		return nil
	}
	snapshot, err := e.store.LoadSnapshot(context.Background(), st.portfolio.ID())
	if err != nil || snapshot == nil {
		return err
	}
	execution := make(map[string]*executionEntry, len(snapshot.ExecutionInfo))
	for component, params := range snapshot.ExecutionInfo {
		adapter, err := e.registry.GetAdapter(params.PriceAdapterName)
		if err != nil {
			return err
		}
		if err := adapter.Validate(params.PriceAdapterConfigData); err != nil {
			return err
		}
		execution[component] = &executionEntry{params: params, adapter: adapter}
	}
	st.hasRebalance = snapshot.Active
	st.info = snapshot.Info
	st.execution = execution
	st.componentOrder = append([]string(nil), snapshot.ComponentOrder...)
	for _, bidder := range snapshot.PermittedBidders {
		st.permittedBidders[bidder] = true
	}
	st.anyoneBid = snapshot.AnyoneBid
	st.version = snapshot.Version
	if snapshot.Active {
		if e.metrics.OpenRebalances != nil {
			e.metrics.OpenRebalances.Add(context.Background(), 1)
		}
		e.logger.Info("Rebalance state restored",
			"portfolio", st.portfolio.ID(),
			"quote_asset", snapshot.Info.QuoteAsset,
			"components", len(snapshot.ComponentOrder),
			"version", snapshot.Version)
	}
	return nil
}

// state returns the registered state for a portfolio. Callers hold e.mu.
func (e *Engine) state(portfolioID string) (*portfolioState, error) {
	st, ok := e.portfolios[portfolioID]
	if !ok {
		return nil, apperrors.ErrModuleNotEnabled
	}
	return st, nil
}

// elapsed returns time since rebalance start, floored at zero.
func (e *Engine) elapsed(st *portfolioState) time.Duration {
	d := e.now().Sub(st.info.StartTime)
	if d < 0 {
		return 0
	}
	return d
}

// durationElapsed reports whether the rebalance window has closed.
func (e *Engine) durationElapsed(st *portfolioState) bool {
	return !e.now().Before(st.info.StartTime.Add(st.info.Duration))
}

// inProgress reports whether bids are currently accepted.
func (e *Engine) inProgress(st *portfolioState) bool {
	return st.hasRebalance && !e.durationElapsed(st)
}

// recordCounter is a nil-safe metric increment helper.
func (e *Engine) recordCounter(counter metric.Int64Counter, opts ...metric.AddOption) {
	if counter != nil {
		counter.Add(context.Background(), 1, opts...)
	}
}

// snapshot builds the persistable view of a portfolio's rebalance state.
// Callers hold e.mu.
func (e *Engine) snapshot(st *portfolioState) *core.RebalanceSnapshot {
	execution := make(map[string]core.AuctionExecutionParams, len(st.execution))
	for component, entry := range st.execution {
		execution[component] = entry.params
	}
	order := make([]string, len(st.componentOrder))
	copy(order, st.componentOrder)
	bidders := make([]string, 0, len(st.permittedBidders))
	for bidder := range st.permittedBidders {
		bidders = append(bidders, bidder)
	}
	sort.Strings(bidders)
	return &core.RebalanceSnapshot{
		Portfolio:        st.portfolio.ID(),
		Active:           st.hasRebalance,
		Info:             st.info,
		ExecutionInfo:    execution,
		ComponentOrder:   order,
		PermittedBidders: bidders,
		AnyoneBid:        st.anyoneBid,
		Version:          st.version,
	}
}

// persist writes the snapshot through the store, if one is attached.
// Persistence failures are logged, not surfaced: the in-memory state is the
// source of truth and the snapshot is recoverable on the next mutation.
func (e *Engine) persist(st *portfolioState) {
	if e.store == nil {
		return
	}
	st.version++
	if err := e.store.SaveSnapshot(context.Background(), e.snapshot(st)); err != nil {
		e.logger.Error("Failed to persist rebalance snapshot",
			"portfolio", st.portfolio.ID(), "error", err)
	}
}
