package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// IPortfolio is the token-balance ledger collaborator. It maintains the
// component list, per-component default position units, total supply and the
// exclusive mutation lock. The engine never touches balances directly; it
// edits position units and lets the ledger derive balances.
type IPortfolio interface {
	// Identity
	ID() string
	IsManager(caller string) bool

	// Component accounting
	GetComponents() []string
	HasComponent(component string) bool
	GetDefaultPositionRealUnit(component string) decimal.Decimal
	EditDefaultPosition(component string, newUnit decimal.Decimal) error
	AddComponent(component string) error
	RemoveComponent(component string) error
	HasExternalPositions(component string) bool

	// Supply and multiplier
	TotalSupply() decimal.Decimal
	PositionMultiplier() decimal.Decimal

	// Exclusive mutation lock. Holder is an opaque ownership token.
	Lock(holder string) error
	Unlock(holder string) error
	IsLocked() bool
	Locker() (string, bool)
}

// ITransferAgent is the token custody collaborator. Transfers are assumed
// atomic and reentrancy-safe.
type ITransferAgent interface {
	Transfer(ctx context.Context, token, from, to string, amount decimal.Decimal) error
	BalanceOf(token, holder string) decimal.Decimal
}

// IPriceAdapter prices a component in quote-asset terms against elapsed
// auction time. Implementations are pure: identical inputs yield identical
// prices.
type IPriceAdapter interface {
	Name() string
	Validate(configData []byte) error
	Price(elapsed time.Duration, configData []byte) (decimal.Decimal, error)
}

// IAdapterRegistry resolves a price adapter by name.
type IAdapterRegistry interface {
	GetAdapter(name string) (IPriceAdapter, error)
}

// Event is implemented by every engine event.
type Event interface {
	EventType() string
}

// IEventSink receives engine events. Publish must not block settlement.
type IEventSink interface {
	Publish(ctx context.Context, event Event)
}

// IRebalanceStore persists rebalance snapshots and the bid history.
type IRebalanceStore interface {
	SaveSnapshot(ctx context.Context, snapshot *RebalanceSnapshot) error
	LoadSnapshot(ctx context.Context, portfolio string) (*RebalanceSnapshot, error)
	AppendBid(ctx context.Context, record *BidRecord) error
	ListBids(ctx context.Context, portfolio string, limit int) ([]*BidRecord, error)
	Close() error
}

// ILogger defines the interface for logging
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}
