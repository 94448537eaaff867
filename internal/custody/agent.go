// Package custody provides the in-memory token transfer agent used by the
// engine's settlement path. Real deployments substitute the custody layer of
// the hosting system; transfers are assumed atomic either way.
package custody

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	apperrors "auction_rebalancer/pkg/errors"
)

// InMemoryTransferAgent tracks token balances per holder.
type InMemoryTransferAgent struct {
	mu       sync.RWMutex
	balances map[string]map[string]decimal.Decimal // token -> holder -> balance
}

// NewInMemoryTransferAgent creates an empty agent.
func NewInMemoryTransferAgent() *InMemoryTransferAgent {
	return &InMemoryTransferAgent{balances: make(map[string]map[string]decimal.Decimal)}
}

// Credit mints balance to a holder. Used for bootstrap and tests.
func (a *InMemoryTransferAgent) Credit(token, holder string, amount decimal.Decimal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.balances[token] == nil {
		a.balances[token] = make(map[string]decimal.Decimal)
	}
	a.balances[token][holder] = a.balances[token][holder].Add(amount)
}

// Transfer moves amount of token between holders atomically.
func (a *InMemoryTransferAgent) Transfer(_ context.Context, token, from, to string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return apperrors.ErrAdditionOverflow
	}
	if amount.IsZero() {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.balances[token] == nil {
		a.balances[token] = make(map[string]decimal.Decimal)
	}
	if a.balances[token][from].LessThan(amount) {
		return fmt.Errorf("transfer %s from %s: %w", token, from, apperrors.ErrInsufficientFunds)
	}
	a.balances[token][from] = a.balances[token][from].Sub(amount)
	a.balances[token][to] = a.balances[token][to].Add(amount)
	return nil
}

// BalanceOf returns the holder's balance of token.
func (a *InMemoryTransferAgent) BalanceOf(token, holder string) decimal.Decimal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.balances[token][holder]
}
