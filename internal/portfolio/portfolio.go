// Package portfolio implements the in-memory token-balance ledger the
// auction engine rebalances: an ordered component list with per-component
// default position units, a total supply, and an exclusive mutation lock.
package portfolio

import (
	"sync"

	"github.com/shopspring/decimal"

	"auction_rebalancer/pkg/preciseunits"

	apperrors "auction_rebalancer/pkg/errors"
)

// Portfolio is a single multi-asset basket. Position units are balances
// expressed per one unit of total supply.
type Portfolio struct {
	id      string
	manager string

	mu             sync.RWMutex
	componentOrder []string
	// virtualUnits hold multiplier-independent units; the real position unit
	// is virtualUnit * multiplier. Fee accrual shrinks the multiplier without
	// touching stored units.
	virtualUnits map[string]decimal.Decimal
	totalSupply  decimal.Decimal
	multiplier   decimal.Decimal

	// Exclusive mutation lock. Empty means unheld.
	lockHolder string

	// Components with foreign modules holding a stake in them.
	externalModules map[string][]string
}

// New creates a portfolio with the given manager and total supply.
func New(id, manager string, totalSupply decimal.Decimal) *Portfolio {
	return &Portfolio{
		id:              id,
		manager:         manager,
		virtualUnits:    make(map[string]decimal.Decimal),
		totalSupply:     totalSupply,
		multiplier:      preciseunits.One,
		externalModules: make(map[string][]string),
	}
}

func (p *Portfolio) ID() string { return p.id }

func (p *Portfolio) IsManager(caller string) bool { return caller == p.manager }

// GetComponents returns the component list in insertion order.
func (p *Portfolio) GetComponents() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.componentOrder))
	copy(out, p.componentOrder)
	return out
}

func (p *Portfolio) HasComponent(component string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.virtualUnits[component]
	return ok
}

// GetDefaultPositionRealUnit returns the component's real position unit
// (virtual unit scaled by the multiplier), zero for unknown components.
func (p *Portfolio) GetDefaultPositionRealUnit(component string) decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.virtualUnits[component].Mul(p.multiplier)
}

// EditDefaultPosition overwrites the component's real position unit.
func (p *Portfolio) EditDefaultPosition(component string, newUnit decimal.Decimal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.virtualUnits[component]; !ok {
		return apperrors.ErrComponentNotInUniverse
	}
	if newUnit.IsNegative() {
		return apperrors.ErrAdditionOverflow
	}
	virtual, err := preciseunits.CheckedDiv(newUnit, p.multiplier)
	if err != nil {
		return err
	}
	p.virtualUnits[component] = virtual
	return nil
}

// AddComponent appends a component with a zero unit.
func (p *Portfolio) AddComponent(component string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.virtualUnits[component]; ok {
		return apperrors.ErrDuplicateComponent
	}
	p.componentOrder = append(p.componentOrder, component)
	p.virtualUnits[component] = decimal.Zero
	return nil
}

// RemoveComponent drops a component and its unit entry.
func (p *Portfolio) RemoveComponent(component string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.virtualUnits[component]; !ok {
		return apperrors.ErrComponentNotInUniverse
	}
	delete(p.virtualUnits, component)
	for i, c := range p.componentOrder {
		if c == component {
			p.componentOrder = append(p.componentOrder[:i], p.componentOrder[i+1:]...)
			break
		}
	}
	return nil
}

// AddExternalPositionModule records a foreign module holding a stake in the
// component.
func (p *Portfolio) AddExternalPositionModule(component, module string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.externalModules[component] = append(p.externalModules[component], module)
}

func (p *Portfolio) HasExternalPositions(component string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.externalModules[component]) > 0
}

func (p *Portfolio) TotalSupply() decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.totalSupply
}

func (p *Portfolio) PositionMultiplier() decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.multiplier
}

// Lock acquires the exclusive mutation lock. Re-acquiring by the current
// holder succeeds idempotently.
func (p *Portfolio) Lock(holder string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lockHolder != "" && p.lockHolder != holder {
		return apperrors.ErrMustNotBeLocked
	}
	p.lockHolder = holder
	return nil
}

// Unlock releases the lock. Only the holder may release it.
func (p *Portfolio) Unlock(holder string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lockHolder == "" {
		return nil
	}
	if p.lockHolder != holder {
		return apperrors.ErrLockedOnlyLocker
	}
	p.lockHolder = ""
	return nil
}

func (p *Portfolio) IsLocked() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lockHolder != ""
}

func (p *Portfolio) Locker() (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lockHolder, p.lockHolder != ""
}

// checkCallerLocked gates supply-changing flows while the lock is held by
// someone else.
func (p *Portfolio) checkCallerLocked(caller string) error {
	if p.lockHolder != "" && p.lockHolder != caller {
		return apperrors.ErrLockedOnlyLocker
	}
	return nil
}

// Mint issues portfolio shares. Blocked while locked by another holder.
func (p *Portfolio) Mint(caller string, amount decimal.Decimal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkCallerLocked(caller); err != nil {
		return err
	}
	supply, err := preciseunits.CheckedAdd(p.totalSupply, amount)
	if err != nil {
		return err
	}
	p.totalSupply = supply
	return nil
}

// Burn redeems portfolio shares. Blocked while locked by another holder.
func (p *Portfolio) Burn(caller string, amount decimal.Decimal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkCallerLocked(caller); err != nil {
		return err
	}
	if amount.GreaterThan(p.totalSupply) {
		return apperrors.ErrAdditionOverflow
	}
	p.totalSupply = p.totalSupply.Sub(amount)
	return nil
}

// AccrueFee inflates supply to the fee recipient, diluting every position
// unit through the multiplier. Blocked while locked by another holder.
func (p *Portfolio) AccrueFee(caller string, inflation decimal.Decimal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkCallerLocked(caller); err != nil {
		return err
	}
	if inflation.IsNegative() || inflation.GreaterThanOrEqual(preciseunits.One) {
		return apperrors.ErrAdditionOverflow
	}
	// supply grows by 1/(1-inflation), units shrink by the same factor
	newSupply, err := preciseunits.CheckedDiv(p.totalSupply, preciseunits.One.Sub(inflation))
	if err != nil {
		return err
	}
	newMultiplier, err := preciseunits.CheckedMul(p.multiplier, preciseunits.One.Sub(inflation))
	if err != nil {
		return err
	}
	p.totalSupply = newSupply
	p.multiplier = newMultiplier
	return nil
}
