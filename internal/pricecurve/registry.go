// Package pricecurve implements the auction price adapters: pure functions
// from elapsed auction time and opaque configuration bytes to a component
// price in quote-asset terms.
package pricecurve

import (
	"sync"

	"auction_rebalancer/internal/core"
	apperrors "auction_rebalancer/pkg/errors"
)

// Adapter names used as registry keys.
const (
	ConstantAdapterName    = "ConstantPriceAdapter"
	LinearAdapterName      = "BoundedStepwiseLinearPriceAdapter"
	ExponentialAdapterName = "BoundedStepwiseExponentialPriceAdapter"
	LogarithmicAdapterName = "BoundedStepwiseLogarithmicPriceAdapter"
)

// Registry resolves price adapters by name.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]core.IPriceAdapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]core.IPriceAdapter)}
}

// NewDefaultRegistry creates a registry with all four built-in adapters.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&ConstantPriceAdapter{})
	r.Register(&BoundedStepwiseLinearPriceAdapter{})
	r.Register(&BoundedStepwiseExponentialPriceAdapter{})
	r.Register(&BoundedStepwiseLogarithmicPriceAdapter{})
	return r
}

// Register adds an adapter under its own name, replacing any previous entry.
func (r *Registry) Register(adapter core.IPriceAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.Name()] = adapter
}

// GetAdapter resolves an adapter by name.
func (r *Registry) GetAdapter(name string) (core.IPriceAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[name]
	if !ok {
		return nil, apperrors.ErrInvalidAdapter
	}
	return adapter, nil
}
