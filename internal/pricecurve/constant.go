package pricecurve

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	apperrors "auction_rebalancer/pkg/errors"
)

// ConstantParams configures the constant price adapter.
type ConstantParams struct {
	Price decimal.Decimal `json:"price"`
}

// EncodeConstantParams serializes params into adapter config data.
func EncodeConstantParams(params ConstantParams) ([]byte, error) {
	return json.Marshal(params)
}

// ConstantPriceAdapter returns a fixed price regardless of elapsed time.
type ConstantPriceAdapter struct{}

func (a *ConstantPriceAdapter) Name() string { return ConstantAdapterName }

// Decode parses the raw config data.
func (a *ConstantPriceAdapter) Decode(configData []byte) (ConstantParams, error) {
	var params ConstantParams
	if err := json.Unmarshal(configData, &params); err != nil {
		return ConstantParams{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidAdapterConfig, err)
	}
	return params, nil
}

// Validate rejects non-positive prices.
func (a *ConstantPriceAdapter) Validate(configData []byte) error {
	params, err := a.Decode(configData)
	if err != nil {
		return err
	}
	if !params.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", apperrors.ErrInvalidAdapterConfig)
	}
	return nil
}

// Price returns the configured price for any elapsed time.
func (a *ConstantPriceAdapter) Price(_ time.Duration, configData []byte) (decimal.Decimal, error) {
	params, err := a.Decode(configData)
	if err != nil {
		return decimal.Zero, err
	}
	return params.Price, nil
}
