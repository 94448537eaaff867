package pricecurve

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	apperrors "auction_rebalancer/pkg/errors"
)

// BoundedStepwiseParams is the shared configuration of the three bounded
// stepwise adapters. Price moves once per full step of StepDuration, in the
// declared direction, and is clamped to [MinPrice, MaxPrice].
type BoundedStepwiseParams struct {
	InitialPrice decimal.Decimal `json:"initial_price"`
	StepDuration time.Duration   `json:"step_duration"`
	IsDecreasing bool            `json:"is_decreasing"`
	MinPrice     decimal.Decimal `json:"min_price"`
	MaxPrice     decimal.Decimal `json:"max_price"`

	// Slope is the per-step additive delta (linear adapter only).
	Slope decimal.Decimal `json:"slope,omitempty"`

	// ScalingFactor and TimeCoefficient shape the exponential and
	// logarithmic curves.
	ScalingFactor   decimal.Decimal `json:"scaling_factor,omitempty"`
	TimeCoefficient decimal.Decimal `json:"time_coefficient,omitempty"`
}

// EncodeBoundedStepwiseParams serializes params into adapter config data.
func EncodeBoundedStepwiseParams(params BoundedStepwiseParams) ([]byte, error) {
	return json.Marshal(params)
}

func decodeBoundedStepwise(configData []byte) (BoundedStepwiseParams, error) {
	var params BoundedStepwiseParams
	if err := json.Unmarshal(configData, &params); err != nil {
		return BoundedStepwiseParams{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidAdapterConfig, err)
	}
	return params, nil
}

// validateBounds covers the rules shared by all stepwise curves: positive
// starting price and step duration, non-inverted bounds, and bounds that
// bracket the starting price.
func validateBounds(params BoundedStepwiseParams) error {
	if !params.InitialPrice.IsPositive() {
		return fmt.Errorf("%w: initial price must be positive", apperrors.ErrInvalidAdapterConfig)
	}
	if params.StepDuration <= 0 {
		return fmt.Errorf("%w: step duration must be positive", apperrors.ErrInvalidAdapterConfig)
	}
	if !params.MinPrice.IsPositive() {
		return fmt.Errorf("%w: min price must be positive", apperrors.ErrInvalidAdapterConfig)
	}
	if params.MinPrice.GreaterThan(params.MaxPrice) {
		return fmt.Errorf("%w: inverted price bounds", apperrors.ErrInvalidAdapterConfig)
	}
	if params.InitialPrice.LessThan(params.MinPrice) || params.InitialPrice.GreaterThan(params.MaxPrice) {
		return fmt.Errorf("%w: bounds do not bracket initial price", apperrors.ErrInvalidAdapterConfig)
	}
	return nil
}

// stepCount returns the number of whole steps elapsed.
func stepCount(elapsed time.Duration, stepDuration time.Duration) int64 {
	if elapsed <= 0 {
		return 0
	}
	return int64(elapsed / stepDuration)
}

// applyDelta moves the initial price by delta in the declared direction and
// clamps to the band.
func applyDelta(params BoundedStepwiseParams, delta decimal.Decimal) decimal.Decimal {
	var price decimal.Decimal
	if params.IsDecreasing {
		price = params.InitialPrice.Sub(delta)
	} else {
		price = params.InitialPrice.Add(delta)
	}
	if price.LessThan(params.MinPrice) {
		return params.MinPrice
	}
	if price.GreaterThan(params.MaxPrice) {
		return params.MaxPrice
	}
	return price
}

// BoundedStepwiseLinearPriceAdapter moves the price by a fixed additive delta
// per step.
type BoundedStepwiseLinearPriceAdapter struct{}

func (a *BoundedStepwiseLinearPriceAdapter) Name() string { return LinearAdapterName }

func (a *BoundedStepwiseLinearPriceAdapter) Decode(configData []byte) (BoundedStepwiseParams, error) {
	return decodeBoundedStepwise(configData)
}

func (a *BoundedStepwiseLinearPriceAdapter) Validate(configData []byte) error {
	params, err := a.Decode(configData)
	if err != nil {
		return err
	}
	if err := validateBounds(params); err != nil {
		return err
	}
	if params.Slope.IsZero() {
		return fmt.Errorf("%w: slope must be non-zero", apperrors.ErrInvalidAdapterConfig)
	}
	if params.Slope.IsNegative() {
		return fmt.Errorf("%w: slope must be positive", apperrors.ErrInvalidAdapterConfig)
	}
	return nil
}

func (a *BoundedStepwiseLinearPriceAdapter) Price(elapsed time.Duration, configData []byte) (decimal.Decimal, error) {
	params, err := a.Decode(configData)
	if err != nil {
		return decimal.Zero, err
	}
	steps := stepCount(elapsed, params.StepDuration)
	delta := params.Slope.Mul(decimal.NewFromInt(steps))
	return applyDelta(params, delta), nil
}

// BoundedStepwiseExponentialPriceAdapter moves the price by
// scalingFactor * (e^(timeCoefficient*steps) - 1) per step count.
type BoundedStepwiseExponentialPriceAdapter struct{}

func (a *BoundedStepwiseExponentialPriceAdapter) Name() string { return ExponentialAdapterName }

func (a *BoundedStepwiseExponentialPriceAdapter) Decode(configData []byte) (BoundedStepwiseParams, error) {
	return decodeBoundedStepwise(configData)
}

func (a *BoundedStepwiseExponentialPriceAdapter) Validate(configData []byte) error {
	params, err := a.Decode(configData)
	if err != nil {
		return err
	}
	if err := validateBounds(params); err != nil {
		return err
	}
	if !params.ScalingFactor.IsPositive() {
		return fmt.Errorf("%w: scaling factor must be positive", apperrors.ErrInvalidAdapterConfig)
	}
	if !params.TimeCoefficient.IsPositive() {
		return fmt.Errorf("%w: time coefficient must be positive", apperrors.ErrInvalidAdapterConfig)
	}
	return nil
}

func (a *BoundedStepwiseExponentialPriceAdapter) Price(elapsed time.Duration, configData []byte) (decimal.Decimal, error) {
	params, err := a.Decode(configData)
	if err != nil {
		return decimal.Zero, err
	}
	steps := stepCount(elapsed, params.StepDuration)
	tc, _ := params.TimeCoefficient.Float64()
	expm1 := math.Expm1(tc * float64(steps))
	if math.IsInf(expm1, 0) || math.IsNaN(expm1) {
		// Curve has run off the representable range; the clamp bound is the
		// only price left.
		if params.IsDecreasing {
			return params.MinPrice, nil
		}
		return params.MaxPrice, nil
	}
	delta := params.ScalingFactor.Mul(decimal.NewFromFloat(expm1))
	return applyDelta(params, delta), nil
}

// BoundedStepwiseLogarithmicPriceAdapter moves the price by
// scalingFactor * ln(timeCoefficient*steps + 1) per step count.
type BoundedStepwiseLogarithmicPriceAdapter struct{}

func (a *BoundedStepwiseLogarithmicPriceAdapter) Name() string { return LogarithmicAdapterName }

func (a *BoundedStepwiseLogarithmicPriceAdapter) Decode(configData []byte) (BoundedStepwiseParams, error) {
	return decodeBoundedStepwise(configData)
}

func (a *BoundedStepwiseLogarithmicPriceAdapter) Validate(configData []byte) error {
	params, err := a.Decode(configData)
	if err != nil {
		return err
	}
	if err := validateBounds(params); err != nil {
		return err
	}
	if !params.ScalingFactor.IsPositive() {
		return fmt.Errorf("%w: scaling factor must be positive", apperrors.ErrInvalidAdapterConfig)
	}
	if !params.TimeCoefficient.IsPositive() {
		return fmt.Errorf("%w: time coefficient must be positive", apperrors.ErrInvalidAdapterConfig)
	}
	return nil
}

func (a *BoundedStepwiseLogarithmicPriceAdapter) Price(elapsed time.Duration, configData []byte) (decimal.Decimal, error) {
	params, err := a.Decode(configData)
	if err != nil {
		return decimal.Zero, err
	}
	steps := stepCount(elapsed, params.StepDuration)
	tc, _ := params.TimeCoefficient.Float64()
	delta := params.ScalingFactor.Mul(decimal.NewFromFloat(math.Log1p(tc * float64(steps))))
	return applyDelta(params, delta), nil
}
