// Package preciseunits provides checked fixed-point arithmetic for position
// unit accounting. All quantities are decimal values where one whole token
// equals decimal 1; a position unit is a balance expressed per single unit of
// total supply.
package preciseunits

import (
	"github.com/shopspring/decimal"

	apperrors "auction_rebalancer/pkg/errors"
)

// One is the precise unit scalar (identity position multiplier).
var One = decimal.NewFromInt(1)

// maxMagnitude bounds every intermediate result. Results beyond it fail
// loudly instead of silently wrapping.
var maxMagnitude = decimal.New(1, 59)

func checkRange(d decimal.Decimal) (decimal.Decimal, error) {
	if d.Abs().GreaterThan(maxMagnitude) {
		return decimal.Zero, apperrors.ErrAdditionOverflow
	}
	return d, nil
}

// CheckedAdd returns a+b, failing on out-of-range results.
func CheckedAdd(a, b decimal.Decimal) (decimal.Decimal, error) {
	return checkRange(a.Add(b))
}

// CheckedSub returns a-b, failing on out-of-range results.
func CheckedSub(a, b decimal.Decimal) (decimal.Decimal, error) {
	return checkRange(a.Sub(b))
}

// CheckedMul returns a*b, failing on out-of-range results.
func CheckedMul(a, b decimal.Decimal) (decimal.Decimal, error) {
	return checkRange(a.Mul(b))
}

// CheckedDiv returns a/b, failing on division by zero or out-of-range results.
func CheckedDiv(a, b decimal.Decimal) (decimal.Decimal, error) {
	if b.IsZero() {
		return decimal.Zero, apperrors.ErrAdditionOverflow
	}
	return checkRange(a.DivRound(b, 18))
}

// UnitFromBalance converts a token balance to a position unit given the
// total supply. Supply must be positive.
func UnitFromBalance(balance, totalSupply decimal.Decimal) (decimal.Decimal, error) {
	return CheckedDiv(balance, totalSupply)
}

// NotionalFromUnit converts a position unit back to a token balance.
func NotionalFromUnit(unit, totalSupply decimal.Decimal) decimal.Decimal {
	return unit.Mul(totalSupply)
}

// GrossUpForFee scales quantity so that, net of the fee percentage, exactly
// quantity remains: quantity / (1 - feePercentage).
func GrossUpForFee(quantity, feePercentage decimal.Decimal) (decimal.Decimal, error) {
	if feePercentage.GreaterThanOrEqual(One) || feePercentage.IsNegative() {
		return decimal.Zero, apperrors.ErrAdditionOverflow
	}
	if feePercentage.IsZero() {
		return quantity, nil
	}
	return CheckedDiv(quantity, One.Sub(feePercentage))
}

// FeeAmount returns the protocol fee taken from an inflow quantity.
func FeeAmount(quantity, feePercentage decimal.Decimal) decimal.Decimal {
	return quantity.Mul(feePercentage)
}
