package coupon

import (
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// DiscountParams is the input of Calculate.
type DiscountParams struct {
	Type     DiscountType
	Value    decimal.Decimal
	Subtotal decimal.Decimal
	// MaxDiscount caps the discount when set.
	MaxDiscount decimal.NullDecimal
}

// Discount holds the computed discount amount and the resulting total, both
// rounded to cents.
type Discount struct {
	Amount decimal.Decimal
	Total  decimal.Decimal
}

// Calculate computes the discount for a subtotal. Intermediate arithmetic is
// exact; rounding to 2 decimal places happens once at the end. The amount is
// always within [0, subtotal] and the total is never negative. Unknown types
// yield no discount.
func Calculate(p DiscountParams) Discount {
	var raw decimal.Decimal
	switch p.Type {
	case DiscountPercent:
		raw = p.Subtotal.Mul(p.Value).Div(hundred)
	case DiscountFixed:
		raw = p.Value
	default:
		raw = zero
	}

	if p.MaxDiscount.Valid {
		raw = decimal.Min(raw, p.MaxDiscount.Decimal)
	}

	amount := clamp(raw, zero, floorAtZero(p.Subtotal)).Round(2)
	// Derive the total from the rounded amount so that amount + total
	// always adds back up to the rounded subtotal.
	total := floorAtZero(p.Subtotal.Sub(amount)).Round(2)

	return Discount{
		Amount: amount,
		Total:  total,
	}
}

// clamp bounds d to [lo, hi].
func clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	return decimal.Max(lo, decimal.Min(d, hi))
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	return d
}
