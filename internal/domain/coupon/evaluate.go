package coupon

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Input is a caller-supplied coupon validation request.
type Input struct {
	// Code is the raw code as typed by the guest.
	Code string
	// Subtotal must be set and non-negative.
	Subtotal   decimal.NullDecimal
	GuestEmail string
	GuestPhone string
	RoomTypeID string
	Source     string
	// Now overrides the evaluation time.
	Now *time.Time
}

// Result is the outcome of a validation. Coupon and amount fields are only
// populated when Valid is true.
type Result struct {
	Valid  bool
	Reason Reason

	CouponID       string
	CouponType     DiscountType
	CouponValue    decimal.Decimal
	DiscountAmount decimal.Decimal
	Subtotal       decimal.Decimal
	Total          decimal.Decimal
}

// Rejected builds a failed result with the given reason.
func Rejected(reason Reason) Result {
	return Result{Valid: false, Reason: reason}
}

// HasSubtotal reports whether the input carries a usable subtotal.
func (in Input) HasSubtotal() bool {
	return in.Subtotal.Valid && !in.Subtotal.Decimal.IsNegative()
}

// Evaluate decides whether the coupon in snap applies to in. A nil snapshot
// or coupon means the code was not found. now is used unless in.Now is set.
//
// Evaluate is pure: it reads the snapshot and never touches the store.
func Evaluate(in Input, snap *Snapshot, now time.Time) Result {
	if !in.HasSubtotal() {
		return Rejected(ReasonMissingSubtotal)
	}
	if snap == nil || snap.Coupon == nil {
		return Rejected(ReasonInvalidCode)
	}
	if in.Now != nil {
		now = *in.Now
	}

	req := &request{
		subtotal:   in.Subtotal.Decimal,
		email:      NormalizeGuestEmail(in.GuestEmail),
		phone:      NormalizeGuestPhone(in.GuestPhone),
		roomTypeID: strings.TrimSpace(in.RoomTypeID),
		source:     in.Source,
		now:        now,
	}
	for _, r := range rules {
		if !r.ok(req, snap) {
			return Rejected(r.reason)
		}
	}

	c := snap.Coupon
	d := Calculate(DiscountParams{
		Type:        c.Type,
		Value:       c.Value,
		Subtotal:    req.subtotal,
		MaxDiscount: c.MaxDiscount,
	})

	return Result{
		Valid:          true,
		Reason:         ReasonOK,
		CouponID:       c.ID,
		CouponType:     c.Type,
		CouponValue:    c.Value,
		DiscountAmount: d.Amount,
		Subtotal:       req.subtotal.Round(2),
		Total:          d.Total,
	}
}
