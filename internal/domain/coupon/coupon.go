package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercent takes a percentage (0..100) of the booking subtotal.
	DiscountPercent DiscountType = "PERCENT"
	// DiscountFixed takes a flat amount, never more than the subtotal.
	DiscountFixed DiscountType = "FIXED"
)

// Known reports whether t is one of the supported discount types.
func (t DiscountType) Known() bool {
	return t == DiscountPercent || t == DiscountFixed
}

var (
	// ErrNotFound is returned by a Repository when no coupon matches the lookup key.
	ErrNotFound = errors.New("coupon not found")
	// ErrUsageLimitReached is returned by Repository.IncrementUsage when the
	// conditional increment lost against a concurrent redemption.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrInvalidConfig wraps every coupon configuration problem reported by Coupon.Validate.
	ErrInvalidConfig = errors.New("invalid coupon config")
)

// Coupon is a read-only snapshot of a stored coupon. The raw code is never
// part of it: the store keys coupons by CodeHash and indexes CodePrefix.
type Coupon struct {
	ID          string
	CodeHash    string
	CodePrefix  string
	Description string

	Type        DiscountType
	Value       decimal.Decimal
	MaxDiscount decimal.NullDecimal
	MinBooking  decimal.NullDecimal

	Active    bool
	StartsAt  *time.Time
	ExpiresAt *time.Time

	// Allow-lists; an empty list means no restriction. AllowedGuests holds
	// normalized emails and/or normalized phone numbers.
	AllowedGuests    []string
	AllowedRoomTypes []string
	AllowedSources   []string

	// Zero limits mean unlimited.
	UsageLimit    int
	UsageCount    int
	PerGuestLimit int

	CreatedAt time.Time
}

// Validate checks the coupon's own invariants. A coupon that fails here is
// reported as ReasonInvalidConfig and is never treated as usable.
func (c *Coupon) Validate() error {
	switch {
	case c.ID == "":
		return errors.Wrap(ErrInvalidConfig, "missing id")
	case !c.Type.Known():
		return errors.Wrapf(ErrInvalidConfig, "unsupported discount type %q", c.Type)
	case c.Value.IsNegative():
		return errors.Wrapf(ErrInvalidConfig, "negative value %s", c.Value)
	case c.Type == DiscountPercent && c.Value.GreaterThan(hundred):
		return errors.Wrapf(ErrInvalidConfig, "percent value %s exceeds 100", c.Value)
	case c.MaxDiscount.Valid && c.MaxDiscount.Decimal.IsNegative():
		return errors.Wrapf(ErrInvalidConfig, "negative max discount %s", c.MaxDiscount.Decimal)
	case c.MinBooking.Valid && c.MinBooking.Decimal.IsNegative():
		return errors.Wrapf(ErrInvalidConfig, "negative min booking amount %s", c.MinBooking.Decimal)
	case c.UsageLimit < 0 || c.PerGuestLimit < 0 || c.UsageCount < 0:
		return errors.Wrap(ErrInvalidConfig, "negative usage limit or counter")
	case c.StartsAt != nil && c.ExpiresAt != nil && c.ExpiresAt.Before(*c.StartsAt):
		return errors.Wrap(ErrInvalidConfig, "expires before it starts")
	}
	return nil
}

// Snapshot is everything Evaluate needs about a coupon for one request.
type Snapshot struct {
	Coupon *Coupon
	// GuestUses is how many times the requesting guest already redeemed the coupon.
	GuestUses int
}

// Redemption identifies a confirmed use of a coupon by a guest.
type Redemption struct {
	CouponID  string
	GuestKeys []string
	BookingID string
}

// Repository is the narrow view of the coupon store used by the engine.
type Repository interface {
	// FindByHash returns the coupon keyed by HashCode of its normalized code,
	// or ErrNotFound.
	FindByHash(ctx context.Context, hash string) (*Coupon, error)
	// FindByPrefix lists coupons whose normalized code starts with prefix.
	FindByPrefix(ctx context.Context, prefix string) ([]Coupon, error)
	// GuestUsage returns how many times the guest redeemed the coupon under
	// any of guestKeys.
	GuestUsage(ctx context.Context, couponID string, guestKeys []string) (int, error)
	// IncrementUsage atomically bumps the global counter and the counter of
	// every guest key,
	// returning ErrUsageLimitReached if either limit is already exhausted.
	IncrementUsage(ctx context.Context, r Redemption) error
}
