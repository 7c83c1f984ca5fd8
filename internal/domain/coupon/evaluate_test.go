package coupon

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var evalNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func subtotal(v string) decimal.NullDecimal {
	return decimal.NewNullDecimal(d(v))
}

func percentCoupon(value string) *Coupon {
	return &Coupon{
		ID:     "c-1",
		Type:   DiscountPercent,
		Value:  d(value),
		Active: true,
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestEvaluate_Scenarios(t *testing.T) {
	t.Run("SAVE10 on 200", func(t *testing.T) {
		res := Evaluate(Input{Code: "SAVE10", Subtotal: subtotal("200")},
			&Snapshot{Coupon: percentCoupon("10")}, evalNow)

		require.True(t, res.Valid)
		assert.Equal(t, ReasonOK, res.Reason)
		assert.Equal(t, "c-1", res.CouponID)
		assert.Equal(t, DiscountPercent, res.CouponType)
		assert.True(t, d("10").Equal(res.CouponValue))
		assert.Equal(t, "20.00", res.DiscountAmount.StringFixed(2))
		assert.Equal(t, "200.00", res.Subtotal.StringFixed(2))
		assert.Equal(t, "180.00", res.Total.StringFixed(2))
	})

	t.Run("zero subtotal", func(t *testing.T) {
		res := Evaluate(Input{Code: "SAVE10", Subtotal: subtotal("0")},
			&Snapshot{Coupon: percentCoupon("10")}, evalNow)

		require.True(t, res.Valid)
		assert.Equal(t, "0.00", res.DiscountAmount.StringFixed(2))
		assert.Equal(t, "0.00", res.Total.StringFixed(2))
	})

	t.Run("fixed with cap", func(t *testing.T) {
		c := &Coupon{ID: "c-2", Type: DiscountFixed, Value: d("50"), MaxDiscount: capAt("30"), Active: true}
		res := Evaluate(Input{Code: "FLAT50", Subtotal: subtotal("100")}, &Snapshot{Coupon: c}, evalNow)

		require.True(t, res.Valid)
		assert.Equal(t, "30.00", res.DiscountAmount.StringFixed(2))
		assert.Equal(t, "70.00", res.Total.StringFixed(2))
	})

	t.Run("expired", func(t *testing.T) {
		c := percentCoupon("10")
		c.ExpiresAt = timePtr(evalNow.Add(-time.Hour))
		for _, s := range []string{"0", "50", "10000"} {
			res := Evaluate(Input{Code: "OLD", Subtotal: subtotal(s)}, &Snapshot{Coupon: c}, evalNow)
			assert.False(t, res.Valid)
			assert.Equal(t, ReasonExpired, res.Reason)
		}
	})

	t.Run("not found", func(t *testing.T) {
		res := Evaluate(Input{Code: "NOPE", Subtotal: subtotal("100")}, nil, evalNow)
		assert.False(t, res.Valid)
		assert.Equal(t, ReasonInvalidCode, res.Reason)

		res = Evaluate(Input{Code: "NOPE", Subtotal: subtotal("100")}, &Snapshot{}, evalNow)
		assert.Equal(t, ReasonInvalidCode, res.Reason)
	})
}

func TestEvaluate_FailureLeavesAmountsEmpty(t *testing.T) {
	c := percentCoupon("10")
	c.Active = false

	res := Evaluate(Input{Code: "X", Subtotal: subtotal("100")}, &Snapshot{Coupon: c}, evalNow)

	assert.Equal(t, Result{Valid: false, Reason: ReasonInactive}, res)
}

func TestEvaluate_Rules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Coupon)
		in     Input
		uses   int
		want   Reason
	}{
		{
			name: "missing subtotal",
			in:   Input{Code: "X"},
			want: ReasonMissingSubtotal,
		},
		{
			name: "negative subtotal",
			in:   Input{Code: "X", Subtotal: subtotal("-1")},
			want: ReasonMissingSubtotal,
		},
		{
			name:   "percent above 100 is misconfigured",
			mutate: func(c *Coupon) { c.Value = d("120") },
			want:   ReasonInvalidConfig,
		},
		{
			name:   "negative fixed value is misconfigured",
			mutate: func(c *Coupon) { c.Type = DiscountFixed; c.Value = d("-3") },
			want:   ReasonInvalidConfig,
		},
		{
			name:   "unknown type is misconfigured",
			mutate: func(c *Coupon) { c.Type = "BOGO" },
			want:   ReasonInvalidConfig,
		},
		{
			name: "window ending before start is misconfigured",
			mutate: func(c *Coupon) {
				c.StartsAt = timePtr(evalNow.Add(time.Hour))
				c.ExpiresAt = timePtr(evalNow.Add(-time.Hour))
			},
			want: ReasonInvalidConfig,
		},
		{
			name:   "missing id is misconfigured",
			mutate: func(c *Coupon) { c.ID = "" },
			want:   ReasonInvalidConfig,
		},
		{
			name:   "misconfigured wins over inactive",
			mutate: func(c *Coupon) { c.Value = d("101"); c.Active = false },
			want:   ReasonInvalidConfig,
		},
		{
			name:   "inactive",
			mutate: func(c *Coupon) { c.Active = false },
			want:   ReasonInactive,
		},
		{
			name:   "not started",
			mutate: func(c *Coupon) { c.StartsAt = timePtr(evalNow.Add(time.Minute)) },
			want:   ReasonNotStarted,
		},
		{
			name:   "starts exactly now",
			mutate: func(c *Coupon) { c.StartsAt = timePtr(evalNow) },
			want:   ReasonOK,
		},
		{
			name:   "expires exactly now is still valid",
			mutate: func(c *Coupon) { c.ExpiresAt = timePtr(evalNow) },
			want:   ReasonOK,
		},
		{
			name:   "injected now overrides clock",
			mutate: func(c *Coupon) { c.ExpiresAt = timePtr(evalNow.Add(time.Hour)) },
			in:     Input{Code: "X", Subtotal: subtotal("100"), Now: timePtr(evalNow.Add(2 * time.Hour))},
			want:   ReasonExpired,
		},
		{
			name: "expired wins over minimum booking",
			mutate: func(c *Coupon) {
				c.ExpiresAt = timePtr(evalNow.Add(-time.Hour))
				c.MinBooking = capAt("500")
			},
			want: ReasonExpired,
		},
		{
			name:   "below minimum booking",
			mutate: func(c *Coupon) { c.MinBooking = capAt("100.01") },
			want:   ReasonMinBookingNotReached,
		},
		{
			name:   "equal to minimum booking",
			mutate: func(c *Coupon) { c.MinBooking = capAt("100") },
			want:   ReasonOK,
		},
		{
			name:   "guest not on allow-list",
			mutate: func(c *Coupon) { c.AllowedGuests = []string{"vip@example.com", "+1 555 0100"} },
			in:     Input{Code: "X", Subtotal: subtotal("100"), GuestEmail: "someone@example.com"},
			want:   ReasonGuestNotEligible,
		},
		{
			name:   "guest without identity is not eligible",
			mutate: func(c *Coupon) { c.AllowedGuests = []string{"vip@example.com"} },
			want:   ReasonGuestNotEligible,
		},
		{
			name:   "guest email matches after normalization",
			mutate: func(c *Coupon) { c.AllowedGuests = []string{"VIP@Example.com"} },
			in:     Input{Code: "X", Subtotal: subtotal("100"), GuestEmail: "  vip@example.COM"},
			want:   ReasonOK,
		},
		{
			name:   "guest phone matches after normalization",
			mutate: func(c *Coupon) { c.AllowedGuests = []string{"+1 (555) 0100"} },
			in:     Input{Code: "X", Subtotal: subtotal("100"), GuestPhone: "1-555-0100"},
			want:   ReasonOK,
		},
		{
			name:   "room not eligible",
			mutate: func(c *Coupon) { c.AllowedRoomTypes = []string{"suite"} },
			in:     Input{Code: "X", Subtotal: subtotal("100"), RoomTypeID: "double"},
			want:   ReasonRoomNotEligible,
		},
		{
			name:   "room eligible",
			mutate: func(c *Coupon) { c.AllowedRoomTypes = []string{"suite", "double"} },
			in:     Input{Code: "X", Subtotal: subtotal("100"), RoomTypeID: "double"},
			want:   ReasonOK,
		},
		{
			name:   "source not eligible",
			mutate: func(c *Coupon) { c.AllowedSources = []string{"web"} },
			in:     Input{Code: "X", Subtotal: subtotal("100"), Source: "phone"},
			want:   ReasonSourceNotEligible,
		},
		{
			name:   "missing source not eligible when restricted",
			mutate: func(c *Coupon) { c.AllowedSources = []string{"web"} },
			want:   ReasonSourceNotEligible,
		},
		{
			name:   "source match ignores case",
			mutate: func(c *Coupon) { c.AllowedSources = []string{"Web"} },
			in:     Input{Code: "X", Subtotal: subtotal("100"), Source: " web"},
			want:   ReasonOK,
		},
		{
			name:   "global usage limit reached",
			mutate: func(c *Coupon) { c.UsageLimit = 10; c.UsageCount = 10 },
			want:   ReasonUsageLimitReached,
		},
		{
			name:   "global usage under limit",
			mutate: func(c *Coupon) { c.UsageLimit = 10; c.UsageCount = 9 },
			want:   ReasonOK,
		},
		{
			name:   "per-guest limit reached",
			mutate: func(c *Coupon) { c.PerGuestLimit = 1 },
			in:     Input{Code: "X", Subtotal: subtotal("100"), GuestEmail: "a@b.c"},
			uses:   1,
			want:   ReasonGuestUsageLimitReached,
		},
		{
			name:   "global limit wins over per-guest limit",
			mutate: func(c *Coupon) { c.UsageLimit = 1; c.UsageCount = 1; c.PerGuestLimit = 1 },
			uses:   1,
			want:   ReasonUsageLimitReached,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := percentCoupon("10")
			if tt.mutate != nil {
				tt.mutate(c)
			}
			in := tt.in
			if in.Code == "" {
				in = Input{Code: "X", Subtotal: subtotal("100")}
			}

			res := Evaluate(in, &Snapshot{Coupon: c, GuestUses: tt.uses}, evalNow)

			assert.Equal(t, tt.want, res.Reason)
			assert.Equal(t, tt.want == ReasonOK, res.Valid)
		})
	}
}

func TestEvaluate_MissingSubtotalWinsOverUnknownCode(t *testing.T) {
	res := Evaluate(Input{Code: "NOPE"}, nil, evalNow)
	assert.Equal(t, ReasonMissingSubtotal, res.Reason)
}
