package coupon

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Reason is the closed set of validation outcomes.
type Reason string

const (
	ReasonOK                     Reason = "OK"
	ReasonInvalidCode            Reason = "INVALID_CODE"
	ReasonInactive               Reason = "INACTIVE"
	ReasonNotStarted             Reason = "NOT_STARTED"
	ReasonExpired                Reason = "EXPIRED"
	ReasonMinBookingNotReached   Reason = "MIN_BOOKING_NOT_REACHED"
	ReasonGuestNotEligible       Reason = "GUEST_NOT_ELIGIBLE"
	ReasonRoomNotEligible        Reason = "ROOM_NOT_ELIGIBLE"
	ReasonSourceNotEligible      Reason = "SOURCE_NOT_ELIGIBLE"
	ReasonUsageLimitReached      Reason = "USAGE_LIMIT_REACHED"
	ReasonGuestUsageLimitReached Reason = "GUEST_USAGE_LIMIT_REACHED"
	ReasonInvalidConfig          Reason = "INVALID_COUPON_CONFIG"
	ReasonMissingSubtotal        Reason = "MISSING_SUBTOTAL"
)

// request is the normalized form of an Input that rules compare against.
type request struct {
	subtotal   decimal.Decimal
	email      string
	phone      string
	roomTypeID string
	source     string
	now        time.Time
}

// rule is a named eligibility predicate. ok returns false when the rule
// rejects the request.
type rule struct {
	reason Reason
	ok     func(req *request, snap *Snapshot) bool
}

// rules are the checks that run once a coupon was found, in precedence
// order. The first failing rule decides the result.
var rules = []rule{
	{ReasonInvalidConfig, func(_ *request, s *Snapshot) bool {
		return s.Coupon.Validate() == nil
	}},
	{ReasonInactive, func(_ *request, s *Snapshot) bool {
		return s.Coupon.Active
	}},
	{ReasonNotStarted, func(r *request, s *Snapshot) bool {
		return s.Coupon.StartsAt == nil || !r.now.Before(*s.Coupon.StartsAt)
	}},
	{ReasonExpired, func(r *request, s *Snapshot) bool {
		return s.Coupon.ExpiresAt == nil || !r.now.After(*s.Coupon.ExpiresAt)
	}},
	{ReasonMinBookingNotReached, func(r *request, s *Snapshot) bool {
		return !s.Coupon.MinBooking.Valid || !r.subtotal.LessThan(s.Coupon.MinBooking.Decimal)
	}},
	{ReasonGuestNotEligible, func(r *request, s *Snapshot) bool {
		return guestAllowed(s.Coupon.AllowedGuests, r.email, r.phone)
	}},
	{ReasonRoomNotEligible, func(r *request, s *Snapshot) bool {
		return len(s.Coupon.AllowedRoomTypes) == 0 || slices.Contains(s.Coupon.AllowedRoomTypes, r.roomTypeID)
	}},
	{ReasonSourceNotEligible, func(r *request, s *Snapshot) bool {
		return len(s.Coupon.AllowedSources) == 0 || containsFold(s.Coupon.AllowedSources, r.source)
	}},
	{ReasonUsageLimitReached, func(_ *request, s *Snapshot) bool {
		return s.Coupon.UsageLimit == 0 || s.Coupon.UsageCount < s.Coupon.UsageLimit
	}},
	{ReasonGuestUsageLimitReached, func(_ *request, s *Snapshot) bool {
		return s.Coupon.PerGuestLimit == 0 || s.GuestUses < s.Coupon.PerGuestLimit
	}},
}

// guestAllowed matches the guest against an allow-list of emails and phone
// numbers. Both sides are normalized before comparison.
func guestAllowed(allowed []string, email, phone string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, entry := range allowed {
		if strings.Contains(entry, "@") {
			if email != "" && NormalizeGuestEmail(entry) == email {
				return true
			}
			continue
		}
		if phone != "" && NormalizeGuestPhone(entry) == phone {
			return true
		}
	}
	return false
}

// containsFold reports whether v is in list, ignoring case and surrounding
// whitespace. An empty v never matches.
func containsFold(list []string, v string) bool {
	v = normalizeSource(v)
	if v == "" {
		return false
	}
	for _, item := range list {
		if normalizeSource(item) == v {
			return true
		}
	}
	return false
}
