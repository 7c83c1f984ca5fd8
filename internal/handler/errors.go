package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/hotel-booking/internal/domain/auth"
	"github.com/xenking/hotel-booking/internal/domain/booking"
	"github.com/xenking/hotel-booking/internal/domain/coupon"
	"github.com/xenking/hotel-booking/internal/domain/room"
)

// reasonMessages are the guest-facing texts for coupon reasons.
var reasonMessages = map[coupon.Reason]string{
	coupon.ReasonOK:                     "Coupon applied",
	coupon.ReasonInvalidCode:            "Coupon code is not valid",
	coupon.ReasonInactive:               "Coupon is no longer active",
	coupon.ReasonNotStarted:             "Coupon is not valid yet",
	coupon.ReasonExpired:                "Coupon has expired",
	coupon.ReasonMinBookingNotReached:   "Booking amount is below the coupon minimum",
	coupon.ReasonGuestNotEligible:       "Coupon is not available for this guest",
	coupon.ReasonRoomNotEligible:        "Coupon does not apply to this room type",
	coupon.ReasonSourceNotEligible:      "Coupon does not apply to this booking channel",
	coupon.ReasonUsageLimitReached:      "Coupon usage limit reached",
	coupon.ReasonGuestUsageLimitReached: "Coupon already used the maximum number of times by this guest",
	// Configuration details stay internal.
	coupon.ReasonInvalidConfig:   "Coupon cannot be used",
	coupon.ReasonMissingSubtotal: "Booking subtotal is required",
}

func reasonMessage(r coupon.Reason) string {
	if msg, ok := reasonMessages[r]; ok {
		return msg
	}
	return "Coupon cannot be used"
}

// mapError converts domain errors to API error responses. Unexpected errors
// are logged and reported as 500 without details.
func mapError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		bad      *badRequestError
		tooLarge *http.MaxBytesError
		rejected *booking.CouponRejectedError
	)
	switch {
	case errors.As(err, &bad):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
	case errors.As(err, &rejected):
		writeJSON(w, http.StatusUnprocessableEntity, func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("code", func(e *jx.Encoder) { e.Int(http.StatusUnprocessableEntity) })
				e.Field("message", func(e *jx.Encoder) { e.Str(reasonMessage(rejected.Reason)) })
				e.Field("reason", func(e *jx.Encoder) { e.Str(string(rejected.Reason)) })
			})
		})
	case errors.Is(err, booking.ErrInvalidDates),
		errors.Is(err, booking.ErrTooManyNights),
		errors.Is(err, booking.ErrInvalidGuests),
		errors.Is(err, booking.ErrGuestRequired),
		errors.Is(err, coupon.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, booking.ErrCapacityExceeded):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, booking.ErrRoomUnavailable),
		errors.Is(err, booking.ErrInvalidStatus),
		errors.Is(err, coupon.ErrCodeExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, room.ErrNotFound),
		errors.Is(err, booking.ErrNotFound),
		errors.Is(err, coupon.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
