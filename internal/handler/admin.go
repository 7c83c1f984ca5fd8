package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/hotel-booking/internal/domain/booking"
	"github.com/xenking/hotel-booking/internal/domain/coupon"
)

func (h *Handler) issueCoupon(w http.ResponseWriter, r *http.Request) {
	req := coupon.IssueRequest{Active: true}
	err := h.readObject(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			req.Code, err = d.Str()
		case "description":
			req.Description, err = decodeOptStr(d)
		case "type":
			var s string
			s, err = d.Str()
			req.Type = coupon.DiscountType(s)
		case "value":
			req.Value, err = decodeAmount(d)
		case "maxDiscount":
			req.MaxDiscount, err = decodeMoney(d)
		case "minBooking":
			req.MinBooking, err = decodeMoney(d)
		case "active":
			req.Active, err = d.Bool()
		case "startsAt":
			req.StartsAt, err = decodeOptTime(d)
		case "expiresAt":
			req.ExpiresAt, err = decodeOptTime(d)
		case "allowedGuests":
			req.AllowedGuests, err = decodeStrings(d)
		case "allowedRoomTypes":
			req.AllowedRoomTypes, err = decodeStrings(d)
		case "allowedSources":
			req.AllowedSources, err = decodeStrings(d)
		case "usageLimit":
			req.UsageLimit, err = d.Int()
		case "perGuestLimit":
			req.PerGuestLimit, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		mapError(w, r, err)
		return
	}

	c, err := h.admin.Issue(r.Context(), req)
	if err != nil {
		mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeCoupon(e, c) })
}

func (h *Handler) searchCoupons(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if coupon.NormalizeCode(prefix) == "" {
		mapError(w, r, badRequest("prefix is required"))
		return
	}

	coupons, err := h.admin.Search(r.Context(), prefix)
	if err != nil {
		mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range coupons {
				encodeCoupon(e, &coupons[i])
			}
		})
	})
}

func (h *Handler) setCouponActive(w http.ResponseWriter, r *http.Request) {
	var (
		active bool
		seen   bool
	)
	err := h.readObject(w, r, func(d *jx.Decoder, key string) error {
		if key != "active" {
			return d.Skip()
		}
		seen = true
		var err error
		active, err = d.Bool()
		return err
	})
	if err == nil && !seen {
		err = badRequest("active is required")
	}
	if err != nil {
		mapError(w, r, err)
		return
	}

	c, err := h.admin.SetActive(r.Context(), chi.URLParam(r, "id"), active)
	if err != nil {
		mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCoupon(e, c) })
}

func (h *Handler) listBookings(w http.ResponseWriter, r *http.Request) {
	status := booking.Status(strings.ToUpper(r.URL.Query().Get("status")))
	if status != "" && !status.Valid() {
		mapError(w, r, badRequest("unknown status %q", status))
		return
	}

	bookings, err := h.bookings.List(r.Context(), status)
	if err != nil {
		mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range bookings {
				encodeBooking(e, &bookings[i])
			}
		})
	})
}

func (h *Handler) cancelBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.bookings.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeBooking(e, b) })
}
