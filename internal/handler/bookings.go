package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/hotel-booking/internal/domain/booking"
)

// decodeStayField decodes the fields shared by quote and create requests.
func decodeStayField(req *booking.QuoteRequest, d *jx.Decoder, key string) (bool, error) {
	var err error
	switch key {
	case "roomTypeId":
		req.RoomTypeID, err = d.Str()
	case "checkIn":
		req.CheckIn, err = d.Str()
	case "checkOut":
		req.CheckOut, err = d.Str()
	case "guests":
		req.Guests, err = d.Int()
	case "couponCode":
		req.CouponCode, err = decodeOptStr(d)
	case "guestEmail":
		req.GuestEmail, err = decodeOptStr(d)
	case "guestPhone":
		req.GuestPhone, err = decodeOptStr(d)
	case "source":
		req.Source, err = decodeOptStr(d)
	default:
		return false, nil
	}
	return true, err
}

func (h *Handler) quoteBooking(w http.ResponseWriter, r *http.Request) {
	var req booking.QuoteRequest
	err := h.readObject(w, r, func(d *jx.Decoder, key string) error {
		ok, err := decodeStayField(&req, d, key)
		if !ok {
			return d.Skip()
		}
		return err
	})
	if err != nil {
		mapError(w, r, err)
		return
	}

	q, err := h.bookings.Quote(r.Context(), req)
	if err != nil {
		mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeQuote(e, q) })
}

func (h *Handler) createBooking(w http.ResponseWriter, r *http.Request) {
	var req booking.CreateRequest
	err := h.readObject(w, r, func(d *jx.Decoder, key string) error {
		if key == "guestName" {
			var err error
			req.GuestName, err = decodeOptStr(d)
			return err
		}
		ok, err := decodeStayField(&req.QuoteRequest, d, key)
		if !ok {
			return d.Skip()
		}
		return err
	})
	if err != nil {
		mapError(w, r, err)
		return
	}

	b, err := h.bookings.Create(r.Context(), req)
	if err != nil {
		mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeBooking(e, b) })
}

func (h *Handler) getBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.bookings.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeBooking(e, b) })
}
