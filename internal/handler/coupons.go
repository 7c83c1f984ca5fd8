package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/hotel-booking/internal/domain/coupon"
)

// validateCoupon checks a code against a subtotal without redeeming it.
// Rejections are a normal 200 response carrying the reason.
func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	var in coupon.Input
	err := h.readObject(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			in.Code, err = decodeOptStr(d)
		case "subtotal":
			in.Subtotal, err = decodeMoney(d)
		case "guestEmail":
			in.GuestEmail, err = decodeOptStr(d)
		case "guestPhone":
			in.GuestPhone, err = decodeOptStr(d)
		case "roomTypeId":
			in.RoomTypeID, err = decodeOptStr(d)
		case "source":
			in.Source, err = decodeOptStr(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		mapError(w, r, err)
		return
	}

	res, err := h.coupons.Validate(r.Context(), in)
	if err != nil {
		mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeResult(e, &res) })
}
