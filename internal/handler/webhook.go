package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/hotel-booking/internal/domain/booking"
)

// SignatureHeader carries the hex HMAC-SHA256 of the webhook body.
const SignatureHeader = "X-Signature"

// Payment outcomes reported by the provider.
const (
	PaymentSucceeded = "succeeded"
	PaymentFailed    = "failed"
)

// Sign returns the signature expected in SignatureHeader for body.
func Sign(secret, body []byte) string {
	return hex.EncodeToString(signature(secret, body))
}

func signature(secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}

// verifySignature checks header against the body. An empty secret never
// verifies.
func verifySignature(secret, body []byte, header string) bool {
	if len(secret) == 0 {
		return false
	}
	got, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(header), "sha256="))
	if err != nil {
		return false
	}
	return hmac.Equal(got, signature(secret, body))
}

// paymentWebhook confirms or cancels a booking from a signed payment event.
func (h *Handler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if !errors.As(err, &tooLarge) {
			err = badRequest("read body: %v", err)
		}
		mapError(w, r, err)
		return
	}
	if !verifySignature(h.webhookSecret, body, r.Header.Get(SignatureHeader)) {
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var bookingID, paymentRef, status string
	err = decodeObject(body, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "bookingId":
			bookingID, err = d.Str()
		case "paymentRef":
			paymentRef, err = decodeOptStr(d)
		case "status":
			status, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		mapError(w, r, err)
		return
	}
	if bookingID == "" {
		mapError(w, r, badRequest("bookingId is required"))
		return
	}

	var b *booking.Booking
	switch status {
	case PaymentSucceeded:
		if paymentRef == "" {
			mapError(w, r, badRequest("paymentRef is required"))
			return
		}
		b, err = h.bookings.ConfirmPayment(r.Context(), bookingID, paymentRef)
	case PaymentFailed:
		b, err = h.bookings.FailPayment(r.Context(), bookingID)
	default:
		mapError(w, r, badRequest("unknown payment status %q", status))
		return
	}
	if err != nil {
		mapError(w, r, err)
		return
	}

	zctx.From(r.Context()).Info("Payment event applied",
		zap.String("booking_id", b.ID),
		zap.String("payment_status", status),
	)
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeBooking(e, b) })
}
