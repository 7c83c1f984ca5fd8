package handler

import (
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/hotel-booking/internal/domain/booking"
	"github.com/xenking/hotel-booking/internal/domain/coupon"
	"github.com/xenking/hotel-booking/internal/domain/room"
)

func encodeRoom(e *jx.Encoder, rt *room.RoomType) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(rt.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(rt.Name) })
		e.Field("description", func(e *jx.Encoder) { e.Str(rt.Description) })
		e.Field("nightlyRate", func(e *jx.Encoder) { encodeMoney(e, rt.NightlyRate) })
		e.Field("capacity", func(e *jx.Encoder) { e.Int(rt.Capacity) })
		e.Field("units", func(e *jx.Encoder) { e.Int(rt.Units) })
	})
}

// encodeResult writes a validation result. Amounts are only present for
// applied coupons.
func encodeResult(e *jx.Encoder, res *coupon.Result) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("valid", func(e *jx.Encoder) { e.Bool(res.Valid) })
		e.Field("reason", func(e *jx.Encoder) { e.Str(string(res.Reason)) })
		e.Field("message", func(e *jx.Encoder) { e.Str(reasonMessage(res.Reason)) })
		if !res.Valid {
			return
		}
		e.Field("couponId", func(e *jx.Encoder) { e.Str(res.CouponID) })
		e.Field("couponType", func(e *jx.Encoder) { e.Str(string(res.CouponType)) })
		e.Field("couponValue", func(e *jx.Encoder) { e.Str(res.CouponValue.String()) })
		e.Field("discountAmount", func(e *jx.Encoder) { encodeMoney(e, res.DiscountAmount) })
		e.Field("subtotal", func(e *jx.Encoder) { encodeMoney(e, res.Subtotal) })
		e.Field("total", func(e *jx.Encoder) { encodeMoney(e, res.Total) })
	})
}

func encodeQuote(e *jx.Encoder, q *booking.Quote) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("roomType", func(e *jx.Encoder) { encodeRoom(e, &q.RoomType) })
		e.Field("checkIn", func(e *jx.Encoder) { e.Str(booking.DayKey(q.CheckIn)) })
		e.Field("checkOut", func(e *jx.Encoder) { e.Str(booking.DayKey(q.CheckOut)) })
		e.Field("nights", func(e *jx.Encoder) { e.Int(q.Nights) })
		e.Field("available", func(e *jx.Encoder) { e.Int(q.Available) })
		e.Field("subtotal", func(e *jx.Encoder) { encodeMoney(e, q.Subtotal) })
		e.Field("discount", func(e *jx.Encoder) { encodeMoney(e, q.Discount) })
		e.Field("total", func(e *jx.Encoder) { encodeMoney(e, q.Total) })
		e.Field("coupon", func(e *jx.Encoder) {
			if q.Coupon == nil {
				e.Null()
				return
			}
			encodeResult(e, q.Coupon)
		})
	})
}

func encodeBooking(e *jx.Encoder, b *booking.Booking) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(b.ID) })
		e.Field("roomTypeId", func(e *jx.Encoder) { e.Str(b.RoomTypeID) })
		e.Field("guestName", func(e *jx.Encoder) { e.Str(b.Guest.Name) })
		e.Field("guestEmail", func(e *jx.Encoder) { e.Str(b.Guest.Email) })
		e.Field("guestPhone", func(e *jx.Encoder) { e.Str(b.Guest.Phone) })
		e.Field("checkIn", func(e *jx.Encoder) { e.Str(booking.DayKey(b.CheckIn)) })
		e.Field("checkOut", func(e *jx.Encoder) { e.Str(booking.DayKey(b.CheckOut)) })
		e.Field("nights", func(e *jx.Encoder) { e.Int(b.Nights) })
		e.Field("guests", func(e *jx.Encoder) { e.Int(b.Guests) })
		e.Field("source", func(e *jx.Encoder) { e.Str(b.Source) })
		e.Field("subtotal", func(e *jx.Encoder) { encodeMoney(e, b.Subtotal) })
		e.Field("discount", func(e *jx.Encoder) { encodeMoney(e, b.Discount) })
		e.Field("total", func(e *jx.Encoder) { encodeMoney(e, b.Total) })
		e.Field("couponId", func(e *jx.Encoder) {
			if b.CouponID == "" {
				e.Null()
				return
			}
			e.Str(b.CouponID)
		})
		e.Field("status", func(e *jx.Encoder) { e.Str(string(b.Status)) })
		e.Field("paymentRef", func(e *jx.Encoder) { e.Str(b.PaymentRef) })
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(b.CreatedAt.UTC().Format(time.RFC3339)) })
		e.Field("updatedAt", func(e *jx.Encoder) { e.Str(b.UpdatedAt.UTC().Format(time.RFC3339)) })
	})
}

// encodeCoupon writes the admin view of a coupon. The raw code is never
// stored, so only its prefix is shown.
func encodeCoupon(e *jx.Encoder, c *coupon.Coupon) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(c.ID) })
		e.Field("codePrefix", func(e *jx.Encoder) { e.Str(c.CodePrefix) })
		e.Field("description", func(e *jx.Encoder) { e.Str(c.Description) })
		e.Field("type", func(e *jx.Encoder) { e.Str(string(c.Type)) })
		e.Field("value", func(e *jx.Encoder) { e.Str(c.Value.String()) })
		e.Field("maxDiscount", func(e *jx.Encoder) { encodeOptMoney(e, c.MaxDiscount) })
		e.Field("minBooking", func(e *jx.Encoder) { encodeOptMoney(e, c.MinBooking) })
		e.Field("active", func(e *jx.Encoder) { e.Bool(c.Active) })
		e.Field("startsAt", func(e *jx.Encoder) { encodeOptTime(e, c.StartsAt) })
		e.Field("expiresAt", func(e *jx.Encoder) { encodeOptTime(e, c.ExpiresAt) })
		e.Field("allowedGuests", func(e *jx.Encoder) { encodeStrings(e, c.AllowedGuests) })
		e.Field("allowedRoomTypes", func(e *jx.Encoder) { encodeStrings(e, c.AllowedRoomTypes) })
		e.Field("allowedSources", func(e *jx.Encoder) { encodeStrings(e, c.AllowedSources) })
		e.Field("usageLimit", func(e *jx.Encoder) { e.Int(c.UsageLimit) })
		e.Field("usageCount", func(e *jx.Encoder) { e.Int(c.UsageCount) })
		e.Field("perGuestLimit", func(e *jx.Encoder) { e.Int(c.PerGuestLimit) })
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(c.CreatedAt.UTC().Format(time.RFC3339)) })
	})
}
