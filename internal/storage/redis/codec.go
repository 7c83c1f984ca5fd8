package redis

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/hotel-booking/internal/domain/coupon"
)

// encodeCoupon writes the cached form of a coupon snapshot. Money is kept as
// decimal strings so no precision is lost on the round trip.
func encodeCoupon(e *jx.Encoder, c *coupon.Coupon) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(c.ID)
	e.FieldStart("code_hash")
	e.Str(c.CodeHash)
	e.FieldStart("code_prefix")
	e.Str(c.CodePrefix)
	e.FieldStart("description")
	e.Str(c.Description)
	e.FieldStart("type")
	e.Str(string(c.Type))
	e.FieldStart("value")
	e.Str(c.Value.String())
	e.FieldStart("max_discount")
	encodeNullDecimal(e, c.MaxDiscount)
	e.FieldStart("min_booking")
	encodeNullDecimal(e, c.MinBooking)
	e.FieldStart("active")
	e.Bool(c.Active)
	e.FieldStart("starts_at")
	encodeTime(e, c.StartsAt)
	e.FieldStart("expires_at")
	encodeTime(e, c.ExpiresAt)
	e.FieldStart("allowed_guests")
	encodeStrings(e, c.AllowedGuests)
	e.FieldStart("allowed_room_types")
	encodeStrings(e, c.AllowedRoomTypes)
	e.FieldStart("allowed_sources")
	encodeStrings(e, c.AllowedSources)
	e.FieldStart("usage_limit")
	e.Int(c.UsageLimit)
	e.FieldStart("usage_count")
	e.Int(c.UsageCount)
	e.FieldStart("per_guest_limit")
	e.Int(c.PerGuestLimit)
	e.FieldStart("created_at")
	encodeTime(e, &c.CreatedAt)
	e.ObjEnd()
}

func encodeNullDecimal(e *jx.Encoder, v decimal.NullDecimal) {
	if !v.Valid {
		e.Null()
		return
	}
	e.Str(v.Decimal.String())
}

func encodeTime(e *jx.Encoder, t *time.Time) {
	if t == nil {
		e.Null()
		return
	}
	e.Str(t.UTC().Format(time.RFC3339Nano))
}

func encodeStrings(e *jx.Encoder, v []string) {
	e.ArrStart()
	for _, s := range v {
		e.Str(s)
	}
	e.ArrEnd()
}

// decodeCoupon is the inverse of encodeCoupon. Unknown fields are skipped so
// entries written by a newer build stay readable.
func decodeCoupon(data []byte) (*coupon.Coupon, error) {
	var c coupon.Coupon
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			c.ID, err = d.Str()
		case "code_hash":
			c.CodeHash, err = d.Str()
		case "code_prefix":
			c.CodePrefix, err = d.Str()
		case "description":
			c.Description, err = d.Str()
		case "type":
			var s string
			s, err = d.Str()
			c.Type = coupon.DiscountType(s)
		case "value":
			c.Value, err = decodeDecimal(d)
		case "max_discount":
			c.MaxDiscount, err = decodeNullDecimal(d)
		case "min_booking":
			c.MinBooking, err = decodeNullDecimal(d)
		case "active":
			c.Active, err = d.Bool()
		case "starts_at":
			c.StartsAt, err = decodeTime(d)
		case "expires_at":
			c.ExpiresAt, err = decodeTime(d)
		case "allowed_guests":
			c.AllowedGuests, err = decodeStrings(d)
		case "allowed_room_types":
			c.AllowedRoomTypes, err = decodeStrings(d)
		case "allowed_sources":
			c.AllowedSources, err = decodeStrings(d)
		case "usage_limit":
			c.UsageLimit, err = d.Int()
		case "usage_count":
			c.UsageCount, err = d.Int()
		case "per_guest_limit":
			c.PerGuestLimit, err = d.Int()
		case "created_at":
			var t *time.Time
			if t, err = decodeTime(d); err == nil && t != nil {
				c.CreatedAt = *t
			}
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode cached coupon")
	}
	return &c, nil
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	s, err := d.Str()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(s)
}

func decodeNullDecimal(d *jx.Decoder) (decimal.NullDecimal, error) {
	if d.Next() == jx.Null {
		return decimal.NullDecimal{}, d.Null()
	}
	v, err := decodeDecimal(d)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(v), nil
}

func decodeTime(d *jx.Decoder) (*time.Time, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func decodeStrings(d *jx.Decoder) ([]string, error) {
	out := []string{}
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}
