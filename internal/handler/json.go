package handler

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// badRequestError marks client input that could not be decoded.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

// readObject reads the request body and calls fn for every top-level key.
// Decoding failures are reported as bad requests.
func (h *Handler) readObject(w http.ResponseWriter, r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return badRequest("read body: %v", err)
	}
	return decodeObject(data, fn)
}

func decodeObject(data []byte, fn func(d *jx.Decoder, key string) error) error {
	if len(data) == 0 {
		return badRequest("empty body")
	}
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if err := fn(d, key); err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	}); err != nil {
		var bad *badRequestError
		if errors.As(err, &bad) {
			return err
		}
		return badRequest("invalid json: %v", err)
	}
	return nil
}

// decodeMoney accepts an amount as a JSON number or a numeric string.
// null leaves the result invalid.
func decodeMoney(d *jx.Decoder) (decimal.NullDecimal, error) {
	var raw string
	switch d.Next() {
	case jx.Null:
		return decimal.NullDecimal{}, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		raw = n.String()
	default:
		return decimal.NullDecimal{}, badRequest("amount must be a number or a numeric string")
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, badRequest("invalid amount %q", raw)
	}
	return decimal.NewNullDecimal(v), nil
}

// decodeAmount is decodeMoney for required amounts.
func decodeAmount(d *jx.Decoder) (decimal.Decimal, error) {
	v, err := decodeMoney(d)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if !v.Valid {
		return decimal.Decimal{}, badRequest("amount is required")
	}
	return v.Decimal, nil
}

// decodeOptStr reads a string, treating null as empty.
func decodeOptStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

func decodeOptTime(d *jx.Decoder) (*time.Time, error) {
	s, err := decodeOptStr(d)
	if err != nil || s == "" {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, badRequest("invalid timestamp %q, want RFC 3339", s)
	}
	return &t, nil
}

func decodeStrings(d *jx.Decoder) ([]string, error) {
	out := []string{}
	if d.Next() == jx.Null {
		return out, d.Null()
	}
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

// writeJSON encodes the response body with fn.
func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	fn(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes the {code, message} body used by every API error.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		})
	})
}

func encodeMoney(e *jx.Encoder, v decimal.Decimal) {
	e.Str(v.StringFixed(2))
}

func encodeOptMoney(e *jx.Encoder, v decimal.NullDecimal) {
	if !v.Valid {
		e.Null()
		return
	}
	encodeMoney(e, v.Decimal)
}

func encodeOptTime(e *jx.Encoder, t *time.Time) {
	if t == nil {
		e.Null()
		return
	}
	e.Str(t.UTC().Format(time.RFC3339))
}

func encodeStrings(e *jx.Encoder, v []string) {
	e.Arr(func(e *jx.Encoder) {
		for _, s := range v {
			e.Str(s)
		}
	})
}
