package booking

import (
	"time"

	"github.com/go-faster/errors"
)

const dayLayout = "2006-01-02"

// ErrInvalidDay is returned by ParseDay for anything that is not a real
// YYYY-MM-DD calendar date.
var ErrInvalidDay = errors.New("invalid day, expected YYYY-MM-DD")

// ParseDay parses a YYYY-MM-DD date into UTC midnight.
func ParseDay(s string) (time.Time, error) {
	if len(s) != len(dayLayout) {
		return time.Time{}, errors.Wrapf(ErrInvalidDay, "%q", s)
	}
	t, err := time.ParseInLocation(dayLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrInvalidDay, "%q", s)
	}
	return t, nil
}

// DayKey formats t as YYYY-MM-DD in UTC.
func DayKey(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// StartOfDay truncates t to UTC midnight.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Nights returns the number of nights between two days. It is negative
// when checkOut is before checkIn.
func Nights(checkIn, checkOut time.Time) int {
	return int(StartOfDay(checkOut).Sub(StartOfDay(checkIn)) / (24 * time.Hour))
}
