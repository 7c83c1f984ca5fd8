package coupon

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// DefaultPrefixLen is the number of leading code characters kept for index scans.
const DefaultPrefixLen = 6

// NormalizeCode trims the code, removes all whitespace and upper-cases it.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, code))
}

// NormalizeGuestEmail trims and lower-cases an email address.
func NormalizeGuestEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeGuestPhone keeps only the digits of a phone number.
func NormalizeGuestPhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
}

// GuestKeys returns the identities used for per-guest usage counters: the
// normalized email and phone, whichever are present. Usage is counted
// against each of them, so switching identifier does not reset the counter.
func GuestKeys(email, phone string) []string {
	var keys []string
	if e := NormalizeGuestEmail(email); e != "" {
		keys = append(keys, e)
	}
	if p := NormalizeGuestPhone(phone); p != "" {
		keys = append(keys, p)
	}
	return keys
}

// CodePrefix returns the first n characters of the normalized code.
func CodePrefix(code string, n int) string {
	r := []rune(NormalizeCode(code))
	if n < 0 {
		n = 0
	}
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}

// HashCode returns the hex SHA-256 of the normalized code joined with the
// server-side pepper. Stores key coupons by this value.
func HashCode(code, pepper string) string {
	sum := sha256.Sum256([]byte(NormalizeCode(code) + "|" + pepper))
	return hex.EncodeToString(sum[:])
}

// HashTelemetryValue digests an identifying value so it can be logged.
func HashTelemetryValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// normalizeSource canonicalizes a booking channel name.
func normalizeSource(source string) string {
	return strings.ToLower(strings.TrimSpace(source))
}
