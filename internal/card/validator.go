// Package card holds the fake card checks used by the payment service.
// Input shape (16 digits, MM/YYYY) is validated at the request boundary;
// the functions here assume well-formed input and never touch I/O.
package card

import (
	"strconv"
	"strings"
	"time"
)

// ValidateCardNumber reports whether digits passes the mod-10 checksum.
// Walking the reversed number, every digit at an odd index is doubled
// and reduced by 9 when the result exceeds 9; the number is valid when
// the sum of all digits is a multiple of 10.
func ValidateCardNumber(digits string) bool {
	if digits == "" {
		return false
	}
	sum := 0
	for i := 0; i < len(digits); i++ {
		ch := digits[len(digits)-1-i] // index i of the reversed sequence
		if ch < '0' || ch > '9' {
			return false
		}
		d := int(ch - '0')
		if i%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return sum%10 == 0
}

// ValidateExpiry parses an MM/YYYY expiry and reports whether the first
// day of that month is not before now's date.  A card expiring in the
// current month is therefore still valid.
func ValidateExpiry(expiry string, now time.Time) bool {
	month, year, ok := parseExpiry(expiry)
	if !ok {
		return false
	}
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	today := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return !first.Before(today)
}

// ValidateExpiryNow is ValidateExpiry evaluated against the wall clock.
func ValidateExpiryNow(expiry string) bool { return ValidateExpiry(expiry, time.Now().UTC()) }

// WellFormedExpiry reports whether expiry is MM/YYYY with a real month.
func WellFormedExpiry(expiry string) bool {
	_, _, ok := parseExpiry(expiry)
	return ok
}

func parseExpiry(expiry string) (month, year int, ok bool) {
	mm, yyyy, found := strings.Cut(strings.TrimSpace(expiry), "/")
	if !found || len(mm) != 2 || len(yyyy) != 4 {
		return 0, 0, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 1 || m > 12 {
		return 0, 0, false
	}
	y, err := strconv.Atoi(yyyy)
	if err != nil {
		return 0, 0, false
	}
	return m, y, true
}

// Last4 returns the trailing four digits of a card number, the only part
// of it that is ever persisted.
func Last4(number string) string {
	if len(number) <= 4 {
		return number
	}
	return number[len(number)-4:]
}

// Mask renders stored card digits for read paths.
func Mask(last4 string) string { return "**** **** **** " + Last4(last4) }
