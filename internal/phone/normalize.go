package phone

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// DomesticCountryCode is prepended to local Brazilian numbers.
const DomesticCountryCode = "55"

// ChannelPrefix is the address prefix the WhatsApp gateway expects.
const ChannelPrefix = "whatsapp:"

var ErrInvalidAddress = errors.New("invalid phone address")

var canonical = regexp.MustCompile(`^\+\d{10,15}$`)

// Normalize converts free-form phone input into a canonical +E.164 address.
// It is pure: the same input always yields the same output or the same error.
func Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if len(s) >= len(ChannelPrefix) && strings.EqualFold(s[:len(ChannelPrefix)], ChannelPrefix) {
		s = strings.TrimSpace(s[len(ChannelPrefix):])
	}

	hasPlus := strings.HasPrefix(s, "+")
	digits := onlyDigits(s)

	var out string
	switch {
	case hasPlus:
		out = "+" + digits
	case isDomestic(digits):
		out = "+" + DomesticCountryCode + digits
	case len(digits) >= 10 && len(digits) <= 15:
		out = "+" + digits
	default:
		return "", fmt.Errorf("%w: %q has %d digits", ErrInvalidAddress, raw, len(digits))
	}

	if n := len(out) - 1; n < 10 || n > 15 || !canonical.MatchString(out) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, raw)
	}
	return out, nil
}

// isDomestic reports whether digits look like a Brazilian number without
// country code: two-digit area code (leading 1-9) plus an 8 or 9 digit line.
// A 10-11 digit string cannot also hold the 55 prefix and a full line number.
func isDomestic(digits string) bool {
	if len(digits) < 10 || len(digits) > 11 {
		return false
	}
	return digits[0] >= '1' && digits[0] <= '9'
}

func onlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ChannelAddress returns the gateway form of a canonical address.
func ChannelAddress(canonical string) string {
	return ChannelPrefix + canonical
}
