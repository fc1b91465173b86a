package numbers

import (
	"regexp"
	"strings"
	"unicode"
)

// Normalizer canonicalizes inbound caller numbers so that lookups and policy
// comparisons key on the same string regardless of carrier formatting.
//
// Normalize is total: it never fails and degrades to "+<cc>" for input that
// carries no digits at all.

var (
	e164Pattern     = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)
	subscriberShape = regexp.MustCompile(`^[1-9]\d{6,14}$`)
)

const (
	intlPrefix     = "00"
	intlPrefixNA   = "011"
	nationalMaxLen = 10
)

// IsE164 reports whether s is already in canonical international form.
func IsE164(s string) bool {
	return e164Pattern.MatchString(s)
}

// Normalize converts raw into "+<country code><subscriber>" form.
// defaultCountryCode is applied to numbers that look national (10 digits or fewer).
func Normalize(raw, defaultCountryCode string) string {
	cc := strings.TrimPrefix(strings.TrimSpace(defaultCountryCode), "+")

	s := stripFormatting(raw)
	if IsE164(s) {
		return s
	}

	s = strings.TrimPrefix(s, "+")
	// "00" first, then "011" on what remains.
	s = strings.TrimPrefix(s, intlPrefix)
	s = strings.TrimPrefix(s, intlPrefixNA)

	if subscriberShape.MatchString(s) {
		if len(s) > nationalMaxLen {
			return "+" + s
		}
		return "+" + cc + s
	}

	// Anything left that is not a clean subscriber number keeps only its digits.
	return "+" + cc + digitsOnly(s)
}

func stripFormatting(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		switch r {
		case '(', ')', '-', '.':
			return -1
		}
		return r
	}, s)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
