// Package location canonicalizes caller-supplied ZIP and state inputs.
// Nothing here returns an error: bad input narrows the geography ladder,
// it never aborts pricing.
package location

import "strings"

// validStates holds USPS abbreviations Medicare prices in
var validStates = map[string]bool{
	"AL": true, "AK": true, "AZ": true, "AR": true, "CA": true, "CO": true,
	"CT": true, "DE": true, "DC": true, "FL": true, "GA": true, "HI": true,
	"ID": true, "IL": true, "IN": true, "IA": true, "KS": true, "KY": true,
	"LA": true, "ME": true, "MD": true, "MA": true, "MI": true, "MN": true,
	"MS": true, "MO": true, "MT": true, "NE": true, "NV": true, "NH": true,
	"NJ": true, "NM": true, "NY": true, "NC": true, "ND": true, "OH": true,
	"OK": true, "OR": true, "PA": true, "RI": true, "SC": true, "SD": true,
	"TN": true, "TX": true, "UT": true, "VT": true, "VA": true, "WA": true,
	"WV": true, "WI": true, "WY": true,
	// territories
	"PR": true, "VI": true, "GU": true, "AS": true, "MP": true,
	// military
	"AA": true, "AE": true, "AP": true,
}

// NormalizeZip reduces raw to a 5-digit ZIP.
// Non-digits are stripped; ZIP+4 keeps its first five digits.
func NormalizeZip(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch len(digits) {
	case 5:
		return digits, true
	case 9:
		return digits[:5], true
	default:
		return "", false
	}
}

// NormalizeState uppercases raw and accepts only known abbreviations
func NormalizeState(raw string) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if len(s) != 2 {
		return "", false
	}
	for i := 0; i < 2; i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return "", false
		}
	}
	if !validStates[s] {
		return "", false
	}
	return s, true
}

// IsValidState reports whether s is already a canonical abbreviation
func IsValidState(s string) bool {
	return validStates[s]
}

// Provided reports whether the caller sent anything at all for a field
func Provided(raw string) bool {
	return strings.TrimSpace(raw) != ""
}
