package phone

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Normalize turns a phone-like cell value into the roster join key.
//
// Ten-digit numbers are treated as North American and get "+1"; eleven digits
// with a leading 1 get "+"; anything else that survives cleaning is prefixed
// with a bare "+" without further validation. Blank and "nan" values have no key.
func Normalize(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "nan") {
		return "", false
	}

	s = strings.TrimSuffix(s, ".0")

	var b strings.Builder
	b.Grow(len(s) + 2)
	for _, r := range s {
		switch {
		case r == '+':
			if b.Len() == 0 {
				b.WriteRune(r)
			}
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}

	clean := b.String()
	if clean == "" {
		return "", false
	}
	if strings.HasPrefix(clean, "+") {
		return clean, true
	}

	switch n := utf8.RuneCountInString(clean); {
	case n == 10:
		return "+1" + clean, true
	case n == 11 && clean[0] == '1':
		return "+" + clean, true
	default:
		return "+" + clean, true
	}
}

// NormalizeAll normalizes every value and drops the ones without a key,
// keeping the first occurrence of each key.
func NormalizeAll(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		key, ok := Normalize(r)
		if !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}
