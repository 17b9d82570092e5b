package themis

import (
	"strings"
	"unicode"
)

// NormalizeAmount turns a Brazilian formatted amount such as "R$ 1.234,56"
// into the dotted decimal "1234.56" the form expects. Empty input stays empty.
//
// Periods are thousands separators, except for a lone period followed by one
// or two digits in an amount without a comma, which is already a decimal
// point ("10000.00", "1234.5").
func NormalizeAmount(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "R$", "")
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '$' {
			return -1
		}
		return r
	}, s)

	if !strings.Contains(s, ",") && strings.Count(s, ".") == 1 {
		if frac := len(s) - strings.IndexByte(s, '.') - 1; frac == 1 || frac == 2 {
			return s
		}
	}
	s = strings.ReplaceAll(s, ".", "")
	return strings.ReplaceAll(s, ",", ".")
}
