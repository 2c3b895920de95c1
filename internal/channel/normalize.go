package channel

import "strings"

// DigitsOnly strips everything but 0-9 from a raw recipient identifier.
func DigitsOnly(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteByte(byte(r))
		}
	}
	return b.String()
}

// Candidates returns the recipient numbers to try, in order. The first is
// the cleaned input. For Brazilian numbers (country code 55) the mobile
// ninth digit is ambiguous in the wild, so a second candidate toggles it:
//
//	55 + DDD + 9XXXXXXXX (13 digits, ninth digit present)  -> try without it
//	55 + DDD + XXXXXXXX  (12 digits, first digit 6..9)     -> try with a 9
//
// 12-digit numbers starting below 6 look like landlines and get no retry.
func Candidates(raw string) []string {
	n := DigitsOnly(raw)
	out := []string{n}

	if !strings.HasPrefix(n, "55") {
		return out
	}

	switch {
	case len(n) == 13 && n[4] == '9':
		out = append(out, n[:4]+n[5:])
	case len(n) == 12 && n[4] >= '6' && n[4] <= '9':
		out = append(out, n[:4]+"9"+n[4:])
	}
	return out
}
