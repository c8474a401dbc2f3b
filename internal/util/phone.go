package util

import (
	"regexp"
	"strings"
)

var phoneNoise = regexp.MustCompile(`[^\d\+]+`)

// NormalizePhone strips formatting from user input and rewrites an
// international 00 prefix to +.
func NormalizePhone(raw string) string {
	s := phoneNoise.ReplaceAllString(strings.TrimSpace(raw), "")

	if strings.HasPrefix(s, "00") {
		s = "+" + s[2:]
	}
	if i := strings.LastIndex(s, "+"); i > 0 {
		s = s[:1] + strings.ReplaceAll(s[1:], "+", "")
	}

	return s
}
