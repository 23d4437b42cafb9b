package core

import (
	"strings"
	"time"
)

var NowFunc = func() time.Time { return time.Now().UTC() } // mockable

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CleanEmails lowers and trims emails, dropping blanks and duplicates while keeping the input order.
func CleanEmails(emails []string) []string {
	seen := make(map[string]struct{}, len(emails))
	cleaned := make([]string, 0, len(emails))
	for _, e := range emails {
		e = CleanString(e, true /* lower */)
		if e == "" {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		cleaned = append(cleaned, e)
	}
	return cleaned
}
