package identity

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	maxEmailBytes = 254
	maxNameRunes  = 100
)

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// validEmail accepts a single bare RFC 5322 address with a dotted domain.
func validEmail(s string) bool {
	if s == "" || len(s) > maxEmailBytes {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || addr.Name != "" {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	domain := s[at+1:]
	return strings.Contains(domain, ".") && !strings.HasSuffix(domain, ".")
}

func validName(s string) bool {
	return s != "" && utf8.RuneCountInString(s) <= maxNameRunes
}
