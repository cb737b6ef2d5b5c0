package session

import "time"

// Subject is the identity a token is issued for.
type Subject struct {
	UserID string
	Email  string
}

// Claims is the verified content of a token.
type Claims struct {
	UserID    string
	Email     string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenManager issues and verifies stateless bearer tokens.
type TokenManager interface {
	Issue(sub Subject, now time.Time) (token string, exp time.Time, err error)
	Verify(token string, now time.Time) (Claims, error)
}
