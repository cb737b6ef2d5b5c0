package session

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tasktrack/cmd/security/token"
)

type jwtClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type jwtManager struct {
	issuer string
	ttl    time.Duration
	key    []byte
}

// NewJWTManager builds a TokenManager issuing HS256 JWTs.
func NewJWTManager(cfg Config) (TokenManager, error) {
	key, err := token.SigningKey(cfg.SigningKey, token.MinSigningKeyBytes)
	if err != nil {
		return nil, ErrConfig
	}
	if cfg.TTL <= 0 || strings.TrimSpace(cfg.Issuer) == "" {
		return nil, ErrConfig
	}
	return &jwtManager{
		issuer: strings.TrimSpace(cfg.Issuer),
		ttl:    cfg.TTL,
		key:    key,
	}, nil
}

func (m *jwtManager) Issue(sub Subject, now time.Time) (string, time.Time, error) {
	if strings.TrimSpace(sub.UserID) == "" {
		return "", time.Time{}, ErrInvalidSubject
	}
	exp := now.Add(m.ttl)

	claims := jwtClaims{
		Email: sub.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.UserID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (m *jwtManager) Verify(raw string, now time.Time) (Claims, error) {
	var claims jwtClaims
	_, err := jwt.ParseWithClaims(
		raw,
		&claims,
		func(*jwt.Token) (any, error) { return m.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}
	if claims.Subject == "" || claims.IssuedAt == nil {
		return Claims{}, ErrTokenMalformed
	}

	return Claims{
		UserID:    claims.Subject,
		Email:     claims.Email,
		Issuer:    claims.Issuer,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// mapJWTError folds the library's error tree into the three verification kinds.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrTokenSignatureInvalid
	default:
		return ErrTokenMalformed
	}
}
