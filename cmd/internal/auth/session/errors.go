package session

import "errors"

var (
	// ErrTokenMalformed is returned when a token cannot be decoded or lacks required claims.
	ErrTokenMalformed = errors.New("token malformed")

	// ErrTokenExpired is returned when now is at or past the token expiry.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenSignatureInvalid is returned when the signature, algorithm or issuer does not check out.
	ErrTokenSignatureInvalid = errors.New("token signature invalid")

	// ErrInvalidSubject is returned by Issue for an empty user ID.
	ErrInvalidSubject = errors.New("invalid token subject")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)

// IsTokenError reports whether err is one of the verification failures.
func IsTokenError(err error) bool {
	return errors.Is(err, ErrTokenMalformed) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenSignatureInvalid)
}
