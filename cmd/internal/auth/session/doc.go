// Package session implements stateless bearer tokens.
//
// A token carries the user ID (sub), the login email, issue time, expiry and
// issuer. Nothing is persisted server-side: validity is derived from the
// signature and the expiry alone, so tokens are never revoked early.
//
// Two formats are supported behind TokenManager:
//   - jwt: HS256 JSON Web Tokens keyed by TASKTRACK_TOKEN_SIGNING_KEY (default).
//   - paseto: PASETO v4.public keyed by TASKTRACK_PASETO_V4_SECRET_KEY_HEX.
//
// Verify reports ErrTokenMalformed, ErrTokenExpired or ErrTokenSignatureInvalid.
// Callers at the HTTP boundary must not expose which one occurred.
package session
