// Package token owns the process-wide signing key material used by the token
// service.
//
// Keys are read once at startup. A missing or short key is a fatal
// configuration error; there is no unsigned or default-key fallback.
//
// Environment:
//   - TASKTRACK_TOKEN_SIGNING_KEY: HMAC key for JWT HS256 tokens (>= 32 bytes).
//   - TASKTRACK_PASETO_V4_SECRET_KEY_HEX: Ed25519 secret key for PASETO v4.public tokens.
package token
