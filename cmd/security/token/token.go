package token

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	// SigningKeyEnv is the env var name for the HMAC signing key.
	// #nosec G101 -- not a credential; it's an environment variable name.
	SigningKeyEnv = "TASKTRACK_TOKEN_SIGNING_KEY"

	// PasetoSecretKeyEnv is the env var name for the hex-encoded Ed25519 secret key.
	// #nosec G101 -- not a credential; it's an environment variable name.
	PasetoSecretKeyEnv = "TASKTRACK_PASETO_V4_SECRET_KEY_HEX"

	// MinSigningKeyBytes is the minimum HMAC-SHA256 key size.
	MinSigningKeyBytes = 32

	// ed25519 secret keys are 64 bytes (seed || public key).
	pasetoSecretKeyHexLen = 128
)

// SigningKey validates a raw HMAC key. Length is measured in bytes because the key is used as raw bytes.
func SigningKey(raw string, minBytes int) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrSigningKeyMissing
	}
	b := []byte(raw)
	if minBytes > 0 && len(b) < minBytes {
		return nil, ErrSigningKeyTooShort
	}
	return b, nil
}

// PasetoSecretKeyHex validates the shape of a hex-encoded Ed25519 secret key.
func PasetoSecretKeyHex(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrSigningKeyMissing
	}
	if len(raw) != pasetoSecretKeyHexLen {
		return "", ErrSigningKeyInvalid
	}
	if _, err := hex.DecodeString(raw); err != nil {
		return "", ErrSigningKeyInvalid
	}
	return raw, nil
}

// Fingerprint returns a short, non-reversible identifier for key material,
// suitable for startup logs (which key is loaded) without exposing the key.
func Fingerprint(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:])[:12]
}
