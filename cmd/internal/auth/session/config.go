package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"tasktrack/cmd/security/token"
)

// Token formats accepted by TASKTRACK_TOKEN_FORMAT.
const (
	FormatJWT    = "jwt"
	FormatPaseto = "paseto"
)

// Config defines runtime configuration for token issuance and verification.
type Config struct {
	// Issuer is the value set in (and required of) the "iss" claim.
	Issuer string `env:"TASKTRACK_TOKEN_ISSUER" envDefault:"tasktrack"`

	// TTL is the lifetime of issued tokens.
	TTL time.Duration `env:"TASKTRACK_TOKEN_TTL" envDefault:"168h"`

	// Format selects the TokenManager implementation.
	Format string `env:"TASKTRACK_TOKEN_FORMAT" envDefault:"jwt"`

	// SigningKey is the HMAC key for the jwt format.
	SigningKey string `env:"TASKTRACK_TOKEN_SIGNING_KEY"`

	// PasetoV4SecretKeyHex is the hex-encoded Ed25519 secret key for the paseto format.
	PasetoV4SecretKeyHex string `env:"TASKTRACK_PASETO_V4_SECRET_KEY_HEX"`
}

// DefaultConfig returns the baseline configuration without key material.
func DefaultConfig() Config {
	return Config{
		Issuer: "tasktrack",
		TTL:    7 * 24 * time.Hour,
		Format: FormatJWT,
	}
}

// LoadConfigFromEnv loads and validates session configuration.
//
// The key for the selected format is required; startup must fail without it.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks invariants and key material for the selected format.
func (c *Config) Validate() error {
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	c.Issuer = strings.TrimSpace(c.Issuer)

	if c.Issuer == "" {
		return fmt.Errorf("%w: issuer is empty", ErrConfig)
	}
	if c.TTL <= 0 {
		return fmt.Errorf("%w: ttl must be positive", ErrConfig)
	}

	switch c.Format {
	case FormatJWT:
		if _, err := token.SigningKey(c.SigningKey, token.MinSigningKeyBytes); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrConfig, token.SigningKeyEnv, err)
		}
	case FormatPaseto:
		if _, err := token.PasetoSecretKeyHex(c.PasetoV4SecretKeyHex); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrConfig, token.PasetoSecretKeyEnv, err)
		}
	default:
		return fmt.Errorf("%w: unknown token format %q", ErrConfig, c.Format)
	}
	return nil
}

// KeyFingerprint identifies the active key in logs without exposing it.
func (c Config) KeyFingerprint() string {
	if c.Format == FormatPaseto {
		return token.Fingerprint([]byte(strings.TrimSpace(c.PasetoV4SecretKeyHex)))
	}
	return token.Fingerprint([]byte(strings.TrimSpace(c.SigningKey)))
}

// NewTokenManager builds the TokenManager for cfg.Format.
func NewTokenManager(cfg Config) (TokenManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Format == FormatPaseto {
		return NewPasetoV4PublicManager(cfg)
	}
	return NewJWTManager(cfg)
}
