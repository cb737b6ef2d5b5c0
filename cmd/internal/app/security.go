package app

import (
	"fmt"

	"tasktrack/cmd/internal/auth/session"
	"tasktrack/cmd/security/password"
)

// loadSecurity loads the token and password configuration and fails fast on
// anything missing or malformed. There is no default signing key.
func loadSecurity(log Logger) (session.TokenManager, password.Config, error) {
	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, password.Config{}, err
	}
	tokens, err := session.NewTokenManager(sessCfg)
	if err != nil {
		return nil, password.Config{}, err
	}

	pwCfg, err := password.FromEnv()
	if err != nil {
		return nil, password.Config{}, fmt.Errorf("password config: %w", err)
	}

	log.Info("auth.tokens.ready",
		"format", sessCfg.Format,
		"issuer", sessCfg.Issuer,
		"ttl", sessCfg.TTL.String(),
		"key_fp", sessCfg.KeyFingerprint(),
	)
	log.Info("auth.passwords.ready",
		"argon2_memory_kib", pwCfg.Params.MemoryKiB,
		"argon2_iterations", pwCfg.Params.Iterations,
		"min_length", pwCfg.Policy.MinLength,
	)
	return tokens, pwCfg, nil
}
