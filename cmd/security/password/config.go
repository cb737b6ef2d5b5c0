package password

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/caarlos0/env/v11"
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32 `env:"TASKTRACK_ARGON2_MEMORY_KIB"`
	Iterations  uint32 `env:"TASKTRACK_ARGON2_ITERATIONS"`
	Parallelism uint8  `env:"TASKTRACK_ARGON2_PARALLELISM"`
	SaltLength  uint32 `env:"TASKTRACK_ARGON2_SALT_LEN"`
	KeyLength   uint32 `env:"TASKTRACK_ARGON2_KEY_LEN"`
}

// Policy controls password validation and anti-DoS boundaries.
type Policy struct {
	MinLength int `env:"TASKTRACK_PASSWORD_MIN_LEN"`
	MaxLength int `env:"TASKTRACK_PASSWORD_MAX_LEN"`
	// RejectVeryWeak enables a minimal trivial-pattern rejection.
	RejectVeryWeak bool `env:"TASKTRACK_PASSWORD_REJECT_VERY_WEAK"`
}

// Config is the single configuration surface for this package.
// A Config value is the password hasher: see Hash, Verify and NeedsRehash.
type Config struct {
	Params Argon2idParams
	Policy Policy
}

// DefaultConfig returns the interactive-login baseline. Parallelism follows the
// CPU count, capped at 4 so containers stay predictable.
func DefaultConfig() Config {
	threads := min(max(runtime.NumCPU(), 1), 4)

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- bounded to [1..4].
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength: 8,
			MaxLength: 256,
		},
	}
}

// FromEnv loads TASKTRACK_PASSWORD_* and TASKTRACK_ARGON2_* on top of DefaultConfig
// and rejects values outside Check's bounds.
func FromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("password: config: %w", err)
	}
	if err := cfg.Check(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Check reports whether the hashing cost and policy stay within operational bounds.
func (c Config) Check() error {
	var errs []error
	inRange := func(name string, v, lo, hi uint64) {
		if v < lo || v > hi {
			errs = append(errs, fmt.Errorf("%s=%d out of range [%d..%d]", name, v, lo, hi))
		}
	}

	p := c.Params
	inRange("argon2 memory_kib", uint64(p.MemoryKiB), 8*1024, 1024*1024) // 8 MiB .. 1 GiB
	inRange("argon2 iterations", uint64(p.Iterations), 1, 20)
	inRange("argon2 parallelism", uint64(p.Parallelism), 1, 64)
	inRange("argon2 salt_len", uint64(p.SaltLength), 8, 64)
	inRange("argon2 key_len", uint64(p.KeyLength), 16, 64)

	pol := c.Policy
	if pol.MinLength < 1 || pol.MinLength > 1024 {
		errs = append(errs, fmt.Errorf("password min_len=%d out of range [1..1024]", pol.MinLength))
	}
	if pol.MaxLength < 1 || pol.MaxLength > 4096 {
		errs = append(errs, fmt.Errorf("password max_len=%d out of range [1..4096]", pol.MaxLength))
	}
	if pol.MinLength > pol.MaxLength {
		errs = append(errs, fmt.Errorf("password min_len(%d) > max_len(%d)", pol.MinLength, pol.MaxLength))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("password: config: %w", err)
	}
	return nil
}
