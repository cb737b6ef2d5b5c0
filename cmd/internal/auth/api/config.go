package authapi

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config controls auth API behavior and login throttling.
type Config struct {
	TrustProxy   bool  `env:"TASKTRACK_AUTH_TRUST_PROXY" envDefault:"false"`
	MaxBodyBytes int64 `env:"TASKTRACK_MAX_BODY_BYTES" envDefault:"1048576"`

	LoginIPMax    int           `env:"TASKTRACK_AUTH_LOGIN_IP_MAX" envDefault:"20"`
	LoginIPWindow time.Duration `env:"TASKTRACK_AUTH_LOGIN_IP_WINDOW" envDefault:"5m"`

	// LoginUserWindow is the span, ending at the newest failure, whose failures count toward lockout.
	LoginUserWindow time.Duration `env:"TASKTRACK_AUTH_LOGIN_USER_WINDOW" envDefault:"1h"`

	LockoutShortThreshold  int           `env:"TASKTRACK_AUTH_LOGIN_LOCKOUT_SHORT_THRESHOLD" envDefault:"5"`
	LockoutShortDuration   time.Duration `env:"TASKTRACK_AUTH_LOGIN_LOCKOUT_SHORT_DURATION" envDefault:"5m"`
	LockoutLongThreshold   int           `env:"TASKTRACK_AUTH_LOGIN_LOCKOUT_LONG_THRESHOLD" envDefault:"10"`
	LockoutLongDuration    time.Duration `env:"TASKTRACK_AUTH_LOGIN_LOCKOUT_LONG_DURATION" envDefault:"30m"`
	LockoutSevereThreshold int           `env:"TASKTRACK_AUTH_LOGIN_LOCKOUT_SEVERE_THRESHOLD" envDefault:"20"`
	LockoutSevereDuration  time.Duration `env:"TASKTRACK_AUTH_LOGIN_LOCKOUT_SEVERE_DURATION" envDefault:"2h"`
}

// DefaultConfig mirrors the envDefault tags.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:           1 << 20,
		LoginIPMax:             20,
		LoginIPWindow:          5 * time.Minute,
		LoginUserWindow:        time.Hour,
		LockoutShortThreshold:  5,
		LockoutShortDuration:   5 * time.Minute,
		LockoutLongThreshold:   10,
		LockoutLongDuration:    30 * time.Minute,
		LockoutSevereThreshold: 20,
		LockoutSevereDuration:  2 * time.Hour,
	}
}

// LoadConfigFromEnv loads auth config from environment variables with safe defaults.
// Out-of-range numbers fall back to their defaults; unparseable values are errors.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("authapi: config: %w", err)
	}
	cfg.clamp()
	return cfg, nil
}

func (c *Config) clamp() {
	def := DefaultConfig()
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = def.MaxBodyBytes
	}
	if c.LoginIPMax <= 0 {
		c.LoginIPMax = def.LoginIPMax
	}
	if c.LoginIPWindow <= 0 {
		c.LoginIPWindow = def.LoginIPWindow
	}
	if c.LoginUserWindow <= 0 {
		c.LoginUserWindow = def.LoginUserWindow
	}
	if c.LockoutShortDuration <= 0 {
		c.LockoutShortDuration = def.LockoutShortDuration
	}
	if c.LockoutLongDuration <= 0 {
		c.LockoutLongDuration = def.LockoutLongDuration
	}
	if c.LockoutSevereDuration <= 0 {
		c.LockoutSevereDuration = def.LockoutSevereDuration
	}
}

// lockoutTiers returns the configured tiers, most severe first. A zero threshold disables a tier.
func (c Config) lockoutTiers() []lockoutTier {
	tiers := make([]lockoutTier, 0, 3)
	for _, t := range []lockoutTier{
		{Threshold: c.LockoutSevereThreshold, Duration: c.LockoutSevereDuration},
		{Threshold: c.LockoutLongThreshold, Duration: c.LockoutLongDuration},
		{Threshold: c.LockoutShortThreshold, Duration: c.LockoutShortDuration},
	} {
		if t.Threshold > 0 {
			tiers = append(tiers, t)
		}
	}
	return tiers
}
