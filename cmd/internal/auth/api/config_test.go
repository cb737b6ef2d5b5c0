package authapi

import (
	"testing"
	"time"
)

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("env defaults drifted from DefaultConfig:\n got %+v\nwant %+v", cfg, DefaultConfig())
	}
}

func TestLoadConfigFromEnv_ClampsNonPositive(t *testing.T) {
	t.Setenv("TASKTRACK_MAX_BODY_BYTES", "0")
	t.Setenv("TASKTRACK_AUTH_LOGIN_IP_MAX", "-3")
	t.Setenv("TASKTRACK_AUTH_LOGIN_IP_WINDOW", "-1m")
	t.Setenv("TASKTRACK_AUTH_TRUST_PROXY", "true")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.MaxBodyBytes != 1<<20 || cfg.LoginIPMax != 20 || cfg.LoginIPWindow != 5*time.Minute {
		t.Fatalf("expected clamped defaults, got %+v", cfg)
	}
	if !cfg.TrustProxy {
		t.Fatalf("expected TrustProxy=true")
	}
}

func TestLoadConfigFromEnv_RejectsGarbage(t *testing.T) {
	t.Setenv("TASKTRACK_AUTH_LOGIN_USER_WINDOW", "forever")
	if _, err := LoadConfigFromEnv(); err == nil {
		t.Fatalf("expected error for unparseable duration")
	}
}

func TestLockoutTiers_OrderAndDisable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LockoutLongThreshold = 0

	tiers := cfg.lockoutTiers()
	if len(tiers) != 2 {
		t.Fatalf("expected 2 tiers, got %d", len(tiers))
	}
	if tiers[0].Threshold != 20 || tiers[1].Threshold != 5 {
		t.Fatalf("unexpected tier order: %+v", tiers)
	}
}
