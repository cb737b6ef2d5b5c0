package password

import (
	"os"
	"strings"
	"testing"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{
		"TASKTRACK_PASSWORD_MIN_LEN",
		"TASKTRACK_PASSWORD_MAX_LEN",
		"TASKTRACK_PASSWORD_REJECT_VERY_WEAK",
		"TASKTRACK_ARGON2_MEMORY_KIB",
		"TASKTRACK_ARGON2_ITERATIONS",
		"TASKTRACK_ARGON2_PARALLELISM",
		"TASKTRACK_ARGON2_SALT_LEN",
		"TASKTRACK_ARGON2_KEY_LEN",
	} {
		t.Setenv(k, "") // restores the original value after the test
		_ = os.Unsetenv(k)
	}

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestFromEnv_Override(t *testing.T) {
	t.Setenv("TASKTRACK_PASSWORD_MIN_LEN", "10")
	t.Setenv("TASKTRACK_PASSWORD_MAX_LEN", "200")
	t.Setenv("TASKTRACK_PASSWORD_REJECT_VERY_WEAK", "true")
	t.Setenv("TASKTRACK_ARGON2_MEMORY_KIB", "32768")
	t.Setenv("TASKTRACK_ARGON2_ITERATIONS", "4")
	t.Setenv("TASKTRACK_ARGON2_PARALLELISM", "2")
	t.Setenv("TASKTRACK_ARGON2_SALT_LEN", "24")
	t.Setenv("TASKTRACK_ARGON2_KEY_LEN", "32")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	want := Config{
		Params: Argon2idParams{MemoryKiB: 32768, Iterations: 4, Parallelism: 2, SaltLength: 24, KeyLength: 32},
		Policy: Policy{MinLength: 10, MaxLength: 200, RejectVeryWeak: true},
	}
	if cfg != want {
		t.Fatalf("override failed:\n got %+v\nwant %+v", cfg, want)
	}
}

func TestFromEnv_Rejects(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"min above max", map[string]string{"TASKTRACK_PASSWORD_MIN_LEN": "20", "TASKTRACK_PASSWORD_MAX_LEN": "10"}, "min_len(20) > max_len(10)"},
		{"memory too low", map[string]string{"TASKTRACK_ARGON2_MEMORY_KIB": "1024"}, "memory_kib"},
		{"zero iterations", map[string]string{"TASKTRACK_ARGON2_ITERATIONS": "0"}, "iterations"},
		{"parallelism overflows", map[string]string{"TASKTRACK_ARGON2_PARALLELISM": "300"}, "Parallelism"},
		{"not a bool", map[string]string{"TASKTRACK_PASSWORD_REJECT_VERY_WEAK": "maybe"}, "RejectVeryWeak"},
		{"not a number", map[string]string{"TASKTRACK_PASSWORD_MIN_LEN": "ten"}, "MinLength"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestCheck_DefaultsAreValid(t *testing.T) {
	t.Parallel()

	if err := DefaultConfig().Check(); err != nil {
		t.Fatalf("default config rejected: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Params.KeyLength = 8
	cfg.Policy.MinLength = 0
	err := cfg.Check()
	if err == nil || !strings.Contains(err.Error(), "key_len") || !strings.Contains(err.Error(), "min_len=0") {
		t.Fatalf("expected both violations reported, got %v", err)
	}
}
