package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearStoreEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"TASKTRACK_STORE", "TASKTRACK_DATABASE_URL", "TASKTRACK_MONGO_URI", "TASKTRACK_SQLITE_PATH"} {
		t.Setenv(k, "")
	}
	t.Setenv("TASKTRACK_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearStoreEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTPAddr != "0.0.0.0:8080" || cfg.LogLevel != "info" || cfg.LogFormat != "json" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.ReadHeaderTimeout != 5*time.Second || cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("timeout defaults: %+v", cfg)
	}
	if !cfg.MetricsEnabled {
		t.Fatalf("metrics should default on")
	}
	if kind, _ := cfg.StoreKind(); kind != StoreMemory {
		t.Fatalf("store=%q want memory", kind)
	}
}

func TestLoadConfig_EnvFile(t *testing.T) {
	clearStoreEnv(t)

	path := filepath.Join(t.TempDir(), "tasktrack.env")
	content := "TASKTRACK_API_PREFIX=api/\nTASKTRACK_LOG_LEVEL=debug\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("TASKTRACK_ENV_FILE", path)
	t.Setenv("TASKTRACK_LOG_LEVEL", "warn")
	t.Cleanup(func() { _ = os.Unsetenv("TASKTRACK_API_PREFIX") })

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.APIPrefix != "/api" {
		t.Fatalf("prefix=%q want /api", cfg.APIPrefix)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("process env must win over the file, got %q", cfg.LogLevel)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"bad duration":    {"TASKTRACK_HTTP_READ_TIMEOUT": "later"},
		"unknown store":   {"TASKTRACK_STORE": "redis"},
		"postgres no url": {"TASKTRACK_STORE": "postgres"},
		"bad log format":  {"TASKTRACK_LOG_FORMAT": "xml"},
	}

	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			clearStoreEnv(t)
			for k, v := range vars {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestConfig_StoreKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		cfg  Config
		want string
	}{
		{Config{}, StoreMemory},
		{Config{DatabaseURL: "postgres://x"}, StorePostgres},
		{Config{MongoURI: "mongodb://x"}, StoreMongo},
		{Config{SQLitePath: "/tmp/x.db"}, StoreSQLite},
		{Config{DatabaseURL: "postgres://x", MongoURI: "mongodb://x"}, StorePostgres},
		{Config{Store: StoreSQLite, DatabaseURL: "postgres://x", SQLitePath: "/tmp/x.db"}, StoreSQLite},
		{Config{Store: StoreMemory, DatabaseURL: "postgres://x"}, StoreMemory},
	}
	for _, tc := range cases {
		got, err := tc.cfg.StoreKind()
		if err != nil || got != tc.want {
			t.Fatalf("StoreKind(%+v)=%q,%v want %q", tc.cfg, got, err, tc.want)
		}
	}

	if _, err := (Config{Store: StoreMongo}).StoreKind(); err == nil || !strings.Contains(err.Error(), "TASKTRACK_MONGO_URI") {
		t.Fatalf("expected mongo uri error, got %v", err)
	}
}
