package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreSQLite   = "sqlite"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr string `env:"TASKTRACK_HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	// PublicBaseURL is only used in startup logs. Derived from HTTPAddr when empty.
	PublicBaseURL string `env:"TASKTRACK_PUBLIC_BASE_URL"`
	APIPrefix     string `env:"TASKTRACK_API_PREFIX"`

	LogLevel  string `env:"TASKTRACK_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"TASKTRACK_LOG_FORMAT" envDefault:"json"`

	ReadHeaderTimeout time.Duration `env:"TASKTRACK_HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout       time.Duration `env:"TASKTRACK_HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout      time.Duration `env:"TASKTRACK_HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout       time.Duration `env:"TASKTRACK_HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout   time.Duration `env:"TASKTRACK_HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxHeaderBytes    int           `env:"TASKTRACK_HTTP_MAX_HEADER_BYTES" envDefault:"1048576"`

	// Store selects the persistence backend. Empty picks the first configured of
	// postgres, mongo and sqlite, else memory.
	Store string `env:"TASKTRACK_STORE"`

	DatabaseURL string `env:"TASKTRACK_DATABASE_URL"`
	DBSchema    string `env:"TASKTRACK_DB_SCHEMA"`
	DBMaxConns  int32  `env:"TASKTRACK_DB_MAX_CONNS" envDefault:"10"`
	DBMinConns  int32  `env:"TASKTRACK_DB_MIN_CONNS" envDefault:"0"`

	MongoURI      string `env:"TASKTRACK_MONGO_URI"`
	MongoDatabase string `env:"TASKTRACK_MONGO_DATABASE" envDefault:"tasktrack"`

	SQLitePath string `env:"TASKTRACK_SQLITE_PATH"`

	// If true, /readyz returns 503 while running on the in-memory store.
	ReadinessRequireDB bool `env:"TASKTRACK_READINESS_REQUIRE_DB" envDefault:"false"`

	// CORS is disabled while the allowlist is empty.
	CORSAllowedOrigins   []string `env:"TASKTRACK_CORS_ALLOWED_ORIGINS" envSeparator:","`
	CORSAllowCredentials bool     `env:"TASKTRACK_CORS_ALLOW_CREDENTIALS" envDefault:"false"`
	CORSMaxAgeSeconds    int      `env:"TASKTRACK_CORS_MAX_AGE_SECONDS" envDefault:"600"`

	MetricsEnabled bool `env:"TASKTRACK_METRICS_ENABLED" envDefault:"true"`
}

// LoadConfig loads an optional dotenv file, then parses TASKTRACK_* variables.
//
// TASKTRACK_ENV_FILE names the dotenv file (default ".env"). A missing file is ignored.
// Variables already present in the environment win over the file.
func LoadConfig() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("app: config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadEnvFile() error {
	path := strings.TrimSpace(os.Getenv("TASKTRACK_ENV_FILE"))
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("app: env file %s: %w", path, err)
	}
	return nil
}

func (c *Config) normalize() error {
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))

	prefix := strings.TrimRight(strings.TrimSpace(c.APIPrefix), "/")
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	c.APIPrefix = prefix

	origins := c.CORSAllowedOrigins[:0]
	for _, o := range c.CORSAllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.CORSAllowedOrigins = origins

	switch c.LogFormat {
	case "", "json", "text", "pretty":
	default:
		return fmt.Errorf("app: config: unknown TASKTRACK_LOG_FORMAT %q", c.LogFormat)
	}

	_, err := c.StoreKind()
	return err
}

// StoreKind resolves the persistence backend.
func (c Config) StoreKind() (string, error) {
	switch c.Store {
	case StoreMemory:
		return StoreMemory, nil
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return "", errors.New("app: config: TASKTRACK_STORE=postgres requires TASKTRACK_DATABASE_URL")
		}
		return StorePostgres, nil
	case StoreMongo:
		if strings.TrimSpace(c.MongoURI) == "" {
			return "", errors.New("app: config: TASKTRACK_STORE=mongo requires TASKTRACK_MONGO_URI")
		}
		return StoreMongo, nil
	case StoreSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return "", errors.New("app: config: TASKTRACK_STORE=sqlite requires TASKTRACK_SQLITE_PATH")
		}
		return StoreSQLite, nil
	case "":
	default:
		return "", fmt.Errorf("app: config: unknown TASKTRACK_STORE %q", c.Store)
	}

	switch {
	case strings.TrimSpace(c.DatabaseURL) != "":
		return StorePostgres, nil
	case strings.TrimSpace(c.MongoURI) != "":
		return StoreMongo, nil
	case strings.TrimSpace(c.SQLitePath) != "":
		return StoreSQLite, nil
	default:
		return StoreMemory, nil
	}
}
