package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Supported values for DB_DRIVER.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Config aggregates runtime configuration for the ranking server and its tooling.
type Config struct {
	ListenAddr string `env:"HTTP_LISTEN_ADDR" envDefault:":8001"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	DBDriver          string        `env:"DB_DRIVER" envDefault:"sqlite3"`
	DatabaseDSN       string        `env:"DATABASE_DSN" envDefault:"file:stagerank.db?_busy_timeout=5000"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`

	EventTimeout      time.Duration `env:"EVENT_TIMEOUT" envDefault:"10s"`
	BroadcastBuffer   int           `env:"BROADCAST_BUFFER" envDefault:"256"`
	ChartSnapshotSize int           `env:"CHART_SNAPSHOT_SIZE" envDefault:"500"`

	// Hosts allowed to open websockets from a browser, e.g. "*.example.com".
	WSOriginPatterns []string `env:"WS_ORIGIN_PATTERNS" envSeparator:","`

	AdminUsername string `env:"ADMIN_USERNAME" envDefault:"admin"`
	AdminPassword string `env:"ADMIN_PASSWORD" envDefault:"change-me"`

	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   int64  `env:"TELEGRAM_CHAT_ID"`

	S3Endpoint      string `env:"S3_ENDPOINT"`
	S3Region        string `env:"S3_REGION"`
	S3AccessKey     string `env:"S3_ACCESS_KEY"`
	S3SecretKey     string `env:"S3_SECRET_KEY"`
	S3Bucket        string `env:"S3_BUCKET"`
	S3PublicBaseURL string `env:"S3_PUBLIC_BASE_URL"`
	S3UsePathStyle  bool   `env:"S3_USE_PATH_STYLE" envDefault:"false"`
	S3Prefix        string `env:"S3_PREFIX" envDefault:"leaderboards"`

	ArchiveInterval time.Duration `env:"ARCHIVE_INTERVAL" envDefault:"24h"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`
}

// S3Enabled reports whether leaderboard archives can be uploaded.
func (c Config) S3Enabled() bool {
	return c.S3Bucket != ""
}

// TelegramEnabled reports whether record notifications should be sent.
func (c Config) TelegramEnabled() bool {
	return c.TelegramBotToken != ""
}

// Load reads configuration from an optional env file and environment variables.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements that struct tags cannot express.
func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverMySQL, DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	var missing []string
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		missing = append(missing, "DATABASE_DSN")
	}
	if c.TelegramEnabled() && c.TelegramChatID == 0 {
		missing = append(missing, "TELEGRAM_CHAT_ID")
	}
	if c.S3Enabled() {
		if c.S3Region == "" {
			missing = append(missing, "S3_REGION")
		}
		if c.S3AccessKey == "" {
			missing = append(missing, "S3_ACCESS_KEY")
		}
		if c.S3SecretKey == "" {
			missing = append(missing, "S3_SECRET_KEY")
		}
		if c.S3PublicBaseURL == "" {
			missing = append(missing, "S3_PUBLIC_BASE_URL")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}

	if c.EventTimeout <= 0 {
		return fmt.Errorf("EVENT_TIMEOUT must be positive, got %s", c.EventTimeout)
	}
	if c.BroadcastBuffer <= 0 {
		return fmt.Errorf("BROADCAST_BUFFER must be positive, got %d", c.BroadcastBuffer)
	}
	if c.ChartSnapshotSize <= 0 {
		return fmt.Errorf("CHART_SNAPSHOT_SIZE must be positive, got %d", c.ChartSnapshotSize)
	}
	return nil
}

// loadEnvFile applies the first env file found. Unlike the required variables,
// the file itself is optional: containers usually inject plain environment.
func loadEnvFile() error {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates,
		filepath.Join("configs", ".env"),
		".env",
	)

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("access env file %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	return nil
}
