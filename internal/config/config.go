package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port                  string `envconfig:"PORT" default:"8080"`
	AllowedOrigin         string `envconfig:"ALLOWED_ORIGIN" default:"http://127.0.0.1:3000"`
	DatabaseURL           string `envconfig:"DATABASE_URL"`
	RedisAddr             string `envconfig:"REDIS_ADDR"`
	RedisPassword         string `envconfig:"REDIS_PASSWORD"`
	RedisDB               int    `envconfig:"REDIS_DB" default:"0"`
	ReportCacheTTLSeconds int    `envconfig:"REPORT_CACHE_TTL_SECONDS" default:"300"`
	DefaultShopID         string `envconfig:"DEFAULT_SHOP_ID" default:"main-shop"`
	Currency              string `envconfig:"CURRENCY" default:"UGX"`
	Timezone              string `envconfig:"TIMEZONE" default:"Local"`
	LogLevel              string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat             string `envconfig:"LOG_FORMAT" default:"console"`
	ArchiveEndpoint       string `envconfig:"ARCHIVE_ENDPOINT"`
	ArchiveAccessKey      string `envconfig:"ARCHIVE_ACCESS_KEY"`
	ArchiveSecretKey      string `envconfig:"ARCHIVE_SECRET_KEY"`
	ArchiveBucket         string `envconfig:"ARCHIVE_BUCKET" default:"daily-reports"`
	ArchiveUseSSL         bool   `envconfig:"ARCHIVE_USE_SSL" default:"false"`
}

// Load reads .env files when present and then the process environment,
// which takes precedence.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		_ = godotenv.Load(file)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process config: %w", err)
	}
	if cfg.ReportCacheTTLSeconds < 1 {
		cfg.ReportCacheTTLSeconds = 300
	}
	cfg.Currency = strings.TrimSpace(cfg.Currency)
	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) ReportCacheTTL() time.Duration {
	return time.Duration(c.ReportCacheTTLSeconds) * time.Second
}

func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func (c Config) ArchiveEnabled() bool {
	return c.ArchiveEndpoint != ""
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err))
	}
	if c.Currency == "" {
		errs = append(errs, errors.New("CURRENCY must not be empty"))
	}
	if strings.TrimSpace(c.DefaultShopID) == "" {
		errs = append(errs, errors.New("DEFAULT_SHOP_ID must not be empty"))
	}
	if c.ArchiveEnabled() && (c.ArchiveAccessKey == "" || c.ArchiveSecretKey == "" || c.ArchiveBucket == "") {
		errs = append(errs, errors.New("ARCHIVE_ACCESS_KEY, ARCHIVE_SECRET_KEY and ARCHIVE_BUCKET are required when ARCHIVE_ENDPOINT is set"))
	}
	return errors.Join(errs...)
}
