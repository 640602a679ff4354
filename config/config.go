package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Настройки процесса (из окружения)
type Config struct {
	PostgresConn      string        `validate:"required"`
	ServerAddress     string        `validate:"required"`
	AppEnv            string        `validate:"oneof=development production test"`
	TrackedCompany    string        `validate:"required"`
	ProgressEvery     int           `validate:"min=1"`
	MaxUploadBytes    int64         `validate:"min=1024"`
	SweepInterval     time.Duration `validate:"min=0"`
	SweepAfterIngest  bool
	OpenDeadlineDays  int `validate:"min=1"`
	MatchOrganization bool
	DBConnectAttempts int `validate:"min=1"`
	MigrationsEnabled bool
}

var validate = validator.New()

// Load читает .env (если он есть) и переменные окружения.
func Load() (*Config, error) {
	// .env необязателен
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv собирает конфигурацию через getenv, удобно для тестов.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		PostgresConn:      getenv("POSTGRES_CONN"),
		ServerAddress:     stringOr(getenv("SERVER_ADDRESS"), "0.0.0.0:8080"),
		AppEnv:            stringOr(getenv("APP_ENV"), "development"),
		TrackedCompany:    stringOr(getenv("TRACKED_COMPANY"), "Appentus"),
		SweepAfterIngest:  true,
		MigrationsEnabled: true,
	}

	var err error
	if cfg.ProgressEvery, err = intOr(getenv("PROGRESS_EVERY"), 10); err != nil {
		return nil, fmt.Errorf("PROGRESS_EVERY: %w", err)
	}
	maxUpload, err := intOr(getenv("MAX_UPLOAD_BYTES"), 32<<20)
	if err != nil {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES: %w", err)
	}
	cfg.MaxUploadBytes = int64(maxUpload)
	if cfg.OpenDeadlineDays, err = intOr(getenv("OPEN_DEADLINE_DAYS"), 30); err != nil {
		return nil, fmt.Errorf("OPEN_DEADLINE_DAYS: %w", err)
	}
	if cfg.DBConnectAttempts, err = intOr(getenv("DB_CONNECT_ATTEMPTS"), 5); err != nil {
		return nil, fmt.Errorf("DB_CONNECT_ATTEMPTS: %w", err)
	}

	cfg.SweepInterval = 24 * time.Hour
	if v := strings.TrimSpace(getenv("SWEEP_INTERVAL")); v != "" {
		if cfg.SweepInterval, err = time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("SWEEP_INTERVAL: %w", err)
		}
	}
	if cfg.SweepAfterIngest, err = boolOr(getenv("SWEEP_AFTER_INGEST"), true); err != nil {
		return nil, fmt.Errorf("SWEEP_AFTER_INGEST: %w", err)
	}
	if cfg.MatchOrganization, err = boolOr(getenv("MATCH_ORGANIZATION"), false); err != nil {
		return nil, fmt.Errorf("MATCH_ORGANIZATION: %w", err)
	}
	if cfg.MigrationsEnabled, err = boolOr(getenv("MIGRATIONS_ENABLED"), true); err != nil {
		return nil, fmt.Errorf("MIGRATIONS_ENABLED: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func stringOr(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

func intOr(v string, def int) (int, error) {
	if v = strings.TrimSpace(v); v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func boolOr(v string, def bool) (bool, error) {
	if v = strings.TrimSpace(v); v == "" {
		return def, nil
	}
	return strconv.ParseBool(v)
}
