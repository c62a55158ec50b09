package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultDBPath             = "./dev.db"
	defaultPort               = "8080"
	defaultEnv                = "dev"
	defaultMigrationsDir      = "migrations"
	defaultDestination        = "ES"
	defaultReferenceCacheTTL  = 5 * time.Minute
	defaultLogLevel           = "info"
	defaultDestinationDisplay = "España"
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	Port                   string
	DBPath                 string
	Env                    string
	MigrationsDir          string
	DefaultDestination     string
	DefaultDestinationName string
	ReferenceCacheTTL      time.Duration
	LogLevel               string
	SeedOnStart            bool
}

// IsDev reports whether the service runs in local development mode.
func (c Config) IsDev() bool {
	return c.Env == "" || strings.EqualFold(c.Env, "dev") || strings.EqualFold(c.Env, "development")
}

// Load reads environment variables and returns a populated Config.
// Malformed values are reported through logger and replaced by their defaults.
func Load(logger *zap.Logger) Config {
	if logger == nil {
		logger = zap.NewNop()
	}

	applied, err := applyDotEnv(".env")
	if err != nil {
		logger.Warn("could not apply .env", zap.Error(err))
	}
	if len(applied) > 0 {
		logger.Info("applied .env", zap.Strings("keys", applied))
	}

	cfg := Config{
		Port:                   envOr("PORT", defaultPort),
		DBPath:                 envOr("DB_PATH", defaultDBPath),
		Env:                    strings.ToLower(envOr("APP_ENV", defaultEnv)),
		MigrationsDir:          envOr("MIGRATIONS_DIR", defaultMigrationsDir),
		DefaultDestination:     strings.ToUpper(envOr("DEFAULT_DESTINATION", defaultDestination)),
		DefaultDestinationName: envOr("DEFAULT_DESTINATION_NAME", defaultDestinationDisplay),
		ReferenceCacheTTL:      defaultReferenceCacheTTL,
		LogLevel:               strings.ToLower(envOr("LOG_LEVEL", defaultLogLevel)),
	}

	if raw := strings.TrimSpace(os.Getenv("REFERENCE_CACHE_TTL")); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil || ttl <= 0 {
			logger.Warn("invalid REFERENCE_CACHE_TTL, using default",
				zap.String("value", raw),
				zap.Duration("default", defaultReferenceCacheTTL),
			)
		} else {
			cfg.ReferenceCacheTTL = ttl
		}
	}

	cfg.SeedOnStart = cfg.IsDev()
	if raw := strings.TrimSpace(os.Getenv("SEED_ON_START")); raw != "" {
		seed, err := strconv.ParseBool(raw)
		if err != nil {
			logger.Warn("invalid SEED_ON_START, ignoring", zap.String("value", raw))
		} else {
			cfg.SeedOnStart = seed
		}
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
