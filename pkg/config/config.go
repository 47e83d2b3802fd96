package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config is the complete server configuration
type Config struct {
	App       AppConfig
	Log       LogConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Email     EmailConfig
	Jwt       JwtConfig
	Token     TokenConfig
	Password  PasswordConfig
	RateLimit RateLimitConfig
}

// Load reads envFile when it exists, then the environment. Variables already
// set in the environment win over the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			slog.Info("Loading configuration from .env file", "path", envFile)
			if err := godotenv.Load(envFile); err != nil {
				return Config{}, fmt.Errorf("load %s: %w", envFile, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("stat %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that cannot be defaulted safely
func (c Config) Validate() error {
	var errs []error
	switch c.App.PersistenceType {
	case "postgres", "postgresql", "memory", "inmem":
	default:
		errs = append(errs, fmt.Errorf("PERSISTENCE_TYPE %q is not one of postgres, memory", c.App.PersistenceType))
	}
	switch c.Token.StoreType {
	case "", "postgres", "postgresql", "redis", "memory", "inmem":
	default:
		errs = append(errs, fmt.Errorf("TOKEN_STORE_TYPE %q is not one of postgres, redis, memory", c.Token.StoreType))
	}
	if len(c.Jwt.Secret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes"))
	}
	if c.App.BaseURL == "" {
		errs = append(errs, errors.New("BASE_URL is required"))
	}
	if c.Password.Workers < 1 {
		errs = append(errs, errors.New("PASSWORD_HASH_WORKERS must be at least 1"))
	}
	return errors.Join(errs...)
}

// TokenStoreType returns the token backend, defaulting to the user store's
func (c Config) TokenStoreType() string {
	if c.Token.StoreType != "" {
		return c.Token.StoreType
	}
	return c.App.PersistenceType
}

// UsesPostgres reports whether any store needs the database
func (c Config) UsesPostgres() bool {
	return isPostgres(c.App.PersistenceType) || isPostgres(c.TokenStoreType())
}

func isPostgres(t string) bool {
	return t == "postgres" || t == "postgresql"
}
