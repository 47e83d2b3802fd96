package config

import (
	"log/slog"
	"os"
	"strings"
)

// AppConfig holds settings of the auth flows themselves
type AppConfig struct {
	BaseURL              string `env:"BASE_URL" env-default:"http://localhost:3000"`
	DefaultLoginRedirect string `env:"DEFAULT_LOGIN_REDIRECT" env-default:"/settings"`
	PersistenceType      string `env:"PERSISTENCE_TYPE" env-default:"postgres"`
	CookieName           string `env:"SESSION_COOKIE_NAME" env-default:"session_token"`
	CookieSecure         bool   `env:"COOKIE_SECURE" env-default:"false"`
	RunMigrations        bool   `env:"RUN_MIGRATIONS" env-default:"true"`
}

// LogConfig selects the slog handler
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" env-default:"info"`
	Format string `env:"LOG_FORMAT" env-default:"text"`
}

// NewLogger builds the process logger. Unknown levels fall back to info.
func (l LogConfig) NewLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
