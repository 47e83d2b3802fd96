package config

import "time"

// JwtConfig holds session token signing settings
type JwtConfig struct {
	Secret     string        `env:"JWT_SECRET" env-default:""`
	Issuer     string        `env:"JWT_ISSUER" env-default:"simple-auth"`
	Audience   string        `env:"JWT_AUDIENCE" env-default:"simple-auth"`
	SessionTTL time.Duration `env:"SESSION_TTL" env-default:"720h"`
}
