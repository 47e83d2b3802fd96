package config

import "time"

// RateLimitConfig limits login, register and reset requests per client IP
type RateLimitConfig struct {
	Enabled  bool          `env:"RATE_LIMIT_ENABLED" env-default:"true"`
	Requests int           `env:"RATE_LIMIT_REQUESTS" env-default:"10"`
	Window   time.Duration `env:"RATE_LIMIT_WINDOW" env-default:"1m"`

	// TrustProxy keys on X-Forwarded-For. Only set behind a proxy that rewrites it.
	TrustProxy bool `env:"RATE_LIMIT_TRUST_PROXY" env-default:"false"`
}
