package config

import "time"

// TokenConfig holds lifetimes and the backend of one-time tokens
type TokenConfig struct {
	StoreType        string        `env:"TOKEN_STORE_TYPE" env-default:""`
	VerificationTTL  time.Duration `env:"VERIFICATION_TOKEN_TTL" env-default:"24h"`
	PasswordResetTTL time.Duration `env:"PASSWORD_RESET_TOKEN_TTL" env-default:"1h"`
	TwoFactorTTL     time.Duration `env:"TWO_FACTOR_CODE_TTL" env-default:"5m"`
	ExpiredRetention time.Duration `env:"TOKEN_EXPIRED_RETENTION" env-default:"24h"`
	ConfirmationTTL  time.Duration `env:"TWO_FACTOR_CONFIRMATION_TTL" env-default:"10m"`
}
