package config

import (
	"github.com/redis/go-redis/v9"
)

// RedisConfig points at the redis used for tokens and rate limits. An empty
// Addr disables redis.
type RedisConfig struct {
	Addr      string `env:"REDIS_ADDR" env-default:""`
	Password  string `env:"REDIS_PASSWORD" env-default:""`
	DB        int    `env:"REDIS_DB" env-default:"0"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX" env-default:"auth"`
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// ToOptions converts the config to go-redis client options
func (r RedisConfig) ToOptions() *redis.Options {
	return &redis.Options{
		Addr:     r.Addr,
		Password: r.Password,
		DB:       r.DB,
	}
}
