package config

import (
	"runtime"

	"github.com/tendant/simple-auth/pkg/credential"
)

// PasswordConfig selects the password hashing scheme
type PasswordConfig struct {
	Algorithm  string `env:"PASSWORD_HASH_ALGORITHM" env-default:"bcrypt"`
	BcryptCost int    `env:"PASSWORD_BCRYPT_COST" env-default:"10"`
	Workers    int    `env:"PASSWORD_HASH_WORKERS" env-default:"4"`
}

// NewHasher builds the bounded hashing pool
func (p PasswordConfig) NewHasher() *credential.Pool {
	workers := p.Workers
	if workers > runtime.NumCPU() {
		workers = runtime.NumCPU()
	}
	return credential.NewPool(credential.NewMultiHasher(credential.Algorithm(p.Algorithm), p.BcryptCost), workers)
}
