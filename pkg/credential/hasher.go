package credential

import (
	"errors"
	"strings"
)

var (
	// ErrEmptyPassword is returned when hashing or verifying an empty secret
	ErrEmptyPassword = errors.New("password and hashed password cannot be empty")

	// ErrInvalidHash is returned when a stored digest cannot be parsed
	ErrInvalidHash = errors.New("invalid password hash format")

	// ErrPasswordTooLong is returned when hashing more than MaxPasswordLength bytes
	ErrPasswordTooLong = errors.New("password exceeds maximum length")
)

// MaxPasswordLength is the longest password, in bytes, that bcrypt accepts.
// Argon2 enforces the same bound.
const MaxPasswordLength = 72

// PasswordHasher is a one-way password function. Verify reports a mismatch
// as (false, nil); errors are reserved for malformed input.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hashedPassword string) (bool, error)
}

// Algorithm names a supported hashing scheme.
type Algorithm string

const (
	AlgorithmBcrypt Algorithm = "bcrypt"
	AlgorithmArgon2 Algorithm = "argon2id"
)

// MultiHasher hashes new passwords with one algorithm and verifies digests
// produced by any supported algorithm, so the algorithm can be switched
// without invalidating stored passwords.
type MultiHasher struct {
	current PasswordHasher
	bcrypt  PasswordHasher
	argon2  PasswordHasher
}

// NewMultiHasher creates a hasher that writes with algorithm and reads both.
func NewMultiHasher(algorithm Algorithm, bcryptCost int) *MultiHasher {
	h := &MultiHasher{
		bcrypt: NewBcryptHasher(bcryptCost),
		argon2: NewArgon2Hasher(),
	}
	h.current = h.bcrypt
	if algorithm == AlgorithmArgon2 {
		h.current = h.argon2
	}
	return h
}

func (h *MultiHasher) Hash(password string) (string, error) {
	return h.current.Hash(password)
}

func (h *MultiHasher) Verify(password, hashedPassword string) (bool, error) {
	if strings.HasPrefix(hashedPassword, "$argon2id$") {
		return h.argon2.Verify(password, hashedPassword)
	}
	return h.bcrypt.Verify(password, hashedPassword)
}
