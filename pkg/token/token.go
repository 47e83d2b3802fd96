package token

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind identifies one of the single-use token families.
type Kind string

const (
	KindVerification  Kind = "verification"
	KindPasswordReset Kind = "password_reset"
	KindTwoFactor     Kind = "two_factor"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindVerification, KindPasswordReset, KindTwoFactor:
		return true
	}
	return false
}

// UniqueValue reports whether values of this kind are unique enough to be
// looked up on their own. Six-digit 2FA codes repeat across emails and are
// only ever looked up by email.
func (k Kind) UniqueValue() bool {
	return k != KindTwoFactor
}

var (
	// ErrTokenNotFound is returned when no token matches a lookup, or when a
	// conditional consume finds the token already gone
	ErrTokenNotFound = errors.New("token not found")

	// ErrUnsupportedLookup is returned by FindByValue for kinds whose values are not unique
	ErrUnsupportedLookup = errors.New("lookup by value not supported for this token kind")

	// ErrInvalidKind is returned for an unknown Kind
	ErrInvalidKind = errors.New("invalid token kind")
)

// Token is a short-lived, single-use secret bound to an email and optionally a user.
type Token struct {
	ID        uuid.UUID `json:"id"`
	Kind      Kind      `json:"kind"`
	Value     string    `json:"value"`
	Email     string    `json:"email"`
	UserID    uuid.UUID `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// IdentityKey is the key under which at most one token of a kind may live.
// Verification tokens bound to a user are keyed by user id; everything else
// is keyed by email.
func (t Token) IdentityKey() string {
	if t.Kind == KindVerification && t.UserID != uuid.Nil {
		return t.UserID.String()
	}
	return t.Email
}

// IsExpired reports whether the token is past its expiry at now. A token
// expiring exactly at now is expired.
func (t Token) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Confirmation records that a user passed the 2FA challenge for the sign-in
// attempt in progress. It is consumed by the sign-in completion hook.
type Confirmation struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
