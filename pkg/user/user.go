package user

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Role is the single role claim carried by a user and their session.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

var (
	// ErrUserNotFound is returned when no user matches the lookup
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailInUse is returned when another user already owns the email
	ErrEmailInUse = errors.New("email already in use")
)

// User is the long-lived identity record.
type User struct {
	ID               uuid.UUID  `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"password_hash,omitempty"`
	EmailVerifiedAt  *time.Time `json:"email_verified_at,omitempty"`
	Image            string     `json:"image,omitempty"`
	Role             Role       `json:"role"`
	TwoFactorEnabled bool       `json:"two_factor_enabled"`
	HasLinkedAccount bool       `json:"has_linked_account"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// IsVerified reports whether the user's email has been confirmed.
func (u *User) IsVerified() bool {
	return u.EmailVerifiedAt != nil
}

// HasPassword reports whether the user can sign in with the credentials path.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// Account links a user to an external identity provider.
type Account struct {
	ID                uuid.UUID `json:"id"`
	UserID            uuid.UUID `json:"user_id"`
	Provider          string    `json:"provider"`
	ProviderAccountID string    `json:"provider_account_id"`
	CreatedAt         time.Time `json:"created_at"`
}
