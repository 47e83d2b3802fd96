package token

import (
	"context"

	"github.com/google/uuid"
)

// Store persists tokens. Every implementation keeps at most one token per
// (kind, identity key).
type Store interface {
	// Replace removes any token for t's (kind, identity key), expired or not,
	// and stores t, as one atomic step.
	Replace(ctx context.Context, t Token) (*Token, error)

	// FindByValue returns ErrUnsupportedLookup for kinds without unique values.
	FindByValue(ctx context.Context, kind Kind, value string) (*Token, error)
	FindByEmail(ctx context.Context, kind Kind, email string) (*Token, error)
	FindByUserID(ctx context.Context, kind Kind, userID uuid.UUID) (*Token, error)

	// Consume deletes t only if it is still the stored token (same id).
	// Returns ErrTokenNotFound when another caller consumed or replaced it first.
	Consume(ctx context.Context, t Token) error
}

// ConfirmationStore holds one-shot 2FA confirmations, at most one per user.
type ConfirmationStore interface {
	// Confirm replaces any prior confirmation for the user.
	Confirm(ctx context.Context, userID uuid.UUID) (*Confirmation, error)

	// Consume deletes the user's confirmation and reports whether one existed.
	// Of several concurrent callers, at most one observes true.
	Consume(ctx context.Context, userID uuid.UUID) (bool, error)
}
