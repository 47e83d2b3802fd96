package user

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists users. Email uniqueness is enforced by the
// implementation; Create and Update return ErrEmailInUse on collision.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	Create(ctx context.Context, u User) (*User, error)
	Update(ctx context.Context, u User) (*User, error)
	LinkAccount(ctx context.Context, account Account) error
}
