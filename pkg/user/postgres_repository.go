package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PostgresRepository implements Repository on the users and accounts tables.
type PostgresRepository struct {
	db DBTX
}

// NewPostgresRepository creates a new PostgreSQL user repository
func NewPostgresRepository(db DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectUser = `
	SELECT u.id, u.name, u.email, COALESCE(u.password_hash, ''), u.email_verified_at,
	       COALESCE(u.image, ''), u.role, u.two_factor_enabled,
	       EXISTS (SELECT 1 FROM accounts a WHERE a.user_id = u.id),
	       u.created_at, u.updated_at
	FROM users u
`

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.scanOne(r.db.QueryRow(ctx, selectUser+` WHERE u.email = $1`, email))
}

func (r *PostgresRepository) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.scanOne(r.db.QueryRow(ctx, selectUser+` WHERE u.id = $1`, id))
}

func (r *PostgresRepository) Create(ctx context.Context, u User) (*User, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}

	query := `
		INSERT INTO users (id, name, email, password_hash, email_verified_at, image, role, two_factor_enabled)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''), $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		u.ID, u.Name, u.Email, u.PasswordHash, u.EmailVerifiedAt, u.Image, string(u.Role), u.TwoFactorEnabled)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailInUse
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return r.FindByID(ctx, u.ID)
}

func (r *PostgresRepository) Update(ctx context.Context, u User) (*User, error) {
	query := `
		UPDATE users
		SET name = $2,
		    email = $3,
		    password_hash = NULLIF($4, ''),
		    email_verified_at = $5,
		    image = NULLIF($6, ''),
		    role = $7,
		    two_factor_enabled = $8,
		    updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query,
		u.ID, u.Name, u.Email, u.PasswordHash, u.EmailVerifiedAt, u.Image, string(u.Role), u.TwoFactorEnabled)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailInUse
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrUserNotFound
	}
	return r.FindByID(ctx, u.ID)
}

func (r *PostgresRepository) LinkAccount(ctx context.Context, account Account) error {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	query := `
		INSERT INTO accounts (id, user_id, provider, provider_account_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider, provider_account_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, account.ID, account.UserID, account.Provider, account.ProviderAccountID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrUserNotFound
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *PostgresRepository) scanOne(row pgx.Row) (*User, error) {
	var u User
	var role string
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.EmailVerifiedAt,
		&u.Image,
		&role,
		&u.TwoFactorEnabled,
		&u.HasLinkedAccount,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	u.Role = Role(role)
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
