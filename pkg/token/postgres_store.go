package token

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PostgresStore implements Store on the auth_tokens table. The unique
// (kind, identity) constraint makes Replace a single upsert.
type PostgresStore struct {
	db DBTX
}

// NewPostgresStore creates a new PostgreSQL token store
func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

const tokenColumns = `id, kind, value, email, user_id, expires_at, created_at`

func (s *PostgresStore) Replace(ctx context.Context, t Token) (*Token, error) {
	if !t.Kind.Valid() {
		return nil, ErrInvalidKind
	}
	query := `
		INSERT INTO auth_tokens (id, kind, identity, value, email, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (kind, identity) DO UPDATE
		SET id = EXCLUDED.id,
		    value = EXCLUDED.value,
		    email = EXCLUDED.email,
		    user_id = EXCLUDED.user_id,
		    expires_at = EXCLUDED.expires_at,
		    created_at = EXCLUDED.created_at
		RETURNING ` + tokenColumns

	row := s.db.QueryRow(ctx, query,
		t.ID, string(t.Kind), t.IdentityKey(), t.Value, t.Email, nullableUUID(t.UserID), t.ExpiresAt, t.CreatedAt)
	stored, err := scanToken(row)
	if err != nil {
		return nil, fmt.Errorf("upsert token: %w", err)
	}
	return stored, nil
}

func (s *PostgresStore) FindByValue(ctx context.Context, kind Kind, value string) (*Token, error) {
	if !kind.UniqueValue() {
		return nil, ErrUnsupportedLookup
	}
	return s.findOne(ctx, `WHERE kind = $1 AND value = $2`, string(kind), value)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, kind Kind, email string) (*Token, error) {
	return s.findOne(ctx, `WHERE kind = $1 AND email = $2`, string(kind), email)
}

func (s *PostgresStore) FindByUserID(ctx context.Context, kind Kind, userID uuid.UUID) (*Token, error) {
	return s.findOne(ctx, `WHERE kind = $1 AND user_id = $2`, string(kind), userID)
}

func (s *PostgresStore) Consume(ctx context.Context, t Token) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM auth_tokens WHERE id = $1 AND kind = $2`, t.ID, string(t.Kind))
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTokenNotFound
	}
	return nil
}

func (s *PostgresStore) findOne(ctx context.Context, where string, args ...interface{}) (*Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM auth_tokens ` + where + ` ORDER BY created_at DESC LIMIT 1`
	t, err := scanToken(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return t, nil
}

func scanToken(row pgx.Row) (*Token, error) {
	var t Token
	var kind string
	var userID pgtype.UUID
	if err := row.Scan(&t.ID, &kind, &t.Value, &t.Email, &userID, &t.ExpiresAt, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Kind = Kind(kind)
	if userID.Valid {
		t.UserID = uuid.UUID(userID.Bytes)
	}
	t.ExpiresAt = t.ExpiresAt.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}

func nullableUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: id != uuid.Nil}
}

// PostgresConfirmationStore implements ConfirmationStore on the
// two_factor_confirmations table.
type PostgresConfirmationStore struct {
	db DBTX
}

// NewPostgresConfirmationStore creates a new PostgreSQL confirmation store
func NewPostgresConfirmationStore(db DBTX) *PostgresConfirmationStore {
	return &PostgresConfirmationStore{db: db}
}

func (s *PostgresConfirmationStore) Confirm(ctx context.Context, userID uuid.UUID) (*Confirmation, error) {
	query := `
		INSERT INTO two_factor_confirmations (id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET id = EXCLUDED.id,
		    created_at = NOW()
		RETURNING id, user_id, created_at
	`
	var c Confirmation
	if err := s.db.QueryRow(ctx, query, uuid.New(), userID).Scan(&c.ID, &c.UserID, &c.CreatedAt); err != nil {
		return nil, fmt.Errorf("upsert 2fa confirmation: %w", err)
	}
	return &c, nil
}

func (s *PostgresConfirmationStore) Consume(ctx context.Context, userID uuid.UUID) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM two_factor_confirmations WHERE user_id = $1`, userID)
	if err != nil {
		return false, fmt.Errorf("delete 2fa confirmation: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
