package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/tendant/simple-auth/pkg/token"
	"github.com/tendant/simple-auth/pkg/user"
)

const DefaultSessionTTL = 30 * 24 * time.Hour

// Manager issues sessions and runs the sign-in completion checks.
type Manager struct {
	users         user.Repository
	confirmations token.ConfirmationStore
	jwt           *JwtIssuer
	ttl           time.Duration
	now           func() time.Time
}

// Option configures a Manager
type Option func(*Manager)

// WithTTL sets the lifetime of issued sessions
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func NewManager(users user.Repository, confirmations token.ConfirmationStore, jwt *JwtIssuer, opts ...Option) *Manager {
	m := &Manager{
		users:         users,
		confirmations: confirmations,
		jwt:           jwt,
		ttl:           DefaultSessionTTL,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SignIn completes a login whose password has already been checked. It
// re-reads the user, refuses unverified accounts, and for 2FA accounts
// consumes the confirmation left by a successful code check so the next
// login has to pass 2FA again.
func (m *Manager) SignIn(ctx context.Context, u *user.User) (*Session, error) {
	current, err := m.users.FindByID(ctx, u.ID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, &AuthError{Type: ErrorTypeCredentialsSignin}
		}
		return nil, &AuthError{Type: ErrorTypeCallbackRoute, Err: err}
	}
	if !current.HasPassword() {
		return nil, &AuthError{Type: ErrorTypeCredentialsSignin}
	}
	if !current.IsVerified() {
		return nil, &AuthError{Type: ErrorTypeAccessDenied, Detail: "email not verified"}
	}

	if current.TwoFactorEnabled {
		ok, err := m.confirmations.Consume(ctx, current.ID)
		if err != nil {
			return nil, &AuthError{Type: ErrorTypeCallbackRoute, Err: fmt.Errorf("consume 2fa confirmation: %w", err)}
		}
		if !ok {
			return nil, &AuthError{Type: ErrorTypeAccessDenied, Detail: "two-factor confirmation missing"}
		}
	}

	sess, err := m.issue(*current)
	if err != nil {
		return nil, &AuthError{Type: ErrorTypeCallbackRoute, Err: err}
	}
	slog.Info("Session issued", "user_id", current.ID, "expires_at", sess.ExpiresAt)
	return sess, nil
}

// Refresh returns a new session carrying u's current profile. The previous
// session is only consulted for the user id, which must match.
func (m *Manager) Refresh(ctx context.Context, prev Session, u *user.User) (*Session, error) {
	if prev.UserID != u.ID {
		return nil, fmt.Errorf("refresh session: user mismatch")
	}
	return m.issue(*u)
}

// Load rebuilds the session for userID from the store, so role and profile
// changes apply from the next request on. It returns user.ErrUserNotFound
// when the user is gone.
func (m *Manager) Load(ctx context.Context, userID uuid.UUID) (*Session, error) {
	u, err := m.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return fromUser(*u)
}

// Issuer exposes the token signer for the router's verifier
func (m *Manager) Issuer() *JwtIssuer {
	return m.jwt
}

func (m *Manager) issue(u user.User) (*Session, error) {
	sess, err := fromUser(u)
	if err != nil {
		return nil, err
	}
	now := m.now()
	sess.ExpiresAt = now.Add(m.ttl)
	sess.Token, err = m.jwt.Sign(*sess, now, sess.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func fromUser(u user.User) (*Session, error) {
	var sess Session
	if err := copier.Copy(&sess, &u); err != nil {
		return nil, fmt.Errorf("copy user into session: %w", err)
	}
	sess.UserID = u.ID
	sess.IsOAuth = u.HasLinkedAccount
	return &sess, nil
}
