package token

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultVerificationTTL  = 24 * time.Hour
	DefaultPasswordResetTTL = 1 * time.Hour
	DefaultTwoFactorTTL     = 5 * time.Minute

	minTwoFactorCode = 100000
	maxTwoFactorCode = 999999
)

// Issuer generates tokens and rotates them through a Store. It never sends
// notifications; delivery is the caller's job so the two can fail apart.
type Issuer struct {
	store           Store
	verificationTTL time.Duration
	resetTTL        time.Duration
	twoFactorTTL    time.Duration
	now             func() time.Time
	newValue        func() (string, error)
	newCode         func() (string, error)
}

// IssuerOption configures an Issuer
type IssuerOption func(*Issuer)

// WithVerificationTTL sets the lifetime of email verification tokens
func WithVerificationTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		if ttl > 0 {
			i.verificationTTL = ttl
		}
	}
}

// WithPasswordResetTTL sets the lifetime of password reset tokens
func WithPasswordResetTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		if ttl > 0 {
			i.resetTTL = ttl
		}
	}
}

// WithTwoFactorTTL sets the lifetime of 2FA codes
func WithTwoFactorTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		if ttl > 0 {
			i.twoFactorTTL = ttl
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.now = now
	}
}

// WithCodeGenerator overrides the 2FA code source
func WithCodeGenerator(gen func() (string, error)) IssuerOption {
	return func(i *Issuer) {
		i.newCode = gen
	}
}

// NewIssuer creates an Issuer backed by store
func NewIssuer(store Store, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		store:           store,
		verificationTTL: DefaultVerificationTTL,
		resetTTL:        DefaultPasswordResetTTL,
		twoFactorTTL:    DefaultTwoFactorTTL,
		now:             func() time.Time { return time.Now().UTC() },
		newValue:        NewOpaqueValue,
		newCode:         NewTwoFactorCode,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// IssueVerification issues a verification token for email, bound to userID.
// A prior verification token for the same user is replaced.
func (i *Issuer) IssueVerification(ctx context.Context, userID uuid.UUID, email string) (*Token, error) {
	return i.issue(ctx, KindVerification, email, userID)
}

// IssuePasswordReset issues a reset token for email, replacing any prior one.
func (i *Issuer) IssuePasswordReset(ctx context.Context, email string) (*Token, error) {
	return i.issue(ctx, KindPasswordReset, email, uuid.Nil)
}

// IssueTwoFactor issues a six-digit code for email, replacing any prior one.
func (i *Issuer) IssueTwoFactor(ctx context.Context, email string) (*Token, error) {
	return i.issue(ctx, KindTwoFactor, email, uuid.Nil)
}

// Now returns the issuer's notion of the current time. Consumers use it for
// expiry checks so tests can drive one clock.
func (i *Issuer) Now() time.Time {
	return i.now()
}

func (i *Issuer) issue(ctx context.Context, kind Kind, email string, userID uuid.UUID) (*Token, error) {
	var value string
	var err error
	if kind == KindTwoFactor {
		value, err = i.newCode()
	} else {
		value, err = i.newValue()
	}
	if err != nil {
		return nil, fmt.Errorf("generate %s token: %w", kind, err)
	}

	now := i.now()
	t := Token{
		ID:        uuid.New(),
		Kind:      kind,
		Value:     value,
		Email:     email,
		UserID:    userID,
		ExpiresAt: now.Add(i.ttl(kind)),
		CreatedAt: now,
	}

	stored, err := i.store.Replace(ctx, t)
	if err != nil {
		slog.Error("Failed to store token", "kind", kind, "email", email, "error", err)
		return nil, fmt.Errorf("store %s token: %w", kind, err)
	}
	slog.Debug("Token issued", "kind", kind, "email", email, "expires_at", stored.ExpiresAt)
	return stored, nil
}

func (i *Issuer) ttl(kind Kind) time.Duration {
	switch kind {
	case KindVerification:
		return i.verificationTTL
	case KindPasswordReset:
		return i.resetTTL
	default:
		return i.twoFactorTTL
	}
}

// NewOpaqueValue returns a random UUID string.
func NewOpaqueValue() (string, error) {
	v, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// NewTwoFactorCode returns a uniformly random decimal code in [100000, 999999].
func NewTwoFactorCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(maxTwoFactorCode-minTwoFactorCode+1))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+minTwoFactorCode, 10), nil
}
