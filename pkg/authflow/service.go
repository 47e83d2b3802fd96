package authflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-auth/pkg/metrics"
	"github.com/tendant/simple-auth/pkg/session"
	"github.com/tendant/simple-auth/pkg/token"
	"github.com/tendant/simple-auth/pkg/user"
)

const DefaultLoginRedirect = "/settings"

// Notifier delivers the three auth notices. Each call reports an error when
// delivery could not be attempted.
type Notifier interface {
	SendVerification(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
	SendTwoFactorCode(ctx context.Context, email, code string) error
}

// PasswordHasher hashes and verifies passwords, honouring ctx while queued
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Verify(ctx context.Context, password, hashedPassword string) (bool, error)
}

// SessionManager completes sign-in and re-issues sessions after changes
type SessionManager interface {
	SignIn(ctx context.Context, u *user.User) (*session.Session, error)
	Refresh(ctx context.Context, prev session.Session, u *user.User) (*session.Session, error)
}

// Dependencies are the collaborators a Service needs
type Dependencies struct {
	Users         user.Repository
	Tokens        token.Store
	Confirmations token.ConfirmationStore
	Issuer        *token.Issuer
	Hasher        PasswordHasher
	Notifier      Notifier
	Sessions      SessionManager
}

// Service implements login, registration, verification, password reset
// and settings updates.
type Service struct {
	users           user.Repository
	tokens          token.Store
	confirmations   token.ConfirmationStore
	issuer          *token.Issuer
	hasher          PasswordHasher
	notifier        Notifier
	sessions        SessionManager
	metrics         *metrics.Metrics
	defaultRedirect string
	loginFlow       *FlowExecutor
}

// Option configures a Service
type Option func(*Service)

// WithMetrics records operation outcomes and issued tokens
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithDefaultRedirect sets where a successful login goes when the request
// names no callback
func WithDefaultRedirect(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.defaultRedirect = path
		}
	}
}

// WithLoginFlow replaces the login step sequence
func WithLoginFlow(build func(*Service) *FlowExecutor) Option {
	return func(s *Service) {
		s.loginFlow = build(s)
	}
}

func NewService(deps Dependencies, opts ...Option) *Service {
	s := &Service{
		users:           deps.Users,
		tokens:          deps.Tokens,
		confirmations:   deps.Confirmations,
		issuer:          deps.Issuer,
		hasher:          deps.Hasher,
		notifier:        deps.Notifier,
		sessions:        deps.Sessions,
		defaultRedirect: DefaultLoginRedirect,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.loginFlow == nil {
		s.loginFlow = NewLoginFlow(s)
	}
	return s
}

// Login runs the credentials login flow.
func (s *Service) Login(ctx context.Context, req LoginRequest) (Result, error) {
	result, err := s.loginFlow.Execute(ctx, req)
	s.observe("login", result, err)
	return result, err
}

// Register creates an unverified user and mails a verification link. A
// failed delivery is logged and does not fail the registration.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (Result, error) {
	result, err := s.register(ctx, req)
	s.observe("register", result, err)
	return result, err
}

func (s *Service) register(ctx context.Context, req RegisterRequest) (Result, error) {
	req.Email = normalizeEmail(req.Email)
	if errs := req.Validate(); len(errs) > 0 {
		return invalidInput(errs), nil
	}

	_, err := s.users.FindByEmail(ctx, req.Email)
	switch {
	case err == nil:
		return Rejected(ReasonEmailInUse, MsgRegisterEmailInUse), nil
	case !errors.Is(err, user.ErrUserNotFound):
		return Result{}, fmt.Errorf("find user: %w", err)
	}

	hash, err := s.hashPassword(ctx, req.Password)
	if err != nil {
		return Result{}, err
	}

	created, err := s.users.Create(ctx, user.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		PasswordHash: hash,
		Role:         user.RoleUser,
	})
	if err != nil {
		if errors.Is(err, user.ErrEmailInUse) {
			return Rejected(ReasonEmailInUse, MsgRegisterEmailInUse), nil
		}
		return Result{}, fmt.Errorf("create user: %w", err)
	}
	slog.Info("User registered", "user_id", created.ID, "email", created.Email)

	tok, err := s.issuer.IssueVerification(ctx, created.ID, created.Email)
	if err != nil {
		return Result{}, err
	}
	s.metrics.TokenIssued(string(tok.Kind))

	if err := s.notifier.SendVerification(ctx, tok.Email, tok.Value); err != nil {
		slog.Error("Failed to send verification email", "user_id", created.ID, "email", tok.Email, "error", err)
	}
	return Success(MsgRegisterSuccess), nil
}

// VerifyEmail consumes a verification token and marks its email verified.
// The token is consumed before the user is updated, so a failed update
// leaves no reusable token behind; requesting a new link recovers.
func (s *Service) VerifyEmail(ctx context.Context, value string) (Result, error) {
	result, err := s.verifyEmail(ctx, value)
	s.observe("verify_email", result, err)
	return result, err
}

func (s *Service) verifyEmail(ctx context.Context, value string) (Result, error) {
	tok, result, err := s.redeemable(ctx, token.KindVerification, value, MsgVerificationInvalid, MsgVerificationExpired)
	if tok == nil {
		return result, err
	}

	u, err := s.tokenOwner(ctx, tok)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return Rejected(ReasonUserNotFound, MsgUserNotFound), nil
		}
		return Result{}, err
	}

	if err := s.tokens.Consume(ctx, *tok); err != nil {
		if errors.Is(err, token.ErrTokenNotFound) {
			return Rejected(ReasonInvalid, MsgVerificationInvalid), nil
		}
		return Result{}, fmt.Errorf("consume verification token: %w", err)
	}

	now := s.issuer.Now()
	u.EmailVerifiedAt = &now
	u.Email = tok.Email
	if _, err := s.users.Update(ctx, *u); err != nil {
		if errors.Is(err, user.ErrEmailInUse) {
			return Rejected(ReasonEmailInUse, MsgEmailInUse), nil
		}
		return Result{}, fmt.Errorf("update user: %w", err)
	}
	slog.Info("Email verified", "user_id", u.ID, "email", u.Email)
	return Success(MsgEmailVerified), nil
}

// RequestPasswordReset mails a reset link. Unlike login, an unknown email is
// reported as such. A failed delivery fails the request.
func (s *Service) RequestPasswordReset(ctx context.Context, req ResetRequest) (Result, error) {
	result, err := s.requestPasswordReset(ctx, req)
	s.observe("request_password_reset", result, err)
	return result, err
}

func (s *Service) requestPasswordReset(ctx context.Context, req ResetRequest) (Result, error) {
	req.Email = normalizeEmail(req.Email)
	if errs := req.Validate(); len(errs) > 0 {
		return invalidInput(errs), nil
	}

	u, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return Rejected(ReasonUserNotFound, MsgUserNotFound), nil
		}
		return Result{}, fmt.Errorf("find user: %w", err)
	}
	if !u.HasPassword() {
		return Rejected(ReasonUserNotFound, MsgUserNotFound), nil
	}

	tok, err := s.issuer.IssuePasswordReset(ctx, u.Email)
	if err != nil {
		return Result{}, err
	}
	s.metrics.TokenIssued(string(tok.Kind))

	if err := s.notifier.SendPasswordReset(ctx, tok.Email, tok.Value); err != nil {
		slog.Error("Failed to send password reset email", "email", tok.Email, "error", err)
		return Result{}, fmt.Errorf("send password reset: %w", err)
	}
	return Success(MsgResetSent), nil
}

// CompletePasswordReset sets a new password using a reset token
func (s *Service) CompletePasswordReset(ctx context.Context, req NewPasswordRequest) (Result, error) {
	result, err := s.completePasswordReset(ctx, req)
	s.observe("complete_password_reset", result, err)
	return result, err
}

func (s *Service) completePasswordReset(ctx context.Context, req NewPasswordRequest) (Result, error) {
	if strings.TrimSpace(req.Token) == "" {
		return Rejected(ReasonInvalid, MsgResetInvalid), nil
	}
	if errs := req.Validate(); len(errs) > 0 {
		return invalidInput(errs), nil
	}

	tok, result, err := s.redeemable(ctx, token.KindPasswordReset, req.Token, MsgResetInvalid, MsgResetExpired)
	if tok == nil {
		return result, err
	}

	u, err := s.users.FindByEmail(ctx, tok.Email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return Rejected(ReasonUserNotFound, MsgUserNotFound), nil
		}
		return Result{}, fmt.Errorf("find user: %w", err)
	}

	hash, err := s.hashPassword(ctx, req.Password)
	if err != nil {
		return Result{}, err
	}

	if err := s.tokens.Consume(ctx, *tok); err != nil {
		if errors.Is(err, token.ErrTokenNotFound) {
			return Rejected(ReasonInvalid, MsgResetInvalid), nil
		}
		return Result{}, fmt.Errorf("consume reset token: %w", err)
	}

	u.PasswordHash = hash
	if _, err := s.users.Update(ctx, *u); err != nil {
		return Result{}, fmt.Errorf("update password: %w", err)
	}
	slog.Info("Password reset", "user_id", u.ID)
	return Success(MsgResetComplete), nil
}

// UpdateSettings applies profile changes for the session's user. A changed
// email only starts re-verification; every other field in that request is
// dropped. Returns a refreshed session on the normal path.
func (s *Service) UpdateSettings(ctx context.Context, sess *session.Session, req SettingsRequest) (Result, error) {
	result, err := s.updateSettings(ctx, sess, req)
	s.observe("update_settings", result, err)
	return result, err
}

func (s *Service) updateSettings(ctx context.Context, sess *session.Session, req SettingsRequest) (Result, error) {
	if sess == nil {
		return Rejected(ReasonUnauthorized, MsgUnauthorized), nil
	}
	// the provider owns these for linked identities
	if sess.IsOAuth {
		req.Email = nil
		req.Password = nil
		req.NewPassword = nil
		req.TwoFactorEnabled = nil
	}
	if errs := req.Validate(); len(errs) > 0 {
		return invalidInput(errs), nil
	}

	u, err := s.users.FindByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return Rejected(ReasonUnauthorized, MsgUnauthorized), nil
		}
		return Result{}, fmt.Errorf("find user: %w", err)
	}

	if req.Email != nil {
		newEmail := normalizeEmail(*req.Email)
		if newEmail != sess.Email {
			return s.requestEmailChange(ctx, u, newEmail)
		}
	}

	if nonEmpty(req.Password) && nonEmpty(req.NewPassword) {
		if !u.HasPassword() {
			return Rejected(ReasonIncorrectPassword, MsgIncorrectPassword), nil
		}
		ok, err := s.verifyPassword(ctx, *req.Password, u.PasswordHash)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			return Rejected(ReasonIncorrectPassword, MsgIncorrectPassword), nil
		}
		hash, err := s.hashPassword(ctx, *req.NewPassword)
		if err != nil {
			return Result{}, err
		}
		u.PasswordHash = hash
	}

	if req.Name != nil {
		u.Name = strings.TrimSpace(*req.Name)
	}
	if req.Role != nil {
		u.Role = *req.Role
	}
	if req.TwoFactorEnabled != nil {
		u.TwoFactorEnabled = *req.TwoFactorEnabled
	}

	updated, err := s.users.Update(ctx, *u)
	if err != nil {
		return Result{}, fmt.Errorf("update user: %w", err)
	}

	refreshed, err := s.sessions.Refresh(ctx, *sess, updated)
	if err != nil {
		return Result{}, fmt.Errorf("refresh session: %w", err)
	}

	result := Success(MsgSettingsUpdated)
	result.Session = refreshed
	return result, nil
}

func (s *Service) requestEmailChange(ctx context.Context, u *user.User, newEmail string) (Result, error) {
	existing, err := s.users.FindByEmail(ctx, newEmail)
	switch {
	case err == nil && existing.ID != u.ID:
		return Rejected(ReasonEmailInUse, MsgEmailInUse), nil
	case err != nil && !errors.Is(err, user.ErrUserNotFound):
		return Result{}, fmt.Errorf("find user: %w", err)
	}

	tok, err := s.issuer.IssueVerification(ctx, u.ID, newEmail)
	if err != nil {
		return Result{}, err
	}
	s.metrics.TokenIssued(string(tok.Kind))

	if err := s.notifier.SendVerification(ctx, tok.Email, tok.Value); err != nil {
		return Result{}, fmt.Errorf("send verification: %w", err)
	}
	slog.Info("Email change requested", "user_id", u.ID, "new_email", newEmail)
	return Success(MsgVerificationSent), nil
}

// LinkAccount records an external provider account for userID and marks the
// user's email verified, since the provider vouched for it.
func (s *Service) LinkAccount(ctx context.Context, userID uuid.UUID, provider, providerAccountID string) error {
	err := s.users.LinkAccount(ctx, user.Account{
		UserID:            userID,
		Provider:          provider,
		ProviderAccountID: providerAccountID,
	})
	if err != nil {
		return fmt.Errorf("link account: %w", err)
	}

	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if u.IsVerified() {
		return nil
	}
	now := s.issuer.Now()
	u.EmailVerifiedAt = &now
	if _, err := s.users.Update(ctx, *u); err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	slog.Info("Account linked", "user_id", userID, "provider", provider)
	return nil
}

// redeemable looks up a token by value. It returns the token when it can be
// redeemed, otherwise the rejection (or error) to return.
func (s *Service) redeemable(ctx context.Context, kind token.Kind, value, invalidMsg, expiredMsg string) (*token.Token, Result, error) {
	tok, err := s.tokens.FindByValue(ctx, kind, value)
	if err != nil {
		if errors.Is(err, token.ErrTokenNotFound) {
			return nil, Rejected(ReasonInvalid, invalidMsg), nil
		}
		return nil, Result{}, fmt.Errorf("find %s token: %w", kind, err)
	}
	if tok.IsExpired(s.issuer.Now()) {
		return nil, Rejected(ReasonExpired, expiredMsg), nil
	}
	return tok, Result{}, nil
}

func (s *Service) tokenOwner(ctx context.Context, tok *token.Token) (*user.User, error) {
	if tok.UserID != uuid.Nil {
		return s.users.FindByID(ctx, tok.UserID)
	}
	return s.users.FindByEmail(ctx, tok.Email)
}

func (s *Service) hashPassword(ctx context.Context, password string) (string, error) {
	defer s.metrics.ObserveHash("hash", time.Now())
	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func (s *Service) verifyPassword(ctx context.Context, password, hash string) (bool, error) {
	defer s.metrics.ObserveHash("verify", time.Now())
	return s.hasher.Verify(ctx, password, hash)
}

// redirectTarget accepts only same-site absolute paths as callbacks
func (s *Service) redirectTarget(callbackURL string) string {
	if strings.HasPrefix(callbackURL, "/") && !strings.HasPrefix(callbackURL, "//") && !strings.Contains(callbackURL, `\`) {
		return callbackURL
	}
	return s.defaultRedirect
}

func (s *Service) observe(operation string, result Result, err error) {
	if err != nil {
		s.metrics.Operation(operation, "upstream_error", "")
		return
	}
	s.metrics.Operation(operation, string(result.Outcome), string(result.Reason))
}
