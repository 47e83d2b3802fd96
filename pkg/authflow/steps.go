package authflow

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"

	"github.com/tendant/simple-auth/pkg/credential"
	"github.com/tendant/simple-auth/pkg/session"
	"github.com/tendant/simple-auth/pkg/token"
	"github.com/tendant/simple-auth/pkg/user"
)

func stop(flowContext *FlowContext, result Result) (*StepResult, error) {
	*flowContext.Result = result
	return &StepResult{EarlyReturn: true}, nil
}

// InputValidationStep checks request shape before any store access
type InputValidationStep struct{}

func (s *InputValidationStep) Name() string { return "input_validation" }
func (s *InputValidationStep) Order() int   { return OrderInputValidation }

func (s *InputValidationStep) ShouldSkip(ctx context.Context, flowContext *FlowContext) bool {
	return false
}

func (s *InputValidationStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	flowContext.Request.Email = normalizeEmail(flowContext.Request.Email)
	if errs := flowContext.Request.Validate(); len(errs) > 0 {
		return stop(flowContext, invalidInput(errs))
	}
	return &StepResult{Continue: true}, nil
}

// UserLookupStep loads the user. Unknown email and missing password give
// the same rejection as a wrong password.
type UserLookupStep struct{}

func (s *UserLookupStep) Name() string { return "user_lookup" }
func (s *UserLookupStep) Order() int   { return OrderUserLookup }

func (s *UserLookupStep) ShouldSkip(ctx context.Context, flowContext *FlowContext) bool {
	return false
}

func (s *UserLookupStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	u, err := flowContext.Services.users.FindByEmail(ctx, flowContext.Request.Email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return stop(flowContext, Rejected(ReasonInvalidCredentials, MsgInvalidCredentials))
		}
		return nil, err
	}
	if !u.HasPassword() {
		return stop(flowContext, Rejected(ReasonInvalidCredentials, MsgInvalidCredentials))
	}
	flowContext.User = u
	return &StepResult{Continue: true}, nil
}

// EmailVerificationGateStep sends a fresh verification link to unverified
// users and ends the flow. The password is not checked on this branch.
type EmailVerificationGateStep struct{}

func (s *EmailVerificationGateStep) Name() string { return "email_verification_gate" }
func (s *EmailVerificationGateStep) Order() int   { return OrderEmailVerificationGate }

func (s *EmailVerificationGateStep) ShouldSkip(ctx context.Context, flowContext *FlowContext) bool {
	return flowContext.User.IsVerified()
}

func (s *EmailVerificationGateStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	svc := flowContext.Services
	u := flowContext.User

	tok, err := svc.issuer.IssueVerification(ctx, u.ID, u.Email)
	if err != nil {
		return nil, err
	}
	svc.metrics.TokenIssued(string(tok.Kind))

	if err := svc.notifier.SendVerification(ctx, tok.Email, tok.Value); err != nil {
		return nil, err
	}
	return stop(flowContext, emailUnverified())
}

// TwoFactorGateStep either sends a code or checks the submitted one. A
// valid code is consumed and leaves a confirmation for session issuance.
type TwoFactorGateStep struct{}

func (s *TwoFactorGateStep) Name() string { return "two_factor_gate" }
func (s *TwoFactorGateStep) Order() int   { return OrderTwoFactorGate }

func (s *TwoFactorGateStep) ShouldSkip(ctx context.Context, flowContext *FlowContext) bool {
	return !flowContext.User.TwoFactorEnabled
}

func (s *TwoFactorGateStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	svc := flowContext.Services
	u := flowContext.User

	code := flowContext.Request.code()
	if code == "" {
		tok, err := svc.issuer.IssueTwoFactor(ctx, u.Email)
		if err != nil {
			return nil, err
		}
		svc.metrics.TokenIssued(string(tok.Kind))

		if err := svc.notifier.SendTwoFactorCode(ctx, tok.Email, tok.Value); err != nil {
			return nil, err
		}
		return stop(flowContext, twoFactorRequired())
	}

	tok, err := svc.tokens.FindByEmail(ctx, token.KindTwoFactor, u.Email)
	if err != nil {
		if errors.Is(err, token.ErrTokenNotFound) {
			return stop(flowContext, Rejected(ReasonInvalidCode, MsgInvalidCode))
		}
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(tok.Value), []byte(code)) != 1 {
		return stop(flowContext, Rejected(ReasonInvalidCode, MsgInvalidCode))
	}
	if tok.IsExpired(svc.issuer.Now()) {
		return stop(flowContext, Rejected(ReasonCodeExpired, MsgCodeExpired))
	}

	if err := svc.tokens.Consume(ctx, *tok); err != nil {
		if errors.Is(err, token.ErrTokenNotFound) {
			// another request used or replaced the code first
			return stop(flowContext, Rejected(ReasonInvalidCode, MsgInvalidCode))
		}
		return nil, err
	}
	if _, err := svc.confirmations.Confirm(ctx, u.ID); err != nil {
		return nil, err
	}
	return &StepResult{Continue: true}, nil
}

// PasswordCheckStep verifies the submitted password against the stored hash
type PasswordCheckStep struct{}

func (s *PasswordCheckStep) Name() string { return "password_check" }
func (s *PasswordCheckStep) Order() int   { return OrderPasswordCheck }

func (s *PasswordCheckStep) ShouldSkip(ctx context.Context, flowContext *FlowContext) bool {
	return false
}

func (s *PasswordCheckStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	u := flowContext.User
	ok, err := flowContext.Services.verifyPassword(ctx, flowContext.Request.Password, u.PasswordHash)
	if err != nil {
		if errors.Is(err, credential.ErrInvalidHash) {
			slog.Error("Stored password hash is malformed", "user_id", u.ID, "error", err)
			return stop(flowContext, Rejected(ReasonInvalidCredentials, MsgInvalidCredentials))
		}
		return nil, err
	}
	if !ok {
		return stop(flowContext, Rejected(ReasonInvalidCredentials, MsgInvalidCredentials))
	}
	return &StepResult{Continue: true}, nil
}

// SessionIssuanceStep hands the verified user to the session layer and maps
// its typed failures onto rejections.
type SessionIssuanceStep struct{}

func (s *SessionIssuanceStep) Name() string { return "session_issuance" }
func (s *SessionIssuanceStep) Order() int   { return OrderSessionIssuance }

func (s *SessionIssuanceStep) ShouldSkip(ctx context.Context, flowContext *FlowContext) bool {
	return false
}

func (s *SessionIssuanceStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	svc := flowContext.Services
	sess, err := svc.sessions.SignIn(ctx, flowContext.User)
	if err != nil {
		slog.Warn("Sign-in refused", "user_id", flowContext.User.ID, "error", err)
		var authErr *session.AuthError
		if !errors.As(err, &authErr) {
			return stop(flowContext, Rejected(ReasonUnexpected, ""))
		}
		switch authErr.Type {
		case session.ErrorTypeCredentialsSignin:
			return stop(flowContext, Rejected(ReasonInvalidCredentials, MsgInvalidCredentials))
		case session.ErrorTypeCallbackRoute:
			return stop(flowContext, Rejected(ReasonCallbackError, authErr.Detail))
		default:
			return stop(flowContext, Rejected(ReasonUnexpected, ""))
		}
	}

	result := Success(MsgLoginSuccess)
	result.Redirect = svc.redirectTarget(flowContext.Request.CallbackURL)
	result.Session = sess
	*flowContext.Result = result
	return &StepResult{Continue: true}, nil
}
