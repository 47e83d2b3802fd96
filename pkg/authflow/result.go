package authflow

import (
	apperrors "github.com/tendant/simple-auth/pkg/errors"
	"github.com/tendant/simple-auth/pkg/session"
)

// Status is the coarse result discriminator exposed to clients
type Status string

const (
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
	StatusTwoFactor Status = "twoFactor"
)

// Outcome is the branch an operation ended on
type Outcome string

const (
	OutcomeSuccess           Outcome = "success"
	OutcomeEmailUnverified   Outcome = "email_unverified"
	OutcomeTwoFactorRequired Outcome = "two_factor_required"
	OutcomeRejected          Outcome = "rejected"
)

// Reason explains a rejection
type Reason string

const (
	ReasonInvalidInput       Reason = "invalid-input"
	ReasonInvalidCredentials Reason = "invalid-credentials"
	ReasonInvalidCode        Reason = "invalid-code"
	ReasonCodeExpired        Reason = "code-expired"
	ReasonEmailInUse         Reason = "email-in-use"
	ReasonInvalid            Reason = "invalid"
	ReasonExpired            Reason = "expired"
	ReasonUserNotFound       Reason = "user-not-found"
	ReasonIncorrectPassword  Reason = "incorrect-password"
	ReasonUnauthorized       Reason = "unauthorized"
	ReasonForbidden          Reason = "forbidden"
	ReasonCallbackError      Reason = "callback-error"
	ReasonUnexpected         Reason = "unexpected"
)

// Code maps the reason onto the shared error taxonomy
func (r Reason) Code() apperrors.ErrorCode {
	switch r {
	case ReasonInvalidInput:
		return apperrors.ErrCodeInvalidInput
	case ReasonInvalidCredentials:
		return apperrors.ErrCodeInvalidCredentials
	case ReasonInvalidCode:
		return apperrors.ErrCode2FAInvalid
	case ReasonCodeExpired:
		return apperrors.ErrCode2FAExpired
	case ReasonEmailInUse:
		return apperrors.ErrCodeEmailInUse
	case ReasonInvalid:
		return apperrors.ErrCodeTokenInvalid
	case ReasonExpired:
		return apperrors.ErrCodeTokenExpired
	case ReasonUserNotFound:
		return apperrors.ErrCodeUserNotFound
	case ReasonIncorrectPassword:
		return apperrors.ErrCodeInvalidCredentials
	case ReasonUnauthorized, ReasonCallbackError, ReasonUnexpected:
		return apperrors.ErrCodeUnauthorized
	case ReasonForbidden:
		return apperrors.ErrCodeForbidden
	default:
		return apperrors.ErrCodeInternal
	}
}

// User-visible messages
const (
	MsgInvalidFields      = "Invalid fields!"
	MsgInvalidCredentials = "Invalid credentials. Please check your email and password and try again."
	MsgInvalidCode        = "Invalid two-factor authentication code. Please check your code and try again."
	MsgCodeExpired        = "The two-factor authentication code has expired. Please request a new code and try logging in again."
	MsgTwoFactorSent      = "A two-factor authentication code has been sent to your email. Please enter the code to continue."
	MsgVerificationSent   = "Check your inbox for verification link."
	MsgLoginSuccess       = "Login successful. Redirecting..."

	MsgRegisterEmailInUse = "Email address is already in use. Please use a different email or login."
	MsgRegisterSuccess    = "User registration successful. Check your email for the verification link."

	MsgVerificationInvalid = "Invalid verification link. Please request a new link and try again."
	MsgVerificationExpired = "The verification link has expired. Please request a new link."
	MsgEmailVerified       = "Email verified successfully! You can now log in to your account."

	MsgResetSent     = "Password reset email sent."
	MsgResetInvalid  = "Invalid password reset link. Please request a new link and try again."
	MsgResetExpired  = "The password reset link has expired. Please request a new link."
	MsgResetComplete = "Your password has been successfully reset. You can now log in with your new password."
	MsgUserNotFound  = "User not found."

	MsgIncorrectPassword = "Current password does not match."
	MsgEmailInUse        = "Email already in use."
	MsgSettingsUpdated   = "Settings update successful."

	MsgUnauthorized    = "Unauthorized request. Please log in again."
	MsgAllowedAction   = "Allowed Action"
	MsgForbiddenAction = "Forbidden Action"
)

// Result is the discriminated outcome of every operation in this package.
// Expected failures are Results with OutcomeRejected, never errors.
type Result struct {
	Status   Status            `json:"status"`
	Outcome  Outcome           `json:"outcome"`
	Reason   Reason            `json:"reason,omitempty"`
	Message  string            `json:"message"`
	Redirect string            `json:"redirect,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
	Session  *session.Session  `json:"-"`
}

// Succeeded reports whether the operation ended on its success branch
func (r Result) Succeeded() bool {
	return r.Outcome == OutcomeSuccess
}

// Success builds a Result on the success branch
func Success(message string) Result {
	return Result{Status: StatusSuccess, Outcome: OutcomeSuccess, Message: message}
}

// Rejected builds an expected failure. An empty message becomes the
// generic one.
func Rejected(reason Reason, message string) Result {
	if message == "" {
		message = apperrors.GenericMessage
	}
	return Result{Status: StatusError, Outcome: OutcomeRejected, Reason: reason, Message: message}
}

func invalidInput(errs []ValidationError) Result {
	r := Rejected(ReasonInvalidInput, MsgInvalidFields)
	r.Errors = errs
	return r
}

func emailUnverified() Result {
	return Result{Status: StatusSuccess, Outcome: OutcomeEmailUnverified, Message: MsgVerificationSent}
}

func twoFactorRequired() Result {
	return Result{Status: StatusTwoFactor, Outcome: OutcomeTwoFactorRequired, Message: MsgTwoFactorSent}
}
