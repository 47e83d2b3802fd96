package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-auth/pkg/user"
)

// Session is the signed identity handed to a client. It is never mutated in
// place: settings changes produce a new Session with a new Token.
type Session struct {
	Token            string    `json:"-"`
	ExpiresAt        time.Time `json:"expiresAt"`
	UserID           uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	Role             user.Role `json:"role"`
	IsOAuth          bool      `json:"isOAuth"`
	TwoFactorEnabled bool      `json:"isTwoFactorEnabled"`
}

// ErrorType classifies sign-in failures
type ErrorType string

const (
	ErrorTypeCredentialsSignin ErrorType = "credentials_signin"
	ErrorTypeCallbackRoute     ErrorType = "callback_route_error"
	ErrorTypeAccessDenied      ErrorType = "access_denied"
)

// AuthError is returned by SignIn when the session layer refuses to complete
// a login. Detail is safe to show to the user; Err is not.
type AuthError struct {
	Type   ErrorType
	Detail string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Type, e.Err)
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Type, e.Detail)
	}
	return string(e.Type)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "session context value " + k.name
}

var sessionKey = &contextKey{"Session"}

// NewContext returns ctx carrying sess
func NewContext(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// FromContext returns the session loaded for the current request, if any
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(sessionKey).(*Session)
	return sess, ok && sess != nil
}
