package session

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	apperrors "github.com/tendant/simple-auth/pkg/errors"
	"github.com/tendant/simple-auth/pkg/user"
)

// Middleware verifies the session token from the Authorization header or
// the session cookie and loads the current user into the request context.
// Requests without a valid token pass through with no session; gating is
// left to authz.
func (m *Manager) Middleware(cookieName string) func(http.Handler) http.Handler {
	verify := jwtauth.Verify(m.jwt.JWTAuth(), jwtauth.TokenFromHeader, TokenFromCookie(cookieName))
	return func(next http.Handler) http.Handler {
		return verify(m.loader(cookieName, next))
	}
}

func (m *Manager) loader(cookieName string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || tok == nil {
			next.ServeHTTP(w, r)
			return
		}

		sub, _ := claims["sub"].(string)
		userID, err := uuid.Parse(sub)
		if err != nil {
			slog.Warn("Session token carries invalid subject", "sub", sub)
			next.ServeHTTP(w, r)
			return
		}

		sess, err := m.Load(r.Context(), userID)
		if err != nil {
			if errors.Is(err, user.ErrUserNotFound) {
				next.ServeHTTP(w, r)
				return
			}
			slog.Error("Failed to load session user", "user_id", userID, "error", err)
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, map[string]string{"message": apperrors.GenericMessage})
			return
		}

		sess.Token = jwtauth.TokenFromHeader(r)
		if sess.Token == "" {
			sess.Token = TokenFromCookie(cookieName)(r)
		}
		if exp, ok := claims["exp"].(time.Time); ok {
			sess.ExpiresAt = exp.UTC()
		}

		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), sess)))
	})
}
