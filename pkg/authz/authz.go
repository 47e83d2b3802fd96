// Package authz gates requests on the role carried by the current session.
package authz

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/simple-auth/pkg/authflow"
	apperrors "github.com/tendant/simple-auth/pkg/errors"
	"github.com/tendant/simple-auth/pkg/session"
	"github.com/tendant/simple-auth/pkg/user"
)

// Decision is the outcome of a role check
type Decision string

const (
	Allowed   Decision = "allowed"
	Forbidden Decision = "forbidden"
)

// Authorize compares the session role with the required one. There is no
// role hierarchy: ADMIN does not imply USER.
func Authorize(sessionRole, required user.Role) Decision {
	if sessionRole == required {
		return Allowed
	}
	return Forbidden
}

// AdminAction reports whether sess may perform an admin-only action
func AdminAction(sess *session.Session) authflow.Result {
	if sess == nil {
		return authflow.Rejected(authflow.ReasonUnauthorized, authflow.MsgUnauthorized)
	}
	if Authorize(sess.Role, user.RoleAdmin) == Forbidden {
		return authflow.Rejected(authflow.ReasonForbidden, authflow.MsgForbiddenAction)
	}
	return authflow.Success(authflow.MsgAllowedAction)
}

// RequireSession rejects requests that carry no session with 401.
// Must be used after session.Manager.Middleware.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := session.FromContext(r.Context()); !ok {
			slog.Debug("Unauthenticated request to protected resource", "path", r.URL.Path)
			deny(w, r, authflow.ReasonUnauthorized, authflow.MsgUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole returns a middleware that admits only sessions holding role.
// Returns 401 without a session and 403 for any other role. The session is
// the one loaded for this request, so a role change applies immediately.
// Must be used after session.Manager.Middleware.
func RequireRole(role user.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := session.FromContext(r.Context())
			if !ok {
				slog.Debug("Unauthenticated request to role-protected resource", "required_role", role)
				deny(w, r, authflow.ReasonUnauthorized, authflow.MsgUnauthorized)
				return
			}

			if Authorize(sess.Role, role) == Forbidden {
				slog.Warn("User lacks required role",
					"user_id", sess.UserID,
					"role", sess.Role,
					"required_role", role)
				deny(w, r, authflow.ReasonForbidden, authflow.MsgForbiddenAction)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func deny(w http.ResponseWriter, r *http.Request, reason authflow.Reason, message string) {
	render.Status(r, apperrors.MapErrorCodeToHTTPStatus(reason.Code()))
	render.JSON(w, r, authflow.Rejected(reason, message))
}
