package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-auth/pkg/authflow"
	"github.com/tendant/simple-auth/pkg/authz"
	apperrors "github.com/tendant/simple-auth/pkg/errors"
	"github.com/tendant/simple-auth/pkg/ratelimit"
	"github.com/tendant/simple-auth/pkg/session"
	"github.com/tendant/simple-auth/pkg/user"
)

const MsgLoggedOut = "Logged out."

// VerificationRequest carries the token from a verification link
type VerificationRequest struct {
	Token string `json:"token"`
}

// Handle serves the auth flows over HTTP
type Handle struct {
	service  *authflow.Service
	sessions *session.Manager
	cookies  *session.CookieSetter
	limiter  ratelimit.Limiter
	limitOpt []ratelimit.MiddlewareOption
}

// Option configures a Handle
type Option func(*Handle)

// WithRateLimit limits login, register and reset requests per client IP
func WithRateLimit(limiter ratelimit.Limiter, opts ...ratelimit.MiddlewareOption) Option {
	return func(h *Handle) {
		h.limiter = limiter
		h.limitOpt = opts
	}
}

func NewHandle(service *authflow.Service, sessions *session.Manager, cookies *session.CookieSetter, opts ...Option) *Handle {
	h := &Handle{
		service:  service,
		sessions: sessions,
		cookies:  cookies,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Login
// (POST /auth/login)
func (h *Handle) Login(w http.ResponseWriter, r *http.Request) {
	var req authflow.LoginRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), req)
	if err != nil {
		upstream(w, r, "Failed to log in", err, "email", req.Email)
		return
	}
	if result.Session != nil {
		h.cookies.SetCookie(w, result.Session.Token, result.Session.ExpiresAt)
	}
	respond(w, r, result)
}

// Register
// (POST /auth/register)
func (h *Handle) Register(w http.ResponseWriter, r *http.Request) {
	var req authflow.RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	h.run(w, r, "Failed to register user", func(ctx context.Context) (authflow.Result, error) {
		return h.service.Register(ctx, req)
	})
}

// Verify email
// (POST /auth/new-verification)
func (h *Handle) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerificationRequest
	if !decode(w, r, &req) {
		return
	}
	h.run(w, r, "Failed to verify email", func(ctx context.Context) (authflow.Result, error) {
		return h.service.VerifyEmail(ctx, req.Token)
	})
}

// Request a password reset link
// (POST /auth/reset)
func (h *Handle) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req authflow.ResetRequest
	if !decode(w, r, &req) {
		return
	}
	h.run(w, r, "Failed to request password reset", func(ctx context.Context) (authflow.Result, error) {
		return h.service.RequestPasswordReset(ctx, req)
	})
}

// Set a new password from a reset link
// (POST /auth/new-password)
func (h *Handle) CompletePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req authflow.NewPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	h.run(w, r, "Failed to reset password", func(ctx context.Context) (authflow.Result, error) {
		return h.service.CompletePasswordReset(ctx, req)
	})
}

// (POST /auth/logout)
func (h *Handle) Logout(w http.ResponseWriter, r *http.Request) {
	h.cookies.ClearCookie(w)
	respond(w, r, authflow.Success(MsgLoggedOut))
}

// Current session
// (GET /me)
func (h *Handle) Me(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	render.Status(r, http.StatusOK)
	render.JSON(w, r, sess)
}

// Update settings. A successful update re-issues the session cookie.
// (PUT /settings)
func (h *Handle) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req authflow.SettingsRequest
	if !decode(w, r, &req) {
		return
	}
	sess, _ := session.FromContext(r.Context())

	result, err := h.service.UpdateSettings(r.Context(), sess, req)
	if err != nil {
		upstream(w, r, "Failed to update settings", err)
		return
	}
	if result.Session != nil {
		h.cookies.SetCookie(w, result.Session.Token, result.Session.ExpiresAt)
	}
	respond(w, r, result)
}

// (GET /admin)
func (h *Handle) AdminProbe(w http.ResponseWriter, r *http.Request) {
	respond(w, r, authflow.Success(authflow.MsgAllowedAction))
}

// (POST /admin/action)
func (h *Handle) AdminAction(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	respond(w, r, authz.AdminAction(sess))
}

// Handler returns a http.Handler for the auth API
func Handler(h *Handle) http.Handler {
	r := chi.NewRouter()
	r.Use(h.sessions.Middleware(h.cookies.Name))

	r.With(h.limit("login")).Post("/auth/login", h.Login)
	r.With(h.limit("register")).Post("/auth/register", h.Register)
	r.Post("/auth/new-verification", h.VerifyEmail)
	r.With(h.limit("reset")).Post("/auth/reset", h.RequestPasswordReset)
	r.Post("/auth/new-password", h.CompletePasswordReset)
	r.Post("/auth/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(authz.RequireSession)
		r.Get("/me", h.Me)
		r.Put("/settings", h.UpdateSettings)
	})

	r.With(authz.RequireRole(user.RoleAdmin)).Get("/admin", h.AdminProbe)
	r.Post("/admin/action", h.AdminAction)

	return r
}

func (h *Handle) limit(route string) func(http.Handler) http.Handler {
	if h.limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return ratelimit.NewMiddleware(h.limiter, route, h.limitOpt...).Handler
}

func (h *Handle) run(w http.ResponseWriter, r *http.Request, failure string, op func(context.Context) (authflow.Result, error)) {
	result, err := op(r.Context())
	if err != nil {
		upstream(w, r, failure, err)
		return
	}
	respond(w, r, result)
}

// decode reads a JSON body, answering 400 when it cannot be parsed
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		slog.Debug("Failed to decode request body", "path", r.URL.Path, "error", err)
		respond(w, r, authflow.Rejected(authflow.ReasonInvalidInput, authflow.MsgInvalidFields))
		return false
	}
	return true
}

// respond writes a Result. Rejections take the status of their reason;
// every other outcome is 200.
func respond(w http.ResponseWriter, r *http.Request, result authflow.Result) {
	status := http.StatusOK
	if result.Outcome == authflow.OutcomeRejected {
		status = apperrors.MapErrorCodeToHTTPStatus(result.Reason.Code())
	}
	render.Status(r, status)
	render.JSON(w, r, result)
}

func upstream(w http.ResponseWriter, r *http.Request, msg string, err error, args ...any) {
	slog.Error(msg, append(args, "error", err)...)
	appErr := apperrors.Upstream(err)
	render.Status(r, appErr.HTTPStatusCode())
	render.JSON(w, r, authflow.Result{
		Status:  authflow.StatusError,
		Message: apperrors.PublicMessage(appErr),
	})
}
