package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-auth/pkg/token"
	"github.com/tendant/simple-auth/pkg/user"
)

const testSecret = "test-secret-at-least-32-bytes-long!!"

type fixture struct {
	users         *user.InMemRepository
	confirmations *token.MemoryConfirmationStore
	manager       *Manager
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	users := user.NewInMemRepository()
	confirmations := token.NewMemoryConfirmationStore()
	return &fixture{
		users:         users,
		confirmations: confirmations,
		manager:       NewManager(users, confirmations, NewJwtIssuer(testSecret, "simple-auth", "web"), opts...),
	}
}

func (f *fixture) createUser(t *testing.T, verified, twoFactor bool) *user.User {
	t.Helper()
	u := user.User{
		Name:             "U",
		Email:            "u@x.com",
		PasswordHash:     "hash",
		TwoFactorEnabled: twoFactor,
	}
	if verified {
		now := time.Now().UTC()
		u.EmailVerifiedAt = &now
	}
	created, err := f.users.Create(context.Background(), u)
	require.NoError(t, err)
	return created
}

func requireAuthError(t *testing.T, err error, want ErrorType) {
	t.Helper()
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, want, authErr.Type)
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()

	t.Run("VerifiedUser", func(t *testing.T) {
		now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		f := newFixture(t, WithClock(func() time.Time { return now }), WithTTL(time.Hour))
		u := f.createUser(t, true, false)

		sess, err := f.manager.SignIn(ctx, u)
		require.NoError(t, err)
		assert.Equal(t, u.ID, sess.UserID)
		assert.Equal(t, "u@x.com", sess.Email)
		assert.Equal(t, user.RoleUser, sess.Role)
		assert.False(t, sess.IsOAuth)
		assert.Equal(t, now.Add(time.Hour), sess.ExpiresAt)
		assert.NotEmpty(t, sess.Token)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.manager.SignIn(ctx, &user.User{Email: "ghost@x.com"})
		requireAuthError(t, err, ErrorTypeCredentialsSignin)
	})

	t.Run("UnverifiedUser", func(t *testing.T) {
		f := newFixture(t)
		u := f.createUser(t, false, false)
		_, err := f.manager.SignIn(ctx, u)
		requireAuthError(t, err, ErrorTypeAccessDenied)
	})

	t.Run("TwoFactorWithoutConfirmation", func(t *testing.T) {
		f := newFixture(t)
		u := f.createUser(t, true, true)
		_, err := f.manager.SignIn(ctx, u)
		requireAuthError(t, err, ErrorTypeAccessDenied)
	})

	t.Run("TwoFactorConfirmationIsConsumed", func(t *testing.T) {
		f := newFixture(t)
		u := f.createUser(t, true, true)
		_, err := f.confirmations.Confirm(ctx, u.ID)
		require.NoError(t, err)

		sess, err := f.manager.SignIn(ctx, u)
		require.NoError(t, err)
		assert.True(t, sess.TwoFactorEnabled)

		_, err = f.manager.SignIn(ctx, u)
		requireAuthError(t, err, ErrorTypeAccessDenied)
	})
}

func TestJwtIssuer(t *testing.T) {
	issuer := NewJwtIssuer(testSecret, "simple-auth", "web")
	now := time.Now().UTC()
	sess := Session{Name: "U", Email: "u@x.com", Role: user.RoleAdmin, TwoFactorEnabled: true}

	signed, err := issuer.Sign(sess, now, now.Add(time.Hour))
	require.NoError(t, err)

	claims, err := issuer.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "ADMIN", claims.Role)
	assert.Equal(t, "u@x.com", claims.Email)
	assert.True(t, claims.TwoFactorEnabled)

	_, err = NewJwtIssuer("another-secret", "simple-auth", "web").Parse(signed)
	assert.Error(t, err)

	expired, err := issuer.Sign(sess, now.Add(-2*time.Hour), now.Add(-time.Hour))
	require.NoError(t, err)
	_, err = issuer.Parse(expired)
	assert.Error(t, err)

	_, err = NewJwtIssuer(testSecret, "other-service", "web").Parse(signed)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
	_, err = NewJwtIssuer(testSecret, "simple-auth", "mobile").Parse(signed)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidAudience)
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.createUser(t, true, false)

	sess, err := f.manager.SignIn(ctx, u)
	require.NoError(t, err)

	u.Name = "Renamed"
	u.Role = user.RoleAdmin
	refreshed, err := f.manager.Refresh(ctx, *sess, u)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", refreshed.Name)
	assert.Equal(t, user.RoleAdmin, refreshed.Role)
	assert.NotEqual(t, sess.Token, refreshed.Token)
	assert.Equal(t, "U", sess.Name, "previous session is untouched")

	other := *u
	other.ID = uuid.New()
	_, err = f.manager.Refresh(ctx, *sess, &other)
	assert.Error(t, err, "a session cannot be refreshed into another user")
}

func TestMiddleware(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.createUser(t, true, false)
	sess, err := f.manager.SignIn(ctx, u)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(f.manager.Middleware(DefaultCookieName))
	r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
		s, ok := FromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Write([]byte(string(s.Role)))
	})

	t.Run("NoToken", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("BearerToken", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+sess.Token)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "USER", rec.Body.String())
	})

	t.Run("CookieSeesRoleChange", func(t *testing.T) {
		stored, err := f.users.FindByID(ctx, u.ID)
		require.NoError(t, err)
		stored.Role = user.RoleAdmin
		_, err = f.users.Update(ctx, *stored)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: sess.Token})
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, "ADMIN", rec.Body.String())
	})

	t.Run("ForeignToken", func(t *testing.T) {
		now := time.Now().UTC()
		forged, err := NewJwtIssuer("wrong-secret-wrong-secret-wrong!!", "x", "y").Sign(*sess, now, now.Add(time.Hour))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+forged)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("SameSecretOtherIssuerOrAudience", func(t *testing.T) {
		now := time.Now().UTC()
		for _, other := range []*JwtIssuer{
			NewJwtIssuer(testSecret, "other-service", "web"),
			NewJwtIssuer(testSecret, "simple-auth", "mobile"),
		} {
			signed, err := other.Sign(*sess, now, now.Add(time.Hour))
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			req.Header.Set("Authorization", "Bearer "+signed)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusNoContent, rec.Code, "iss=%s aud=%s", other.Issuer, other.Audience)
		}
	})
}

func TestCookieSetter(t *testing.T) {
	c := NewCookieSetter("", true)
	rec := httptest.NewRecorder()
	c.SetCookie(rec, "abc", time.Now().Add(time.Hour))
	c.ClearCookie(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	assert.Equal(t, DefaultCookieName, cookies[0].Name)
	assert.Equal(t, "abc", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, -1, cookies[1].MaxAge)
}
