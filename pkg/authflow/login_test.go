package authflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-auth/pkg/session"
	"github.com/tendant/simple-auth/pkg/token"
	"github.com/tendant/simple-auth/pkg/user"
)

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("InvalidInput", func(t *testing.T) {
		f := newFixture(t)
		for _, req := range []LoginRequest{
			{Email: "not-an-email", Password: "secret1"},
			{Email: "u@x.com", Password: ""},
			{Email: "", Password: "secret1"},
		} {
			res, err := f.svc.Login(ctx, req)
			require.NoError(t, err)
			assert.Equal(t, ReasonInvalidInput, res.Reason)
			assert.Equal(t, StatusError, res.Status)
			assert.NotEmpty(t, res.Errors)
		}
		assert.Zero(t, f.tokenCount())
	})

	t.Run("UnknownEmailLooksLikeWrongPassword", func(t *testing.T) {
		f := newFixture(t)
		f.createUser(t, userSpec{email: "u@x.com", password: "secret1", verified: true})

		unknown, err := f.svc.Login(ctx, LoginRequest{Email: "nobody@x.com", Password: "secret1"})
		require.NoError(t, err)
		wrong, err := f.svc.Login(ctx, LoginRequest{Email: "u@x.com", Password: "wrong-pw"})
		require.NoError(t, err)

		assert.Equal(t, ReasonInvalidCredentials, unknown.Reason)
		assert.Equal(t, unknown, wrong)
		assert.Equal(t, MsgInvalidCredentials, wrong.Message)
	})

	t.Run("NoPasswordHash", func(t *testing.T) {
		f := newFixture(t)
		f.createUser(t, userSpec{email: "oauth@x.com", verified: true})

		res, err := f.svc.Login(ctx, LoginRequest{Email: "oauth@x.com", Password: "anything"})
		require.NoError(t, err)
		assert.Equal(t, ReasonInvalidCredentials, res.Reason)
	})

	t.Run("VerifiedSuccess", func(t *testing.T) {
		f := newFixture(t)
		u := f.createUser(t, userSpec{email: "u@x.com", password: "secret1", verified: true})

		res, err := f.svc.Login(ctx, LoginRequest{Email: " u@x.com ", Password: "secret1"})
		require.NoError(t, err)
		assert.Equal(t, OutcomeSuccess, res.Outcome)
		assert.Equal(t, StatusSuccess, res.Status)
		assert.Equal(t, MsgLoginSuccess, res.Message)
		assert.Equal(t, DefaultLoginRedirect, res.Redirect)
		require.NotNil(t, res.Session)
		assert.Equal(t, u.ID, res.Session.UserID)
		assert.NotEmpty(t, res.Session.Token)

		assert.Zero(t, f.tokenCount(), "a plain login touches no token")
		assert.Empty(t, f.notifier.sent)
	})

	t.Run("CallbackURL", func(t *testing.T) {
		f := newFixture(t, WithDefaultRedirect("/home"))
		f.createUser(t, userSpec{email: "u@x.com", password: "secret1", verified: true})

		cases := map[string]string{
			"/dashboard?tab=1":     "/dashboard?tab=1",
			"":                     "/home",
			"https://evil.example": "/home",
			"//evil.example/path":  "/home",
			`/\evil.example`:       "/home",
		}
		for callback, want := range cases {
			res, err := f.svc.Login(ctx, LoginRequest{Email: "u@x.com", Password: "secret1", CallbackURL: callback})
			require.NoError(t, err)
			assert.Equal(t, want, res.Redirect, callback)
		}
	})

	t.Run("UnverifiedSkipsPasswordCheck", func(t *testing.T) {
		f := newFixture(t)
		u := f.createUser(t, userSpec{email: "u@x.com", password: "secret1"})

		for _, pw := range []string{"secret1", "wrong-pw"} {
			res, err := f.svc.Login(ctx, LoginRequest{Email: "u@x.com", Password: pw})
			require.NoError(t, err)
			assert.Equal(t, OutcomeEmailUnverified, res.Outcome)
			assert.Equal(t, MsgVerificationSent, res.Message)
			assert.Nil(t, res.Session)
		}

		assert.Equal(t, 1, f.tokens.Count(token.KindVerification))
		tok, err := f.tokens.FindByUserID(ctx, token.KindVerification, u.ID)
		require.NoError(t, err)
		sent, ok := f.notifier.last("verification")
		require.True(t, ok)
		assert.Equal(t, tok.Value, sent.value)
		assert.Equal(t, 2, f.notifier.count("verification"), "one notice per issued token")
	})

	t.Run("NotificationFailureIsUpstream", func(t *testing.T) {
		f := newFixture(t)
		f.createUser(t, userSpec{email: "u@x.com", password: "secret1"})
		f.notifier.err = errors.New("smtp down")

		_, err := f.svc.Login(ctx, LoginRequest{Email: "u@x.com", Password: "secret1"})
		assert.ErrorIs(t, err, f.notifier.err)
		assert.Equal(t, 1, f.tokens.Count(token.KindVerification), "a failed send does not roll back issuance")
	})
}

func TestLoginTwoFactor(t *testing.T) {
	ctx := context.Background()
	spec := userSpec{email: "2fa@x.com", password: "secret1", verified: true, twoFactor: true}

	requestCode := func(t *testing.T, f *fixture) string {
		t.Helper()
		res, err := f.svc.Login(ctx, LoginRequest{Email: spec.email, Password: spec.password})
		require.NoError(t, err)
		require.Equal(t, OutcomeTwoFactorRequired, res.Outcome)
		require.Equal(t, StatusTwoFactor, res.Status)
		sent, ok := f.notifier.last("two_factor")
		require.True(t, ok)
		return sent.value
	}

	t.Run("NoCodeIssuesOne", func(t *testing.T) {
		f := newFixture(t)
		f.createUser(t, spec)

		res, err := f.svc.Login(ctx, LoginRequest{Email: spec.email, Password: "not-checked-here"})
		require.NoError(t, err)
		assert.Equal(t, OutcomeTwoFactorRequired, res.Outcome)
		assert.Equal(t, MsgTwoFactorSent, res.Message)
		assert.Equal(t, 1, f.tokens.Count(token.KindTwoFactor))
	})

	t.Run("CorrectCodeThenPassword", func(t *testing.T) {
		f := newFixture(t)
		u := f.createUser(t, spec)
		code := requestCode(t, f)

		res, err := f.svc.Login(ctx, LoginRequest{Email: spec.email, Password: spec.password, Code: strPtr(code)})
		require.NoError(t, err)
		assert.Equal(t, OutcomeSuccess, res.Outcome)
		assert.Zero(t, f.tokens.Count(token.KindTwoFactor), "the code is consumed")
		assert.False(t, f.confirmations.Has(u.ID), "sign-in consumes the confirmation")

		res, err = f.svc.Login(ctx, LoginRequest{Email: spec.email, Password: spec.password, Code: strPtr(code)})
		require.NoError(t, err)
		assert.Equal(t, ReasonInvalidCode, res.Reason, "a code works once")
	})

	t.Run("WrongCode", func(t *testing.T) {
		f := newFixture(t)
		u := f.createUser(t, spec)
		code := requestCode(t, f)
		wrong := "000000"
		if code == wrong {
			wrong = "111111"
		}

		res, err := f.svc.Login(ctx, LoginRequest{Email: spec.email, Password: spec.password, Code: strPtr(wrong)})
		require.NoError(t, err)
		assert.Equal(t, ReasonInvalidCode, res.Reason)
		assert.Equal(t, MsgInvalidCode, res.Message)
		assert.Equal(t, 1, f.tokens.Count(token.KindTwoFactor))
		assert.False(t, f.confirmations.Has(u.ID))
	})

	t.Run("CodeWithoutIssuedToken", func(t *testing.T) {
		f := newFixture(t)
		f.createUser(t, spec)

		res, err := f.svc.Login(ctx, LoginRequest{Email: spec.email, Password: spec.password, Code: strPtr("123456")})
		require.NoError(t, err)
		assert.Equal(t, ReasonInvalidCode, res.Reason)
	})

	t.Run("ExpiredCode", func(t *testing.T) {
		f := newFixture(t)
		u := f.createUser(t, spec)
		code := requestCode(t, f)
		f.advance(token.DefaultTwoFactorTTL)

		res, err := f.svc.Login(ctx, LoginRequest{Email: spec.email, Password: spec.password, Code: strPtr(code)})
		require.NoError(t, err)
		assert.Equal(t, ReasonCodeExpired, res.Reason)
		assert.Equal(t, MsgCodeExpired, res.Message)
		assert.False(t, f.confirmations.Has(u.ID), "no confirmation for an expired code")
	})

	t.Run("CorrectCodeWrongPassword", func(t *testing.T) {
		f := newFixture(t)
		u := f.createUser(t, spec)
		code := requestCode(t, f)

		res, err := f.svc.Login(ctx, LoginRequest{Email: spec.email, Password: "wrong-pw", Code: strPtr(code)})
		require.NoError(t, err)
		assert.Equal(t, ReasonInvalidCredentials, res.Reason)
		assert.Zero(t, f.tokens.Count(token.KindTwoFactor))
		assert.True(t, f.confirmations.Has(u.ID))
	})

	t.Run("NewCodeReplacesOld", func(t *testing.T) {
		f := newFixture(t)
		f.createUser(t, spec)
		f.svc.issuer = token.NewIssuer(f.tokens,
			token.WithClock(func() time.Time { return f.now }),
			token.WithCodeGenerator(sequence("111111", "222222")))

		first := requestCode(t, f)
		second := requestCode(t, f)
		assert.Equal(t, "111111", first)
		assert.Equal(t, "222222", second)
		assert.Equal(t, 1, f.tokens.Count(token.KindTwoFactor))

		res, err := f.svc.Login(ctx, LoginRequest{Email: spec.email, Password: spec.password, Code: strPtr(first)})
		require.NoError(t, err)
		assert.Equal(t, ReasonInvalidCode, res.Reason)
	})
}

func sequence(values ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		v := values[i%len(values)]
		i++
		return v, nil
	}
}

type stubSessions struct {
	err error
}

func (s stubSessions) SignIn(ctx context.Context, u *user.User) (*session.Session, error) {
	return nil, s.err
}

func (s stubSessions) Refresh(ctx context.Context, prev session.Session, u *user.User) (*session.Session, error) {
	return nil, s.err
}

func TestLoginSessionFailures(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		err        error
		wantReason Reason
		wantMsg    string
	}{
		{"CredentialsSignin", &session.AuthError{Type: session.ErrorTypeCredentialsSignin}, ReasonInvalidCredentials, MsgInvalidCredentials},
		{"CallbackWithDetail", &session.AuthError{Type: session.ErrorTypeCallbackRoute, Detail: "Provider unavailable"}, ReasonCallbackError, "Provider unavailable"},
		{"CallbackWithoutDetail", &session.AuthError{Type: session.ErrorTypeCallbackRoute, Err: errors.New("db")}, ReasonCallbackError, "Something went wrong. Please try again later."},
		{"AccessDenied", &session.AuthError{Type: session.ErrorTypeAccessDenied}, ReasonUnexpected, "Something went wrong. Please try again later."},
		{"Untyped", errors.New("boom"), ReasonUnexpected, "Something went wrong. Please try again later."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.createUser(t, userSpec{email: "u@x.com", password: "secret1", verified: true})
			f.svc.sessions = stubSessions{err: tt.err}

			res, err := f.svc.Login(ctx, LoginRequest{Email: "u@x.com", Password: "secret1"})
			require.NoError(t, err)
			assert.Equal(t, OutcomeRejected, res.Outcome)
			assert.Equal(t, tt.wantReason, res.Reason)
			assert.Equal(t, tt.wantMsg, res.Message)
			assert.Empty(t, res.Redirect)
		})
	}
}
