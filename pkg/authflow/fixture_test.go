package authflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-auth/pkg/credential"
	"github.com/tendant/simple-auth/pkg/metrics"
	"github.com/tendant/simple-auth/pkg/session"
	"github.com/tendant/simple-auth/pkg/token"
	"github.com/tendant/simple-auth/pkg/user"
	"golang.org/x/crypto/bcrypt"
)

type sentNotice struct {
	kind  string
	email string
	value string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotice
	err  error
}

func (n *recordingNotifier) record(kind, email, value string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentNotice{kind, email, value})
	return nil
}

func (n *recordingNotifier) SendVerification(ctx context.Context, email, token string) error {
	return n.record("verification", email, token)
}

func (n *recordingNotifier) SendPasswordReset(ctx context.Context, email, token string) error {
	return n.record("password_reset", email, token)
}

func (n *recordingNotifier) SendTwoFactorCode(ctx context.Context, email, code string) error {
	return n.record("two_factor", email, code)
}

func (n *recordingNotifier) last(kind string) (sentNotice, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].kind == kind {
			return n.sent[i], true
		}
	}
	return sentNotice{}, false
}

func (n *recordingNotifier) count(kind string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.sent {
		if s.kind == kind {
			c++
		}
	}
	return c
}

type fixture struct {
	users         *user.InMemRepository
	tokens        *token.MemoryStore
	confirmations *token.MemoryConfirmationStore
	issuer        *token.Issuer
	hasher        *credential.Pool
	notifier      *recordingNotifier
	sessions      *session.Manager
	svc           *Service
	now           time.Time
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		users:         user.NewInMemRepository(),
		tokens:        token.NewMemoryStore(),
		confirmations: token.NewMemoryConfirmationStore(),
		hasher:        credential.NewPool(credential.NewBcryptHasher(bcrypt.MinCost), 4),
		notifier:      &recordingNotifier{},
		now:           time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	f.issuer = token.NewIssuer(f.tokens, token.WithClock(func() time.Time { return f.now }))
	f.sessions = session.NewManager(f.users, f.confirmations, session.NewJwtIssuer("authflow-test-secret-authflow-test", "test", "test"))

	opts = append([]Option{WithMetrics(metrics.New(prometheus.NewRegistry()))}, opts...)
	f.svc = NewService(Dependencies{
		Users:         f.users,
		Tokens:        f.tokens,
		Confirmations: f.confirmations,
		Issuer:        f.issuer,
		Hasher:        f.hasher,
		Notifier:      f.notifier,
		Sessions:      f.sessions,
	}, opts...)
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

type userSpec struct {
	email     string
	password  string
	verified  bool
	twoFactor bool
	role      user.Role
}

func (f *fixture) createUser(t *testing.T, spec userSpec) *user.User {
	t.Helper()
	ctx := context.Background()

	u := user.User{Name: "U", Email: spec.email, Role: spec.role, TwoFactorEnabled: spec.twoFactor}
	if spec.password != "" {
		hash, err := f.hasher.Hash(ctx, spec.password)
		require.NoError(t, err)
		u.PasswordHash = hash
	}
	if spec.verified {
		at := f.now
		u.EmailVerifiedAt = &at
	}
	created, err := f.users.Create(ctx, u)
	require.NoError(t, err)
	return created
}

func (f *fixture) tokenCount() int {
	return f.tokens.Count(token.KindVerification) + f.tokens.Count(token.KindPasswordReset) + f.tokens.Count(token.KindTwoFactor)
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
