package token

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	*MemoryStore
}

func (failingStore) Replace(ctx context.Context, t Token) (*Token, error) {
	return nil, errors.New("store unavailable")
}

func TestIssuer(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	t.Run("TTLs", func(t *testing.T) {
		store := NewMemoryStore()
		issuer := NewIssuer(store, WithClock(clock))
		userID := uuid.New()

		v, err := issuer.IssueVerification(ctx, userID, "u@x.com")
		require.NoError(t, err)
		assert.Equal(t, KindVerification, v.Kind)
		assert.Equal(t, userID, v.UserID)
		assert.Equal(t, now.Add(24*time.Hour), v.ExpiresAt)
		_, err = uuid.Parse(v.Value)
		assert.NoError(t, err, "verification values are UUIDs")

		r, err := issuer.IssuePasswordReset(ctx, "u@x.com")
		require.NoError(t, err)
		assert.Equal(t, now.Add(time.Hour), r.ExpiresAt)
		assert.Equal(t, uuid.Nil, r.UserID)

		c, err := issuer.IssueTwoFactor(ctx, "u@x.com")
		require.NoError(t, err)
		assert.Equal(t, now.Add(5*time.Minute), c.ExpiresAt)
		assert.Len(t, c.Value, 6)
	})

	t.Run("CustomTTLs", func(t *testing.T) {
		issuer := NewIssuer(NewMemoryStore(),
			WithClock(clock),
			WithVerificationTTL(time.Hour),
			WithPasswordResetTTL(30*time.Minute),
			WithTwoFactorTTL(time.Minute),
		)

		v, err := issuer.IssueVerification(ctx, uuid.New(), "u@x.com")
		require.NoError(t, err)
		assert.Equal(t, now.Add(time.Hour), v.ExpiresAt)

		r, err := issuer.IssuePasswordReset(ctx, "u@x.com")
		require.NoError(t, err)
		assert.Equal(t, now.Add(30*time.Minute), r.ExpiresAt)

		c, err := issuer.IssueTwoFactor(ctx, "u@x.com")
		require.NoError(t, err)
		assert.Equal(t, now.Add(time.Minute), c.ExpiresAt)
	})

	t.Run("SecondIssueReplacesFirst", func(t *testing.T) {
		store := NewMemoryStore()
		issuer := NewIssuer(store)

		first, err := issuer.IssuePasswordReset(ctx, "u@x.com")
		require.NoError(t, err)
		second, err := issuer.IssuePasswordReset(ctx, "u@x.com")
		require.NoError(t, err)
		assert.NotEqual(t, first.Value, second.Value)

		_, err = store.FindByValue(ctx, KindPasswordReset, first.Value)
		assert.ErrorIs(t, err, ErrTokenNotFound)
		found, err := store.FindByValue(ctx, KindPasswordReset, second.Value)
		require.NoError(t, err)
		assert.Equal(t, second.ID, found.ID)
	})

	t.Run("StoreFailurePropagates", func(t *testing.T) {
		issuer := NewIssuer(failingStore{NewMemoryStore()})

		tok, err := issuer.IssueTwoFactor(ctx, "u@x.com")
		assert.Error(t, err)
		assert.Nil(t, tok)
	})

	t.Run("CodeGeneratorOverride", func(t *testing.T) {
		issuer := NewIssuer(NewMemoryStore(), WithCodeGenerator(func() (string, error) {
			return "654321", nil
		}))

		c, err := issuer.IssueTwoFactor(ctx, "u@x.com")
		require.NoError(t, err)
		assert.Equal(t, "654321", c.Value)
	})
}

func TestNewTwoFactorCode(t *testing.T) {
	for i := 0; i < 1000; i++ {
		code, err := NewTwoFactorCode()
		require.NoError(t, err)
		require.Len(t, code, 6)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestTokenIsExpired(t *testing.T) {
	expiry := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tok := Token{ExpiresAt: expiry}

	assert.False(t, tok.IsExpired(expiry.Add(-time.Nanosecond)))
	assert.True(t, tok.IsExpired(expiry), "expiry instant itself counts as expired")
	assert.True(t, tok.IsExpired(expiry.Add(time.Second)))
}

func TestTokenIdentityKey(t *testing.T) {
	userID := uuid.New()

	assert.Equal(t, userID.String(), Token{Kind: KindVerification, UserID: userID, Email: "a@x.com"}.IdentityKey())
	assert.Equal(t, "a@x.com", Token{Kind: KindVerification, Email: "a@x.com"}.IdentityKey())
	assert.Equal(t, "a@x.com", Token{Kind: KindPasswordReset, UserID: userID, Email: "a@x.com"}.IdentityKey())
	assert.Equal(t, "a@x.com", Token{Kind: KindTwoFactor, Email: "a@x.com"}.IdentityKey())
}
