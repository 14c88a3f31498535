package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pliu/chatvideo/internal/models"
	"github.com/pliu/chatvideo/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers map[string]*models.User

func (f fakeUsers) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	if u, ok := f[username]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func TestIssueAndVerify(t *testing.T) {
	users := fakeUsers{
		"alice": {ID: 1, Username: "alice", IsActive: true},
		"bob":   {ID: 2, Username: "bob", IsActive: false},
	}
	issuer := NewIssuer("secret", time.Minute)
	verifier := NewVerifier("secret", users)
	ctx := context.Background()

	token, err := issuer.Issue(users["alice"])
	require.NoError(t, err)
	id, err := verifier.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id.UserID)
	assert.True(t, id.IsActive)

	token, err = issuer.Issue(users["bob"])
	require.NoError(t, err)
	id, err = verifier.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrInactiveUser)
	assert.Equal(t, int64(2), id.UserID)

	token, err = issuer.Issue(&models.User{Username: "ghost"})
	require.NoError(t, err)
	_, err = verifier.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	users := fakeUsers{"alice": {ID: 1, Username: "alice", IsActive: true}}
	verifier := NewVerifier("secret", users)
	ctx := context.Background()

	wrongKey, err := NewIssuer("other", time.Minute).Issue(users["alice"])
	require.NoError(t, err)
	_, err = verifier.Verify(ctx, wrongKey)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewIssuer("secret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := expired.Issue(users["alice"])
	require.NoError(t, err)
	_, err = verifier.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Type: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	signed, err := refresh.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = verifier.Verify(ctx, signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = verifier.Verify(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseBearerToken(t *testing.T) {
	token, err := ParseBearerToken("Bearer abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	for _, header := range []string{"", "abc", "Basic abc", "Bearer "} {
		_, err := ParseBearerToken(header)
		assert.Error(t, err, header)
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("admin123")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "admin123"))
	assert.False(t, CheckPassword(hash, "wrong"))
}
