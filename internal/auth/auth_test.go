package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

	ok, err := VerifyPassword("correct horse battery staple", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("Correct horse battery staple", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPassword_Salted(t *testing.T) {
	a, err := HashPassword("hunter2")
	require.NoError(t, err)
	b, err := HashPassword("hunter2")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestVerifyPassword_Malformed(t *testing.T) {
	for _, enc := range []string{
		"",
		"plaintext",
		"$bcrypt$v=19$m=65536,t=1,p=4$c2FsdA$a2V5",
		"$argon2id$v=18$m=65536,t=1,p=4$c2FsdA$a2V5",
		"$argon2id$v=19$m=lots,t=1,p=4$c2FsdA$a2V5",
		"$argon2id$v=19$m=65536,t=1,p=4$!!!$a2V5",
		"$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$",
	} {
		_, err := VerifyPassword("pw", enc)
		assert.ErrorIs(t, err, ErrMalformedHash, enc)
	}
}

func TestTokens_IssueVerify(t *testing.T) {
	tokens := NewTokens("s3cret", time.Hour)

	tok, err := tokens.Issue(42, "ada@example.com")
	require.NoError(t, err)

	claims, err := tokens.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.ID)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestTokens_Rejects(t *testing.T) {
	var (
		tokens = NewTokens("s3cret", time.Hour)
		other  = NewTokens("different", time.Hour)
	)

	foreign, err := other.Issue(1, "a@example.com")
	require.NoError(t, err)
	_, err = tokens.Verify(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong secret")

	expired := NewTokens("s3cret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.Issue(1, "a@example.com")
	require.NoError(t, err)
	_, err = tokens.Verify(old)
	assert.ErrorIs(t, err, ErrInvalidToken, "expired")

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{ID: 1}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tokens.Verify(none)
	assert.ErrorIs(t, err, ErrInvalidToken, "unsigned")

	_, err = tokens.Verify("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokens_DefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultTokenTTL, NewTokens("s", 0).ttl)
}
