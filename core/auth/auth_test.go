package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.True(t, VerifyPassword("s3cret", hash))
	assert.False(t, VerifyPassword("wrong", hash))

	_, err = HashPassword("short")
	assert.ErrorIs(t, err, ErrWeakPassword)
	_, err = HashPassword(strings.Repeat("x", 73))
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestTokenRoundTrip(t *testing.T) {
	m, err := NewTokenManager("secret", time.Hour)
	require.NoError(t, err)

	tok, err := m.GenerateToken(42, "ada")
	require.NoError(t, err)

	claims, err := m.ParseToken(tok)
	require.NoError(t, err)
	assert.EqualValues(t, 42, claims.UserID)
	assert.Equal(t, "ada", claims.Username)
}

func TestTokenRejected(t *testing.T) {
	m, _ := NewTokenManager("secret", time.Hour)
	other, _ := NewTokenManager("other", time.Hour)

	tok, err := other.GenerateToken(1, "x")
	require.NoError(t, err)
	_, err = m.ParseToken(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, _ := NewTokenManager("secret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	tok, err = expired.GenerateToken(1, "x")
	require.NoError(t, err)
	_, err = m.ParseToken(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewTokenManager("", time.Hour)
	assert.Error(t, err)
}
