package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	tok, err := m.GenerateToken(42, "alice")
	require.NoError(t, err)

	claims, err := m.ParseToken(tok)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestParseTokenRejects(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	tok, err := NewTokenManager("other", time.Hour).GenerateToken(1, "bob")
	require.NoError(t, err)

	_, err = m.ParseToken(tok)
	assert.Error(t, err)
	_, err = m.ParseToken("garbage")
	assert.Error(t, err)

	expired := &TokenManager{secret: []byte("secret"), ttl: -time.Minute}
	tok, err = expired.GenerateToken(1, "bob")
	require.NoError(t, err)
	_, err = m.ParseToken(tok)
	assert.Error(t, err)
}

func TestNewTokenManagerDefaultsTTL(t *testing.T) {
	assert.Equal(t, 72*time.Hour, NewTokenManager("s", 0).ttl)
}
