package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTProvider_RoundTrip(t *testing.T) {
	p := NewJWTProvider("test-secret", time.Hour)
	userID := uuid.New()
	sessionID := uuid.New()

	token, err := p.GenerateAccessToken(userID, sessionID)
	require.NoError(t, err)

	claims, err := p.ValidateToken(token)
	require.NoError(t, err)

	parsed, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, userID, parsed)
	assert.Equal(t, sessionID.String(), claims.SessionID)
}

func TestJWTProvider_WrongSecret(t *testing.T) {
	p1 := NewJWTProvider("secret-one", time.Hour)
	p2 := NewJWTProvider("secret-two", time.Hour)

	token, err := p1.GenerateAccessToken(uuid.New(), uuid.New())
	require.NoError(t, err)

	_, err = p2.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTProvider_Expired(t *testing.T) {
	p := NewJWTProvider("test-secret", -time.Minute)

	token, err := p.GenerateAccessToken(uuid.New(), uuid.New())
	require.NoError(t, err)

	_, err = p.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTProvider_Garbage(t *testing.T) {
	p := NewJWTProvider("test-secret", time.Hour)
	_, err := p.ValidateToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
