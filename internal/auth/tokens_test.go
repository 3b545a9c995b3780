package auth

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiurfinder/shiurfinder/internal/config"
	"github.com/shiurfinder/shiurfinder/internal/models"
)

func testUser() *models.User {
	return &models.User{ID: "u-1", Username: "dov", Role: models.RoleAdmin}
}

func tokenServices(t *testing.T) map[string]TokenService {
	t.Helper()
	jwtSvc, err := NewJWTService([]byte("test-secret"))
	require.NoError(t, err)
	pasetoSvc, err := NewPasetoService(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)
	return map[string]TokenService{"jwt": jwtSvc, "paseto": pasetoSvc}
}

func TestTokenRoundTrip(t *testing.T) {
	for name, svc := range tokenServices(t) {
		t.Run(name, func(t *testing.T) {
			token, err := svc.CreateToken(testUser(), time.Hour)
			require.NoError(t, err)

			claims, err := svc.VerifyToken(token)
			require.NoError(t, err)
			assert.Equal(t, "u-1", claims.UserID)
			assert.Equal(t, "dov", claims.Username)
			assert.Equal(t, models.RoleAdmin, claims.Role)
			assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 5*time.Second)
		})
	}
}

func TestTokenExpired(t *testing.T) {
	for name, svc := range tokenServices(t) {
		t.Run(name, func(t *testing.T) {
			token, err := svc.CreateToken(testUser(), -time.Minute)
			require.NoError(t, err)

			_, err = svc.VerifyToken(token)
			assert.ErrorIs(t, err, ErrExpiredToken)
		})
	}
}

func TestTokenGarbage(t *testing.T) {
	for name, svc := range tokenServices(t) {
		t.Run(name, func(t *testing.T) {
			_, err := svc.VerifyToken("not-a-token")
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestJWTWrongSecret(t *testing.T) {
	a, err := NewJWTService([]byte("secret-a"))
	require.NoError(t, err)
	b, err := NewJWTService([]byte("secret-b"))
	require.NoError(t, err)

	token, err := a.CreateToken(testUser(), time.Hour)
	require.NoError(t, err)

	_, err = b.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasetoKeyLength(t *testing.T) {
	_, err := NewPasetoService([]byte("short"))
	assert.Error(t, err)
}

func TestNewTokenService(t *testing.T) {
	svc, err := NewTokenService(config.AuthConfig{TokenKind: config.TokenJWT, JWTSecret: []byte("s")})
	require.NoError(t, err)
	assert.IsType(t, &JWTService{}, svc)

	svc, err = NewTokenService(config.AuthConfig{TokenKind: config.TokenPaseto, PasetoKey: bytes.Repeat([]byte{1}, 32)})
	require.NoError(t, err)
	assert.IsType(t, &PasetoService{}, svc)

	_, err = NewTokenService(config.AuthConfig{TokenKind: "saml"})
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.True(t, VerifyPassword(hash, "correct horse"))
	assert.False(t, VerifyPassword(hash, "wrong horse"))
	assert.False(t, VerifyPassword("garbage", "correct horse"))
}

func TestResetTokenHashing(t *testing.T) {
	token, err := generateRandomToken()
	require.NoError(t, err)
	assert.Len(t, token, 64)
	assert.Equal(t, hashToken(token), hashToken(token))
	assert.NotEqual(t, token, hashToken(token))
}
