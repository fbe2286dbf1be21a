package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginIssuesValidToken(t *testing.T) {
	svc := NewAuthService("test-secret", time.Hour, "admin", "hunter2")

	token, err := svc.Login("admin", "hunter2")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "admin", claims.Subject)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := NewAuthService("test-secret", time.Hour, "admin", "hunter2")

	for _, c := range []struct{ user, pass string }{
		{"admin", "wrong"},
		{"wrong", "hunter2"},
		{"", ""},
	} {
		_, err := svc.Login(c.user, c.pass)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := NewAuthService("test-secret", time.Hour, "admin", "hunter2")

	_, err := svc.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsForeignSecret(t *testing.T) {
	issuer := NewAuthService("secret-a", time.Hour, "admin", "hunter2")
	verifier := NewAuthService("secret-b", time.Hour, "admin", "hunter2")

	token, err := issuer.Login("admin", "hunter2")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := NewAuthService("test-secret", -time.Minute, "admin", "hunter2")

	token, err := svc.Login("admin", "hunter2")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}
