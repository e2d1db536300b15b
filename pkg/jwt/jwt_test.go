package jwt

import (
	"context"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	token, err := svc.GenerateToken("user-a")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-a", claims.UserID)
}

func TestValidateTokenRejectsOtherSecret(t *testing.T) {
	token, err := NewService("secret-one", time.Hour).GenerateToken("user-a")
	require.NoError(t, err)

	_, err = NewService("secret-two", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenExpired(t *testing.T) {
	svc := NewService("test-secret", time.Minute)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := svc.GenerateToken("user-a")
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateTokenRejectsNoneAlgorithm(t *testing.T) {
	claims := &Claims{UserID: "user-a"}
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodNone, claims).SignedString(gojwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewService("test-secret", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRequiresUserID(t *testing.T) {
	svc := NewService("test-secret", time.Hour)
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, &Claims{}).SignedString(svc.secretKey)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGenerateTokenRequiresUserID(t *testing.T) {
	_, err := NewService("test-secret", time.Hour).GenerateToken("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIdentityContext(t *testing.T) {
	_, ok := IdentityFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{UserID: "user-a"})
	id, ok := IdentityFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "user-a", id.UserID)
}
