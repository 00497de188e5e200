package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func sign(t *testing.T, secret string, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestValidateTokenReadsUserIDClaim(t *testing.T) {
	v, err := NewJWTValidator(JWTConfig{SecretKey: testSecret})
	require.NoError(t, err)

	token := sign(t, testSecret, &Claims{
		UserID: 42,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	userID, err := v.ValidateToken("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestValidateTokenFallsBackToSubject(t *testing.T) {
	v, err := NewJWTValidator(JWTConfig{SecretKey: testSecret})
	require.NoError(t, err)

	token := sign(t, testSecret, jwt.RegisteredClaims{Subject: "7"})

	userID, err := v.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), userID)
}

func TestValidateTokenRejections(t *testing.T) {
	v, err := NewJWTValidator(JWTConfig{SecretKey: testSecret, Issuer: "diary"})
	require.NoError(t, err)

	expired := sign(t, testSecret, &Claims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "diary",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	_, err = v.ValidateToken(expired)
	assert.ErrorIs(t, err, ErrExpiredToken)

	wrongKey := sign(t, "other-secret", &Claims{UserID: 1, RegisteredClaims: jwt.RegisteredClaims{Issuer: "diary"}})
	_, err = v.ValidateToken(wrongKey)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	wrongIssuer := sign(t, testSecret, &Claims{UserID: 1, RegisteredClaims: jwt.RegisteredClaims{Issuer: "elsewhere"}})
	_, err = v.ValidateToken(wrongIssuer)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noUser := sign(t, testSecret, &Claims{RegisteredClaims: jwt.RegisteredClaims{Issuer: "diary"}})
	_, err = v.ValidateToken(noUser)
	assert.ErrorIs(t, err, ErrInvalidClaims)

	_, err = v.ValidateToken("")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestUserContextRoundTrip(t *testing.T) {
	_, err := GetUserFromContext(context.Background())
	assert.ErrorIs(t, err, ErrNoUserInContext)

	ctx := SetUserInContext(context.Background(), &UserContext{UserID: 9})
	user, err := GetUserFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(9), user.UserID)
}
