package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/donation-matrix-api/internal/models"
	appErrors "github.com/noah-isme/donation-matrix-api/pkg/errors"
)

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims *models.JWTClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestTokenVerifierAcceptsValidToken(t *testing.T) {
	verifier := NewTokenVerifier("secret")
	token := signToken(t, jwt.SigningMethodHS256, []byte("secret"), &models.JWTClaims{
		UserID: "p-1",
		Role:   models.RoleParticipant,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := verifier.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "p-1", claims.UserID)
	assert.False(t, claims.IsAdmin())
}

func TestTokenVerifierRejectsInvalidTokens(t *testing.T) {
	verifier := NewTokenVerifier("secret")

	cases := map[string]string{
		"wrong secret": signToken(t, jwt.SigningMethodHS256, []byte("other"), &models.JWTClaims{UserID: "p-1"}),
		"expired": signToken(t, jwt.SigningMethodHS256, []byte("secret"), &models.JWTClaims{
			UserID:           "p-1",
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))},
		}),
		"wrong algorithm": signToken(t, jwt.SigningMethodHS512, []byte("secret"), &models.JWTClaims{UserID: "p-1"}),
		"no subject":      signToken(t, jwt.SigningMethodHS256, []byte("secret"), &models.JWTClaims{}),
		"garbage":         "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := verifier.ValidateToken(token)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.Code(err))
		})
	}
}
