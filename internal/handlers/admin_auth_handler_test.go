package handlers

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestAdminJWTRoundTrip(t *testing.T) {
	t.Setenv("ADMIN_JWT_SECRET", "test-secret")

	token, err := GenerateAdminJWTToken("ops")
	require.NoError(t, err)

	claims, err := ValidateAdminJWTToken(token)
	require.NoError(t, err)
	require.Equal(t, "ops", claims.Username)
	require.Equal(t, "admin", claims.Role)
	require.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestAdminJWTRejectsWrongSecret(t *testing.T) {
	t.Setenv("ADMIN_JWT_SECRET", "first-secret")
	token, err := GenerateAdminJWTToken("ops")
	require.NoError(t, err)

	t.Setenv("ADMIN_JWT_SECRET", "second-secret")
	_, err = ValidateAdminJWTToken(token)
	require.Error(t, err)
}

func TestAdminJWTRejectsExpiredToken(t *testing.T) {
	t.Setenv("ADMIN_JWT_SECRET", "test-secret")

	claims := AdminJWTClaims{
		Username: "ops",
		Role:     "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-25 * time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = ValidateAdminJWTToken(token)
	require.Error(t, err)
}

func TestAdminJWTRejectsWrongAlgorithm(t *testing.T) {
	t.Setenv("ADMIN_JWT_SECRET", "test-secret")

	// alg=none tokens must never validate
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, AdminJWTClaims{
		Username: "ops",
		Role:     "admin",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ValidateAdminJWTToken(token)
	require.Error(t, err)

	_, err = ValidateAdminJWTToken("not.a.token")
	require.Error(t, err)
}
