package user

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims CollabJWTClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return ss
}

func TestValidateToken(t *testing.T) {
	svc := NewService(nil, "top-secret")

	ss := signToken(t, "top-secret", CollabJWTClaims{
		ID:       42,
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "collab-x",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	id, username, err := svc.ValidateToken(ss)
	require.NoError(t, err)
	assert.Equal(t, 42, id)
	assert.Equal(t, "alice", username)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	svc := NewService(nil, "top-secret")

	ss := signToken(t, "other-secret", CollabJWTClaims{
		ID:       42,
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, _, err := svc.ValidateToken(ss)
	assert.Error(t, err)
}

func TestValidateTokenExpired(t *testing.T) {
	svc := NewService(nil, "top-secret")

	ss := signToken(t, "top-secret", CollabJWTClaims{
		ID:       42,
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})

	_, _, err := svc.ValidateToken(ss)
	assert.Error(t, err)
}

func TestValidateTokenGarbage(t *testing.T) {
	svc := NewService(nil, "top-secret")
	_, _, err := svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestUserName(t *testing.T) {
	u := User{Username: "alice"}
	assert.Equal(t, "alice", u.Name())

	u.DisplayName = "Alice L."
	assert.Equal(t, "Alice L.", u.Name())
}
