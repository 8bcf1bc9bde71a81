package authhook

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret []byte, subject string, expired bool) string {
	t.Helper()

	exp := time.Now().Add(time.Hour)
	if expired {
		exp = time.Now().Add(-time.Hour)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Name:  "Ada",
		Roles: []string{"admin"},
	})

	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func TestJWTHook_AuthenticateValidToken(t *testing.T) {
	secret := []byte("test-secret")
	hook := NewJWTHook(secret)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret, "user-1", false))

	user, err := hook.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, "Ada", user.Name)
	assert.Equal(t, []string{"admin"}, user.Roles)
}

func TestJWTHook_AuthenticateMissingHeader(t *testing.T) {
	hook := NewJWTHook([]byte("test-secret"))
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	_, err := hook.Authenticate(req)
	require.Error(t, err)
}

func TestJWTHook_AuthenticateExpiredToken(t *testing.T) {
	secret := []byte("test-secret")
	hook := NewJWTHook(secret)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret, "user-1", true))

	_, err := hook.Authenticate(req)
	require.Error(t, err)
}

func TestJWTHook_AuthenticateWrongSecret(t *testing.T) {
	hook := NewJWTHook([]byte("right-secret"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, []byte("wrong-secret"), "user-1", false))

	_, err := hook.Authenticate(req)
	require.Error(t, err)
}

func TestNoopHook_AlwaysSucceeds(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	user, err := (NoopHook{}).Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, "anonymous", user.ID)
}
